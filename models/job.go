package models

import (
	"sync"
	"time"
)

// Job statuses.
const (
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// JobResponse is the immediate response for POST /api/v1/jobs.
type JobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// JobStatusResponse is the response for GET /api/v1/jobs/:id.
type JobStatusResponse struct {
	ID       string        `json:"id"`
	Status   string        `json:"status"`
	Progress Progress      `json:"progress"`
	Result   *ScrapeResult `json:"result,omitempty"`
}

// Job tracks an asynchronous scrape. Progress is written by the scraping
// goroutine and read by status requests, hence the mutex.
type Job struct {
	ID        string
	CreatedAt int64 // unix timestamp

	mu         sync.Mutex
	status     string
	progress   Progress
	result     *ScrapeResult
	finishedAt int64
}

// NewJob creates a job in the processing state.
func NewJob(id string, createdAt int64) *Job {
	return &Job{ID: id, CreatedAt: createdAt, status: JobProcessing}
}

// SetProgress records the latest page progress.
func (j *Job) SetProgress(p Progress) {
	j.mu.Lock()
	j.progress = p
	j.mu.Unlock()
}

// Finish stores the final result and derives the job status from it.
func (j *Job) Finish(res *ScrapeResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = res
	j.finishedAt = time.Now().Unix()
	if res.Success {
		j.status = JobCompleted
	} else {
		j.status = JobFailed
	}
}

// FinishedAt returns when the job finished. ok is false while it is still
// processing.
func (j *Job) FinishedAt() (at int64, ok bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finishedAt, j.status != JobProcessing
}

// Snapshot returns a consistent view of the job for API responses.
func (j *Job) Snapshot() JobStatusResponse {
	j.mu.Lock()
	defer j.mu.Unlock()
	return JobStatusResponse{
		ID:       j.ID,
		Status:   j.status,
		Progress: j.progress,
		Result:   j.result,
	}
}
