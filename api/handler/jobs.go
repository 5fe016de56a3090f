package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/use-agent/shelfscrape/models"
	"github.com/use-agent/shelfscrape/webhook"
)

// JobStore holds in-flight and finished scrape jobs. Finished jobs are
// dropped after the retention period.
type JobStore struct {
	jobs      sync.Map
	retention time.Duration
}

// NewJobStore creates a JobStore and starts its expiry loop.
func NewJobStore(retention time.Duration) *JobStore {
	if retention <= 0 {
		retention = time.Hour
	}
	s := &JobStore{retention: retention}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			s.expire(time.Now())
		}
	}()
	return s
}

func (s *JobStore) add(job *models.Job) { s.jobs.Store(job.ID, job) }

func (s *JobStore) get(id string) (*models.Job, bool) {
	v, ok := s.jobs.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*models.Job), true
}

// expire drops jobs that finished before now minus the retention period.
// Jobs still processing are kept however old they are.
func (s *JobStore) expire(now time.Time) {
	cutoff := now.Add(-s.retention).Unix()
	s.jobs.Range(func(key, value any) bool {
		if at, done := value.(*models.Job).FinishedAt(); done && at < cutoff {
			s.jobs.Delete(key)
		}
		return true
	})
}

// PostJob returns a handler for POST /api/v1/jobs. The scrape runs in the
// background; progress is polled via GetJob or pushed to webhook_url.
func PostJob(svc Scraper, store *JobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}
		req.Defaults()

		job := models.NewJob(uuid.NewString(), time.Now().Unix())
		store.add(job)

		go runJob(svc, job, req)

		c.JSON(http.StatusAccepted, models.JobResponse{ID: job.ID, Status: models.JobProcessing})
	}
}

// runJob is detached from the HTTP request so it runs to completion.
func runJob(svc Scraper, job *models.Job, req models.ScrapeRequest) {
	notify := func(eventType string, data any) {
		if req.WebhookURL != "" {
			webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, webhook.NewEvent(eventType, job.ID, data), nil)
		}
	}

	res := svc.Scrape(context.Background(), &req, func(p models.Progress) {
		job.SetProgress(p)
		notify(webhook.EventProgress, p)
	})
	job.Finish(res)

	if res.Success {
		slog.Info("job completed", "job_id", job.ID, "records", res.Count, "pages", res.PageCount)
		notify(webhook.EventCompleted, job.Snapshot())
	} else {
		slog.Warn("job failed", "job_id", job.ID, "error", res.Error)
		notify(webhook.EventFailed, job.Snapshot())
	}
}

// GetJob returns a handler for GET /api/v1/jobs/:id.
func GetJob(store *JobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := store.get(c.Param("id"))
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "job not found", nil))
			return
		}
		c.JSON(http.StatusOK, job.Snapshot())
	}
}

// DownloadJob returns a handler for GET /api/v1/jobs/:id/download, which
// serves a completed job's export as an attachment.
func DownloadJob(store *JobStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := store.get(c.Param("id"))
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "job not found", nil))
			return
		}
		snap := job.Snapshot()
		switch {
		case snap.Status == models.JobProcessing || snap.Result == nil:
			c.JSON(http.StatusConflict, snap)
		case !snap.Result.Success:
			c.JSON(statusForCode(snap.Result.ErrorCode), snap.Result)
		default:
			sendFile(c, snap.Result)
		}
	}
}
