package models

import (
	"encoding/base64"
	"encoding/json"
)

// ScrapeResult is the outcome of one scrape operation. Success and failure
// share the same shape so the host always receives a structured answer.
type ScrapeResult struct {
	Success bool `json:"success"`

	// Count is the number of exported records. It is always present on
	// success, zero included.
	Count int `json:"count"`

	// PageCount is the number of listing pages the traversal covered.
	PageCount int `json:"page_count,omitempty"`

	// FailedPages lists pages that could not be loaded and contributed
	// no records.
	FailedPages []int `json:"failed_pages,omitempty"`

	// Data is the export payload. Text formats are rendered as a string,
	// binary ones as base64 (see Encoding).
	Data []byte `json:"-"`

	ContentType string `json:"content_type,omitempty"`
	Filename    string `json:"filename,omitempty"`

	// Error is the user-facing failure message.
	Error string `json:"error,omitempty"`

	// ErrorCode qualifies Error for API clients.
	ErrorCode string `json:"error_code,omitempty"`

	// CacheStatus is "hit", "miss" or empty when caching was not requested.
	CacheStatus string `json:"cache_status,omitempty"`

	// Timing breaks down the time spent in each phase.
	Timing TimingInfo `json:"timing"`
}

// Binary reports whether the payload is not printable text.
func (r *ScrapeResult) Binary() bool {
	return r.ContentType == ContentTypeXLSX
}

// MarshalJSON adds the data/encoding pair to the envelope.
func (r ScrapeResult) MarshalJSON() ([]byte, error) {
	type plain ScrapeResult
	out := struct {
		plain
		Count    *int   `json:"count,omitempty"`
		Data     string `json:"data,omitempty"`
		Encoding string `json:"encoding,omitempty"`
	}{plain: plain(r)}

	if r.Success {
		out.Count = &r.Count
	}
	if len(r.Data) > 0 {
		if r.Binary() {
			out.Data = base64.StdEncoding.EncodeToString(r.Data)
			out.Encoding = "base64"
		} else {
			out.Data = string(r.Data)
			out.Encoding = "utf-8"
		}
	}
	return json.Marshal(out)
}

// Failure builds a failed result from any error.
func Failure(err error) *ScrapeResult {
	se := AsScrapeError(err)
	return &ScrapeResult{
		Success:   false,
		Error:     se.Message,
		ErrorCode: se.Code,
	}
}

// Content types of the export payloads.
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeJSON = "application/json"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// ScrapeMs covers opening, waiting, extraction and pagination.
	ScrapeMs int64 `json:"scrape_ms"`

	// ExportMs is the time spent in the export transform.
	ExportMs int64 `json:"export_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}
