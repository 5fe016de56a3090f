package models

import "strings"

// ScrapeRequest is the payload for POST /api/v1/scrape and POST /api/v1/jobs.
type ScrapeRequest struct {
	// URL is the catalog or product page to scrape. Required.
	URL string `json:"url" binding:"required,url"`

	// HTML, when set, is the current document as the host already rendered it.
	// No browser tab is opened; URL is still used to resolve relative links
	// and to compute the URLs of further pages.
	HTML string `json:"html,omitempty"`

	// Format selects the export: "csv", "xlsx" or "json". Default: "csv".
	// Validated by the export layer so that unknown values produce the
	// documented "Unsupported format" failure instead of a binding error.
	Format string `json:"format,omitempty"`

	// ScrapeAllPages walks the paginated listing instead of the current page only.
	ScrapeAllPages bool `json:"scrape_all_pages,omitempty"`

	// Fields is the ordered field selection. Empty selects every field.
	Fields []string `json:"fields,omitempty"`

	// Stealth enables anti-bot-detection evasions on the browser tab.
	Stealth bool `json:"stealth,omitempty"`

	// Timeout is the maximum duration in seconds for opening the first page.
	// Default: 30. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// Headers are sent with every page request.
	Headers map[string]string `json:"headers,omitempty"`

	// MaxAge enables the result cache for synchronous scrapes, in milliseconds.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`

	// Download makes POST /api/v1/scrape answer with the raw payload
	// (Content-Disposition attachment) instead of a JSON envelope.
	Download bool `json:"download,omitempty"`

	WebhookURL    string `json:"webhook_url,omitempty" binding:"omitempty,url"`
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults() {
	r.Format = strings.ToLower(strings.TrimSpace(r.Format))
	if r.Format == "" {
		r.Format = "csv"
	}
	if r.Timeout == 0 {
		r.Timeout = 30
	}
}

// Progress is emitted after each page of a multi-page scrape.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}
