package http

import (
	"time"

	"docuforge/internal/db"
	"docuforge/internal/orchestrator"
)

// ErrorResponse is the envelope returned for every non-2xx response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

func errResp(code, msg string) ErrorResponse {
	return ErrorResponse{Success: false, Code: code, Error: msg}
}

// CreateJobRequest is the body of POST /v1/jobs, mirroring spec.md §3's
// per-job Configuration enumeration. Unset fields are filled in by
// orchestrator.Manager.Submit via orchestrator.Config.WithBase.
type CreateJobRequest struct {
	URL                   string   `json:"url"`
	MaxPages              int      `json:"max_pages,omitempty"`
	MaxDepth              int      `json:"max_depth,omitempty"`
	QualityThreshold      int      `json:"quality_threshold,omitempty"`
	TimeoutMsPerRequest   int      `json:"timeout_ms_per_request,omitempty"`
	RateLimitMs           int      `json:"rate_limit_ms,omitempty"`
	MaxConcurrentRequests int      `json:"max_concurrent_requests,omitempty"`
	IncludeAnchors        bool     `json:"include_anchors,omitempty"`
	AllowedHosts          []string `json:"allowed_hosts,omitempty"`
	ExcludePatterns       []string `json:"exclude_patterns,omitempty"`
	RespectPathPrefix     *bool    `json:"respect_path_prefix,omitempty"`
	FollowExternalLinks   bool     `json:"follow_external_links,omitempty"`
	UseSitemap            bool     `json:"use_sitemap,omitempty"`
}

func (r CreateJobRequest) toConfig() orchestrator.Config {
	cfg := orchestrator.Config{
		MaxPages:              r.MaxPages,
		MaxDepth:              r.MaxDepth,
		QualityThreshold:      r.QualityThreshold,
		TimeoutMsPerRequest:   r.TimeoutMsPerRequest,
		RateLimitMs:           r.RateLimitMs,
		MaxConcurrentRequests: r.MaxConcurrentRequests,
		IncludeAnchors:        r.IncludeAnchors,
		AllowedHosts:          r.AllowedHosts,
		ExcludePatterns:       r.ExcludePatterns,
		FollowExternalLinks:   r.FollowExternalLinks,
		UseSitemap:            r.UseSitemap,
		RespectPathPrefix:     true,
	}
	if r.RespectPathPrefix != nil {
		cfg.RespectPathPrefix = *r.RespectPathPrefix
	}
	return cfg
}

// CreateJobResponse is returned by POST /v1/jobs.
type CreateJobResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id,omitempty"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JobItem is the summary shape returned by GET /v1/jobs.
type JobItem struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Status      string     `json:"status"`
	Discovered  int32      `json:"discovered"`
	Queued      int32      `json:"queued"`
	Processed   int32      `json:"processed"`
	Skipped     int32      `json:"skipped"`
	Failed      int32      `json:"failed"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func jobItemFromRow(job db.Job) JobItem {
	item := JobItem{
		ID:         job.ID.String(),
		URL:        job.SeedURL,
		Status:     job.Status,
		Discovered: job.Discovered,
		Queued:     job.Queued,
		Processed:  job.Processed,
		Skipped:    job.Skipped,
		Failed:     job.Failed,
		CreatedAt:  job.CreatedAt,
	}
	if job.CompletedAt.Valid {
		t := job.CompletedAt.Time
		item.CompletedAt = &t
	}
	return item
}

// JobDetail is the shape returned by GET /v1/jobs/:id, adding the error
// message (if any) and a link to the download endpoint once completed.
type JobDetail struct {
	JobItem
	Error       string `json:"error,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

// ListJobsResponse is returned by GET /v1/jobs.
type ListJobsResponse struct {
	Success bool      `json:"success"`
	Jobs    []JobItem `json:"jobs"`
}

// GetJobResponse is returned by GET /v1/jobs/:id.
type GetJobResponse struct {
	Success bool      `json:"success"`
	Job     JobDetail `json:"job"`
}
