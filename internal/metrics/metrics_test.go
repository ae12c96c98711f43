package metrics

import (
	"strings"
	"testing"
)

func TestRecordRequestAndExport(t *testing.T) {
	RecordRequest("GET", "/v1/jobs", 200, 42)

	out := Export()
	if !strings.Contains(out, "docuforge_http_requests_total{method=\"GET\",path=\"/v1/jobs\",status=\"200\"}") {
		t.Fatalf("expected HTTP request metric for GET /v1/jobs in export, got:\n%s", out)
	}
	if !strings.Contains(out, "docuforge_http_request_duration_ms_sum") || !strings.Contains(out, "docuforge_http_request_duration_ms_count") {
		t.Fatalf("expected latency metrics headers in export, got:\n%s", out)
	}
}

func TestRecordCrawlMetrics(t *testing.T) {
	RecordPageCrawled()
	RecordPageCrawled()
	RecordPageSkipped()
	RecordPageFailed()
	RecordJobTerminal("completed")
	RecordJobTerminal("failed")

	out := Export()
	if !strings.Contains(out, "docuforge_pages_crawled_total 2") {
		t.Fatalf("expected pages_crawled_total 2, got:\n%s", out)
	}
	if !strings.Contains(out, "docuforge_pages_skipped_total 1") {
		t.Fatalf("expected pages_skipped_total 1, got:\n%s", out)
	}
	if !strings.Contains(out, "docuforge_pages_failed_total 1") {
		t.Fatalf("expected pages_failed_total 1, got:\n%s", out)
	}
	if !strings.Contains(out, `docuforge_jobs_total{status="completed"} 1`) {
		t.Fatalf("expected jobs_total completed 1, got:\n%s", out)
	}
	if !strings.Contains(out, `docuforge_jobs_total{status="failed"} 1`) {
		t.Fatalf("expected jobs_total failed 1, got:\n%s", out)
	}
}

func TestRecordRetentionJobs(t *testing.T) {
	RecordRetentionJobs(3)
	RecordRetentionJobs(0) // no-op

	out := Export()
	if !strings.Contains(out, "docuforge_retention_jobs_deleted_total 3") {
		t.Fatalf("expected retention_jobs_deleted_total 3, got:\n%s", out)
	}
}
