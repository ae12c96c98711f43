package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for HTTP requests and crawl jobs.
// This is intentionally minimal and in-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)

	pagesCrawledTotal int64
	pagesSkippedTotal int64
	pagesFailedTotal  int64
	jobsByStatus      = make(map[string]int64)

	retentionJobsDeleted int64
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordPageCrawled increments the count of successfully crawled pages.
func RecordPageCrawled() {
	mu.Lock()
	defer mu.Unlock()
	pagesCrawledTotal++
}

// RecordPageSkipped increments the count of pages skipped by the quality
// gate or dedup.
func RecordPageSkipped() {
	mu.Lock()
	defer mu.Unlock()
	pagesSkippedTotal++
}

// RecordPageFailed increments the count of pages that failed to fetch or
// parse.
func RecordPageFailed() {
	mu.Lock()
	defer mu.Unlock()
	pagesFailedTotal++
}

// RecordJobTerminal increments the count of jobs that reached the given
// terminal status (completed/failed/timeout/cancelled).
func RecordJobTerminal(status string) {
	mu.Lock()
	defer mu.Unlock()
	jobsByStatus[status]++
}

// RecordRetentionJobs increments the counter of jobs deleted by the
// retention sweep.
func RecordRetentionJobs(deleted int64) {
	if deleted <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	retentionJobsDeleted += deleted
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP docuforge_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE docuforge_http_requests_total counter\n")

	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})

	for _, k := range reqKeys {
		v := requestsTotal[k]
		fmt.Fprintf(&b, "docuforge_http_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, v)
	}

	b.WriteString("# HELP docuforge_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE docuforge_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP docuforge_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE docuforge_http_request_duration_ms_count counter\n")

	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})

	for _, k := range latKeys {
		sum := latencyMsSum[k]
		cnt := latencyMsCount[k]
		fmt.Fprintf(&b, "docuforge_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, sum)
		fmt.Fprintf(&b, "docuforge_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, cnt)
	}

	b.WriteString("# HELP docuforge_pages_crawled_total Total pages successfully crawled\n")
	b.WriteString("# TYPE docuforge_pages_crawled_total counter\n")
	fmt.Fprintf(&b, "docuforge_pages_crawled_total %d\n", pagesCrawledTotal)

	b.WriteString("# HELP docuforge_pages_skipped_total Total pages skipped by the quality gate or dedup\n")
	b.WriteString("# TYPE docuforge_pages_skipped_total counter\n")
	fmt.Fprintf(&b, "docuforge_pages_skipped_total %d\n", pagesSkippedTotal)

	b.WriteString("# HELP docuforge_pages_failed_total Total pages that failed to fetch or parse\n")
	b.WriteString("# TYPE docuforge_pages_failed_total counter\n")
	fmt.Fprintf(&b, "docuforge_pages_failed_total %d\n", pagesFailedTotal)

	b.WriteString("# HELP docuforge_jobs_total Total jobs reaching each terminal status\n")
	b.WriteString("# TYPE docuforge_jobs_total counter\n")

	var statuses []string
	for s := range jobsByStatus {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	for _, s := range statuses {
		v := jobsByStatus[s]
		fmt.Fprintf(&b, "docuforge_jobs_total{status=\"%s\"} %d\n", s, v)
	}

	b.WriteString("# HELP docuforge_retention_jobs_deleted_total Total jobs deleted by the retention sweep\n")
	b.WriteString("# TYPE docuforge_retention_jobs_deleted_total counter\n")
	fmt.Fprintf(&b, "docuforge_retention_jobs_deleted_total %d\n", retentionJobsDeleted)

	return b.String()
}
