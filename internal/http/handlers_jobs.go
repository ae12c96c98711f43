package http

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docuforge/internal/orchestrator"
	"docuforge/internal/store"
)

func principalFrom(c *fiber.Ctx) (Principal, bool) {
	p, ok := c.Locals("principal").(Principal)
	return p, ok
}

// createJobHandler handles POST /v1/jobs, starting a new crawl.
func createJobHandler(mgr *orchestrator.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := principalFrom(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(errResp("UNAUTHENTICATED", "user context is not available for this request"))
		}

		var req CreateJobRequest
		dec := json.NewDecoder(bytes.NewReader(c.Body()))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(errResp("BAD_REQUEST", "malformed request body: "+err.Error()))
		}
		if req.URL == "" {
			return c.Status(fiber.StatusBadRequest).JSON(errResp("BAD_REQUEST", "url is required"))
		}

		jobID, err := mgr.Submit(c.Context(), p.UserID, req.URL, req.toConfig())
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(errResp("JOB_SUBMIT_FAILED", err.Error()))
		}

		return c.Status(fiber.StatusAccepted).JSON(CreateJobResponse{Success: true, JobID: jobID.String()})
	}
}

// listJobsHandler handles GET /v1/jobs, scoped to the calling principal.
func listJobsHandler(c *fiber.Ctx) error {
	st := c.Locals("store").(*store.Store)
	p, ok := principalFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(errResp("UNAUTHENTICATED", "user context is not available for this request"))
	}

	limit := int32(50)
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(errResp("BAD_REQUEST", "invalid limit value"))
		}
		limit = int32(n)
	}

	offset := int32(0)
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c.Status(fiber.StatusBadRequest).JSON(errResp("BAD_REQUEST", "invalid offset value"))
		}
		offset = int32(n)
	}

	jobs, err := st.ListJobs(c.Context(), p.UserID, limit, offset)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(errResp("JOB_LIST_FAILED", err.Error()))
	}

	items := make([]JobItem, 0, len(jobs))
	for _, j := range jobs {
		items = append(items, jobItemFromRow(j))
	}

	return c.Status(fiber.StatusOK).JSON(ListJobsResponse{Success: true, Jobs: items})
}

// getJobHandler handles GET /v1/jobs/:id.
func getJobHandler(c *fiber.Ctx) error {
	st := c.Locals("store").(*store.Store)
	p, ok := principalFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(errResp("UNAUTHENTICATED", "user context is not available for this request"))
	}

	jobID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errResp("BAD_REQUEST", "invalid job id"))
	}

	job, err := st.GetJob(c.Context(), jobID, p.UserID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(errResp("NOT_FOUND", "job not found"))
	}

	detail := JobDetail{JobItem: jobItemFromRow(job)}
	if job.Error.Valid {
		detail.Error = job.Error.String
	}
	if job.FinalMarkdown.Valid {
		detail.DownloadURL = "/v1/jobs/" + job.ID.String() + "/download"
	}

	return c.Status(fiber.StatusOK).JSON(GetJobResponse{Success: true, Job: detail})
}
