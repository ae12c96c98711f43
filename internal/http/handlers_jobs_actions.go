package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docuforge/internal/orchestrator"
	"docuforge/internal/store"
)

// cancelJobHandler handles DELETE /v1/jobs/:id.
func cancelJobHandler(mgr *orchestrator.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st := c.Locals("store").(*store.Store)
		p, ok := principalFrom(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(errResp("UNAUTHENTICATED", "user context is not available for this request"))
		}

		jobID, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(errResp("BAD_REQUEST", "invalid job id"))
		}

		if _, err := st.GetJob(c.Context(), jobID, p.UserID); err != nil {
			return c.Status(fiber.StatusNotFound).JSON(errResp("NOT_FOUND", "job not found"))
		}

		if !mgr.Cancel(jobID) {
			return c.Status(fiber.StatusConflict).JSON(errResp("JOB_NOT_ACTIVE", "job is not currently running in this process"))
		}

		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
	}
}

// downloadJobHandler handles GET /v1/jobs/:id/download, returning the
// finalized concatenated markdown artifact once the job has completed.
func downloadJobHandler(c *fiber.Ctx) error {
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

	if job.Status != "completed" {
		return c.Status(fiber.StatusConflict).JSON(errResp("JOB_NOT_COMPLETED", "job has not completed"))
	}
	if !job.FinalMarkdown.Valid {
		return c.Status(fiber.StatusConflict).JSON(errResp("JOB_NOT_COMPLETED", "final artifact not yet available"))
	}

	c.Type("md")
	c.Set("Content-Disposition", "attachment; filename=\""+job.ID.String()+".md\"")
	return c.SendString(job.FinalMarkdown.String)
}
