package http

import (
	"github.com/gofiber/fiber/v2"

	"pipeline_server/core/port/out"
	"pipeline_server/pkg/metrics"
	"pipeline_server/pkg/response"
)

// AdminHandler exposes operational endpoints for the similarity index.
type AdminHandler struct {
	producer out.JobProducer
	index    out.SimilarityIndex
}

func NewAdminHandler(producer out.JobProducer, index out.SimilarityIndex) *AdminHandler {
	return &AdminHandler{
		producer: producer,
		index:    index,
	}
}

func (h *AdminHandler) Register(app fiber.Router) {
	admin := app.Group("/admin")

	admin.Post("/index/rebuild", h.RebuildIndex)
	admin.Get("/index/stats", h.IndexStats)
	admin.Get("/pools", h.PoolStats)
}

// RebuildIndex enqueues a rebuild of the similarity index from
// storage. The worker drains it batch by batch, so a rebuild on a
// large corpus does not block this request.
func (h *AdminHandler) RebuildIndex(c *fiber.Ctx) error {
	if h.producer == nil {
		return response.Error(c, fiber.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "async processing not configured")
	}

	batchSize := c.QueryInt("batch_size", 500)

	msgID, err := h.producer.PublishIndexRebuild(c.Context(), batchSize)
	if err != nil {
		return HandleError(c, err)
	}

	return response.Accepted(c, fiber.Map{
		"queued":   true,
		"queue_id": msgID,
	})
}

// IndexStats reports the current index size.
func (h *AdminHandler) IndexStats(c *fiber.Ctx) error {
	size, err := h.index.Len(c.Context())
	if err != nil {
		return HandleError(c, err)
	}
	return response.OK(c, fiber.Map{"entries": size})
}

// PoolStats reports connection pool statistics and health.
func (h *AdminHandler) PoolStats(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{
		"stats":  metrics.GetAllPoolStats(),
		"health": metrics.GetAllPoolHealth(),
	})
}
