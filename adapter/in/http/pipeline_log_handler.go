package http

import (
	"github.com/gofiber/fiber/v2"

	"pipeline_server/core/port/out"
	"pipeline_server/pkg/response"
)

// LogHandler serves the append-only processing log.
type LogHandler struct {
	plog out.ProcessingLog
}

func NewLogHandler(plog out.ProcessingLog) *LogHandler {
	return &LogHandler{plog: plog}
}

func (h *LogHandler) Register(app fiber.Router) {
	log := app.Group("/processing-log")

	log.Get("/", h.ListEntries)
	log.Get("/stats", h.GetStats)
}

// ListEntries returns log entries newest-first.
func (h *LogHandler) ListEntries(c *fiber.Ctx) error {
	p := GetPaginationParams(c, 50)

	entries, err := h.plog.List(c.Context(), p.Limit, p.Offset)
	if err != nil {
		return HandleError(c, err)
	}

	return response.OKWithMeta(c, entries, &response.Meta{
		Total:   len(entries),
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: len(entries) == p.Limit,
	})
}

// GetStats aggregates the whole log by status.
func (h *LogHandler) GetStats(c *fiber.Ctx) error {
	stats, err := h.plog.Stats(c.Context())
	if err != nil {
		return HandleError(c, err)
	}
	return response.OK(c, stats)
}
