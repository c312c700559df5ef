package http

import (
	"github.com/gofiber/fiber/v2"

	"pipeline_server/core/domain"
	"pipeline_server/core/port/out"
	"pipeline_server/core/service/pipeline"
	"pipeline_server/pkg/logger"
	"pipeline_server/pkg/response"
)

// ProcessHandler exposes the classification pipeline over HTTP.
type ProcessHandler struct {
	orchestrator *pipeline.Orchestrator
	producer     out.JobProducer
}

func NewProcessHandler(orchestrator *pipeline.Orchestrator, producer out.JobProducer) *ProcessHandler {
	return &ProcessHandler{
		orchestrator: orchestrator,
		producer:     producer,
	}
}

func (h *ProcessHandler) Register(app fiber.Router) {
	proc := app.Group("/process")

	proc.Post("/", h.ProcessSync)       // run the pipeline inline, return the result
	proc.Post("/async", h.ProcessAsync) // enqueue for the worker fleet

	app.Get("/request-types", h.ListRequestTypes)
}

// ProcessSync runs the full pipeline for one inbound email and returns
// the classification result. Replays of an already-processed
// (account_id, message_id) return the stored result unchanged.
func (h *ProcessHandler) ProcessSync(c *fiber.Ctx) error {
	var in domain.InboundEmail
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if err := in.Validate(); err != nil {
		return response.BadRequest(c, err.Error())
	}

	result, err := h.orchestrator.Process(c.Context(), &in)
	if err != nil {
		logger.WithError(err).WithFields(map[string]any{
			"account_id": in.AccountID,
			"message_id": in.MessageID,
		}).Error("pipeline processing failed")
		return HandleError(c, err)
	}

	return response.OK(c, result)
}

// ProcessAsync enqueues one inbound email and returns 202 with the
// broker message ID.
func (h *ProcessHandler) ProcessAsync(c *fiber.Ctx) error {
	if h.producer == nil {
		return response.Error(c, fiber.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "async processing not configured")
	}

	var in domain.InboundEmail
	if err := c.BodyParser(&in); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if err := in.Validate(); err != nil {
		return response.BadRequest(c, err.Error())
	}

	msgID, err := h.producer.PublishEmailProcess(c.Context(), &in)
	if err != nil {
		logger.WithError(err).WithFields(map[string]any{
			"account_id": in.AccountID,
			"message_id": in.MessageID,
		}).Error("failed to enqueue email")
		return HandleError(c, err)
	}

	return response.Accepted(c, fiber.Map{
		"queued":     true,
		"queue_id":   msgID,
		"account_id": in.AccountID,
		"message_id": in.MessageID,
	})
}

// ListRequestTypes returns the label set the classifier can emit.
func (h *ProcessHandler) ListRequestTypes(c *fiber.Ctx) error {
	return response.OK(c, fiber.Map{
		"request_types":  domain.RequestTypes(),
		"min_confidence": domain.MinConfidence,
	})
}
