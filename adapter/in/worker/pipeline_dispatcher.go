package worker

import (
	"context"

	json "github.com/goccy/go-json"

	"pipeline_server/pkg/logger"
)

type Handler struct {
	emailProcessor *EmailProcessor
	indexProcessor *IndexProcessor
}

func NewHandler(
	emailProcessor *EmailProcessor,
	indexProcessor *IndexProcessor,
) *Handler {
	return &Handler{
		emailProcessor: emailProcessor,
		indexProcessor: indexProcessor,
	}
}

func (h *Handler) Process(ctx context.Context, msg *Message) error {
	logger.Debug("Processing message: %s", msg.Type)

	switch msg.Type {
	case JobEmailProcess:
		return h.emailProcessor.ProcessEmail(ctx, msg)
	case JobIndexRebuild:
		return h.indexProcessor.ProcessRebuild(ctx, msg)
	default:
		logger.Warn("Unknown job type: %s", msg.Type)
		return nil
	}
}

func ParsePayload[T any](msg *Message) (*T, error) {
	var payload T
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
