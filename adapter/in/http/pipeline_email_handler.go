package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"pipeline_server/adapter/out/persistence"
	"pipeline_server/core/port/out"
	"pipeline_server/core/service/dedup"
	"pipeline_server/pkg/logger"
	"pipeline_server/pkg/response"
)

// EmailHandler serves stored emails and their classifications.
type EmailHandler struct {
	store out.EmailStore
	dedup *dedup.Engine
	index out.SimilarityIndex
}

func NewEmailHandler(store out.EmailStore, dedupEngine *dedup.Engine, index out.SimilarityIndex) *EmailHandler {
	return &EmailHandler{
		store: store,
		dedup: dedupEngine,
		index: index,
	}
}

func (h *EmailHandler) Register(app fiber.Router) {
	emails := app.Group("/emails")

	emails.Get("/:id", h.GetEmail)
	emails.Get("/:id/similar", h.GetSimilar)
	emails.Delete("/:id", h.DeleteEmail)
}

// GetEmail returns one email with its latest classification.
func (h *EmailHandler) GetEmail(c *fiber.Ctx) error {
	id, err := ParamUUID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}

	email, err := h.store.GetByID(c.Context(), id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return response.NotFound(c, "email not found")
		}
		return HandleError(c, err)
	}

	cls, err := h.store.LatestClassification(c.Context(), id)
	if err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return HandleError(c, err)
	}

	return response.OK(c, fiber.Map{
		"email":          email,
		"classification": cls,
	})
}

// GetSimilar returns stored emails similar to the given one, the email
// itself excluded. Query params: k (max results), threshold (minimum
// cosine similarity).
func (h *EmailHandler) GetSimilar(c *fiber.Ctx) error {
	id, err := ParamUUID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}

	k := c.QueryInt("k", 5)
	threshold := c.QueryFloat("threshold", 0)

	vector, err := h.store.GetEmbedding(c.Context(), id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return response.NotFound(c, "email not found")
		}
		return HandleError(c, err)
	}

	matches, err := h.dedup.Similar(c.Context(), id.String(), vector, k, threshold)
	if err != nil {
		return HandleError(c, err)
	}

	return response.OK(c, fiber.Map{
		"email_id": id,
		"similar":  matches,
	})
}

// DeleteEmail removes the email row and its index entry. The
// processing log keeps its entries, so a replayed message still
// short-circuits to the stored result.
func (h *EmailHandler) DeleteEmail(c *fiber.Ctx) error {
	id, err := ParamUUID(c, "id")
	if err != nil {
		return HandleError(c, err)
	}

	if err := h.store.Delete(c.Context(), id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return response.NotFound(c, "email not found")
		}
		return HandleError(c, err)
	}

	if err := h.index.Remove(c.Context(), id); err != nil {
		logger.WithError(err).WithField("email_id", id.String()).Warn("failed to remove index entry")
	}

	return response.NoContent(c)
}
