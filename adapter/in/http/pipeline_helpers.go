package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"pipeline_server/pkg/apperr"
	"pipeline_server/pkg/response"
)

// =============================================================================
// Request Parameter Helpers
// =============================================================================

// ParamUUID extracts and validates a UUID path parameter.
func ParamUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	raw := c.Params(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.InvalidInput(name, "must be a valid UUID")
	}
	return id, nil
}

// PaginationParams holds common pagination parameters.
type PaginationParams struct {
	Limit  int
	Offset int
}

// GetPaginationParams extracts limit/offset from query params,
// clamped to sane bounds.
func GetPaginationParams(c *fiber.Ctx, defaultLimit int) PaginationParams {
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > 200 {
		limit = 200
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}

	return PaginationParams{Limit: limit, Offset: offset}
}

// HandleError maps any error to a JSON error response. Pipeline stage
// errors get their taxonomy-specific status codes.
func HandleError(c *fiber.Ctx, err error) error {
	return response.AppError(c, apperr.FromPipeline(err))
}
