package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"pipeline_server/pkg/apperr"
	"pipeline_server/pkg/logger"
)

// ServiceClaims are the claims carried by a service token. Caller
// identifies the upstream system pushing emails into the pipeline.
type ServiceClaims struct {
	Caller string `json:"caller"`
	jwt.RegisteredClaims
}

// ServiceAuth validates HS256 bearer tokens issued to upstream
// services. With an empty secret the middleware is a pass-through,
// which is how local development runs.
func ServiceAuth(secret string) fiber.Handler {
	if secret == "" {
		logger.Warn("JWT_SECRET not set, API authentication disabled")
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	key := []byte(secret)

	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return unauthorized(c, "missing authorization header")
		}

		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return unauthorized(c, "invalid authorization header")
		}

		claims := &ServiceClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		}, jwt.WithValidMethods([]string{"HS256"}))

		if err != nil || !token.Valid {
			logger.WithError(err).WithField("ip", c.IP()).Warn("rejected service token")
			return unauthorized(c, "invalid token")
		}

		if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
			return unauthorized(c, "token expired")
		}

		c.Locals("caller", claims.Caller)
		return c.Next()
	}
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Success:   false,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Error: ErrorDetail{
			Code:    apperr.CodeUnauthorized,
			Message: message,
		},
	})
}
