package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/pitchdreamers/pitch-booking/internal/repository"
	"github.com/pitchdreamers/pitch-booking/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token,
// rejects tokens whose id has been blacklisted by a logout and injects the
// caller's id, role and claims into the request context.
func JWTAuth(secret string, blacklist repository.TokenBlacklist, logger *zap.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			if blacklist != nil && claims.ID != "" {
				revoked, err := blacklist.IsRevoked(c.Request().Context(), claims.ID)
				if err != nil {
					logger.Error("token blacklist lookup failed", zap.String("jti", claims.ID), zap.Error(err))
					return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "token check unavailable"})
				}
				if revoked {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token revoked"})
				}
			}

			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextRole, claims.Role)
			c.Set(ContextClaims, claims)
			return next(c)
		}
	}
}
