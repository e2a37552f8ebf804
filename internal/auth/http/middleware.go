package http

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	authService "github.com/allisson/envsafe/internal/auth/service"
	apperrors "github.com/allisson/envsafe/internal/errors"
	"github.com/allisson/envsafe/internal/httputil"
)

// UserIDHeader carries the caller's user id. It is set by the authenticating proxy in
// front of the service and must not be reachable from untrusted clients.
const UserIDHeader = "X-User-ID"

// IdentityMiddleware stores the user id of UserIDHeader in the request context.
//
// Error handling:
//   - Missing header → 401 Unauthorized
//   - Header that is not a UUID → 401 Unauthorized
func IdentityMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		if raw == "" {
			logger.Debug("identity missing: no user id header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil {
			logger.Debug("identity rejected: malformed user id", slog.String("header", raw))
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// AdminMiddleware accepts requests whose bearer token matches tokenHash. An empty
// tokenHash disables the admin API: every request is rejected.
//
// Authorization header format: "Bearer <token>" (case-insensitive "bearer").
func AdminMiddleware(
	tokenService authService.AdminTokenService,
	tokenHash string,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenHash == "" {
			logger.Debug("admin request rejected: admin token not configured")
			httputil.HandleErrorGin(c, apperrors.ErrForbidden, logger)
			c.Abort()
			return
		}

		plainToken, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			logger.Debug("admin request rejected: malformed authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		if !tokenService.VerifyToken(plainToken, tokenHash) {
			logger.Warn("admin request rejected: invalid token", slog.String("client_ip", c.ClientIP()))
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	const bearerPrefix = "bearer "
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := header[len(bearerPrefix):]
	return token, token != ""
}
