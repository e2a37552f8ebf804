package http

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	authHTTP "github.com/allisson/envsafe/internal/auth/http"
)

// createCORSMiddleware returns nil unless CORS is enabled with at least one origin. A "*"
// origin turns off credentialed requests, which browsers refuse for wildcard origins.
func createCORSMiddleware(enabled bool, allowOriginsStr string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins := parseOrigins(allowOriginsStr)
	if len(origins) == 0 {
		logger.Warn("cors enabled without origins, skipping")
		return nil
	}

	wildcard := slices.Contains(origins, "*")
	logger.Info("cors enabled", slog.Any("origins", origins), slog.Bool("credentials", !wildcard))

	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowHeaders:     []string{"Authorization", "Content-Type", authHTTP.UserIDHeader},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: !wildcard,
		MaxAge:           12 * time.Hour,
	})
}

func parseOrigins(originsStr string) []string {
	var origins []string
	for _, part := range strings.Split(originsStr, ",") {
		if origin := strings.TrimSpace(part); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
