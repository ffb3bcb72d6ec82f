package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ragchat/internal/logger"
)

const (
	ctxRequestID = "request_id"
	ctxUsername  = "username"
)

// TokenVerifier resolves a bearer token to a username.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// CORS allows the configured origins. A lone "*" allows any origin without
// credentials.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// RequestID tags each request with an X-Request-ID, reusing the client's one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogger logs one line per request with status and latency.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetString(ctxRequestID),
		}
		if user := c.GetString(ctxUsername); user != "" {
			fields = append(fields, "user", user)
		}
		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

type AuthMiddleware struct {
	verifier TokenVerifier
	log      *logger.Logger
}

// NewAuthMiddleware creates bearer-token middleware backed by verifier.
func NewAuthMiddleware(verifier TokenVerifier, log *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, log: log.With("Middleware", "AuthMiddleware")}
}

// RequireAuth rejects requests without a valid bearer token and stores the
// token subject under the "username" key.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) <= 7 || !strings.EqualFold(header[:7], "Bearer ") {
			abortFail(c, http.StatusUnauthorized, "Missing or invalid token")
			return
		}
		username, err := m.verifier.Verify(strings.TrimSpace(header[7:]))
		if err != nil {
			m.log.Debug("token rejected", "error", err)
			abortFail(c, http.StatusUnauthorized, err.Error())
			return
		}
		c.Set(ctxUsername, username)
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(ctxUsername)
}
