package rest

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chat-core/domain"
	"chat-core/errors"
	"chat-core/services"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// JWTAuth validates the Authorization header and injects the resolved
// identity into the request context for downstream handlers.
func JWTAuth(auth services.IAuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: errors.ErrMissingCredential.Error(),
			})
			return
		}

		// Expecting the standard "Bearer <token>" format
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		identity, err := auth.Identify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error: errors.ErrInvalidCredential.Error(),
			})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

// CurrentIdentity retrieves the identity stored by JWTAuth. The boolean is
// false on routes that skipped the middleware.
func CurrentIdentity(c *gin.Context) (domain.Identity, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	identity, ok := value.(domain.Identity)
	return identity, ok
}

// RequestLogger logs every request with its latency and status code.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("Request handled",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
		)
	}
}
