package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/NeuroRisk-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/NeuroRisk-Intelligence/pkg/errors"
)

// authErrorBody matches handlers.ErrorResponse for responses written by
// middleware.
type authErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AdminToken requires "Authorization: Bearer <token>". An empty token
// disables the check.
func AdminToken(token string, logger logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	want := []byte(token)
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		got, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			logger.Warn("admin authentication failed",
				logging.String("path", c.Request.URL.Path),
				logging.String("client_ip", c.ClientIP()),
				logging.Bool("header_present", c.GetHeader("Authorization") != ""))
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, authErrorBody{
				Code:    errors.ErrCodeUnauthorized.String(),
				Message: errors.DefaultMessage(errors.ErrCodeUnauthorized),
			})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
