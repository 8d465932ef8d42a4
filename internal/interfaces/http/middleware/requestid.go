package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

// HeaderRequestID is the header used to propagate request identifiers.
const HeaderRequestID = "X-Request-ID"

// RequestID ensures every request carries a request identifier. An incoming
// X-Request-ID header is trusted and propagated; otherwise a fresh UUID is
// minted. The identifier is stored on the request context under
// common.ContextKeyRequestID and echoed back on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := context.WithValue(c.Request.Context(), common.ContextKeyRequestID, id)
		c.Request = c.Request.WithContext(ctx)
		c.Set(string(common.ContextKeyRequestID), id)
		c.Writer.Header().Set(HeaderRequestID, id)

		c.Next()
	}
}

// RequestIDFrom extracts the request identifier from a gin context. It returns
// an empty string when the RequestID middleware did not run.
func RequestIDFrom(c *gin.Context) string {
	if id, ok := c.Get(string(common.ContextKeyRequestID)); ok {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
