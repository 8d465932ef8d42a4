package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/FairPlay-Intelligence/pkg/errors"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

// Recovery converts panics into a 500 response with the standard error
// envelope instead of tearing down the connection. The panic value and stack
// are logged; neither reaches the client.
func Recovery(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				fields := []logging.Field{
					logging.Any("panic", r),
					logging.String("path", c.Request.URL.Path),
					logging.String("stack", string(debug.Stack())),
				}
				if id := RequestIDFrom(c); id != "" {
					fields = append(fields, logging.String("request_id", id))
				}
				log.Error("panic recovered", fields...)

				resp := common.NewErrorResponse(string(apperrors.ErrCodeInternal), "internal server error")
				resp.RequestID = RequestIDFrom(c)
				c.AbortWithStatusJSON(http.StatusInternalServerError, resp)
			}
		}()
		c.Next()
	}
}
