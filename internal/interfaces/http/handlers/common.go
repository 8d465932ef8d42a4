// Package handlers contains the gin handlers behind the public REST API.
// Every response, success or failure, is wrapped in the common.APIResponse
// envelope so clients parse one shape.
package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/FairPlay-Intelligence/internal/interfaces/http/middleware"
	apperrors "github.com/turtacn/FairPlay-Intelligence/pkg/errors"
	"github.com/turtacn/FairPlay-Intelligence/pkg/types/common"
)

const maxPageSize = 100

func writeSuccess(c *gin.Context, status int, data interface{}) {
	resp := common.NewSuccessResponse(data)
	resp.RequestID = middleware.RequestIDFrom(c)
	c.JSON(status, resp)
}

func writePaginated(c *gin.Context, data interface{}, p common.Pagination) {
	resp := common.NewPaginatedResponse(data, p)
	resp.RequestID = middleware.RequestIDFrom(c)
	c.JSON(http.StatusOK, resp)
}

func writeError(c *gin.Context, status int, code apperrors.ErrorCode, message string) {
	resp := common.NewErrorResponse(string(code), message)
	resp.RequestID = middleware.RequestIDFrom(c)
	c.AbortWithStatusJSON(status, resp)
}

// writeAppError maps an application error onto the wire: the HTTP status
// follows the error code, the envelope carries code and message. Unclassified
// errors surface as 500 without leaking internals.
func writeAppError(c *gin.Context, err error) {
	code := apperrors.GetCode(err)
	status := apperrors.HTTPStatusForCode(code)

	message := "internal server error"
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		message = appErr.Message
	} else if status < http.StatusInternalServerError {
		message = err.Error()
	}

	writeError(c, status, code, message)
}

// parsePagination reads page and page_size query parameters, applying
// defaults and capping page_size at 100.
func parsePagination(c *gin.Context) common.Pagination {
	p := common.Pagination{Page: 1, PageSize: 20}

	if raw := c.Query("page"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			p.Page = v
		}
	}
	if raw := c.Query("page_size"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			p.PageSize = v
		}
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}
