package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"singlish-bot/model"
)

type errorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

func errorResponse(err error) (int, errorBody) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorBody{Error: errorDetail{Message: verr.Message, Code: "validation_error", Field: verr.Field}}
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, errorBody{Error: errorDetail{Message: "not found", Code: "not_found"}}
	case errors.Is(err, model.ErrDuplicateName):
		return http.StatusConflict, errorBody{Error: errorDetail{Message: "an intent with this name already exists", Code: "duplicate_name"}}
	case errors.Is(err, model.ErrForbidden):
		return http.StatusForbidden, errorBody{Error: errorDetail{Message: "forbidden", Code: "forbidden"}}
	case errors.Is(err, model.ErrDependencyUnavailable):
		return http.StatusServiceUnavailable, errorBody{Error: errorDetail{Message: "service temporarily unavailable", Code: "unavailable"}}
	default:
		return http.StatusInternalServerError, errorBody{Error: errorDetail{Message: "internal error", Code: "internal"}}
	}
}

func writeError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, body)
}

func badBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorBody{Error: errorDetail{
		Message: "invalid request body: " + err.Error(),
		Code:    "validation_error",
		Field:   "body",
	}})
}
