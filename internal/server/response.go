package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/abhisek/lessonstream/internal/curriculum"
	"github.com/abhisek/lessonstream/internal/grading"
	"github.com/abhisek/lessonstream/internal/llm"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// respondUpstream maps a curriculum or grading failure to a status code.
func respondUpstream(c *gin.Context, err error) {
	status, code := classify(err)
	RespondError(c, status, code, err)
}

func classify(err error) (int, string) {
	var rl *llm.ErrRateLimit
	var unavail *llm.ErrProviderUnavailable
	var invalid *llm.ErrInvalidResponse
	var truncated *llm.ErrMaxTokensExceeded
	switch {
	case errors.Is(err, curriculum.ErrEmptyTopic),
		errors.Is(err, curriculum.ErrInvalidSectionCount),
		errors.Is(err, grading.ErrNoQuestion):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &rl):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.As(err, &unavail):
		return http.StatusServiceUnavailable, "provider_unavailable"
	case errors.As(err, &invalid), errors.As(err, &truncated):
		return http.StatusBadGateway, "invalid_response"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "internal"
}
