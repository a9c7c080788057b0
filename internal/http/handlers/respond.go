package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brucki/mg-test/internal/domain/user"
	"github.com/brucki/mg-test/internal/http/middlewares"
	"github.com/brucki/mg-test/internal/phoenix"
	"github.com/brucki/mg-test/internal/users"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get(middlewares.CtxRequestID)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader(middlewares.RequestIDHeader)
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.AbortWithStatusJSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondValidation(ctx *gin.Context, message string, fields map[string][]string) {
	if fields == nil {
		fields = map[string][]string{}
	}
	RespondError(ctx, http.StatusUnprocessableEntity, "validation_failed", message, gin.H{"fields": fields})
}

// RespondUpstreamError renders any error returned by a users.Service.
func RespondUpstreamError(ctx *gin.Context, err error) {
	_ = ctx.Error(err)

	var validationErr *user.ValidationError
	if errors.As(err, &validationErr) {
		RespondValidation(ctx, "Validation failed", validationErr.Fields)
		return
	}

	if errors.Is(err, users.ErrCircuitOpen) {
		RespondError(ctx, http.StatusServiceUnavailable, "upstream_unavailable",
			"The users service is temporarily unavailable", nil)
		return
	}

	if errors.Is(err, phoenix.ErrMissingID) {
		RespondBadRequest(ctx, "User id is required", nil)
		return
	}

	var dateErr *user.MalformedDateError
	if errors.As(err, &dateErr) {
		RespondError(ctx, http.StatusBadGateway, "upstream_malformed",
			"The users service returned a malformed date",
			gin.H{"field": dateErr.Field, "value": dateErr.Value})
		return
	}

	var pe *phoenix.Error
	if !errors.As(err, &pe) {
		RespondInternal(ctx, "Unexpected error")
		return
	}

	switch pe.Kind {
	case phoenix.KindNotFound:
		RespondNotFound(ctx, pe.Message)
	case phoenix.KindValidation:
		RespondValidation(ctx, pe.Message, pe.Fields)
	case phoenix.KindProtocol:
		RespondError(ctx, http.StatusBadGateway, "upstream_protocol",
			"The users service returned an unexpected response", nil)
	case phoenix.KindConnection:
		var details interface{}
		if pe.Status > 0 {
			details = gin.H{"upstreamStatus": pe.Status}
		}
		RespondError(ctx, http.StatusBadGateway, "upstream_unavailable",
			"The users service is unavailable", details)
	default:
		RespondInternal(ctx, "Unexpected error")
	}
}
