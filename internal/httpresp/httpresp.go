// Package httpresp holds the JSON envelopes and the error-kind to HTTP
// status mapping used by every handler.
package httpresp

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mindgraph-backend/internal/kgerr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func OK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func Created(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

func Fail(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// FromError maps a typed error to its HTTP status and writes the envelope.
func FromError(c *gin.Context, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		Fail(c, http.StatusGatewayTimeout, string(kgerr.KindTimeout), err)
		return
	}

	kind := kgerr.KindOf(err)
	Fail(c, StatusForKind(kind), string(kind), err)
}

func StatusForKind(kind kgerr.Kind) int {
	switch kind {
	case kgerr.KindInvalidUserID:
		return http.StatusUnprocessableEntity
	case kgerr.KindUserAbsent, kgerr.KindNodeAbsent:
		return http.StatusNotFound
	case kgerr.KindEmptyContent:
		return http.StatusBadRequest
	case kgerr.KindIngestBusy:
		return http.StatusTooManyRequests
	case kgerr.KindTimeout:
		return http.StatusGatewayTimeout
	case kgerr.KindUserExists:
		return http.StatusOK
	case kgerr.KindExtractFailed, kgerr.KindEmbedFailed, kgerr.KindDimensionMismatch,
		kgerr.KindConnectFailed, kgerr.KindConflictingSchema, kgerr.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
