package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/donationcore/internal/fault"
	"go.uber.org/zap"
)

var statusByCode = map[fault.Code]int{
	fault.CodeInvalidInput:      http.StatusBadRequest,
	fault.CodeNotFound:          http.StatusNotFound,
	fault.CodeRateLimited:       http.StatusTooManyRequests,
	fault.CodeTooManyAttempts:   http.StatusTooManyRequests,
	fault.CodeExpired:           http.StatusGone,
	fault.CodeInvalidCode:       http.StatusUnauthorized,
	fault.CodeUnauthorized:      http.StatusUnauthorized,
	fault.CodeBadCredentials:    http.StatusUnauthorized,
	fault.CodeConflict:          http.StatusConflict,
	fault.CodeSignatureMismatch: http.StatusBadRequest,
	fault.CodeDeliveryFailed:    http.StatusBadGateway,
	fault.CodeGatewayAuth:       http.StatusUnauthorized,
	fault.CodeGateway:           http.StatusBadGateway,
	fault.CodeNotConfigured:     http.StatusServiceUnavailable,
	fault.CodeInternal:          http.StatusInternalServerError,
}

// StatusFor returns the HTTP status used for a fault code.
func StatusFor(code fault.Code) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error", "code"} with the mapped status.
// Rate-limited errors also carry the wait hint.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	code := fault.CodeOf(err)
	status := StatusFor(code)

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", string(code)),
			zap.Error(err),
		)
	}

	body := gin.H{
		"error": fault.MessageOf(err),
		"code":  code,
	}
	if wait := fault.WaitSecondsOf(err); wait > 0 && code == fault.CodeRateLimited {
		c.Header("Retry-After", strconv.Itoa(wait))
		body["retry_after_seconds"] = wait
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": fault.CodeInvalidInput})
}
