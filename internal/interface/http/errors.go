package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/account-lifecycle/internal/application"
	"github.com/oksasatya/account-lifecycle/pkg/response"
)

var statusByKind = map[application.Kind]int{
	application.KindInvalidInput:         http.StatusBadRequest,
	application.KindEmailAlreadyExists:   http.StatusConflict,
	application.KindAlreadyVerified:      http.StatusConflict,
	application.KindInvalidCredentials:   http.StatusUnauthorized,
	application.KindInvalidRefreshToken:  http.StatusUnauthorized,
	application.KindVerificationRequired: http.StatusForbidden,
	application.KindAccountNotFound:      http.StatusNotFound,
	application.KindTokenNotFound:        http.StatusBadRequest,
	application.KindTokenAlreadyUsed:     http.StatusBadRequest,
	application.KindTokenExpired:         http.StatusGone,
	application.KindRateLimitExceeded:    http.StatusTooManyRequests,
}

// StatusFor maps a service error to its HTTP status.
func StatusFor(err error) int {
	if e, ok := application.AsError(err); ok {
		if status, ok := statusByKind[e.Kind]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// fail writes the error envelope. Unexpected errors are reported with a
// generic message.
func (h *AuthHandler) fail(c *gin.Context, err error) {
	e, ok := application.AsError(err)
	if !ok {
		h.Logger.WithError(err).WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"path":       c.FullPath(),
		}).Error("internal error serving request")
		response.Error(c, http.StatusInternalServerError, "internal server error", nil)
		return
	}
	response.Error(c, StatusFor(err), e.Message, gin.H{"code": string(e.Kind)})
}
