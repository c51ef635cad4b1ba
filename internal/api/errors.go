package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"gatekeeper/internal/apperr"
	"gatekeeper/internal/constants"
)

var kindStatus = map[apperr.Kind]int{
	apperr.KindValidation:     http.StatusBadRequest,
	apperr.KindAuthentication: http.StatusUnauthorized,
	apperr.KindForbidden:      http.StatusForbidden,
	apperr.KindConflict:       http.StatusConflict,
	apperr.KindNotFound:       http.StatusNotFound,
	apperr.KindTokenExpired:   http.StatusUnauthorized,
	apperr.KindInvalidToken:   http.StatusUnauthorized,
	apperr.KindRateLimited:    http.StatusTooManyRequests,
	apperr.KindInternal:       http.StatusInternalServerError,
}

var kindCode = map[apperr.Kind]string{
	apperr.KindValidation:     constants.ErrCodeValidation,
	apperr.KindAuthentication: constants.ErrCodeAuthentication,
	apperr.KindForbidden:      constants.ErrCodeForbidden,
	apperr.KindConflict:       constants.ErrCodeConflict,
	apperr.KindNotFound:       constants.ErrCodeNotFound,
	apperr.KindTokenExpired:   constants.ErrCodeTokenExpired,
	apperr.KindInvalidToken:   constants.ErrCodeInvalidToken,
	apperr.KindRateLimited:    constants.ErrCodeRateLimited,
	apperr.KindInternal:       constants.ErrCodeInternal,
}

func statusFor(e *apperr.Error) int {
	if e.Code == constants.ErrCodePayloadTooLarge {
		return http.StatusRequestEntityTooLarge
	}
	if status, ok := kindStatus[e.Kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func codeFor(e *apperr.Error) string {
	if e.Code != "" {
		return e.Code
	}
	return kindCode[e.Kind]
}

// writeAppError maps err onto the envelope. Causes of internal errors are
// logged and never sent to the client.
func writeAppError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	e := apperr.From(err)

	if e.Kind == apperr.KindInternal {
		logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	if e.Kind == apperr.KindRateLimited {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(e.RetryAfter)))
	}

	writeError(w, statusFor(e), codeFor(e), e.Message, e.Details)
}
