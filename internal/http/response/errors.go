package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
)

// ErrorResponse is the JSON body of every failed request. The boolean flags
// let the booking form react without parsing codes.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`

	QuotaExceeded   bool `json:"quotaExceeded,omitempty"`
	Conflict        bool `json:"conflict,omitempty"`
	OTPInvalid      bool `json:"otpInvalid,omitempty"`
	RoomUnavailable bool `json:"roomUnavailable,omitempty"`
}

const (
	CodeInvalidInput    = "INVALID_INPUT"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeRateLimit       = "RATE_LIMIT_EXCEEDED"
	CodeInternalError   = "INTERNAL_ERROR"
	CodeUnavailable     = "UNAVAILABLE"
	CodeQuotaExceeded   = "QUOTA_EXCEEDED"
	CodeOTPInvalid      = "OTP_INVALID"
	CodeRoomUnavailable = "ROOM_UNAVAILABLE"
	CodeUnresolved      = "UNRESOLVED"
)

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func Write(w http.ResponseWriter, status int, body ErrorResponse) {
	JSON(w, status, body)
}

func WriteError(w http.ResponseWriter, status int, message, code string) {
	Write(w, status, ErrorResponse{Error: message, Code: code})
}

func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, CodeInternalError)
}

func RateLimit(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message, CodeRateLimit)
}

// FromError maps a domain error onto status, code and client flags.
// Unknown errors become a bare 500 without leaking their text.
func FromError(w http.ResponseWriter, err error) {
	status, body := Describe(err)
	Write(w, status, body)
}

func Describe(err error) (int, ErrorResponse) {
	msg := err.Error()
	code := domain.CodeOf(err)

	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest, ErrorResponse{Error: msg, Code: CodeInvalidInput}
	case domain.KindQuota:
		return http.StatusConflict, ErrorResponse{Error: msg, Code: CodeQuotaExceeded, QuotaExceeded: true}
	case domain.KindChallenge:
		return http.StatusUnauthorized, ErrorResponse{Error: msg, Code: CodeOTPInvalid, Details: code, OTPInvalid: true}
	case domain.KindConflict:
		switch code {
		case CodeRoomUnavailable:
			return http.StatusConflict, ErrorResponse{Error: msg, Code: code, RoomUnavailable: true}
		case domain.ErrDateConflict.Code:
			return http.StatusConflict, ErrorResponse{Error: msg, Code: code, Conflict: true}
		}
		return http.StatusConflict, ErrorResponse{Error: msg, Code: code}
	case domain.KindAuth:
		return http.StatusUnauthorized, ErrorResponse{Error: msg, Code: CodeUnauthorized}
	case domain.KindNotFound:
		return http.StatusNotFound, ErrorResponse{Error: msg, Code: code}
	case domain.KindUnresolved:
		return http.StatusUnprocessableEntity, ErrorResponse{Error: msg, Code: CodeUnresolved}
	case domain.KindTransient:
		logger.Error("transient failure", "error", err)
		return http.StatusServiceUnavailable, ErrorResponse{Error: userMessage(err), Code: code}
	}
	logger.Error("unhandled error", "error", err)
	return http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: CodeInternalError}
}

// userMessage drops the wrapped infrastructure error from transient failures.
func userMessage(err error) string {
	var de *domain.Error
	if errors.As(err, &de) && de.Message != "" {
		return de.Message
	}
	return "service temporarily unavailable, please retry"
}
