package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		check  func(t *testing.T, body ErrorResponse)
	}{
		{"validation", domain.Validation("name is required"), http.StatusBadRequest, CodeInvalidInput, nil},
		{"quota", domain.ErrQuotaExceeded, http.StatusConflict, CodeQuotaExceeded,
			func(t *testing.T, b ErrorResponse) { assert.True(t, b.QuotaExceeded) }},
		{"otp expired", domain.ErrChallengeExpired, http.StatusUnauthorized, CodeOTPInvalid,
			func(t *testing.T, b ErrorResponse) {
				assert.True(t, b.OTPInvalid)
				assert.Equal(t, "OTP_EXPIRED", b.Details)
			}},
		{"date conflict wrapped", fmt.Errorf("%w: 1 overlapping stay(s)", domain.ErrDateConflict), http.StatusConflict, "DATE_CONFLICT",
			func(t *testing.T, b ErrorResponse) { assert.True(t, b.Conflict) }},
		{"room unavailable", domain.ErrRoomUnavailable, http.StatusConflict, CodeRoomUnavailable,
			func(t *testing.T, b ErrorResponse) { assert.True(t, b.RoomUnavailable) }},
		{"signature", domain.ErrInvalidSignature, http.StatusUnauthorized, CodeUnauthorized, nil},
		{"unresolved", domain.ErrUnresolvedPayment, http.StatusUnprocessableEntity, CodeUnresolved, nil},
		{"not found", domain.ErrBookingNotFound, http.StatusNotFound, CodeNotFound, nil},
		{"transient", domain.Transient("could not save booking", errors.New("dial tcp: refused")), http.StatusServiceUnavailable, CodeUnavailable,
			func(t *testing.T, b ErrorResponse) { assert.Equal(t, "could not save booking", b.Error) }},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternalError,
			func(t *testing.T, b ErrorResponse) { assert.Equal(t, "internal server error", b.Error) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			FromError(rec, tt.err)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.Error)
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
}
