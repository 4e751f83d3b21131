package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diagnosis/guesthouse-bookings/internal/outbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliver_SendsIdempotencyKey(t *testing.T) {
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"bookingId":"b1"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	err := c.Deliver(context.Background(), outbox.Entry{ID: "entry-1", Endpoint: "/bookings/redeem", Payload: []byte(`{}`)})
	require.NoError(t, err)
	assert.Equal(t, "entry-1", gotKey)
	assert.Equal(t, "/bookings/redeem", gotPath)
}

func TestErrorsClassification(t *testing.T) {
	tests := []struct {
		status    int
		body      string
		retryable bool
	}{
		{http.StatusBadRequest, `{"error":"bad","code":"INVALID_INPUT"}`, false},
		{http.StatusConflict, `{"error":"limit","code":"QUOTA_EXCEEDED","quotaExceeded":true}`, false},
		{http.StatusTooManyRequests, `{"error":"slow down"}`, true},
		{http.StatusServiceUnavailable, `upstream down`, true},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte(tt.body))
		}))
		err := New(srv.URL, time.Second).RequestChallenge(context.Background(), "a@b.co")
		srv.Close()

		require.Error(t, err)
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, tt.status, apiErr.Status)
		assert.NotEmpty(t, apiErr.Message)
		assert.Equal(t, tt.retryable, outbox.IsRetryable(err), tt.body)
	}
}

func TestQuotaFlagDecoded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "limit", "code": "QUOTA_EXCEEDED", "quotaExceeded": true})
	}))
	defer srv.Close()

	err := New(srv.URL, time.Second).RequestChallenge(context.Background(), "a@b.co")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.QuotaExceeded)
}

func TestTransportErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := New(url, time.Second).RequestChallenge(context.Background(), "a@b.co")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, outbox.IsRetryable(err))
}

func TestCheckAvailability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		assert.Equal(t, "Garden Suite", in["roomType"])
		_, _ = w.Write([]byte(`{"available":false,"conflicts":[{"checkIn":"2025-11-22","checkOut":"2025-11-25","status":"Approved"}]}`))
	}))
	defer srv.Close()

	res, err := New(srv.URL, time.Second).CheckAvailability(context.Background(), "Garden Suite", "2025-11-24", "2025-11-26")
	require.NoError(t, err)
	assert.False(t, res.Available)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "2025-11-22", res.Conflicts[0].CheckIn)
}
