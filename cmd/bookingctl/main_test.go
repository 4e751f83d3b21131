package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/diagnosis/guesthouse-bookings/internal/client"
	"github.com/diagnosis/guesthouse-bookings/pkg/auth"
	"github.com/diagnosis/guesthouse-bookings/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, a *app, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(a)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newApp(t *testing.T, apiURL string) *app {
	t.Helper()
	return &app{cfg: config.OutboxConfig{
		BaseURL:    apiURL,
		DBPath:     filepath.Join(t.TempDir(), "outbox.db"),
		MaxRetries: 3,
		ProbeEvery: time.Second,
	}}
}

func TestContact_QueuedWhileOfflineThenSynced(t *testing.T) {
	var healthy atomic.Bool
	var delivered atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		switch r.URL.Path {
		case "/healthz":
			w.WriteHeader(http.StatusOK)
		case "/contact":
			assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
			var body map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Is breakfast included?", body["message"])
			delivered.Add(1)
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	a := newApp(t, srv.URL)
	out, err := run(t, a, "contact", "--email", "ana@example.com", "--name", "Ana", "--message", "Is breakfast included?")
	require.NoError(t, err)
	assert.Contains(t, out, "queued as")

	a.store = nil
	out, err = run(t, a, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "contact")

	healthy.Store(true)
	a.store = nil
	out, err = run(t, a, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, `"delivered": 1`)
	assert.EqualValues(t, 1, delivered.Load())

	a.store = nil
	out, err = run(t, a, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "Outbox is empty")
}

func TestBook_RejectionIsNotQueued(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"selected dates are no longer available","code":"DATE_CONFLICT","conflict":true}`))
	}))
	defer srv.Close()

	a := newApp(t, srv.URL)
	_, err := run(t, a, "book", "--name", "Ana", "--email", "ana@example.com", "--room", "Deluxe",
		"--check-in", "2025-03-10", "--check-out", "2025-03-12", "--otp", "123456")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "dates unavailable"))

	a.store = nil
	out, err := run(t, a, "pending")
	require.NoError(t, err)
	assert.Contains(t, out, "Outbox is empty")
}

func TestDescribe(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, plain, describe(plain))

	err := describe(&client.APIError{Status: 409, Message: "limit", QuotaExceeded: true})
	assert.EqualError(t, err, "booking limit reached: limit")

	err = describe(&client.APIError{Status: 401, Message: "verification code has expired", OTPInvalid: true})
	assert.EqualError(t, err, "verification failed: verification code has expired")

	err = describe(&client.APIError{Status: 400, Message: "name is required"})
	assert.EqualError(t, err, "name is required (HTTP 400)")
}

func TestAdminToken(t *testing.T) {
	a := newApp(t, "http://localhost:0")
	a.auth = config.AuthConfig{JWTSecret: "s3cret", AccessTokenTTL: time.Hour}

	out, err := run(t, a, "admin-token", "--email", "owner@guesthouse.local")
	require.NoError(t, err)

	claims, err := auth.Parse(strings.TrimSpace(out), "s3cret")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
	assert.Equal(t, "owner@guesthouse.local", claims.Email)
}
