// Package client talks to the bookings API on behalf of bookingctl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/guesthouse-bookings/internal/outbox"
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code"`

	QuotaExceeded   bool `json:"quotaExceeded,omitempty"`
	Conflict        bool `json:"conflict,omitempty"`
	OTPInvalid      bool `json:"otpInvalid,omitempty"`
	RoomUnavailable bool `json:"roomUnavailable,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// Retryable: the server was reached but could not serve the request now.
func (e *APIError) Retryable() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// TransportError means the request never got an HTTP answer.
type TransportError struct{ Err error }

func (e *TransportError) Error() string   { return "transport: " + e.Err.Error() }
func (e *TransportError) Unwrap() error   { return e.Err }
func (e *TransportError) Retryable() bool { return true }

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) HealthURL() string { return c.baseURL + "/healthz" }

func (c *Client) post(ctx context.Context, path string, body []byte, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &TransportError{Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return &TransportError{Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		apiErr := &APIError{Status: res.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
			if apiErr.Message == "" {
				apiErr.Message = http.StatusText(res.StatusCode)
			}
		}
		return apiErr
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return c.post(ctx, path, body, nil, out)
}

// Deliver replays an outbox entry. The entry id doubles as the idempotency
// key so a replay after a lost response does not create a second booking.
func (c *Client) Deliver(ctx context.Context, e outbox.Entry) error {
	return c.post(ctx, e.Endpoint, e.Payload, map[string]string{"Idempotency-Key": e.ID}, nil)
}

func (c *Client) RequestChallenge(ctx context.Context, email string) error {
	return c.postJSON(ctx, "/bookings/challenge", map[string]string{"email": email}, nil)
}

type Conflict struct {
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
	Status   string `json:"status"`
}

type Availability struct {
	Available       bool       `json:"available"`
	Conflicts       []Conflict `json:"conflicts"`
	RoomUnavailable bool       `json:"roomUnavailable"`
	Message         string     `json:"message"`
}

func (c *Client) CheckAvailability(ctx context.Context, roomType, checkIn, checkOut string) (*Availability, error) {
	var out Availability
	err := c.postJSON(ctx, "/bookings/availability", map[string]string{
		"roomType": roomType, "checkIn": checkIn, "checkOut": checkOut,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type BookedDates struct {
	BookedRanges []struct {
		CheckIn  string `json:"checkIn"`
		CheckOut string `json:"checkOut"`
	} `json:"bookedRanges"`
	BookedDates []string `json:"bookedDates"`
}

func (c *Client) BookedDates(ctx context.Context, roomType string) (*BookedDates, error) {
	var out BookedDates
	if err := c.postJSON(ctx, "/bookings/booked-dates", map[string]string{"roomType": roomType}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
