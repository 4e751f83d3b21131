package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/diagnosis/guesthouse-bookings/internal/availability"
	"github.com/diagnosis/guesthouse-bookings/internal/confirmation"
	"github.com/diagnosis/guesthouse-bookings/internal/http/response"
	"github.com/go-chi/chi/v5"
)

// Confirmer issues and redeems e-mail challenges.
type Confirmer interface {
	RequestChallenge(ctx context.Context, email string) error
	Redeem(ctx context.Context, req confirmation.RedeemRequest) (string, error)
}

type Availability interface {
	CheckAvailability(ctx context.Context, roomType, checkIn, checkOut string) (*availability.Result, error)
	GetBookedDates(ctx context.Context, roomType string) (*availability.BookedDates, error)
}

// BookingsHandler serves the public booking form.
type BookingsHandler struct {
	Confirm      Confirmer
	Availability Availability

	// ChallengeLimit guards the code-issuing route; nil disables it.
	ChallengeLimit func(http.Handler) http.Handler
}

func (h *BookingsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		if h.ChallengeLimit != nil {
			r.Use(h.ChallengeLimit)
		}
		r.Post("/challenge", h.challenge)
	})
	r.Post("/redeem", h.redeem)
	r.Post("/availability", h.availability)
	r.Post("/booked-dates", h.bookedDates)
	return r
}

type challengeReq struct {
	Email string `json:"email"`
}

func (h *BookingsHandler) challenge(w http.ResponseWriter, r *http.Request) {
	var req challengeReq
	if err := decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	if err := h.Confirm.RequestChallenge(r.Context(), req.Email); err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *BookingsHandler) redeem(w http.ResponseWriter, r *http.Request) {
	var req confirmation.RedeemRequest
	if err := decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	req.IdempotencyKey = strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	id, err := h.Confirm.Redeem(r.Context(), req)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, map[string]string{"bookingId": id})
}

type availabilityReq struct {
	RoomType string `json:"roomType"`
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
}

func (h *BookingsHandler) availability(w http.ResponseWriter, r *http.Request) {
	var req availabilityReq
	if err := decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	res, err := h.Availability.CheckAvailability(r.Context(), req.RoomType, req.CheckIn, req.CheckOut)
	if err != nil {
		response.FromError(w, err)
		return
	}
	if res.Conflicts == nil {
		res.Conflicts = []availability.Conflict{}
	}
	response.JSON(w, http.StatusOK, res)
}

func (h *BookingsHandler) bookedDates(w http.ResponseWriter, r *http.Request) {
	var req availabilityReq
	if err := decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	res, err := h.Availability.GetBookedDates(r.Context(), req.RoomType)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, res)
}

// decode reads at most 1 MiB of JSON.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}
