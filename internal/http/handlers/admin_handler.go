package handlers

import (
	"context"
	"net/http"

	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/diagnosis/guesthouse-bookings/internal/http/response"
	"github.com/diagnosis/guesthouse-bookings/internal/platform/payment"
	"github.com/go-chi/chi/v5"
)

type Lifecycle interface {
	Transition(ctx context.Context, id string, to domain.BookingStatus) (*domain.Booking, error)
	IssuePaymentLink(ctx context.Context, id string) (*payment.Link, error)
	CompleteStayed(ctx context.Context) ([]string, error)
}

// AdminHandler exposes booking moderation. Callers mount it behind RequireRole.
type AdminHandler struct {
	Bookings Lifecycle
}

func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Patch("/{id}/status", h.updateStatus)
	r.Post("/{id}/payment-link", h.paymentLink)
	r.Post("/complete-sweep", h.completeSweep)
	return r
}

type statusReq struct {
	Status string `json:"status"`
}

func (h *AdminHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusReq
	if err := decode(r, &req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	to, ok := domain.ParseBookingStatus(req.Status)
	if !ok {
		response.BadRequest(w, "Invalid status parameter")
		return
	}

	b, err := h.Bookings.Transition(r.Context(), chi.URLParam(r, "id"), to)
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, b.DTO())
}

func (h *AdminHandler) paymentLink(w http.ResponseWriter, r *http.Request) {
	link, err := h.Bookings.IssuePaymentLink(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, map[string]string{"id": link.ID, "url": link.URL})
}

func (h *AdminHandler) completeSweep(w http.ResponseWriter, r *http.Request) {
	ids, err := h.Bookings.CompleteStayed(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	response.JSON(w, http.StatusOK, map[string]any{"completed": len(ids), "ids": ids})
}
