package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/diagnosis/guesthouse-bookings/internal/http/response"
	"github.com/diagnosis/guesthouse-bookings/internal/reconcile"
	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
)

type WebhookProcessor interface {
	Handle(ctx context.Context, body []byte, h http.Header) (reconcile.Outcome, string, error)
}

type PaymentSyncer interface {
	Sync(ctx context.Context) (reconcile.SyncReport, error)
}

// PaymentsHandler receives gateway webhooks and runs the manual reconciliation pull.
type PaymentsHandler struct {
	Webhooks WebhookProcessor
	Sweeper  PaymentSyncer
}

// Webhook must see the body exactly as sent, so it reads the raw bytes itself.
func (h *PaymentsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		response.BadRequest(w, "could not read request body")
		return
	}

	outcome, bookingID, err := h.Webhooks.Handle(r.Context(), body, r.Header)
	if err != nil {
		response.FromError(w, err)
		return
	}
	logger.InfoContext(r.Context(), "webhook processed", "outcome", outcome, "booking_id", bookingID)
	response.JSON(w, http.StatusOK, map[string]string{"status": string(outcome), "bookingId": bookingID})
}

func (h *PaymentsHandler) Sync(w http.ResponseWriter, r *http.Request) {
	rep, err := h.Sweeper.Sync(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, rep)
}
