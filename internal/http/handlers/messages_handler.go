package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/diagnosis/guesthouse-bookings/internal/http/response"
	"github.com/diagnosis/guesthouse-bookings/internal/platform/mailer"
	"github.com/diagnosis/guesthouse-bookings/internal/utils"
	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type MessageStore interface {
	CreateContact(ctx context.Context, m *domain.ContactMessage) error
	CreateFeedback(ctx context.Context, f *domain.Feedback) error
}

// MessagesHandler accepts contact enquiries and guest feedback.
type MessagesHandler struct {
	Store      MessageStore
	Mail       mailer.Sender
	AdminEmail string
}

func (h *MessagesHandler) Mount(r chi.Router) {
	r.Post("/contact", h.contact)
	r.Post("/feedback", h.feedback)
}

func (h *MessagesHandler) contact(w http.ResponseWriter, r *http.Request) {
	var m domain.ContactMessage
	if err := decode(r, &m); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	m.ID, m.CreatedAt = "", time.Time{}
	m.Name = utils.CollapseSpace(m.Name)
	m.Email = utils.NormalizeEmail(m.Email)
	m.Phone = strings.TrimSpace(m.Phone)
	m.Subject = utils.CollapseSpace(m.Subject)
	m.Message = strings.TrimSpace(m.Message)

	switch {
	case m.Name == "":
		response.BadRequest(w, "name is required")
		return
	case !utils.IsValidEmail(m.Email):
		response.BadRequest(w, "a valid email is required")
		return
	case m.Message == "":
		response.BadRequest(w, "message is required")
		return
	case len(m.Message) > domain.MaxRequestsLength:
		response.BadRequest(w, "message is too long")
		return
	}
	if m.Subject == "" {
		m.Subject = "General enquiry"
	}

	if err := h.Store.CreateContact(r.Context(), &m); err != nil {
		response.FromError(w, domain.Transient("could not save your message", err))
		return
	}

	if h.Mail != nil && h.AdminEmail != "" {
		if _, err := h.Mail.Send(r.Context(), mailer.ContactReceived(h.AdminEmail, &m)); err != nil {
			logger.WarnContext(r.Context(), "contact notification failed", "message_id", m.ID, "error", err)
		}
	}
	logger.InfoContext(r.Context(), "contact message received", "message_id", m.ID, "email", m.Email)
	response.JSON(w, http.StatusCreated, map[string]string{"id": m.ID})
}

func (h *MessagesHandler) feedback(w http.ResponseWriter, r *http.Request) {
	var f domain.Feedback
	if err := decode(r, &f); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	f.ID, f.CreatedAt = "", time.Time{}
	f.Name = utils.CollapseSpace(f.Name)
	f.Email = utils.NormalizeEmail(f.Email)
	f.Message = strings.TrimSpace(f.Message)

	switch {
	case f.Name == "":
		response.BadRequest(w, "name is required")
		return
	case f.Email != "" && !utils.IsValidEmail(f.Email):
		response.BadRequest(w, "email is invalid")
		return
	case f.Rating < 1 || f.Rating > 5:
		response.BadRequest(w, "rating must be between 1 and 5")
		return
	case len(f.Message) > domain.MaxRequestsLength:
		response.BadRequest(w, "message is too long")
		return
	}

	if err := h.Store.CreateFeedback(r.Context(), &f); err != nil {
		response.FromError(w, domain.Transient("could not save your feedback", err))
		return
	}
	response.JSON(w, http.StatusCreated, map[string]string{"id": f.ID})
}
