package postgres

import (
	"context"
	"time"

	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessagesRepo interface {
	CreateContact(ctx context.Context, m *domain.ContactMessage) error
	CreateFeedback(ctx context.Context, f *domain.Feedback) error
}

type messagesRepo struct{ pool *pgxpool.Pool }

func NewMessagesRepo(pool *pgxpool.Pool) MessagesRepo { return &messagesRepo{pool: pool} }

func (r *messagesRepo) CreateContact(ctx context.Context, m *domain.ContactMessage) error {
	const q = `INSERT INTO contact_messages (id, name, email, phone, subject, message, created_at)
		VALUES ($1::uuid,$2,$3,$4,$5,$6,$7)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, q, m.ID, m.Name, m.Email, m.Phone, m.Subject, m.Message, m.CreatedAt)
	return err
}

func (r *messagesRepo) CreateFeedback(ctx context.Context, f *domain.Feedback) error {
	const q = `INSERT INTO feedback (id, name, email, rating, message, created_at)
		VALUES ($1::uuid,$2,$3,$4,$5,$6)`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, q, f.ID, f.Name, f.Email, f.Rating, f.Message, f.CreatedAt)
	return err
}
