// Package confirmation turns a verified e-mail plus booking details into a
// Pending booking. A code is issued by RequestChallenge and consumed by Redeem.
package confirmation

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/diagnosis/guesthouse-bookings/internal/availability"
	"github.com/diagnosis/guesthouse-bookings/internal/confirmation/challenge"
	"github.com/diagnosis/guesthouse-bookings/internal/dates"
	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/diagnosis/guesthouse-bookings/internal/platform/mailer"
	"github.com/diagnosis/guesthouse-bookings/internal/utils"
	"github.com/diagnosis/guesthouse-bookings/pkg/events"
	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

type BookingStore interface {
	CountByEmail(ctx context.Context, email string) (int, error)
	Create(ctx context.Context, nb domain.NewBooking) (*domain.Booking, error)
}

// Checker is the date/room check re-run at commit time.
type Checker interface {
	Check(ctx context.Context, roomType string, rng dates.Range) (*availability.Result, error)
}

// Replays maps an idempotency key to the booking its first redemption created.
type Replays interface {
	Lookup(ctx context.Context, key string) (string, error)
	Remember(ctx context.Context, key, bookingID string, ttl time.Duration) error
}

type Options struct {
	TTL         time.Duration
	MaxPerEmail int
	AdminEmail  string
	Location    *time.Location
	HashCost    int
	ReplayTTL   time.Duration
}

type Service struct {
	bookings   BookingStore
	challenges challenge.Store
	checker    Checker
	mail       mailer.Sender
	events     events.Publisher
	replays    Replays
	opts       Options

	now     func() time.Time
	newCode func() (string, error)
}

func NewService(bookings BookingStore, challenges challenge.Store, checker Checker, mail mailer.Sender, pub events.Publisher, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.MaxPerEmail <= 0 {
		opts.MaxPerEmail = domain.DefaultMaxBookings
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if opts.ReplayTTL <= 0 {
		opts.ReplayTTL = 48 * time.Hour
	}
	if pub == nil {
		pub = events.Noop{}
	}
	return &Service{
		bookings:   bookings,
		challenges: challenges,
		checker:    checker,
		mail:       mail,
		events:     pub,
		opts:       opts,
		now:        time.Now,
		newCode:    GenerateCode,
	}
}

// WithReplays enables idempotent redemption for requests carrying a key.
func (s *Service) WithReplays(r Replays) *Service {
	s.replays = r
	return s
}

// GenerateCode draws a uniform 6-digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (s *Service) RequestChallenge(ctx context.Context, email string) error {
	email = utils.NormalizeEmail(email)
	if !utils.IsValidEmail(email) {
		return domain.Validation("a valid email is required")
	}
	if err := s.checkQuota(ctx, email); err != nil {
		return err
	}

	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.opts.HashCost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}

	now := s.now()
	c := challenge.Challenge{
		Email:     email,
		CodeHash:  string(hash),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.opts.TTL),
	}
	if err := s.challenges.Put(ctx, c); err != nil {
		return domain.Transient("could not store verification code", err)
	}

	if _, err := s.mail.Send(ctx, mailer.ChallengeCode(email, code, s.opts.TTL)); err != nil {
		logger.ErrorContext(ctx, "verification code delivery failed", "email", email, "error", err)
		if derr := s.challenges.Delete(ctx, email); derr != nil {
			logger.WarnContext(ctx, "could not discard undelivered challenge", "email", email, "error", derr)
		}
		return &domain.Error{Kind: domain.KindTransient, Code: domain.ErrDeliveryFailed.Code, Message: domain.ErrDeliveryFailed.Message, Err: err}
	}

	logger.InfoContext(ctx, "verification code issued", "email", email, "expires_at", c.ExpiresAt)
	return nil
}

type RedeemRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	CheckIn         string `json:"checkIn"`
	CheckOut        string `json:"checkOut"`
	Guests          int    `json:"guests"`
	RoomType        string `json:"roomType"`
	SpecialRequests string `json:"specialRequests"`
	OTP             string `json:"otp"`

	IdempotencyKey string `json:"-"`
}

type redeemInput struct {
	RedeemRequest
	rng dates.Range
}

func (s *Service) validate(req RedeemRequest) (*redeemInput, error) {
	in := &redeemInput{RedeemRequest: req}
	in.Name = utils.CollapseSpace(req.Name)
	in.Email = utils.NormalizeEmail(req.Email)
	in.Phone = strings.TrimSpace(req.Phone)
	in.RoomType = utils.CollapseSpace(req.RoomType)
	in.SpecialRequests = strings.TrimSpace(req.SpecialRequests)
	in.OTP = strings.TrimSpace(req.OTP)

	switch {
	case in.Name == "":
		return nil, domain.Validation("name is required")
	case len(in.Name) > domain.MaxNameLength:
		return nil, domain.Validation("name is too long")
	case !utils.IsValidEmail(in.Email):
		return nil, domain.Validation("a valid email is required")
	case in.Phone != "" && !utils.IsValidPhone(in.Phone):
		return nil, domain.Validation("phone number is invalid")
	case in.RoomType == "":
		return nil, domain.Validation("roomType is required")
	case in.Guests < domain.MinGuests:
		return nil, domain.Validation("at least one guest is required")
	case len(in.SpecialRequests) > domain.MaxRequestsLength:
		return nil, domain.Validation("specialRequests is too long")
	case in.OTP == "":
		return nil, domain.Validation("otp is required")
	}

	rng, err := dates.ParseRange(req.CheckIn, req.CheckOut, s.opts.Location)
	if err != nil {
		return nil, domain.Validation(err.Error())
	}
	in.rng = rng
	return in, nil
}

// Redeem verifies the code and commits the booking as Pending.
func (s *Service) Redeem(ctx context.Context, req RedeemRequest) (string, error) {
	if id := s.replayed(ctx, req.IdempotencyKey); id != "" {
		logger.InfoContext(ctx, "redemption replayed", "booking_id", id)
		return id, nil
	}

	in, err := s.validate(req)
	if err != nil {
		return "", err
	}
	if err := s.checkQuota(ctx, in.Email); err != nil {
		return "", err
	}
	if err := s.verify(ctx, in.Email, in.OTP); err != nil {
		return "", err
	}

	res, err := s.checker.Check(ctx, in.RoomType, in.rng)
	if err != nil {
		return "", err
	}
	if res.RoomUnavailable {
		return "", domain.ErrRoomUnavailable
	}
	if !res.Available {
		return "", fmt.Errorf("%w: %d overlapping stay(s)", domain.ErrDateConflict, len(res.Conflicts))
	}

	nb := domain.NewBooking{
		Name:            in.Name,
		Email:           in.Email,
		Phone:           in.Phone,
		RoomType:        in.RoomType,
		CheckIn:         in.rng.From,
		CheckOut:        in.rng.To,
		Guests:          in.Guests,
		SpecialRequests: in.SpecialRequests,
		CreatedAt:       s.now().UTC(),
	}
	if room := res.Room; room != nil {
		if room.MaxGuests > 0 && in.Guests > room.MaxGuests {
			return "", domain.Validation(fmt.Sprintf("%s holds at most %d guests", room.Name, room.MaxGuests))
		}
		id := room.ID
		nb.RoomID = &id
		nb.RoomType = room.Name
	}

	b, err := s.bookings.Create(ctx, nb)
	if err != nil {
		return "", domain.Transient("could not save booking", err)
	}

	if err := s.challenges.Delete(ctx, in.Email); err != nil {
		logger.WarnContext(ctx, "could not delete used challenge", "email", in.Email, "error", err)
	}
	if s.replays != nil && req.IdempotencyKey != "" {
		if err := s.replays.Remember(ctx, req.IdempotencyKey, b.ID, s.opts.ReplayTTL); err != nil {
			logger.WarnContext(ctx, "could not record idempotency key", "booking_id", b.ID, "error", err)
		}
	}

	s.announce(ctx, b)
	logger.InfoContext(ctx, "booking committed", "booking_id", b.ID, "room_type", b.RoomType,
		"check_in", dates.Format(b.CheckIn), "check_out", dates.Format(b.CheckOut))
	return b.ID, nil
}

func (s *Service) replayed(ctx context.Context, key string) string {
	if s.replays == nil || key == "" {
		return ""
	}
	id, err := s.replays.Lookup(ctx, key)
	if err != nil {
		logger.WarnContext(ctx, "idempotency lookup failed", "error", err)
		return ""
	}
	return id
}

func (s *Service) checkQuota(ctx context.Context, email string) error {
	n, err := s.bookings.CountByEmail(ctx, email)
	if err != nil {
		return domain.Transient("could not check booking quota", err)
	}
	if n >= s.opts.MaxPerEmail {
		return domain.ErrQuotaExceeded
	}
	return nil
}

func (s *Service) verify(ctx context.Context, email, code string) error {
	c, err := s.challenges.Get(ctx, email)
	if errors.Is(err, challenge.ErrNotFound) {
		return domain.ErrChallengeNotFound
	}
	if err != nil {
		return domain.Transient("could not load verification code", err)
	}
	if c.Expired(s.now()) {
		if err := s.challenges.Delete(ctx, email); err != nil {
			logger.WarnContext(ctx, "could not delete expired challenge", "email", email, "error", err)
		}
		return domain.ErrChallengeExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(c.CodeHash), []byte(code)) != nil {
		c.Attempts++
		if c.Attempts >= challenge.MaxAttempts {
			logger.WarnContext(ctx, "challenge burned after repeated wrong codes", "email", email, "attempts", c.Attempts)
			if err := s.challenges.Delete(ctx, email); err != nil {
				logger.WarnContext(ctx, "could not delete burned challenge", "email", email, "error", err)
			}
			return domain.ErrChallengeMismatch
		}
		if err := s.challenges.Put(ctx, *c); err != nil {
			logger.WarnContext(ctx, "could not record failed attempt", "email", email, "error", err)
		}
		return domain.ErrChallengeMismatch
	}
	return nil
}

// announce is best effort: the booking already exists.
func (s *Service) announce(ctx context.Context, b *domain.Booking) {
	if s.opts.AdminEmail != "" {
		if _, err := s.mail.Send(ctx, mailer.AdminNewBooking(s.opts.AdminEmail, b)); err != nil {
			logger.WarnContext(ctx, "admin notification failed", "booking_id", b.ID, "error", err)
		}
	}
	ev := events.BookingCreatedEvent{
		BookingID: b.ID,
		Email:     b.Email,
		Name:      b.Name,
		RoomType:  b.RoomType,
		CheckIn:   dates.Format(b.CheckIn),
		CheckOut:  dates.Format(b.CheckOut),
		Guests:    b.Guests,
		CreatedAt: b.CreatedAt,
	}
	if err := s.events.Publish(ctx, events.BookingCreated, ev); err != nil {
		logger.WarnContext(ctx, "publish booking.created failed", "booking_id", b.ID, "error", err)
	}
}
