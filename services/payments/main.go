package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diagnosis/guesthouse-bookings/internal/availability"
	"github.com/diagnosis/guesthouse-bookings/internal/http/handlers"
	"github.com/diagnosis/guesthouse-bookings/internal/lifecycle"
	"github.com/diagnosis/guesthouse-bookings/internal/platform/mailer"
	"github.com/diagnosis/guesthouse-bookings/internal/platform/payment"
	"github.com/diagnosis/guesthouse-bookings/internal/reconcile"
	"github.com/diagnosis/guesthouse-bookings/internal/repo/postgres"
	"github.com/diagnosis/guesthouse-bookings/pkg/auth"
	"github.com/diagnosis/guesthouse-bookings/pkg/config"
	"github.com/diagnosis/guesthouse-bookings/pkg/database"
	"github.com/diagnosis/guesthouse-bookings/pkg/events"
	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
	mw "github.com/diagnosis/guesthouse-bookings/pkg/middleware"
	"github.com/go-chi/chi/v5"
)

func main() {
	cfg := config.Load()
	loc := cfg.Booking.Location()

	if cfg.Payments.WebhookSecret == "" {
		logger.Warn("PAYMENT_WEBHOOK_SECRET is empty, every webhook will be rejected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	pub := events.FromConfig(cfg.NATS)
	defer pub.Close()

	rooms := postgres.NewRoomsRepo(pool)
	bookings := postgres.NewBookingsRepo(pool, loc)
	mail := mailer.FromConfig(cfg.Email)
	gw := payment.NewStripe(cfg.Payments.SecretKey)

	applier := reconcile.NewApplier(bookings, pub, mail, loc)
	processor := reconcile.NewProcessor(
		payment.NewVerifier(cfg.Payments.SignatureHeader, cfg.Payments.WebhookSecret),
		reconcile.DefaultChain(bookings, gw),
		bookings, applier, pub,
	)
	sweeper := reconcile.NewSweeper(bookings, gw, applier, loc)
	life := lifecycle.NewService(bookings, rooms, availability.NewResolver(rooms, bookings, loc), gw, mail, pub, lifecycle.Options{
		Currency: cfg.Payments.Currency,
		Location: loc,
	})

	go lifecycle.Every(ctx, cfg.Payments.SyncInterval, "payment-sync", func(ctx context.Context) error {
		rep, err := sweeper.Sync(ctx)
		if rep.Synced > 0 || rep.Errors > 0 {
			logger.Info("Payment sync finished", "synced", rep.Synced, "errors", rep.Errors)
		}
		return err
	})
	go lifecycle.Every(ctx, cfg.Payments.CompleteEvery, "completion-sweep", func(ctx context.Context) error {
		_, err := life.CompleteStayed(ctx)
		return err
	})

	h := &handlers.PaymentsHandler{Webhooks: processor, Sweeper: sweeper}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("payments"))
	r.Use(mw.Logging)
	r.Use(mw.Recoverer)
	r.Use(mw.Health(map[string]mw.Pinger{"postgres": pool}))

	r.Post("/webhooks/payments", h.Webhook)
	r.With(mw.RequireRole(cfg.Auth.JWTSecret, auth.RoleAdmin)).Post("/admin/payments/sync", h.Sync)

	srv := &http.Server{
		Addr:         ":" + cfg.Payments.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 60 * time.Second, // sync walks every paid checkout session
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down payments service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Payments service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting payments service", "port", cfg.Payments.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Payments service error", "error", err)
		os.Exit(1)
	}
}
