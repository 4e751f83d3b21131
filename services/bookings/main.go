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
	"github.com/diagnosis/guesthouse-bookings/internal/confirmation"
	"github.com/diagnosis/guesthouse-bookings/internal/confirmation/challenge"
	"github.com/diagnosis/guesthouse-bookings/internal/http/handlers"
	httpmw "github.com/diagnosis/guesthouse-bookings/internal/http/middleware"
	"github.com/diagnosis/guesthouse-bookings/internal/lifecycle"
	"github.com/diagnosis/guesthouse-bookings/internal/platform/cache"
	"github.com/diagnosis/guesthouse-bookings/internal/platform/mailer"
	"github.com/diagnosis/guesthouse-bookings/internal/platform/payment"
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
	messages := postgres.NewMessagesRepo(pool)
	replays := postgres.NewIdempotencyRepo(pool)

	health := map[string]mw.Pinger{"postgres": pool}

	var (
		challenges challenge.Store
		counter    httpmw.Counter
	)
	if cfg.Redis.Enabled {
		rdb, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			logger.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		challenges = challenge.NewRedisStore(rdb, "otp")
		counter = httpmw.NewRedisCounter(rdb, "rl:challenge")
		health["redis"] = cache.Pinger{Client: rdb}
	} else {
		logger.Warn("Redis disabled, challenges are kept in process memory")
		mem := challenge.NewMemoryStore()
		go mem.RunJanitor(ctx, time.Minute)
		challenges = mem
		counter = httpmw.NewMemoryCounter()
	}

	mail := mailer.FromConfig(cfg.Email)
	resolver := availability.NewResolver(rooms, bookings, loc)

	confirm := confirmation.NewService(bookings, challenges, resolver, mail, pub, confirmation.Options{
		TTL:         cfg.Booking.ChallengeTTL,
		MaxPerEmail: cfg.Booking.MaxBookingsPerMail,
		AdminEmail:  cfg.Email.AdminEmail,
		Location:    loc,
	}).WithReplays(replays)

	life := lifecycle.NewService(bookings, rooms, resolver, payment.NewStripe(cfg.Payments.SecretKey), mail, pub, lifecycle.Options{
		Currency: cfg.Payments.Currency,
		Location: loc,
	})

	go lifecycle.Every(ctx, time.Hour, "idempotency-cleanup", func(ctx context.Context) error {
		n, err := replays.CleanupExpired(ctx)
		if n > 0 {
			logger.Info("Expired idempotency keys removed", "count", n)
		}
		return err
	})

	limiter := httpmw.NewRateLimiter(counter, httpmw.RateLimitConfig{
		Requests: cfg.Booking.ChallengeRateLimit,
		Window:   cfg.Booking.ChallengeRateWin,
	})

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("bookings"))
	r.Use(mw.Logging)
	r.Use(mw.Recoverer)
	r.Use(mw.CORS(cfg.Server.AllowOrigins))
	r.Use(mw.Health(health))

	r.Mount("/bookings", (&handlers.BookingsHandler{
		Confirm:        confirm,
		Availability:   resolver,
		ChallengeLimit: limiter.Middleware(),
	}).Routes())
	(&handlers.MessagesHandler{Store: messages, Mail: mail, AdminEmail: cfg.Email.AdminEmail}).Mount(r)

	r.Route("/admin/bookings", func(r chi.Router) {
		r.Use(mw.RequireRole(cfg.Auth.JWTSecret, auth.RoleAdmin))
		r.Mount("/", (&handlers.AdminHandler{Bookings: life}).Routes())
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down bookings service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Bookings service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting bookings service", "port", cfg.Server.Port, "timezone", loc.String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Bookings service error", "error", err)
		os.Exit(1)
	}
}
