package outbox

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultInterval    = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultParallelism = 4
)

type SyncOptions struct {
	Interval    time.Duration
	MaxRetries  int
	Parallelism int
}

// Report summarizes one sync run.
type Report struct {
	Evicted   int  `json:"evicted"`
	Delivered int  `json:"delivered"`
	Failed    int  `json:"failed"`
	Dropped   int  `json:"dropped"`
	Skipped   bool `json:"skipped,omitempty"`
}

// Syncer replays queued entries. Runs never overlap: a run requested while
// another is in flight is skipped.
type Syncer struct {
	store  Store
	sender Sender
	opts   SyncOptions
	now    func() time.Time
	log    *slog.Logger

	running atomic.Bool
}

func NewSyncer(store Store, sender Sender, opts SyncOptions) *Syncer {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	return &Syncer{
		store:  store,
		sender: sender,
		opts:   opts,
		now:    time.Now,
		log:    logger.Component("outbox"),
	}
}

func (s *Syncer) RunOnce(ctx context.Context) (Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Debug("sync already in progress, skipping")
		return Report{Skipped: true}, nil
	}
	defer s.running.Store(false)

	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return Report{}, err
	}

	var (
		rep  Report
		mu   sync.Mutex
		live []Entry
	)
	now := s.now()
	for _, e := range pending {
		if e.Stale(now) {
			if err := s.store.Drop(ctx, e.ID); err != nil {
				s.log.Warn("evict stale entry failed", "entry_id", e.ID, "error", err)
				continue
			}
			s.log.Info("evicted stale entry", "entry_id", e.ID, "op", e.Op, "age", now.Sub(e.CreatedAt).String())
			rep.Evicted++
			continue
		}
		live = append(live, e)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Parallelism)
	for _, e := range live {
		e := e
		g.Go(func() error {
			outcome := s.attempt(gctx, e)
			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case delivered:
				rep.Delivered++
			case dropped:
				rep.Dropped++
			case failed:
				rep.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(pending) > 0 {
		s.log.Info("outbox sync finished",
			"evicted", rep.Evicted, "delivered", rep.Delivered, "failed", rep.Failed, "dropped", rep.Dropped)
	}
	return rep, nil
}

type outcome int

const (
	failed outcome = iota
	delivered
	dropped
)

func (s *Syncer) attempt(ctx context.Context, e Entry) outcome {
	err := s.sender.Deliver(ctx, e)
	if err == nil {
		if aerr := s.store.Ack(ctx, e.ID); aerr != nil {
			s.log.Warn("ack failed", "entry_id", e.ID, "error", aerr)
		}
		return delivered
	}

	if !IsRetryable(err) {
		if derr := s.store.Drop(ctx, e.ID); derr != nil {
			s.log.Warn("drop failed", "entry_id", e.ID, "error", derr)
			return failed
		}
		s.log.Error("entry rejected by server", "entry_id", e.ID, "op", e.Op, "retry_count", e.RetryCount, "error", err)
		return dropped
	}

	n, nerr := s.store.Nack(ctx, e.ID, err.Error())
	if nerr != nil {
		s.log.Warn("nack failed", "entry_id", e.ID, "error", nerr)
		return failed
	}
	if n < s.opts.MaxRetries {
		s.log.Debug("delivery failed", "entry_id", e.ID, "retry_count", n, "error", err)
		return failed
	}
	if derr := s.store.Drop(ctx, e.ID); derr != nil {
		s.log.Warn("drop failed", "entry_id", e.ID, "error", derr)
		return failed
	}
	s.log.Error("entry dropped after retries", "entry_id", e.ID, "op", e.Op, "retry_count", n, "error", err)
	return dropped
}

// Run syncs on every offline-to-online transition and on the interval while
// online, until ctx is done.
func (s *Syncer) Run(ctx context.Context, conn *Connectivity) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	trigger := func(reason string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rep, err := s.RunOnce(ctx)
			if err != nil {
				s.log.Error("outbox sync failed", "reason", reason, "error", err)
				return
			}
			if rep.Skipped {
				s.log.Debug("outbox sync skipped", "reason", reason)
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case up := <-conn.Changes():
			if up {
				trigger("online")
			}
		case <-ticker.C:
			if conn.Online() {
				trigger("interval")
			}
		}
	}
}
