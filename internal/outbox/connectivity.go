package outbox

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
)

type Prober interface {
	Probe(ctx context.Context) error
}

// HealthProber treats a 2xx from the server's health endpoint as online.
type HealthProber struct {
	URL    string
	Client *http.Client
}

func (p HealthProber) Probe(ctx context.Context) error {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: 3 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("health check returned %d", res.StatusCode)
	}
	return nil
}

// Connectivity tracks whether the server is reachable and reports changes.
// It starts offline so the first successful probe counts as a transition.
type Connectivity struct {
	probe   Prober
	every   time.Duration
	online  atomic.Bool
	changes chan bool
}

func NewConnectivity(p Prober, every time.Duration) *Connectivity {
	if every <= 0 {
		every = 5 * time.Second
	}
	return &Connectivity{probe: p, every: every, changes: make(chan bool, 1)}
}

func (c *Connectivity) Online() bool { return c.online.Load() }

func (c *Connectivity) Changes() <-chan bool { return c.changes }

// Check probes once and publishes a change if the state flipped.
func (c *Connectivity) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, c.every)
	defer cancel()
	up := c.probe.Probe(pctx) == nil
	if c.online.Swap(up) != up {
		logger.Info("connectivity changed", "online", up)
		c.publish(up)
	}
	return up
}

// publish keeps only the latest state when the reader is behind.
func (c *Connectivity) publish(up bool) {
	for {
		select {
		case c.changes <- up:
			return
		default:
		}
		select {
		case <-c.changes:
		default:
		}
	}
}

func (c *Connectivity) Run(ctx context.Context) {
	c.Check(ctx)
	t := time.NewTicker(c.every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Check(ctx)
		}
	}
}
