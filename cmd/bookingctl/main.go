// Command bookingctl submits guest requests through the local outbox and
// replays whatever could not be delivered.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/diagnosis/guesthouse-bookings/internal/client"
	"github.com/diagnosis/guesthouse-bookings/internal/outbox"
	"github.com/diagnosis/guesthouse-bookings/pkg/config"
	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
	"github.com/spf13/cobra"
)

var Version = "dev"

type app struct {
	cfg     config.OutboxConfig
	auth    config.AuthConfig
	apiURL  string
	dbPath  string
	timeout time.Duration
	verbose bool

	store  outbox.Store
	client *client.Client
}

func main() {
	cfg := config.Load()
	a := &app{cfg: cfg.Outbox, auth: cfg.Auth}
	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bookingctl",
		Short:         "Guesthouse booking client with offline queueing",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := "warn"
			if a.verbose {
				level = "debug"
			}
			logger.SetDefault(logger.New(os.Stderr, level))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.store != nil {
				return a.store.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.apiURL, "api", a.cfg.BaseURL, "Bookings API base URL")
	rootCmd.PersistentFlags().StringVar(&a.dbPath, "db", a.cfg.DBPath, "Outbox database path")
	rootCmd.PersistentFlags().DurationVar(&a.timeout, "timeout", 10*time.Second, "Per-request timeout")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log sync activity to stderr")

	rootCmd.AddCommand(a.challengeCmd())
	rootCmd.AddCommand(a.bookCmd())
	rootCmd.AddCommand(a.contactCmd())
	rootCmd.AddCommand(a.feedbackCmd())
	rootCmd.AddCommand(a.availabilityCmd())
	rootCmd.AddCommand(a.bookedDatesCmd())
	rootCmd.AddCommand(a.pendingCmd())
	rootCmd.AddCommand(a.syncCmd())
	rootCmd.AddCommand(a.agentCmd())
	rootCmd.AddCommand(a.adminTokenCmd())
	return rootCmd
}

func (a *app) api() *client.Client {
	if a.client == nil {
		a.client = client.New(a.apiURL, a.timeout)
	}
	return a.client
}

// open lazily opens the outbox so read-only commands never touch the disk.
func (a *app) open() (outbox.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	st, err := outbox.OpenSQLite(a.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open outbox %s: %w", a.dbPath, err)
	}
	a.store = st
	return st, nil
}

func (a *app) syncer(st outbox.Store) *outbox.Syncer {
	return outbox.NewSyncer(st, a.api(), outbox.SyncOptions{
		Interval:    a.cfg.SyncInterval,
		MaxRetries:  a.cfg.MaxRetries,
		Parallelism: a.cfg.Parallelism,
	})
}

func (a *app) connectivity() *outbox.Connectivity {
	return outbox.NewConnectivity(outbox.HealthProber{URL: a.api().HealthURL()}, a.cfg.ProbeEvery)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
