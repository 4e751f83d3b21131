// Command backfill links legacy bookings that only carry a free-form room
// label to the catalog room they refer to.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/diagnosis/guesthouse-bookings/internal/availability"
	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/diagnosis/guesthouse-bookings/internal/repo/postgres"
	"github.com/diagnosis/guesthouse-bookings/pkg/config"
	"github.com/diagnosis/guesthouse-bookings/pkg/database"
	"github.com/diagnosis/guesthouse-bookings/pkg/logger"
	"github.com/spf13/cobra"
)

type roomLister interface {
	ListRooms(ctx context.Context) ([]domain.Room, error)
}

type unlinkedBookings interface {
	ListWithoutRoom(ctx context.Context) ([]domain.Booking, error)
	AssignRoom(ctx context.Context, id, roomID, roomName string) error
}

type report struct {
	Scanned   int
	Linked    int
	Unmatched int
	Failed    int
}

func main() {
	var dryRun bool

	cmd := &cobra.Command{
		Use:          "backfill",
		Short:        "Link bookings without a room id to the room their label names",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			pool, err := database.Connect(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer pool.Close()

			rep, err := backfill(cmd.Context(),
				postgres.NewRoomsRepo(pool),
				postgres.NewBookingsRepo(pool, cfg.Booking.Location()),
				dryRun, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d linked=%d unmatched=%d failed=%d dry_run=%t\n",
				rep.Scanned, rep.Linked, rep.Unmatched, rep.Failed, dryRun)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the matches without writing them")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func backfill(ctx context.Context, rooms roomLister, bookings unlinkedBookings, dryRun bool, out io.Writer) (report, error) {
	var rep report

	catalog, err := rooms.ListRooms(ctx)
	if err != nil {
		return rep, fmt.Errorf("list rooms: %w", err)
	}
	pending, err := bookings.ListWithoutRoom(ctx)
	if err != nil {
		return rep, fmt.Errorf("list bookings: %w", err)
	}

	for _, b := range pending {
		rep.Scanned++
		room := availability.MatchRoom(catalog, b.RoomType)
		if room == nil {
			rep.Unmatched++
			fmt.Fprintf(out, "%s\t%q\tno match\n", b.ID, b.RoomType)
			continue
		}
		fmt.Fprintf(out, "%s\t%q\t-> %s (%s)\n", b.ID, b.RoomType, room.Name, room.ID)
		if dryRun {
			rep.Linked++
			continue
		}
		if err := bookings.AssignRoom(ctx, b.ID, room.ID, room.Name); err != nil {
			rep.Failed++
			logger.ErrorContext(ctx, "assign room failed", "booking_id", b.ID, "room_id", room.ID, "error", err)
			continue
		}
		rep.Linked++
	}
	return rep, nil
}
