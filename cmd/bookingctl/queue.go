package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func (a *app) availabilityCmd() *cobra.Command {
	var room, checkIn, checkOut string
	cmd := &cobra.Command{
		Use:   "availability",
		Short: "Check whether a room is free for a stay",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.api().CheckAvailability(cmd.Context(), room, checkIn, checkOut)
			if err != nil {
				return describe(err)
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "Room name")
	cmd.Flags().StringVar(&checkIn, "check-in", "", "Check-in date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&checkOut, "check-out", "", "Check-out date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}

func (a *app) bookedDatesCmd() *cobra.Command {
	var room string
	cmd := &cobra.Command{
		Use:   "booked-dates",
		Short: "List the dates a room is already taken",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.api().BookedDates(cmd.Context(), room)
			if err != nil {
				return describe(err)
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVar(&room, "room", "", "Room name")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}

func (a *app) pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Show queued operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open()
			if err != nil {
				return err
			}
			entries, err := st.ListPending(cmd.Context())
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Outbox is empty")
				return nil
			}

			now := time.Now()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tOP\tAGE\tRETRIES\tSTALE\tLAST ERROR")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\t%s\n",
					e.ID, e.Op, now.Sub(e.CreatedAt).Round(time.Second), e.RetryCount, e.Stale(now), e.LastError)
			}
			return tw.Flush()
		},
	}
}

func (a *app) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay queued operations once",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open()
			if err != nil {
				return err
			}
			rep, err := a.syncer(st).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, rep)
		},
	}
}

func (a *app) agentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Watch connectivity and replay the outbox until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.open()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			conn := a.connectivity()
			go conn.Run(ctx)

			fmt.Fprintf(cmd.ErrOrStderr(), "Replaying %s against %s, Ctrl-C to stop\n", a.dbPath, a.apiURL)
			a.syncer(st).Run(ctx, conn)
			return nil
		},
	}
}
