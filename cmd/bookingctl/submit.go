package main

import (
	"errors"
	"fmt"

	"github.com/diagnosis/guesthouse-bookings/internal/client"
	"github.com/diagnosis/guesthouse-bookings/internal/confirmation"
	"github.com/diagnosis/guesthouse-bookings/internal/domain"
	"github.com/diagnosis/guesthouse-bookings/internal/outbox"
	"github.com/spf13/cobra"
)

func (a *app) challengeCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "E-mail a verification code",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.api().RequestChallenge(cmd.Context(), email); err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Verification code sent to %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Guest e-mail address")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) bookCmd() *cobra.Command {
	var req confirmation.RedeemRequest
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Redeem a verification code into a booking request",
		Long: `Submits the booking. When the API cannot be reached the request is kept
in the local outbox for 24 hours and replayed by "sync" or "agent".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.submit(cmd, outbox.OpBooking, req)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Name, "name", "", "Guest name")
	f.StringVar(&req.Email, "email", "", "Guest e-mail address")
	f.StringVar(&req.Phone, "phone", "", "Guest phone number")
	f.StringVar(&req.RoomType, "room", "", "Room name")
	f.StringVar(&req.CheckIn, "check-in", "", "Check-in date (YYYY-MM-DD)")
	f.StringVar(&req.CheckOut, "check-out", "", "Check-out date (YYYY-MM-DD)")
	f.IntVar(&req.Guests, "guests", 1, "Number of guests")
	f.StringVar(&req.SpecialRequests, "requests", "", "Special requests")
	f.StringVar(&req.OTP, "otp", "", "Verification code from the e-mail")
	for _, name := range []string{"name", "email", "room", "check-in", "check-out", "otp"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (a *app) contactCmd() *cobra.Command {
	var m domain.ContactMessage
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Send a message to the guesthouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.submit(cmd, outbox.OpContact, m)
		},
	}
	f := cmd.Flags()
	f.StringVar(&m.Name, "name", "", "Your name")
	f.StringVar(&m.Email, "email", "", "Your e-mail address")
	f.StringVar(&m.Phone, "phone", "", "Your phone number")
	f.StringVar(&m.Subject, "subject", "", "Subject")
	f.StringVar(&m.Message, "message", "", "Message")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func (a *app) feedbackCmd() *cobra.Command {
	var fb domain.Feedback
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Rate your stay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.submit(cmd, outbox.OpFeedback, fb)
		},
	}
	f := cmd.Flags()
	f.StringVar(&fb.Name, "name", "", "Your name")
	f.StringVar(&fb.Email, "email", "", "Your e-mail address")
	f.IntVar(&fb.Rating, "rating", 5, "Rating from 1 to 5")
	f.StringVar(&fb.Message, "message", "", "Comments")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// submit probes the API once so an offline client queues without waiting on
// a request timeout.
func (a *app) submit(cmd *cobra.Command, op outbox.Op, payload any) error {
	st, err := a.open()
	if err != nil {
		return err
	}
	conn := a.connectivity()
	conn.Check(cmd.Context())

	res, err := outbox.New(st, a.api()).WithConnectivity(conn.Online).Submit(cmd.Context(), op, payload, 0)
	if err != nil {
		return describe(err)
	}
	out := cmd.OutOrStdout()
	if res.Delivered {
		fmt.Fprintf(out, "%s submitted\n", op)
		return nil
	}
	fmt.Fprintf(out, "API unreachable, %s queued as %s (expires in %s)\n", op, res.QueuedID, op.MaxAge())
	return nil
}

// describe turns an API rejection into a one-line message for the terminal.
func describe(err error) error {
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch {
	case apiErr.QuotaExceeded:
		return fmt.Errorf("booking limit reached: %s", apiErr.Message)
	case apiErr.OTPInvalid:
		return fmt.Errorf("verification failed: %s", apiErr.Message)
	case apiErr.Conflict:
		return fmt.Errorf("dates unavailable: %s", apiErr.Message)
	case apiErr.RoomUnavailable:
		return fmt.Errorf("room unavailable: %s", apiErr.Message)
	}
	return fmt.Errorf("%s (HTTP %d)", apiErr.Message, apiErr.Status)
}
