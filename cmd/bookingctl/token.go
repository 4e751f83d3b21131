package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/diagnosis/guesthouse-bookings/pkg/auth"
	"github.com/spf13/cobra"
)

// adminTokenCmd mints a bearer token for the admin routes. It needs the
// server's JWT_SECRET, so it only works on a trusted machine.
func (a *app) adminTokenCmd() *cobra.Command {
	var (
		email string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Print an admin bearer token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.auth.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			if ttl <= 0 {
				ttl = a.auth.AccessTokenTTL
			}
			tok, err := auth.NewAccessToken(email, email, auth.RoleAdmin, a.auth.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Administrator e-mail recorded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to ACCESS_TOKEN_TTL)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
