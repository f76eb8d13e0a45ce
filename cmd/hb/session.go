package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/hopperbot/internal/auth"
)

func newAuthManager() (*auth.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	path, err := auth.DefaultCookieStorePath()
	if err != nil {
		return nil, fmt.Errorf("failed to get cookie store path: %w", err)
	}
	return auth.NewManager(auth.NewCookieStore(path), cliLogger(cfg)), nil
}

func loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in to X in a browser window so the renderer sees threads logged in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newAuthManager()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
			defer cancel()
			return m.Login(ctx)
		},
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored X session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := newAuthManager()
			if err != nil {
				return err
			}
			if !m.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "no stored session")
			}
			return m.Logout()
		},
	}
}
