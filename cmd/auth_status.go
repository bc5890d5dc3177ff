package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/calassist/internal/google"
)

func newAuthStatusCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "auth-status",
		Short: "Show whether calendar credentials are stored",
		Long: `Inspect the credential file at TOKEN_FILE and report whether it holds a
usable token. With --refresh an expired token is refreshed against Google
and written back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := setupLogger(os.Stderr, cfg, false)
			if err != nil {
				return err
			}
			store := google.NewStore(google.StoreConfig{
				TokenFile:        cfg.TokenFile,
				ClientSecretFile: cfg.ClientSecretFile,
				Logger:           logger,
			})
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return printAuthStatus(ctx, cmd.OutOrStdout(), store, refresh)
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Refresh an expired token")

	return cmd
}

func printAuthStatus(ctx context.Context, w io.Writer, store *google.Store, refresh bool) error {
	path := store.File().Path()

	creds, err := store.File().Load()
	if err != nil || creds == nil {
		fmt.Fprintf(w, "Not authorized: no credentials in %s\n", path)
		fmt.Fprintln(w, "Start the web service and open /authorize in a browser.")
		return nil
	}

	if !creds.Valid() && refresh && creds.CanRefresh() {
		if refreshed, err := store.Valid(ctx); err == nil && refreshed != nil {
			creds = refreshed
		} else {
			fmt.Fprintf(w, "Refresh failed: %v\n", err)
		}
	}

	switch {
	case creds.Valid():
		fmt.Fprintf(w, "Authorized (%s)\n", path)
		if !creds.Expiry.IsZero() {
			fmt.Fprintf(w, "Access token valid until %s\n", creds.Expiry.Format(time.RFC3339))
		}
	case creds.CanRefresh():
		fmt.Fprintf(w, "Authorized (%s)\n", path)
		fmt.Fprintln(w, "Access token expired; it will be refreshed on next use.")
	default:
		fmt.Fprintf(w, "Not authorized: token in %s expired and cannot be refreshed\n", path)
	}
	return nil
}
