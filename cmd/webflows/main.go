package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/app"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/slogx"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "webflows",
	Short:         "Log in to Schibsted account from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		cmd.SetContext(slogx.WithAttrs(cmd.Context(), "command", cmd.Name()))
	},
	Long: `webflows runs the OAuth 2.0 authorization code flow with PKCE against Schibsted account.

Configuration comes from WEBFLOWS_* environment variables, optionally on top of
a YAML file named by WEBFLOWS_CONFIG. Sessions are kept in an encrypted SQLite
database.`,
	Run: func(cmd *cobra.Command, _ []string) {
		if err := cmd.Help(); err != nil {
			fmt.Fprintf(os.Stderr, "Error displaying help: %v\n", err)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "webflows "+app.BuildVersion)
	},
}

func init() {
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(urlCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// withApp loads the configuration and opens the application for the
// duration of fn.
func withApp(ctx context.Context, fn func(*app.Application) error) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	application, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer func() {
		if err := application.Close(); err != nil {
			application.Logger().Error("failed to close application", "error", err)
		}
	}()

	return fn(application)
}
