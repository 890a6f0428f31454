package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/app"
	"github.com/schibsted/account-sdk-android-web-sub000/internal/webflows/domain"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/webflows"
	"github.com/spf13/cobra"
)

var errNotLoggedIn = errors.New("not logged in, run `webflows login` first")

func newLoginCmd() *cobra.Command {
	var (
		mfa       string
		loginHint string
		scopes    []string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in through the browser",
		Long: `login prints a URL to open in a browser and waits for the identity provider to
redirect back to WEBFLOWS_REDIRECT_URI, which must be a loopback http URL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := domain.AuthRequest{ExtraScopeValues: scopes, LoginHint: loginHint}
			if mfa != "" {
				m, err := domain.ParseMfaType(mfa)
				if err != nil {
					return err
				}
				req.MFA = &m
			}

			return withApp(cmd.Context(), func(a *app.Application) error {
				return login(cmd, a, req)
			})
		},
	}

	cmd.Flags().StringVar(&mfa, "mfa", "", "Force an authentication method (password, otp, sms, eid-no, eid-se, eid)")
	cmd.Flags().StringVar(&loginHint, "login-hint", "", "Prefill the username on the login page")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Extra scope to request, may be repeated")
	return cmd
}

func login(cmd *cobra.Command, a *app.Application, req domain.AuthRequest) error {
	ctx := cmd.Context()

	callback, err := listenForRedirect(a.Config().RedirectURI, a.Logger())
	if err != nil {
		return err
	}
	defer callback.Close()

	loginURL, err := a.Observer.StartLogin(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Open this URL in your browser to log in:")
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), "  "+loginURL)
	fmt.Fprintln(cmd.OutOrStdout())

	query, err := callback.Wait(ctx)
	if err != nil {
		a.Observer.Cancel()
		return err
	}

	user, err := a.Observer.Complete(ctx, query)
	if err != nil {
		return err
	}

	userID, err := user.UserID()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as user %s\n", userID)
	return nil
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the profile of the logged-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withUser(cmd.Context(), func(_ *app.Application, user *webflows.User) error {
			profile, err := user.FetchProfileData(cmd.Context())
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(profile, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withUser(cmd.Context(), func(_ *app.Application, user *webflows.User) error {
			if err := user.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		})
	},
}

var urlCmd = &cobra.Command{
	Use:       "url <account|session>",
	Short:     "Print the account pages URL or a web session URL",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"account", "session"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withUser(cmd.Context(), func(a *app.Application, user *webflows.User) error {
			var (
				u   string
				err error
			)
			switch args[0] {
			case "account":
				u, err = user.AccountPagesURL()
			case "session":
				cfg := a.Client.Configuration()
				u, err = user.WebSessionURL(cmd.Context(), cfg.ClientID, cfg.RedirectURI, "")
			default:
				return fmt.Errorf("unknown url kind %q, want account or session", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u)
			return nil
		})
	},
}

// withUser runs fn with the resumed user, failing when nobody is logged in.
func withUser(ctx context.Context, fn func(*app.Application, *webflows.User) error) error {
	return withApp(ctx, func(a *app.Application) error {
		user, ok := a.Observer.Value().RightValue()
		if !ok {
			return errNotLoggedIn
		}
		return fn(a, user)
	})
}
