package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNotSignedIn = errors.New("not signed in, run: taskctl auth initiate <email>")

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Sign in with an emailed code and manage the session",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "initiate <email>",
			Short: "Mail a one-time login code",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				msg, err := a.api.Initiate(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				fmt.Fprintln(a.out, msg)

				return nil
			},
		},
		&cobra.Command{
			Use:   "verify <email> <code>",
			Short: "Exchange the mailed code for a session",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				pair, err := a.api.VerifyOTP(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}

				if err := a.session.SetTokens(pair.AccessToken, pair.RefreshToken); err != nil {
					return err
				}

				user, err := a.api.Me(cmd.Context())
				if err != nil {
					return err
				}

				if err := a.session.SetUser(user); err != nil {
					return err
				}

				fmt.Fprintf(a.out, "Signed in as %s\n", user.Email)

				return nil
			},
		},
		&cobra.Command{
			Use:   "me",
			Short: "Show the signed-in user",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if !a.session.State().IsAuthenticated {
					return errNotSignedIn
				}

				return a.authed(cmd.Context(), func() error {
					user, err := a.api.Me(cmd.Context())
					if err != nil {
						return err
					}

					fmt.Fprintf(a.out, "%s (%s)\n", user.Email, user.ID)

					return a.session.SetUser(user)
				})
			},
		},
		&cobra.Command{
			Use:   "refresh",
			Short: "Rotate both session tokens",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				refresh := a.session.State().RefreshToken
				if refresh == "" {
					return errNotSignedIn
				}

				pair, err := a.api.Refresh(cmd.Context(), refresh)
				if err != nil {
					return err
				}

				if err := a.session.SetTokens(pair.AccessToken, pair.RefreshToken); err != nil {
					return err
				}

				fmt.Fprintln(a.out, "Session refreshed")

				return nil
			},
		},
		&cobra.Command{
			Use:   "logout",
			Short: "Forget the local session",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				if err := a.session.Clear(); err != nil {
					return err
				}

				fmt.Fprintln(a.out, "Signed out")

				return nil
			},
		},
	)

	return cmd
}
