// Package cli implements the taskctl command tree.
package cli

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"taskmaster/internal/client"
	"taskmaster/internal/client/authstore"
	"taskmaster/internal/client/mutations"
	"taskmaster/internal/client/taskstore"

	"github.com/spf13/cobra"
)

const defaultServer = "http://localhost:5000"

// app is built once per invocation by the root command.
type app struct {
	out     io.Writer
	session *authstore.Store
	api     *client.Client
	store   *taskstore.Store
	mut     *mutations.Mutations
}

// NewRootCmd returns the taskctl root command. httpClient may be nil.
func NewRootCmd(httpClient *http.Client) *cobra.Command {
	var (
		serverURL   string
		sessionPath string
	)

	a := &app{}

	root := &cobra.Command{
		Use:           "taskctl",
		Short:         "Command-line client for the taskmaster API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			session, err := authstore.Open(sessionPath)
			if err != nil {
				return err
			}

			a.out = cmd.OutOrStdout()
			a.session = session
			a.api = client.New(serverURL, httpClient, session)
			a.store = taskstore.New()
			a.mut = mutations.New(a.api, a.store)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&serverURL, "server", envOr("TASKMASTER_URL", defaultServer), "API base URL")
	root.PersistentFlags().StringVar(&sessionPath, "session", defaultSessionPath(), "session file")

	root.AddCommand(newAuthCmd(a), newTasksCmd(a))

	return root
}

// authed runs fn and, if the access token was rejected, refreshes it
// once and runs fn again.
func (a *app) authed(ctx context.Context, fn func() error) error {
	err := fn()
	if client.StatusOf(err) != http.StatusUnauthorized {
		return err
	}

	refresh := a.session.State().RefreshToken
	if refresh == "" {
		return err
	}

	access, refreshErr := a.api.RefreshAccess(ctx, refresh)
	if refreshErr != nil {
		return err
	}

	if err := a.session.UpdateAccessToken(access); err != nil {
		return err
	}

	return fn()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultSessionPath() string {
	if p := os.Getenv("TASKMASTER_SESSION"); p != "" {
		return p
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}

	return filepath.Join(dir, "taskmaster", "session.json")
}
