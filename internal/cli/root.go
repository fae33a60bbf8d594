// Package cli implements the devbox-console command tree.
package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/labring/devbox-console/pkg/client"
	"github.com/labring/devbox-console/pkg/console"
	"github.com/labring/devbox-console/pkg/errors"
	"github.com/labring/devbox-console/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	defaultAPI     = "http://localhost:9757"
	defaultProfile = "default"
)

// loginHint is printed whenever a command needs a (new) session
const loginHint = "not logged in or session expired, run `devbox-console login`"

// app holds the global flags and the per-invocation state
type app struct {
	api      string
	profile  string
	logLevel string

	logFile io.Closer
}

// NewRootCommand builds the command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "devbox-console",
		Short: "Operator console for devbox hosts",
		Long: `devbox-console logs in to a devbox host, lists its servers, streams
their output and sends them commands.

The session is stored per profile under the user config directory, so
several hosts can be used side by side with --profile.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setupLogging,
		PersistentPostRunE: a.closeLog,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.api, "api", envOr("DEVBOX_API", defaultAPI), "host API base URL (env DEVBOX_API)")
	flags.StringVar(&a.profile, "profile", envOr("DEVBOX_PROFILE", defaultProfile), "session profile name (env DEVBOX_PROFILE)")
	flags.StringVar(&a.logLevel, "log-level", "info", "log level: debug, info, warn or error")

	root.AddCommand(
		a.loginCommand(),
		a.logoutCommand(),
		a.statusCommand(),
		a.serversCommand(),
		a.consoleCommand(),
		a.execCommand(),
		a.tailCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", describe(err))
		return 1
	}
	return 0
}

// setupLogging sends the log to a file so it never mixes with command
// output or the terminal UI
func (a *app) setupLogging(cmd *cobra.Command, _ []string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return errors.NewInvalidRequestError("invalid --log-level", a.logLevel)
	}

	dir, err := os.UserCacheDir()
	if err != nil {
		logger.Init(level, "text", io.Discard)
		return nil
	}
	dir = filepath.Join(dir, "devbox-console")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		logger.Init(level, "text", io.Discard)
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, "console.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		logger.Init(level, "text", io.Discard)
		return nil
	}
	a.logFile = f
	logger.Init(level, "text", f)
	slog.Debug("command started", slog.String("command", cmd.CommandPath()), slog.String("profile", a.profile))
	return nil
}

func (a *app) closeLog(*cobra.Command, []string) error {
	if a.logFile != nil {
		err := a.logFile.Close()
		a.logFile = nil
		return err
	}
	return nil
}

func (a *app) client() (*client.Client, error) {
	return client.New(a.api)
}

func (a *app) sessionContext() (*console.SessionContext, error) {
	path, err := console.DefaultSessionPath(a.profile)
	if err != nil {
		return nil, err
	}
	return console.NewSessionContext(console.NewFileStore(path))
}

// loggedIn loads the profile's session and fails early when there is none
func (a *app) loggedIn() (*console.SessionContext, *client.Client, error) {
	sc, err := a.sessionContext()
	if err != nil {
		return nil, nil, err
	}
	if !sc.IsAuthenticated() {
		return nil, nil, errors.NewUnauthenticatedError()
	}
	c, err := a.client()
	if err != nil {
		return nil, nil, err
	}
	return sc, c, nil
}

// forget drops the stored session when the host rejected it
func forget(sc *console.SessionContext, err error) error {
	if err != nil && errors.Classify(err) == errors.KindAuth {
		if clearErr := sc.Clear(); clearErr != nil {
			slog.Error("failed to clear session", slog.String("error", clearErr.Error()))
		}
	}
	return err
}

func describe(err error) string {
	if errors.Classify(err) == errors.KindAuth {
		return loginHint
	}
	var apiErr *errors.APIError
	if stderrors.As(err, &apiErr) {
		if apiErr.Details != "" && errors.Classify(err) == errors.KindTransient {
			return apiErr.Message + ": " + apiErr.Details
		}
		return apiErr.Message
	}
	return err.Error()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
