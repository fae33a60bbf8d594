package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/labring/devbox-console/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func (a *app) loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login [username]",
		Short: "Log in to the host and store the session",
		Long: `Log in to the host and store the session for the current profile.

The password is read from the terminal without echo. When stdin is not a
terminal the first line of stdin is used, so scripts can pipe it in.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())

			username := ""
			if len(args) == 1 {
				username = args[0]
			} else {
				fmt.Fprint(cmd.ErrOrStderr(), "Username: ")
				line, err := readLine(in)
				if err != nil {
					return err
				}
				username = line
			}
			if username == "" {
				return errors.NewInvalidRequestError("username is required")
			}

			fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
			password, err := readPassword(cmd.InOrStdin(), in)
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			sc, err := a.sessionContext()
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}

			s, err := c.Login(cmd.Context(), username, password)
			if err != nil {
				if errors.Classify(err) == errors.KindAuth {
					return errors.NewInvalidRequestError("login failed: wrong username or password")
				}
				return err
			}
			if err := sc.Establish(s.Identity, s.Credential); err != nil {
				return err
			}

			slog.Info("logged in", slog.String("user", s.Identity), slog.String("profile", a.profile))
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (profile %s)\n", s.Identity, a.profile)
			return nil
		},
	}
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the session and forget it locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc, err := a.sessionContext()
			if err != nil {
				return err
			}
			if sc.IsAuthenticated() {
				c, err := a.client()
				if err != nil {
					return err
				}
				// the local session goes away even if the host is unreachable
				if err := c.Logout(cmd.Context(), sc.Session()); err != nil {
					slog.Warn("logout request failed", slog.String("error", err.Error()))
				}
			}
			if err := sc.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the stored session is still valid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc, c, err := a.loggedIn()
			if err != nil {
				return err
			}
			if err := sc.Validate(cmd.Context(), c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s at %s (profile %s)\n", sc.Identity(), a.api, a.profile)
			return nil
		},
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", errors.NewInvalidRequestError("failed to read input", err.Error())
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readPassword reads without echo from a terminal, else one line from r
func readPassword(stdin io.Reader, r *bufio.Reader) (string, error) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		data, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", errors.NewInvalidRequestError("failed to read password", err.Error())
		}
		return string(data), nil
	}
	return readLine(r)
}
