package cli

import (
	stderrors "errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/labring/devbox-console/internal/tui"
	"github.com/labring/devbox-console/pkg/console"
	"github.com/spf13/cobra"
)

func (a *app) consoleCommand() *cobra.Command {
	var (
		interval      time.Duration
		transcriptCap int
	)

	cmd := &cobra.Command{
		Use:   "console [server]",
		Short: "Open the interactive console",
		Long: `Open the interactive console. Without a server name the console starts
at the server listing.

The transcript follows new output. While the mouse pointer is over the
transcript it stops scrolling so earlier output can be read; moving the
pointer away resumes following.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, c, err := a.loggedIn()
			if err != nil {
				return err
			}
			if err := sc.Validate(cmd.Context(), c); err != nil {
				return err
			}

			target := ""
			if len(args) == 1 {
				target = args[0]
			}

			model := tui.New(cmd.Context(), tui.Options{
				Backend: c,
				Session: sc,
				Target:  target,
				View: console.ViewConfig{
					TranscriptCap: transcriptCap,
					Poll:          console.PollerConfig{Interval: interval},
				},
			})
			program := tea.NewProgram(model,
				tea.WithAltScreen(),
				tea.WithMouseAllMotion(),
				tea.WithContext(cmd.Context()),
			)
			model.SetSend(program.Send)

			if _, err := program.Run(); err != nil && !stderrors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			if msg := model.ExitMessage(); msg != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), msg)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", console.DefaultPollInterval, "poll interval")
	cmd.Flags().IntVar(&transcriptCap, "scrollback", console.DefaultTranscriptCap, "bytes of output kept on screen")
	return cmd
}
