package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/labring/devbox-console/pkg/console"
	"github.com/spf13/cobra"
)

func (a *app) tailCommand() *cobra.Command {
	var (
		push     bool
		follow   bool
		from     uint64
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "tail <server>",
		Short: "Print a server's output",
		Long: `Print a server's output to stdout, starting at --from.

By default the output is polled like the interactive console does. With
--push the host pushes new output over a websocket instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, c, err := a.loggedIn()
			if err != nil {
				return err
			}
			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if push {
				err := c.Watch(ctx, sc.Session(), args[0], from, func(chunk console.Chunk) error {
					warnGap(errOut, chunk)
					_, err := io.WriteString(out, chunk.Data)
					if !follow && !chunk.More {
						cancel()
					}
					return err
				})
				return forget(sc, err)
			}

			reader := &printingReader{LogReader: c, out: out, errOut: errOut}
			if !follow {
				reader.caughtUp = cancel
			}
			poller := console.NewPoller(reader, sc.Session(), args[0],
				console.NewTranscript(0), console.NewOffsetTracker(from),
				noticePrinter{errOut}, console.PollerConfig{Interval: interval})
			return forget(sc, poller.Run(ctx))
		},
	}

	cmd.Flags().BoolVar(&push, "push", false, "receive output over websocket instead of polling")
	cmd.Flags().BoolVarP(&follow, "follow", "f", true, "keep printing new output; false stops once caught up")
	cmd.Flags().Uint64Var(&from, "from", 0, "stream offset to start at")
	cmd.Flags().DurationVar(&interval, "interval", console.DefaultPollInterval, "poll interval")
	return cmd
}

// printingReader prints every chunk as it is fetched
type printingReader struct {
	console.LogReader
	out, errOut io.Writer
	caughtUp    func()
}

func (r *printingReader) ReadLog(ctx context.Context, s console.Session, target string, offset uint64) (console.Chunk, error) {
	chunk, err := r.LogReader.ReadLog(ctx, s, target, offset)
	if err != nil {
		return chunk, err
	}
	if ctx.Err() == nil {
		warnGap(r.errOut, chunk)
		_, _ = io.WriteString(r.out, chunk.Data)
	}
	if r.caughtUp != nil && !chunk.More {
		r.caughtUp()
	}
	return chunk, nil
}

func warnGap(w io.Writer, chunk console.Chunk) {
	switch {
	case chunk.Reset:
		fmt.Fprintln(w, "-- stream restarted, showing retained output --")
	case chunk.Truncated:
		fmt.Fprintln(w, "-- earlier output was discarded --")
	}
}

// noticePrinter reports transient poll errors on stderr
type noticePrinter struct {
	w io.Writer
}

func (noticePrinter) OnAppend(console.AppendResult) {}

func (p noticePrinter) OnNotice(err error) {
	if stderrors.Is(err, console.ErrStreamReset) || stderrors.Is(err, console.ErrStreamTruncated) {
		// already reported with the chunk
		return
	}
	fmt.Fprintln(p.w, "warning:", describe(err))
}
