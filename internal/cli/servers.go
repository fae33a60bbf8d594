package cli

import (
	"fmt"
	"strings"

	"github.com/labring/devbox-console/pkg/console"
	"github.com/spf13/cobra"
)

func (a *app) serversCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "servers",
		Aliases: []string{"ls"},
		Short:   "List the servers managed by the host",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc, c, err := a.loggedIn()
			if err != nil {
				return err
			}
			names, err := c.ListTargets(cmd.Context(), sc.Session())
			if err != nil {
				return forget(sc, err)
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func (a *app) execCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <server> <command...>",
		Short: "Send one command line to a server",
		Example: `  devbox-console exec mc say hello
  devbox-console exec mc -- whitelist add steve`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, c, err := a.loggedIn()
			if err != nil {
				return err
			}
			d := console.NewDispatcher(c, sc.Session(), args[0], nil)
			if err := d.Submit(cmd.Context(), strings.Join(args[1:], " ")); err != nil {
				return forget(sc, err)
			}
			return nil
		},
	}
}
