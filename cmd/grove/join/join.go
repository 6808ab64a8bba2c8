// Package joincmder provides the join command for maintaining staged join
// sets.
package joincmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/cmd/grove/session"
	"github.com/papercomputeco/grove/pkg/cliui"
	"github.com/papercomputeco/grove/pkg/config"
)

const joinLongDesc string = `Maintain staged join sets.

Bulk loads stage their id sets in the join tables and delete them when the
query finishes. Sets left behind by crashed processes are removed by sweep
once they are older than joinset.max_age.

Examples:
  grove join sweep
  grove join sweep --max-age 10m`

const joinShortDesc string = "Maintain staged join sets"

func NewJoinCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join",
		Short: joinShortDesc,
		Long:  joinLongDesc,
	}

	cmd.AddCommand(newSweepCmd())
	return cmd
}

func newSweepCmd() *cobra.Command {
	var maxAge string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete abandoned join sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := session.Open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			age, err := s.Config.JoinSet.MaxAgeDuration()
			if err != nil {
				return err
			}

			var removed int
			err = cliui.Step(cmd.OutOrStdout(), fmt.Sprintf("Sweeping join sets older than %s", age), func() error {
				removed, err = s.Engine.Sweeper.Sweep(cmd.Context(), age)
				return err
			})
			if err != nil {
				return err
			}

			cliui.Field(cmd.OutOrStdout(), "removed", removed)
			return nil
		},
	}

	session.AddFlags(cmd)
	config.AddStringFlag(cmd, config.Registry, config.FlagJoinMaxAge, &maxAge)
	return cmd
}
