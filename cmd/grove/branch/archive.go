package branchcmder

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/cmd/grove/session"
	"github.com/papercomputeco/grove/pkg/branch"
	"github.com/papercomputeco/grove/pkg/cliui"
)

const archiveShortDesc string = "Archive a branch so it can no longer be edited"

func newArchiveCmd() *cobra.Command {
	var restore bool

	cmd := &cobra.Command{
		Use:   "archive <branch>",
		Short: archiveShortDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session.Open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			b, err := s.Branch(args[0])
			if err != nil {
				return err
			}
			if b.Type() == branch.SystemRoot {
				return errors.New("the system root branch cannot be archived")
			}

			b.SetArchived(!restore)
			if err := s.Engine.Branches.Persist(cmd.Context(), s.Engine.Storage); err != nil {
				return err
			}

			verb := "Archived"
			if restore {
				verb = "Restored"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s %s %s %s\n",
				cliui.SuccessMark,
				verb,
				cliui.KeyStyle.Render(fmt.Sprintf("%d", b.ID())),
				b.Name(),
			)
			return nil
		},
	}

	session.AddFlags(cmd)
	cmd.Flags().BoolVar(&restore, "restore", false, "Clear the archived flag instead")
	return cmd
}
