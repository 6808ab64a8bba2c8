package artifactcmder

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/cmd/grove/session"
	"github.com/papercomputeco/grove/pkg/txn"
)

func newDeleteCmd() *cobra.Command {
	var undelete bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an artifact and its relations",
		Args:  cobra.ExactArgs(1),
	}
	f := addTxFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}

		return transact(cmd, f, func(s *session.Session, ws *txn.WorkingSet) error {
			if undelete {
				_, err := s.Engine.Coordinator.Undelete(cmd.Context(), ws, id)
				return err
			}
			return s.Engine.Coordinator.Delete(cmd.Context(), ws, id)
		})
	}

	cmd.Flags().BoolVar(&undelete, "undelete", false, "Restore a deleted artifact and its attributes")
	return cmd
}
