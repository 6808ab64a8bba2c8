package artifactcmder

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/cmd/grove/session"
	"github.com/papercomputeco/grove/pkg/engine"
	"github.com/papercomputeco/grove/pkg/txn"
)

func newRelateCmd() *cobra.Command {
	var (
		typ       string
		rationale string
		remove    bool
	)

	cmd := &cobra.Command{
		Use:   "relate <a> <b>",
		Short: "Relate artifact a (side A) to artifact b (side B)",
		Args:  cobra.ExactArgs(2),
	}
	f := addTxFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		a, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}
		b, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return err
		}

		return transact(cmd, f, func(s *session.Session, ws *txn.WorkingSet) error {
			if remove {
				return s.Engine.Coordinator.Unrelate(cmd.Context(), ws, typ, a, b)
			}
			_, err := s.Engine.Coordinator.Relate(cmd.Context(), ws, typ, a, b, rationale)
			return err
		})
	}

	cmd.Flags().StringVarP(&typ, "type", "t", engine.RelHierarchy, "Relation type")
	cmd.Flags().StringVar(&rationale, "rationale", "", "Why the artifacts are related")
	cmd.Flags().BoolVar(&remove, "remove", false, "Delete the relation instead")
	return cmd
}
