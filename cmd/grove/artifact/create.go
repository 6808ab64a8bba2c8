package artifactcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/cmd/grove/session"
	"github.com/papercomputeco/grove/pkg/cliui"
	"github.com/papercomputeco/grove/pkg/engine"
	"github.com/papercomputeco/grove/pkg/txn"
)

func newCreateCmd() *cobra.Command {
	var (
		typ    string
		attrs  []string
		parent int64
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an artifact",
		Args:  cobra.ExactArgs(1),
	}
	f := addTxFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		pairs, err := parseAttrs(attrs)
		if err != nil {
			return err
		}

		return transact(cmd, f, func(s *session.Session, ws *txn.WorkingSet) error {
			ctx := cmd.Context()

			a, err := s.Engine.Coordinator.CreateArtifact(ctx, ws, typ, args[0])
			if err != nil {
				return err
			}
			for _, p := range pairs {
				if _, err := a.AddAttribute(s.Engine.Registry, p[0], p[1]); err != nil {
					return err
				}
			}
			if parent != 0 {
				if _, err := s.Engine.Coordinator.Relate(ctx, ws, engine.RelHierarchy, parent, a.ID, ""); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Created artifact %s %s\n",
				cliui.SuccessMark,
				cliui.KeyStyle.Render(fmt.Sprintf("%d", a.ID)),
				a.Name(),
			)
			return nil
		})
	}

	cmd.Flags().StringVarP(&typ, "type", "t", engine.TypeFolder, "Artifact type")
	cmd.Flags().StringArrayVarP(&attrs, "attr", "a", nil, "Attribute as Type=Value (repeatable)")
	cmd.Flags().Int64Var(&parent, "parent", 0, "Place the artifact under this parent in the default hierarchy")
	return cmd
}
