package artifactcmder

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/cmd/grove/session"
	"github.com/papercomputeco/grove/pkg/artifact"
	"github.com/papercomputeco/grove/pkg/cliui"
	"github.com/papercomputeco/grove/pkg/txn"
)

// bringFunc applies a source branch's view to the working set.
type bringFunc func(ctx context.Context, c *txn.Coordinator, ws *txn.WorkingSet, view *artifact.Artifact) (*artifact.Artifact, error)

func newCopyCmd() *cobra.Command {
	var (
		attrTypes []string
		introduce bool
	)

	cmd := newBringCmd("copy <id>", "Copy an artifact from another branch under a new id",
		func(ctx context.Context, c *txn.Coordinator, ws *txn.WorkingSet, view *artifact.Artifact) (*artifact.Artifact, error) {
			if introduce {
				return c.Introduce(ctx, ws, view)
			}
			return c.Copy(ctx, ws, view, attrTypes...)
		})

	cmd.Flags().StringArrayVar(&attrTypes, "attr-type", nil, "Only copy these attribute types (repeatable)")
	cmd.Flags().BoolVar(&introduce, "introduce", false, "Keep the artifact's identity, like grove artifact introduce")
	return cmd
}

func newIntroduceCmd() *cobra.Command {
	return newBringCmd("introduce <id>", "Bring another branch's version of an artifact, keeping its id",
		func(ctx context.Context, c *txn.Coordinator, ws *txn.WorkingSet, view *artifact.Artifact) (*artifact.Artifact, error) {
			return c.Introduce(ctx, ws, view)
		})
}

func newBringCmd(use, short string, bring bringFunc) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
	}
	f := addTxFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}

		return transact(cmd, f, func(s *session.Session, ws *txn.WorkingSet) error {
			ctx := cmd.Context()

			source, err := s.Branch(from)
			if err != nil {
				return err
			}
			view, err := s.Engine.Coordinator.View(ctx, source.ID(), id)
			if err != nil {
				return err
			}

			a, err := bring(ctx, s.Engine.Coordinator, ws, view)
			if err != nil {
				return err
			}

			verb := "Copied"
			if a.ID == view.ID {
				verb = "Introduced"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s %s artifact %d from %s as %s\n",
				cliui.SuccessMark,
				verb,
				id,
				source.Name(),
				cliui.KeyStyle.Render(fmt.Sprintf("%d", a.ID)),
			)
			return nil
		})
	}

	cmd.Flags().StringVar(&from, "from", "", "Branch to read the artifact from")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}
