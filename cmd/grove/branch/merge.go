package branchcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/cmd/grove/session"
	"github.com/papercomputeco/grove/pkg/cliui"
)

const mergeShortDesc string = "Create a merge branch and merge artifacts from a source into it"

const mergeLongDesc string = `Create a merge branch under the destination for reconciling a source.

The merge branch starts as a fork of the destination. Each --artifact is
then brought over from the source at its current version and committed as
one merge transaction on the merge branch. Without --artifact only the merge
branch is created; artifacts can be merged into it later with
grove artifact introduce --from <source> -b <merge branch>.

Examples:
  grove branch merge feature --into main
  grove branch merge feature --into main --artifact 42 --artifact 43`

func newMergeCmd() *cobra.Command {
	var (
		into      string
		artifacts []int64
		message   string
	)

	cmd := &cobra.Command{
		Use:   "merge <source>",
		Short: mergeShortDesc,
		Long:  mergeLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := session.Open(ctx, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			source, err := s.Branch(args[0])
			if err != nil {
				return err
			}
			dest, err := s.Branch(into)
			if err != nil {
				return err
			}

			b, err := s.Engine.Creator.CreateMerge(ctx, source.ID(), dest.ID(), s.Author)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "  %s Created merge branch %s merging %s into %s\n",
				cliui.SuccessMark,
				cliui.KeyStyle.Render(fmt.Sprintf("%d", b.ID())),
				source.Name(),
				dest.Name(),
			)
			if len(artifacts) == 0 {
				return nil
			}

			if message == "" {
				message = fmt.Sprintf("merge %s into %s", source.Name(), dest.Name())
			}
			ws, err := s.Engine.Coordinator.BeginMerge(b.ID(), s.Author, message)
			if err != nil {
				return err
			}
			if _, err := s.Engine.Coordinator.MergeArtifacts(ctx, ws, artifacts...); err != nil {
				_ = s.Engine.Coordinator.Rollback(ws)
				return err
			}
			rec, err := s.Engine.Coordinator.Commit(ctx, ws)
			if err != nil {
				return err
			}

			fmt.Fprintf(w, "  %s Committed %s transaction %s with %d artifacts\n",
				cliui.SuccessMark,
				rec.Type,
				cliui.KeyStyle.Render(fmt.Sprintf("%d", rec.ID)),
				len(artifacts),
			)
			return nil
		},
	}

	session.AddFlags(cmd)
	cmd.Flags().StringVar(&into, "into", "", "Destination branch (defaults to the checked out branch)")
	cmd.Flags().Int64SliceVarP(&artifacts, "artifact", "a", nil, "Artifact to merge from the source (repeatable)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Merge transaction comment")
	return cmd
}
