package artifactcmder

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/cmd/grove/session"
)

func newShowCmd() *cobra.Command {
	var branchRef string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the current version of an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}

			s, err := session.Open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			b, err := s.Branch(branchRef)
			if err != nil {
				return err
			}

			a, err := s.Engine.Coordinator.View(cmd.Context(), b.ID(), id)
			if err != nil {
				return err
			}

			printArtifact(cmd.OutOrStdout(), a, s.Engine.Arena.Graph(b.ID()).Relations(id))
			return nil
		},
	}

	session.AddFlags(cmd)
	cmd.Flags().StringVarP(&branchRef, "branch", "b", "", "Branch to read (defaults to the checked out branch)")
	return cmd
}
