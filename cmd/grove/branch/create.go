package branchcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/cmd/grove/session"
	"github.com/papercomputeco/grove/pkg/branch"
	"github.com/papercomputeco/grove/pkg/cliui"
)

const createShortDesc string = "Fork a new working branch"

func newCreateCmd() *cobra.Command {
	var (
		parent  string
		aliases []string
		comment string
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: createShortDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := session.Open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.Branch(parent)
			if err != nil {
				return err
			}

			b, err := s.Engine.Creator.CreateChild(cmd.Context(), branch.CreateParams{
				ParentID: p.ID(),
				Name:     args[0],
				Author:   s.Author,
				Comment:  comment,
				Aliases:  aliases,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Created branch %s %s from %s\n",
				cliui.SuccessMark,
				cliui.KeyStyle.Render(fmt.Sprintf("%d", b.ID())),
				b.Name(),
				p.Name(),
			)
			return nil
		},
	}

	session.AddFlags(cmd)
	cmd.Flags().StringVar(&parent, "parent", "", "Parent branch (defaults to the checked out branch)")
	cmd.Flags().StringSliceVar(&aliases, "alias", nil, "Alias for the new branch (repeatable)")
	cmd.Flags().StringVarP(&comment, "message", "m", "", "Comment on the baseline transaction")
	return cmd
}
