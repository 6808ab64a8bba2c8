package branchcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/cmd/grove/session"
	"github.com/papercomputeco/grove/pkg/branch"
	"github.com/papercomputeco/grove/pkg/cliui"
)

const listShortDesc string = "Show the branch hierarchy"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := session.Open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			current, err := s.Branch("")
			if err != nil {
				return err
			}
			return printTree(cmd.OutOrStdout(), s, s.Root, current.ID(), 0)
		},
	}

	session.AddFlags(cmd)
	return cmd
}

func printTree(w io.Writer, s *session.Session, b *branch.Branch, current int64, depth int) error {
	mark := " "
	if b.ID() == current {
		mark = "*"
	}

	line := fmt.Sprintf("%s %s%s %s",
		mark,
		strings.Repeat("  ", depth),
		cliui.KeyStyle.Render(fmt.Sprintf("%d", b.ID())),
		b.Name(),
	)
	details := []string{b.Type().String(), b.State().String()}
	if b.IsArchived() {
		details = append(details, "archived")
	}
	if aliases := b.Aliases(); len(aliases) > 0 {
		details = append(details, "aliases: "+strings.Join(aliases, ", "))
	}
	if src, dst, ok := b.MergeBranches(); ok {
		details = append(details, fmt.Sprintf("merges %d into %d", src, dst))
	}
	fmt.Fprintf(w, "%s %s\n", line, cliui.DimStyle.Render("("+strings.Join(details, ", ")+")"))

	children, err := s.Engine.Branches.Children(b.ID())
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := printTree(w, s, child, current, depth+1); err != nil {
			return err
		}
	}
	return nil
}
