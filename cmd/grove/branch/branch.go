// Package branchcmder provides the branch command for listing, forking,
// checking out, merging and archiving branches.
package branchcmder

import (
	"github.com/spf13/cobra"
)

const branchLongDesc string = `Work with the branch hierarchy.

Every branch forks from its parent's latest transaction. Commands that take
a branch accept its id, one of its aliases or its name. The checked out
branch is the default for artifact commands.

Examples:
  grove branch list
  grove branch create feature --alias feat
  grove branch checkout feat
  grove branch merge feat --into 1
  grove branch archive feat`

const branchShortDesc string = "Work with the branch hierarchy"

func NewBranchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "branch",
		Short: branchShortDesc,
		Long:  branchLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newCheckoutCmd())
	cmd.AddCommand(newMergeCmd())
	cmd.AddCommand(newArchiveCmd())

	return cmd
}
