// Package grovecmder
package grovecmder

import (
	"github.com/spf13/cobra"

	artifactcmder "github.com/papercomputeco/grove/cmd/grove/artifact"
	branchcmder "github.com/papercomputeco/grove/cmd/grove/branch"
	configcmder "github.com/papercomputeco/grove/cmd/grove/config"
	initcmder "github.com/papercomputeco/grove/cmd/grove/init"
	joincmder "github.com/papercomputeco/grove/cmd/grove/join"
	seqcmder "github.com/papercomputeco/grove/cmd/grove/seq"
	versioncmder "github.com/papercomputeco/grove/cmd/version"
)

const groveLongDesc string = `Grove is a branched, transactional artifact graph store.

Artifacts, their attributes and the typed relations between them are
versioned per branch. Every edit happens in a transaction that commits
atomically to one branch.

Get started with:
  grove init                         Create a local .grove/ directory and store
  grove branch create feature        Fork a branch from the checked out one
  grove artifact create -t Folder    Create an artifact in a transaction
  grove branch list                  Show the branch hierarchy`

const groveShortDesc string = "Grove - branched artifact graph store"

func NewGroveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "grove",
		Short:         groveShortDesc,
		Long:          groveLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .grove/ directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(branchcmder.NewBranchCmd())
	cmd.AddCommand(artifactcmder.NewArtifactCmd())
	cmd.AddCommand(seqcmder.NewSeqCmd())
	cmd.AddCommand(joincmder.NewJoinCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
