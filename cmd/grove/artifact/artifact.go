// Package artifactcmder provides the artifact command. Each mutating
// subcommand runs in its own transaction on the target branch.
package artifactcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/cmd/grove/session"
	"github.com/papercomputeco/grove/pkg/artifact"
	"github.com/papercomputeco/grove/pkg/cliui"
	"github.com/papercomputeco/grove/pkg/txn"
)

const artifactLongDesc string = `Create, inspect and edit artifacts.

Every mutating subcommand opens a transaction on the target branch (the
checked out branch unless --branch is given), applies its edits and commits.
Attributes are given as Type=Value pairs.

Examples:
  grove artifact create "Login" -t Requirement -a "Priority=high" -a "Description=Users sign in"
  grove artifact show 42
  grove artifact update 42 --name "Sign in" -a "Priority=low"
  grove artifact relate 7 42
  grove artifact copy 42 --from main
  grove artifact introduce 42 --from main
  grove artifact delete 42`

const artifactShortDesc string = "Create, inspect and edit artifacts"

func NewArtifactCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifact",
		Short: artifactShortDesc,
		Long:  artifactLongDesc,
	}

	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newRelateCmd())
	cmd.AddCommand(newCopyCmd())
	cmd.AddCommand(newIntroduceCmd())

	return cmd
}

// txFlags are shared by every subcommand that commits.
type txFlags struct {
	branch  string
	message string
}

func addTxFlags(cmd *cobra.Command) *txFlags {
	f := &txFlags{}
	session.AddFlags(cmd)
	cmd.Flags().StringVarP(&f.branch, "branch", "b", "", "Branch to edit (defaults to the checked out branch)")
	cmd.Flags().StringVarP(&f.message, "message", "m", "", "Transaction comment")
	return f
}

// transact opens a session, runs fn in a working set on the target branch and
// commits it.
func transact(cmd *cobra.Command, f *txFlags, fn func(*session.Session, *txn.WorkingSet) error) error {
	ctx := cmd.Context()

	s, err := session.Open(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	b, err := s.Branch(f.branch)
	if err != nil {
		return err
	}

	ws, err := s.Engine.Coordinator.Begin(b.ID(), s.Author, f.message)
	if err != nil {
		return err
	}

	if err := fn(s, ws); err != nil {
		_ = s.Engine.Coordinator.Rollback(ws)
		return err
	}

	rec, err := s.Engine.Coordinator.Commit(ctx, ws)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "  %s Committed transaction %s on %s\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(fmt.Sprintf("%d", rec.ID)),
		b.Name(),
	)
	return nil
}

// parseAttrs splits Type=Value pairs.
func parseAttrs(pairs []string) ([][2]string, error) {
	out := make([][2]string, 0, len(pairs))
	for _, p := range pairs {
		typ, value, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(typ) == "" {
			return nil, fmt.Errorf("attribute %q is not Type=Value", p)
		}
		out = append(out, [2]string{strings.TrimSpace(typ), value})
	}
	return out, nil
}

func printArtifact(w io.Writer, a *artifact.Artifact, relations []*artifact.Relation) {
	title := fmt.Sprintf("%d %s", a.ID, a.Name())
	if a.IsDeleted() {
		title += " " + cliui.DimStyle.Render("(deleted)")
	}
	fmt.Fprintf(w, "\n  %s\n\n", cliui.KeyStyle.Render(title))

	cliui.Field(w, "type", a.Type)
	cliui.Field(w, "guid", a.GUID)
	cliui.Field(w, "branch", a.BranchID)
	cliui.Field(w, "transaction", a.TransactionID)
	cliui.Field(w, "gamma", a.GammaID)
	cliui.Field(w, "mod", a.ModType)

	for _, attr := range a.AllAttributes() {
		if attr.IsDeleted() {
			continue
		}
		cliui.Field(w, attr.Type, cliui.ValueStyle.Render(attr.Value()))
	}

	for _, r := range relations {
		if r.IsDeleted() {
			continue
		}
		line := r.Key().String()
		if r.Rationale() != "" {
			line += " " + cliui.DimStyle.Render(r.Rationale())
		}
		cliui.Field(w, "relation", line)
	}
	fmt.Fprintln(w)
}
