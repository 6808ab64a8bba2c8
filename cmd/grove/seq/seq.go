// Package seqcmder provides the seq command for inspecting and drawing from
// the id sequences.
package seqcmder

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/cmd/grove/session"
	"github.com/papercomputeco/grove/pkg/cliui"
	"github.com/papercomputeco/grove/pkg/sequence"
)

const seqLongDesc string = `Inspect and draw from the id sequences.

Sequences hand out the artifact, attribute, relation, gamma, transaction
and branch ids. The stored value is the highest id claimed by any process,
so it can run ahead of the ids actually used. "next" reports on stderr how
many storage round trips and lost compare-and-swap races the allocation
took, and the size of the last claimed range.

Examples:
  grove seq list
  grove seq next ART_ID --count 3
  grove seq init REPORT_ID 1000`

const seqShortDesc string = "Inspect and draw from the id sequences"

func NewSeqCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seq",
		Short: seqShortDesc,
		Long:  seqLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newNextCmd())
	cmd.AddCommand(newInitCmd())

	return cmd
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every sequence and its stored value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := session.Open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			w := cmd.OutOrStdout()
			for _, name := range sequence.Names {
				v, err := s.Engine.Storage.ReadSequence(cmd.Context(), name)
				if err != nil {
					return fmt.Errorf("reading %s: %w", name, err)
				}
				fmt.Fprintf(w, "%-16s %d\n", name, v)
			}
			return nil
		},
	}

	session.AddFlags(cmd)
	return cmd
}

func newNextCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:       "next <sequence>",
		Short:     "Allocate ids from a sequence",
		Args:      cobra.ExactArgs(1),
		ValidArgs: sequence.Names,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}

			s, err := session.Open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			w := cmd.OutOrStdout()
			for range count {
				id, err := s.Engine.IDs.Next(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(w, strconv.FormatInt(id, 10))
			}

			stats, err := sequence.GatherStats(s.Engine.Metrics, args[0])
			if err != nil {
				return err
			}
			errw := cmd.ErrOrStderr()
			cliui.Field(errw, "prefetch", stats.Prefetch)
			cliui.Field(errw, "round trips", stats.RoundTrips)
			cliui.Field(errw, "cas conflicts", stats.CASConflicts)
			return nil
		},
	}

	session.AddFlags(cmd)
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of ids to allocate")
	return cmd
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init <sequence> <start>",
		Short: "Create a sequence whose first id is start+1",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid start %q: %w", args[1], err)
			}

			s, err := session.Open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Engine.IDs.Initialize(cmd.Context(), args[0], start); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Created sequence %s at %d\n", cliui.SuccessMark, cliui.KeyStyle.Render(args[0]), start)
			return nil
		},
	}

	session.AddFlags(cmd)
	return cmd
}
