package branchcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/cmd/grove/session"
	"github.com/papercomputeco/grove/pkg/cliui"
	"github.com/papercomputeco/grove/pkg/dotdir"
)

const checkoutShortDesc string = "Set the default branch for artifact commands"

func newCheckoutCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "checkout <branch>",
		Short: checkoutShortDesc,
		Args: func(cmd *cobra.Command, args []string) error {
			if reset {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if reset {
				configDir, _ := cmd.Flags().GetString("config-dir")
				if err := dotdir.NewManager().ClearCheckout(configDir); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s Cleared checkout, commands default to the root branch\n", cliui.SuccessMark)
				return nil
			}

			s, err := session.Open(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			b, err := s.Branch(args[0])
			if err != nil {
				return err
			}

			state := &dotdir.CheckoutState{BranchID: b.ID(), BranchName: b.Name()}
			if err := dotdir.NewManager().SaveCheckout(state, s.ConfigDir); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "  %s Checked out %s %s\n",
				cliui.SuccessMark,
				cliui.KeyStyle.Render(fmt.Sprintf("%d", b.ID())),
				b.Name(),
			)
			return nil
		},
	}

	session.AddFlags(cmd)
	cmd.Flags().BoolVar(&reset, "clear", false, "Forget the checked out branch")
	return cmd
}
