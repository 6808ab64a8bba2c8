package artifactcmder

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/grove/cmd/grove/session"
	"github.com/papercomputeco/grove/pkg/txn"
)

func newUpdateCmd() *cobra.Command {
	var (
		name    string
		attrs   []string
		removes []string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename an artifact or change its attributes",
		Args:  cobra.ExactArgs(1),
	}
	f := addTxFlags(cmd)

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return err
		}
		pairs, err := parseAttrs(attrs)
		if err != nil {
			return err
		}
		if name == "" && len(pairs) == 0 && len(removes) == 0 {
			return errors.New("nothing to update: pass --name, --attr or --remove")
		}

		return transact(cmd, f, func(s *session.Session, ws *txn.WorkingSet) error {
			a, err := s.Engine.Coordinator.GetForWrite(cmd.Context(), ws, id)
			if err != nil {
				return err
			}
			if name != "" {
				a.SetName(name)
			}
			for _, typ := range removes {
				a.DeleteAttributes(typ)
			}
			for _, p := range pairs {
				at, err := s.Engine.Registry.AttributeType(p[0])
				if err != nil {
					return err
				}
				if at.Max == 1 {
					err = a.SetSoleAttribute(s.Engine.Registry, p[0], p[1])
				} else {
					_, err = a.AddAttribute(s.Engine.Registry, p[0], p[1])
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	}

	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringArrayVarP(&attrs, "attr", "a", nil, "Set a single-valued attribute or add a value, as Type=Value (repeatable)")
	cmd.Flags().StringArrayVar(&removes, "remove", nil, "Delete every value of an attribute type (repeatable)")
	return cmd
}
