package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func listCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show the extension catalog",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.Manager.Refresh(cmd.Context()); err != nil {
				return err
			}
			printTree(cmd.OutOrStdout(), a.Tree, a.Tree.Branches())
			return nil
		},
	}
}

func updateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Install every extension with a newer version available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Manager.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			if report.Advisory != "" {
				// already printed by the notifier
				return nil
			}

			// With auto_update on, the refresh already swept.
			res := a.Manager.LastReport().Sweep
			if len(res.Applied) == 0 && len(res.Failed) == 0 {
				res = a.Manager.Update(cmd.Context())
			}

			out := cmd.OutOrStdout()
			switch {
			case res.Outdated == 0:
				fmt.Fprintln(out, color.GreenString("All extensions are up to date."))
			default:
				fmt.Fprintf(out, "%d updated, %d failed\n", len(res.Applied), len(res.Failed))
			}
			if len(res.Failed) > 0 {
				return fmt.Errorf("%d extension(s) failed to update", len(res.Failed))
			}
			return nil
		},
	}
}
