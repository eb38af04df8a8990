package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/extsync/internal/app"
	"github.com/GriffinCanCode/extsync/internal/domain/install"
)

// withCatalog builds the app and the catalog before fn runs; extension ids
// resolve against the catalog only.
func withCatalog(cmd *cobra.Command, flags *rootFlags, fn func(a *app.App) error) error {
	ctx := cmd.Context()
	a, err := newApp(cmd, flags)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.Manager.Refresh(ctx); err != nil {
		return err
	}
	return fn(a)
}

func installCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "install <publisher.name>",
		Short: "Install or update an extension from the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, flags, func(a *app.App) error {
				_, err := a.Manager.Install(cmd.Context(), args[0])
				return err
			})
		},
	}
}

func uninstallCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <publisher.name>",
		Short: "Remove an installed extension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, flags, func(a *app.App) error {
				_, err := a.Manager.Uninstall(cmd.Context(), args[0])
				return err
			})
		},
	}
}

func detailsCmd(flags *rootFlags) *cobra.Command {
	var html bool

	cmd := &cobra.Command{
		Use:   "details <publisher.name>",
		Short: "Show an extension's manifest and readme",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(cmd, flags, func(a *app.App) error {
				d, err := a.Manager.Details(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printDetails(cmd.OutOrStdout(), d, html)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&html, "html", false, "Print the rendered readme and changelog")
	return cmd
}

func printDetails(w io.Writer, d *install.Details, html bool) {
	title := d.DisplayName
	if title == "" {
		title = d.Name
	}
	fmt.Fprintf(w, "%s %s\n", color.CyanString(title), color.HiBlackString("%s.%s@%s", d.Publisher, d.Name, d.Version))
	if d.Description != "" {
		fmt.Fprintln(w, d.Description)
	}
	if len(d.Categories) > 0 {
		fmt.Fprintf(w, "Categories: %s\n", strings.Join(d.Categories, ", "))
	}
	if engine, ok := d.Engines["vscode"]; ok {
		fmt.Fprintf(w, "Engine:     vscode %s\n", engine)
	}
	if d.Repository != "" {
		fmt.Fprintf(w, "Repository: %s\n", d.Repository)
	}
	fmt.Fprintf(w, "Size:       %d bytes\n", d.Size)
	fmt.Fprintf(w, "Status:     %s\n", d.Identity.Status)

	if html {
		if d.Readme != "" {
			fmt.Fprintf(w, "\n%s\n", d.Readme)
		}
		if d.Changelog != "" {
			fmt.Fprintf(w, "\n%s\n", d.Changelog)
		}
	}
}
