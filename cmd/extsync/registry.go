package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/extsync/internal/infrastructure/config"
)

func registryCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage package registry endpoints in the settings file",
	}
	cmd.AddCommand(registryAddCmd(flags), registryRemoveCmd(flags), registryListCmd(flags))
	return cmd
}

func settingsSource(flags *rootFlags) (*config.FileSource, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	return config.NewFileSource(cfg.Storage.SettingsFile), nil
}

func validateEndpoint(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%q is not an absolute http(s) url", raw)
	}
	return raw, nil
}

func registryAddCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "add <url>",
		Short: "Add a package registry URL",
		Long: `Add a package registry URL of the form
https://gitlab.example.com/api/v4/projects/<id>/packages`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, err := validateEndpoint(args[0])
			if err != nil {
				return err
			}
			src, err := settingsSource(flags)
			if err != nil {
				return err
			}

			_, err = src.Update(func(s *config.Settings) {
				s.PackageURLs = addEndpoint(s.PackageURLs, endpoint)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s added %s\n", color.GreenString("✓"), endpoint)
			return nil
		},
	}
}

func registryRemoveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <url>",
		Aliases: []string{"rm"},
		Short:   "Remove a package registry URL",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := settingsSource(flags)
			if err != nil {
				return err
			}

			target := strings.TrimSpace(args[0])
			removed := false
			_, err = src.Update(func(s *config.Settings) {
				s.PackageURLs, removed = removeEndpoint(s.PackageURLs, target)
			})
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%s is not configured", target)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s removed %s\n", color.GreenString("✓"), target)
			return nil
		},
	}
}

func registryListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show configured registry URLs and settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := settingsSource(flags)
			if err != nil {
				return err
			}
			settings, err := src.Current()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Settings file: %s\n", src.Path())
			fmt.Fprintf(out, "Auto update:   %t\n", settings.AutoUpdate)
			if settings.ArtifactPattern != "" {
				fmt.Fprintf(out, "Artifact:      %s\n", settings.ArtifactPattern)
			}
			for _, u := range settings.PackageURLs {
				fmt.Fprintf(out, "  %s\n", u)
			}
			return nil
		},
	}
}

func addEndpoint(urls []string, endpoint string) []string {
	for _, u := range urls {
		if strings.TrimSpace(u) == endpoint {
			return urls
		}
	}
	return append(urls, endpoint)
}

func removeEndpoint(urls []string, endpoint string) ([]string, bool) {
	out := urls[:0:0]
	removed := false
	for _, u := range urls {
		if strings.TrimSpace(u) == endpoint {
			removed = true
			continue
		}
		out = append(out, u)
	}
	return out, removed
}
