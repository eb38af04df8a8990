package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func tokenCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the registry access token",
	}
	cmd.AddCommand(tokenSetCmd(flags), tokenClearCmd(flags))
	return cmd
}

func tokenSetCmd(flags *rootFlags) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the GitLab access token",
		Long: `Store the GitLab access token used for every registry request. The token
is read from stdin unless --token is given, so it stays out of shell history.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("token") {
				fmt.Fprint(cmd.ErrOrStderr(), "GitLab Access Token: ")
				var err error
				token, err = readLine(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}

			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Manager.SetToken(cmd.Context(), token)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Token value (read from stdin when omitted)")
	return cmd
}

func tokenClearCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Manager.ClearToken(cmd.Context())
		},
	}
}

func readLine(r io.Reader) (string, error) {
	sc := bufio.NewScanner(r)
	if sc.Scan() {
		return strings.TrimSpace(sc.Text()), nil
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return "", nil
}
