package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd(root *rootOptions) *cobra.Command {
	var (
		username      string
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the credential",
		Long: `Log in with a username and password and store the returned
access/refresh token pair.

Examples:
  authclient login -u alice --password-stdin < password.txt
  echo "$PASSWORD" | authclient login -u alice --password-stdin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" {
				return errors.New("--username is required")
			}
			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password from stdin: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errors.New("a password is required; use --password-stdin")
			}

			return withSession(cmd, root, func(ctx context.Context, s *session) error {
				pair, err := s.client.Login(ctx, map[string]string{
					"username": username,
					"password": password,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s", s.cfg.BaseURL, username)
				if pair.ExpiresIn > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "; access token expires in %ds", pair.ExpiresIn)
				}
				fmt.Fprintln(cmd.OutOrStdout())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (visible in the process list; prefer --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}
