package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/authclient/client"
)

// Exit codes.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error.
	ExitCodeError = 1
	// ExitCodeSessionEnded indicates the session is gone and the user has to
	// log in again.
	ExitCodeSessionEnded = 2
)

// sessionExpiredMessage is shown when a refresh fails or nothing is stored.
const sessionExpiredMessage = "session expired, please log in again"

// streams are the command's standard streams.
type streams struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func newStreams() streams {
	return streams{in: os.Stdin, out: os.Stdout, err: os.Stderr}
}

// rootOptions are the persistent flags.
type rootOptions struct {
	configPath string
	baseURL    string
	storePath  string
	logLevel   string
}

func newRootCmd(s streams) *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "authclient",
		Short: "Call a token-authenticated API",
		Long: `authclient logs in to an API that issues access/refresh token pairs and
sends authenticated requests. When the access token is rejected the
credential is refreshed once and the request replayed; if the refresh
fails the stored session is cleared.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetIn(s.in)
	cmd.SetOut(s.out)
	cmd.SetErr(s.err)

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", os.Getenv("AUTHCLIENT_CONFIG"), "path to the YAML config file")
	flags.StringVar(&opts.baseURL, "base-url", "", "API base URL (overrides the config file)")
	flags.StringVar(&opts.storePath, "store-path", "", "credential file used when no config file is given")
	flags.StringVar(&opts.logLevel, "log-level", "", "log to stderr at this level (debug, info, warn, error)")

	cmd.AddCommand(
		newLoginCmd(opts),
		newRequestCmd(opts),
		newLogoutCmd(opts),
		newStatusCmd(opts),
	)
	return cmd
}

// run executes the CLI and returns the process exit code.
func run(args []string, s streams) int {
	cmd := newRootCmd(s)
	cmd.SetArgs(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitCodeSuccess
	}

	code := exitCode(err)
	if code == ExitCodeSessionEnded {
		fmt.Fprintln(s.err, sessionExpiredMessage)
	} else {
		fmt.Fprintf(s.err, "Error: %v\n", err)
	}
	return code
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, client.ErrSessionEnded), errors.Is(err, client.ErrNoCredential):
		return ExitCodeSessionEnded
	default:
		return ExitCodeError
	}
}
