package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/authclient/client"
	"github.com/jonwraymond/authclient/health"
)

func newStatusCmd(root *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored session and store health",
		Long: `Check the stored credential and the credential store.

The credential is degraded when the access token is about to expire or
already expired (the next request refreshes it) and unhealthy when
nothing is stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, root, func(ctx context.Context, s *session) error {
				report := s.checkHealth(ctx)
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					if err := enc.Encode(health.NewReportResponse(report)); err != nil {
						return err
					}
				} else {
					printReport(cmd.OutOrStdout(), s.cfg.BaseURL, s.store.Kind(), report)
				}
				return reportError(report)
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func printReport(w io.Writer, baseURL, storeKind string, report health.Report) {
	fmt.Fprintf(w, "API:     %s\n", baseURL)
	fmt.Fprintf(w, "Store:   %s\n", storeKind)
	fmt.Fprintf(w, "Status:  %s\n\n", report.Status)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tSTATUS\tMESSAGE")
	for _, c := range report.Checks {
		fmt.Fprintf(tw, "%s\t%s\t%s%s\n", c.Name, c.Status, c.Message, formatDetails(c.Details))
	}
	_ = tw.Flush()
}

func formatDetails(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// reportError turns an unhealthy report into the command's error. A missing
// credential maps to client.ErrNoCredential.
func reportError(report health.Report) error {
	if report.Status != health.StatusUnhealthy {
		return nil
	}
	for _, c := range report.Checks {
		if c.Status == health.StatusUnhealthy && errors.Is(c.Error, client.ErrNoCredential) {
			return c.Error
		}
	}
	return fmt.Errorf("status %s", report.Status)
}
