package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/authclient/client"
)

type requestOptions struct {
	data    string
	query   []string
	headers []string
}

func newRequestCmd(root *rootOptions) *cobra.Command {
	opts := &requestOptions{}

	cmd := &cobra.Command{
		Use:   "request METHOD PATH",
		Short: "Send an authenticated request",
		Long: `Send a request with the stored credential and print the response body.

An expired credential is refreshed and the request replayed once. If the
refresh fails the session is cleared and the command exits with code 2.

Examples:
  authclient request GET /api/items -q page=2
  authclient request POST /api/items -d '{"name":"widget"}'
  authclient request PUT /api/items/1 -d @item.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(cmd.InOrStdin(), args[0], args[1], opts)
			if err != nil {
				return err
			}
			return withSession(cmd, root, func(ctx context.Context, s *session) error {
				resp, err := s.client.Do(ctx, req)
				if err != nil {
					var se *client.StatusError
					if errors.As(err, &se) && len(se.Body) > 0 {
						writeBody(cmd.OutOrStdout(), se.Body)
					}
					return err
				}
				writeBody(cmd.OutOrStdout(), resp.Body)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.data, "data", "d", "", "JSON request body; @file reads a file, @- reads stdin")
	cmd.Flags().StringArrayVarP(&opts.query, "query", "q", nil, "query parameter as key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.headers, "header", "H", nil, `header as "Name: value" (repeatable)`)
	return cmd
}

func buildRequest(stdin io.Reader, method, path string, opts *requestOptions) (*client.Request, error) {
	req := &client.Request{Method: strings.ToUpper(method), Path: path}

	if len(opts.query) > 0 {
		req.Query = url.Values{}
		for _, kv := range opts.query {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" {
				return nil, fmt.Errorf("invalid query parameter %q: want key=value", kv)
			}
			req.Query.Add(k, v)
		}
	}

	if len(opts.headers) > 0 {
		req.Header = http.Header{}
		for _, h := range opts.headers {
			k, v, ok := strings.Cut(h, ":")
			if !ok || strings.TrimSpace(k) == "" {
				return nil, fmt.Errorf("invalid header %q: want \"Name: value\"", h)
			}
			req.Header.Add(strings.TrimSpace(k), strings.TrimSpace(v))
		}
	}

	if opts.data != "" {
		body, err := readData(stdin, opts.data)
		if err != nil {
			return nil, err
		}
		if !json.Valid(body) {
			return nil, errors.New("request body is not valid JSON")
		}
		req.Body = body
	}
	return req, nil
}

func readData(stdin io.Reader, data string) ([]byte, error) {
	name, ok := strings.CutPrefix(data, "@")
	if !ok {
		return []byte(data), nil
	}
	if name == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read body from stdin: %w", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}

// writeBody prints body, indented when it is JSON.
func writeBody(w io.Writer, body []byte) {
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		_, _ = w.Write(body)
		if len(body) > 0 && body[len(body)-1] != '\n' {
			fmt.Fprintln(w)
		}
		return
	}
	out.WriteByte('\n')
	_, _ = out.WriteTo(w)
}
