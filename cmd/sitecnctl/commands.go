package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sitecnd/pkg/types"
)

type client struct {
	base string
	http *http.Client
}

func newRootCmd() *cobra.Command {
	var addr string
	c := &client{http: http.DefaultClient}
	root := &cobra.Command{
		Use:           "sitecnctl",
		Short:         "Client for the sitecnd daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.base = baseURL(addr)
		},
	}
	root.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:8790", "Daemon address (host:port or URL)")
	root.AddCommand(newSendCmd(c), newWatchCmd(c), newStatusCmd(c))
	return root
}

func baseURL(addr string) string {
	addr = strings.TrimRight(addr, "/")
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

func newSendCmd(c *client) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:     "send <kind> [payload-json]",
		Short:   "Send one message and print the reply",
		Example: "  sitecnctl send requestModelStatus\n  sitecnctl send generateSiteCss '{\"domain\":\"example.com\"}'",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := types.Message{Kind: types.Kind(args[0]), Origin: "cli"}
			if len(args) == 2 {
				if !json.Valid([]byte(args[1])) {
					return fmt.Errorf("payload is not valid JSON")
				}
				msg.Payload = json.RawMessage(args[1])
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return c.send(ctx, msg, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")
	return cmd
}

func newWatchCmd(c *client) *cobra.Command {
	var subscriber string
	var kinds []string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print broadcast events as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.watch(cmd.Context(), subscriber, kinds, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&subscriber, "subscriber", "", "Register as a side panel subscriber with this id")
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "Only print these kinds")
	return cmd
}

func newStatusCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, c.base+"/v1/status", nil)
			if err != nil {
				return err
			}
			resp, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			return copyResponse(resp, cmd.OutOrStdout())
		},
	}
}

func (c *client) send(ctx context.Context, msg types.Message, out io.Writer) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return copyResponse(resp, out)
}

func (c *client) watch(ctx context.Context, subscriber string, kinds []string, out io.Writer) error {
	u := c.base + "/v1/events"
	if subscriber != "" {
		u += "?subscriber=" + url.QueryEscape(subscriber)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return copyResponse(resp, out)
	}
	want := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(want) > 0 {
			var head struct {
				Kind string `json:"kind"`
			}
			if json.Unmarshal(line, &head) != nil || !want[head.Kind] {
				continue
			}
		}
		if _, err := fmt.Fprintf(out, "%s\n", line); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return sc.Err()
}

// copyResponse writes the body and turns error statuses into errors.
func copyResponse(resp *http.Response, out io.Writer) error {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		var e types.ErrorResponse
		if json.Unmarshal(b, &e) == nil && e.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, e.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}
	if len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	_, err = fmt.Fprintf(out, "%s\n", bytes.TrimSpace(b))
	return err
}
