// Package main provides hardstopctl, the command-line client for the
// hardstop daemon's unix-socket control API.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const defaultSocket = "/run/hardstop.sock"

// Exit codes: 0 success, 1 error, 2 cancellation denied.
const (
	exitOK     = 0
	exitError  = 1
	exitDenied = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitError
	}

	socket := os.Getenv("HARDSTOP_SOCKET")
	if socket == "" {
		socket = defaultSocket
	}
	client := newClient(socket)

	var err error
	switch cmd := args[0]; cmd {
	case "arm":
		err = cmdArm(client, args[1:], stdout)
	case "cancel":
		err = cmdCancel(client, args[1:], stdout)
	case "status":
		err = cmdStatus(client, stdout)
	case "events":
		err = cmdEvents(client, args[1:], stdout)
	case "uninstall":
		err = cmdUninstall(client, stdout)
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		usage(stderr)
		return exitError
	}

	switch {
	case err == nil:
		return exitOK
	case err == errDenied:
		fmt.Fprintln(stderr, "cancellation denied: wrong password")
		return exitDenied
	default:
		fmt.Fprintf(stderr, "hardstopctl: %v\n", err)
		return exitError
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: hardstopctl <command> [flags]

Commands:
  arm         arm the shutdown timer (--for 90m | --at 2026-01-02T22:00:00Z)
  cancel      cancel an armed timer (prompts for the password)
  status      show the current timer state
  events      show recent audit-trail events (--limit N)
  uninstall   remove all persisted state (refused while armed)

The daemon socket defaults to /run/hardstop.sock; override with HARDSTOP_SOCKET.
`)
}

// errDenied marks a 403 from the cancel endpoint.
var errDenied = fmt.Errorf("denied")

type client struct {
	http *http.Client
}

func newClient(socket string) *client {
	return &client{
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socket)
				},
			},
		},
	}
}

// do sends one API call. The host in the URL is a placeholder; the
// transport always dials the unix socket.
func (c *client) do(method, path string, reqBody, respBody any) (int, error) {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, "http://hardstop"+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("is hardstopd running? %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

type statusResponse struct {
	State            string  `json:"state"`
	Target           string  `json:"target"`
	RemainingSeconds float64 `json:"remaining_seconds"`
}

type resultResponse struct {
	Result string `json:"result"`
}

func cmdArm(c *client, args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("arm", pflag.ContinueOnError)
	forDur := fs.Duration("for", 0, "arm for a duration from now (e.g. 90m, 2h)")
	at := fs.String("at", "", "arm until an absolute RFC 3339 time")
	password := fs.String("password", "", "cancellation password (prompted if omitted)")
	noPassword := fs.Bool("no-password", false, "arm without a password; any cancel will succeed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if (*forDur == 0) == (*at == "") {
		return fmt.Errorf("specify exactly one of --for or --at")
	}

	secret := *password
	if secret == "" && !*noPassword {
		var err error
		secret, err = promptPassword()
		if err != nil {
			return err
		}
	}

	body := map[string]any{"password": secret}
	if *forDur != 0 {
		body["duration_minutes"] = forDur.Minutes()
	} else {
		target, err := parseTarget(*at)
		if err != nil {
			return err
		}
		body["target"] = target
	}

	var st struct {
		statusResponse
		Error string `json:"error"`
	}
	code, err := c.do(http.MethodPost, "/v1/arm", body, &st)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		if st.Error != "" {
			return fmt.Errorf("%s (HTTP %d)", st.Error, code)
		}
		return fmt.Errorf("unexpected response %d", code)
	}

	fmt.Fprintf(stdout, "armed until %s (%s remaining)\n", st.Target, formatRemaining(st.RemainingSeconds))
	if secret == "" {
		fmt.Fprintln(stdout, "no password set: any cancel request will stop the timer")
	}
	return nil
}

func cmdCancel(c *client, args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("cancel", pflag.ContinueOnError)
	password := fs.String("password", "", "cancellation password (prompted if omitted)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret := *password
	if secret == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		var err error
		secret, err = readPassword("Password: ")
		if err != nil {
			return err
		}
	}

	var res resultResponse
	code, err := c.do(http.MethodPost, "/v1/cancel", map[string]any{"password": secret}, &res)
	if err != nil {
		return err
	}

	switch code {
	case http.StatusOK:
		fmt.Fprintln(stdout, "cancelled")
		return nil
	case http.StatusForbidden:
		return errDenied
	case http.StatusConflict:
		return fmt.Errorf("nothing to cancel: no timer is armed")
	case http.StatusGone:
		return fmt.Errorf("too late: the shutdown already fired")
	default:
		return fmt.Errorf("unexpected response %d (%s)", code, res.Result)
	}
}

func cmdStatus(c *client, stdout io.Writer) error {
	var st statusResponse
	code, err := c.do(http.MethodGet, "/v1/status", nil, &st)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("unexpected response %d", code)
	}

	switch st.State {
	case "armed":
		fmt.Fprintf(stdout, "armed until %s (%s remaining)\n", st.Target, formatRemaining(st.RemainingSeconds))
	default:
		fmt.Fprintln(stdout, st.State)
	}
	return nil
}

func cmdEvents(c *client, args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("events", pflag.ContinueOnError)
	limit := fs.Int("limit", 20, "maximum number of events to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var resp struct {
		Events []struct {
			Kind      string    `json:"kind"`
			Detail    string    `json:"detail"`
			CreatedAt time.Time `json:"created_at"`
		} `json:"events"`
	}
	code, err := c.do(http.MethodGet, fmt.Sprintf("/v1/events?limit=%d", *limit), nil, &resp)
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("unexpected response %d", code)
	}

	for _, e := range resp.Events {
		line := fmt.Sprintf("%s  %s", e.CreatedAt.Local().Format(time.RFC3339), e.Kind)
		if e.Detail != "" {
			line += "  " + e.Detail
		}
		fmt.Fprintln(stdout, line)
	}
	return nil
}

func cmdUninstall(c *client, stdout io.Writer) error {
	var res resultResponse
	code, err := c.do(http.MethodPost, "/v1/uninstall", map[string]any{}, &res)
	if err != nil {
		return err
	}
	switch code {
	case http.StatusOK:
		fmt.Fprintln(stdout, "uninstalled: all persisted state removed")
		return nil
	case http.StatusConflict:
		return fmt.Errorf("a timer is armed; cancel it first")
	default:
		return fmt.Errorf("unexpected response %d", code)
	}
}

// promptPassword reads the arming password twice with echo disabled.
// An empty first entry selects no-password mode.
func promptPassword() (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", fmt.Errorf("stdin is not a terminal; use --password or --no-password")
	}

	first, err := readPassword("Password (empty for none): ")
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", nil
	}

	second, err := readPassword("Confirm password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("passwords do not match")
	}
	return first, nil
}

// parseTarget accepts an RFC 3339 time, or a zone-less timestamp taken
// as local time, and normalizes to RFC 3339 for the API.
func parseTarget(s string) (string, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(time.RFC3339), nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.Local); err == nil {
		return t.Format(time.RFC3339), nil
	}
	return "", fmt.Errorf("--at must be RFC 3339 (2026-01-02T22:00:00Z) or local time (2026-01-02T22:00:00)")
}

func formatRemaining(seconds float64) string {
	return time.Duration(seconds * float64(time.Second)).Round(time.Second).String()
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}
