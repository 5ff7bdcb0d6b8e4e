package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/banshee-data/scanwedge/internal/api"
)

const ctlUsage = `usage: scanwedge ctl [-addr host:port] <command>

commands:
  status              show modes and session counters
  scan [on|off]       toggle or set scanning
  debug [on|off]      toggle or set debug mode
  baud [index]        move to the next candidate baud, or to index
  scans [limit]       list recent scans, newest first
`

var errUsage = errors.New("invalid ctl arguments")

// runCtl drives a running wedge through its API. args excludes "ctl".
func runCtl(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("ctl", flag.ContinueOnError)
	fs.SetOutput(out)
	addr := fs.String("addr", "localhost:8090", "API address of the running wedge")
	timeout := fs.Duration("timeout", 5*time.Second, "Request timeout")
	fs.Usage = func() { fmt.Fprint(out, ctlUsage) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	return ctlCommand(ctx, api.NewClient(*addr, nil), fs.Args(), out)
}

func ctlCommand(ctx context.Context, c *api.Client, args []string, out io.Writer) error {
	cmd, rest := args[0], args[1:]
	if len(rest) > 1 {
		return fmt.Errorf("%s: too many arguments: %w", cmd, errUsage)
	}
	arg := ""
	if len(rest) == 1 {
		arg = rest[0]
	}

	switch cmd {
	case "status":
		if arg != "" {
			return fmt.Errorf("status takes no arguments: %w", errUsage)
		}
		st, err := c.Status(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, st)
	case "scan", "debug":
		enabled, err := parseSwitch(arg)
		if err != nil {
			return err
		}
		set := c.SetScanning
		if cmd == "debug" {
			set = c.SetDebug
		}
		m, err := set(ctx, enabled)
		if err != nil {
			return err
		}
		printModes(out, m)
		return nil
	case "baud":
		var index *int
		if arg != "" {
			i, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("baud index %q: %w", arg, errUsage)
			}
			index = &i
		}
		m, err := c.SetBaud(ctx, index)
		if err != nil {
			return err
		}
		printModes(out, m)
		return nil
	case "scans":
		limit := 20
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n <= 0 {
				return fmt.Errorf("scans limit %q: %w", arg, errUsage)
			}
			limit = n
		}
		scans, err := c.Scans(ctx, limit)
		if err != nil {
			return err
		}
		for _, s := range scans {
			fmt.Fprintln(out, s.String())
		}
		return nil
	}
	return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
}

// parseSwitch maps "" to nil (toggle) and on/off to a value.
func parseSwitch(arg string) (*bool, error) {
	switch arg {
	case "":
		return nil, nil
	case "on", "true", "1":
		v := true
		return &v, nil
	case "off", "false", "0":
		v := false
		return &v, nil
	}
	return nil, fmt.Errorf("expected on or off, got %q: %w", arg, errUsage)
}

func printModes(out io.Writer, m api.Modes) {
	fmt.Fprintf(out, "scanning=%t debug=%t baud=%d (index %d)\n", m.Scanning, m.Debug, m.BaudRate, m.BaudIndex)
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
