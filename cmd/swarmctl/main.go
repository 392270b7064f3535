// Command swarmctl drives a running swarmd over HTTP.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/auslab/swarm/internal/api"
	"github.com/auslab/swarm/internal/mission"
	"github.com/auslab/swarm/pkg/core"
)

const usage = `usage: swarmctl [--addr URL] <command> [args]

commands:
  health                 check the daemon is serving state
  state                  print the latest snapshot
  cmd <kind> [json]      submit a command, e.g. cmd goto '{"id":0,"x":1,"y":1,"z":2}'
  mission <plan.json>    run a mission plan ("-" reads stdin)
  mission-status         print mission progress
  mission-cancel         stop the running mission
  pick <x> <y>           pick a ground point through the daemon's camera
  presets                list formation presets
`

func main() {
	addr := pflag.StringP("addr", "a", envOr("SWARM_ADDR", "http://localhost:8080"), "swarmd base URL")
	wait := pflag.BoolP("wait", "w", false, "wait until commands are applied")
	pflag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	pflag.Parse()

	if err := run(api.New(*addr), pflag.Args(), *wait, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "swarmctl: %v\n", err)
		os.Exit(1)
	}
}

func run(c *api.Client, args []string, wait bool, stdin io.Reader, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("no command given\n%s", usage)
	}

	switch args[0] {
	case "health":
		if err := c.Healthcheck(); err != nil {
			return err
		}
		_, err := fmt.Fprintln(out, "ok")
		return err

	case "state":
		s, err := c.State()
		if err != nil {
			return err
		}
		return printJSON(out, s)

	case "cmd":
		if len(args) < 2 {
			return fmt.Errorf("cmd needs a kind")
		}
		var body any
		if len(args) > 2 {
			raw := strings.Join(args[2:], " ")
			if !json.Valid([]byte(raw)) {
				return fmt.Errorf("command body is not valid JSON: %s", raw)
			}
			body = json.RawMessage(raw)
		}
		res, err := c.Command(core.Kind(args[1]), body, wait)
		if err != nil {
			return err
		}
		return printJSON(out, res)

	case "mission":
		if len(args) != 2 {
			return fmt.Errorf("mission needs a plan file")
		}
		data, err := readInput(args[1], stdin)
		if err != nil {
			return err
		}
		plan, err := mission.Decode(data)
		if err != nil {
			return err
		}
		if err := c.RunMission(plan); err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "mission %q queued (%d actions)\n", plan.MissionName, len(plan.Actions))
		return err

	case "mission-status":
		st, err := c.MissionStatus()
		if err != nil {
			return err
		}
		return printJSON(out, st)

	case "mission-cancel":
		cancelled, err := c.CancelMission()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "cancelled: %t\n", cancelled)
		return err

	case "pick":
		if len(args) != 3 {
			return fmt.Errorf("pick needs screen x and y")
		}
		x, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("bad screen x: %w", err)
		}
		y, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return fmt.Errorf("bad screen y: %w", err)
		}
		res, err := c.Pick(api.PickRequest{ScreenX: x, ScreenY: y})
		if err != nil {
			return err
		}
		return printJSON(out, res)

	case "presets":
		presets, err := c.ListPresets()
		if err != nil {
			return err
		}
		return printJSON(out, presets)

	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
