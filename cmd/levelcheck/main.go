// Command levelcheck checks level files without starting the server.
//
//	levelcheck validate            # every level in ./levels
//	levelcheck --dir other validate a.json
//	levelcheck analyze intro.json  # route length against the timer
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/chipgrid/game/engine"
	"github.com/wricardo/chipgrid/validate"
)

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "levelcheck",
		Usage:  "validate and analyze chipgrid level files",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Value:   "levels",
				Usage:   "level directory holding rules.yaml and *.json levels",
				Sources: cli.EnvVars("CONFIG_DIR", "CHIPGRID_LEVELS_DIR"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "check structure, playability and reachability",
				ArgsUsage: "[level.json...]",
				Action:    runValidate,
			},
			{
				Name:      "analyze",
				Usage:     "estimate the collection route against the level timer",
				ArgsUsage: "[level.json...]",
				Action:    runAnalyze,
			},
		},
	}
}

// levelFiles resolves the arguments against dir; no arguments means every
// level in dir.
func levelFiles(dir string, args []string) ([]string, error) {
	if len(args) == 0 {
		files, err := filepath.Glob(filepath.Join(dir, "*.json"))
		if err != nil {
			return nil, err
		}
		sort.Strings(files)
		return files, nil
	}

	files := make([]string, 0, len(args))
	for _, arg := range args {
		if !strings.HasSuffix(arg, ".json") {
			arg += ".json"
		}
		if _, err := os.Stat(arg); err != nil && !filepath.IsAbs(arg) {
			arg = filepath.Join(dir, arg)
		}
		files = append(files, arg)
	}
	return files, nil
}

func runValidate(_ context.Context, cmd *cli.Command) error {
	dir := cmd.String("dir")
	rules, err := engine.LoadRules(filepath.Join(dir, "rules.yaml"))
	if err != nil {
		return err
	}
	files, err := levelFiles(dir, cmd.Args().Slice())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no level files found in %s", dir)
	}

	results := make([]validate.Result, 0, len(files))
	for _, file := range files {
		results = append(results, validate.CheckFile(file, rules))
	}
	if !validate.WriteReport(cmd.Root().Writer, results) {
		return cli.Exit("", 1)
	}
	return nil
}

func runAnalyze(_ context.Context, cmd *cli.Command) error {
	dir := cmd.String("dir")
	rules, err := engine.LoadRules(filepath.Join(dir, "rules.yaml"))
	if err != nil {
		return err
	}
	files, err := levelFiles(dir, cmd.Args().Slice())
	if err != nil {
		return err
	}

	out := cmd.Root().Writer
	for _, file := range files {
		fmt.Fprintf(out, "\n=== Analyzing %s ===\n", filepath.Base(file))
		analyzeFile(out, file, rules)
	}
	return nil
}

func analyzeFile(out io.Writer, path string, rules engine.Rules) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(out, "Error reading file: %v\n", err)
		return
	}
	level, _, err := engine.Deserialize(data, rules)
	if err != nil {
		fmt.Fprintf(out, "Error parsing level: %v\n", err)
		return
	}
	player := level.Player()
	if player == nil {
		fmt.Fprintln(out, "No player on this level")
		return
	}

	fmt.Fprintf(out, "Name: %s\n", level.Name)
	fmt.Fprintf(out, "Grid: %dx%d\n", level.Grid.Width(), level.Grid.Height())
	fmt.Fprintf(out, "Player: %s\n", player.Pos)

	exits := engine.FindTiles(level, engine.TileExit)
	for _, exit := range exits {
		fmt.Fprintf(out, "  Exit at %s: Manhattan distance %d\n", exit, engine.ManhattanDistance(player.Pos, exit))
	}

	route := validate.PlanRoute(level)
	fmt.Fprintf(out, "Route: %d steps, ~%d ticks\n", route.Steps, route.Ticks)
	if route.BudgetTick > 0 {
		slack := route.BudgetTick - route.Ticks
		fmt.Fprintf(out, "Timer: %ds = %d ticks, slack %d\n", level.Timer, route.BudgetTick, slack)
		if slack < 0 {
			fmt.Fprintln(out, "  ⚠️  route does not fit in the timer")
		}
	} else {
		fmt.Fprintln(out, "Timer: none")
	}
	for _, m := range route.Missing {
		fmt.Fprintf(out, "  ⚠️  unreachable: %s\n", m)
	}
	if threat := engine.ThreatLevel(level); threat != "" {
		fmt.Fprintf(out, "Threat at start: %s\n", threat)
	}
}
