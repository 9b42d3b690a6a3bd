// Command play runs a level in the terminal. The level clock runs on a ticker
// at the rules' ticks per second; key presses only queue input.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/chipgrid/game/config"
	"github.com/wricardo/chipgrid/game/engine"
	"github.com/wricardo/chipgrid/render"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "play a chipgrid level in the terminal",
		ArgsUsage: "[level]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Value:   "levels",
				Usage:   "level directory",
				Sources: cli.EnvVars("CONFIG_DIR", "CHIPGRID_LEVELS_DIR"),
			},
			&cli.DurationFlag{
				Name:  "tick",
				Usage: "wall-clock length of one tick (default: one second / ticks_per_second)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			game, err := loadGame(cmd.String("dir"), cmd.Args().First())
			if err != nil {
				return err
			}
			interval := cmd.Duration("tick")
			if interval <= 0 {
				interval = time.Second / time.Duration(game.Rules().TicksPerSecond)
			}

			screen, err := tcell.NewScreen()
			if err != nil {
				return fmt.Errorf("failed to open terminal: %w", err)
			}
			if err := screen.Init(); err != nil {
				return fmt.Errorf("failed to initialize terminal: %w", err)
			}
			defer screen.Fini()

			return newLoop(screen, game).run(ctx, interval)
		},
	}
}

// loadGame starts an engine on the named level, or on the directory's
// default level when name is empty
func loadGame(dir, name string) (*engine.GameEngine, error) {
	levels, err := config.NewManager(dir)
	if err != nil {
		return nil, err
	}

	var doc *engine.LevelDocument
	if name == "" {
		_, doc = levels.GetDefault()
	} else if doc, err = levels.LoadLevel(name); err != nil {
		return nil, fmt.Errorf("level %q: %w", name, err)
	}

	source, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode level: %w", err)
	}
	return engine.NewEngine(source, levels.Rules())
}

type loop struct {
	screen   tcell.Screen
	game     *engine.GameEngine
	renderer *render.Renderer
}

func newLoop(screen tcell.Screen, game *engine.GameEngine) *loop {
	renderer := render.New(screen)
	game.Subscribe(renderer)
	return &loop{screen: screen, game: game, renderer: renderer}
}

func (l *loop) run(ctx context.Context, interval time.Duration) error {
	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	go l.screen.ChannelEvents(events, quit)
	defer close(quit)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.renderer.Draw(l.game.GetState())
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok || !l.handle(ev) {
				return nil
			}
		case <-ticker.C:
			l.step()
		}
	}
}

// handle applies one terminal event and reports whether to keep running
func (l *loop) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		input := render.ParseKey(ev)
		switch input.Action {
		case render.ActionQuit:
			return false
		case render.ActionReset:
			l.renderer.ClearLog()
			l.game.Reset()
		case render.ActionMove:
			// A full queue or a repeated direction drops the key press
			if err := l.game.QueueInput(input.Direction.String()); err != nil {
				return true
			}
		default:
			return true
		}
	case *tcell.EventResize:
		l.screen.Sync()
	}
	l.renderer.Draw(l.game.GetState())
	return true
}

// step advances the level one tick; a finished level stays frozen on screen
func (l *loop) step() {
	if l.game.IsComplete() || l.game.IsGameOver() {
		return
	}
	l.game.Tick(1)
	l.renderer.Draw(l.game.GetState())
}
