// Package render draws a running level on a terminal with tcell and turns key
// presses into game input. It reads GameState snapshots and engine events and
// never touches the level directly.
package render

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"

	"github.com/wricardo/chipgrid/game/engine"
)

// Action is what a key press asks the game to do
type Action int

const (
	ActionNone Action = iota
	ActionMove
	ActionReset
	ActionQuit
)

// Input is a decoded key press
type Input struct {
	Action    Action
	Direction engine.Direction
}

// Layout
const (
	gridTop   = 2
	cellWidth = 2
	logLines  = 5
)

var (
	styleBase   = tcell.StyleDefault
	styleHUD    = tcell.StyleDefault.Bold(true)
	styleWall   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleWater  = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	styleIce    = tcell.StyleDefault.Foreground(tcell.ColorAqua)
	styleDirt   = tcell.StyleDefault.Foreground(tcell.ColorOlive)
	styleExit   = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleSocket = tcell.StyleDefault.Foreground(tcell.ColorFuchsia)
	stylePlayer = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleEnemy  = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleChip   = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleDead   = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleWin    = tcell.StyleDefault.Foreground(tcell.ColorGreen)
)

var keyColors = map[engine.KeyColor]tcell.Color{
	engine.KeyRed:    tcell.ColorRed,
	engine.KeyGreen:  tcell.ColorGreen,
	engine.KeyYellow: tcell.ColorYellow,
	engine.KeyBlue:   tcell.ColorBlue,
}

var cornerGlyphs = map[engine.Corner]rune{
	engine.TopLeft:     '┌',
	engine.TopRight:    '┐',
	engine.BottomLeft:  '└',
	engine.BottomRight: '┘',
}

var actorGlyphs = map[string]rune{
	"player":   '@',
	"block":    '■',
	"bug":      'b',
	"pinkball": 'o',
	"frog":     'f',
}

// Renderer draws GameState snapshots and keeps a short log of engine events.
// It implements engine.Listener.
type Renderer struct {
	screen tcell.Screen
	log    []string
}

// New returns a renderer for an initialized screen
func New(screen tcell.Screen) *Renderer {
	return &Renderer{screen: screen}
}

// OnEvent records the event in the log panel
func (r *Renderer) OnEvent(e engine.Event) {
	r.log = append(r.log, FormatEvent(e))
	if len(r.log) > logLines {
		r.log = r.log[len(r.log)-logLines:]
	}
}

// Log returns the most recent event lines, oldest first
func (r *Renderer) Log() []string {
	return append([]string(nil), r.log...)
}

// ClearLog empties the event panel
func (r *Renderer) ClearLog() {
	r.log = nil
}

// Draw renders a full frame: HUD, grid with occupants, status and event log
func (r *Renderer) Draw(state *engine.GameState) {
	r.screen.Clear()
	if state == nil {
		r.text(0, 0, styleBase, "No game state")
		r.screen.Show()
		return
	}

	r.text(0, 0, styleHUD, hud(state))

	for y, row := range state.Grid {
		for x, code := range row {
			glyph, style := TileGlyph(code)
			r.cell(x, y, glyph, style)
		}
	}
	for _, c := range state.Collectibles {
		glyph, style := ItemGlyph(c)
		r.cell(c.Position.X, c.Position.Y, glyph, style)
	}
	for _, a := range state.Actors {
		glyph, style := ActorGlyph(a.Type)
		r.cell(a.Position.X, a.Position.Y, glyph, style)
	}

	line := gridTop + state.Height + 1
	switch {
	case state.Complete:
		r.text(0, line, styleWin, "LEVEL COMPLETE! (r to replay, q to quit)")
	case state.GameOver:
		r.text(0, line, styleDead, "GAME OVER (r to retry, q to quit)")
	default:
		r.text(0, line, styleBase, state.Message)
	}

	for i, entry := range r.log {
		r.text(0, line+2+i, styleWall, entry)
	}
	r.text(0, line+3+logLines, styleWall, "arrows/wasd move  r reset  q quit")
	r.screen.Show()
}

func hud(state *engine.GameState) string {
	parts := []string{state.Name, fmt.Sprintf("tick %d", state.Tick)}
	if state.Timed {
		parts = append(parts, fmt.Sprintf("time %d", state.Timer))
	}
	if p := state.Player; p != nil {
		parts = append(parts, fmt.Sprintf("chips %d", p.Chips))
		if len(p.Keys) > 0 {
			parts = append(parts, "keys "+strings.Join(p.Keys, ","))
		}
		if len(p.PendingInput) > 0 {
			parts = append(parts, "queued "+strings.Join(p.PendingInput, ","))
		}
	}
	return strings.Join(parts, " | ")
}

func (r *Renderer) cell(x, y int, glyph rune, style tcell.Style) {
	r.screen.SetContent(x*cellWidth, gridTop+y, glyph, nil, style)
}

func (r *Renderer) text(x, y int, style tcell.Style, s string) {
	for _, ch := range s {
		r.screen.SetContent(x, y, ch, nil, style)
		x++
	}
}

// TileGlyph maps a tile code to the rune and style drawn for it
func TileGlyph(code string) (rune, tcell.Style) {
	t, err := engine.ParseTileCode(code)
	if err != nil {
		return '?', styleBase
	}
	switch t.Kind {
	case engine.TilePath:
		return '.', styleWall
	case engine.TileWall:
		return '█', styleWall
	case engine.TileWater:
		return '~', styleWater
	case engine.TileDirt:
		return ':', styleDirt
	case engine.TileIce:
		if g, ok := cornerGlyphs[t.Corner]; ok {
			return g, styleIce
		}
		return '=', styleIce
	case engine.TileLockedDoor:
		return 'D', styleBase.Foreground(keyColors[t.KeyColor]).Bold(true)
	case engine.TileButton:
		return '_', styleBase
	case engine.TileTrap:
		return '^', styleBase
	case engine.TileChipSocket:
		return 'H', styleSocket
	case engine.TileExit:
		return 'E', styleExit
	}
	return ' ', styleBase
}

// ActorGlyph maps an actor type name to the rune and style drawn for it
func ActorGlyph(actorType string) (rune, tcell.Style) {
	glyph, ok := actorGlyphs[actorType]
	if !ok {
		return '?', styleEnemy
	}
	switch actorType {
	case "player":
		return glyph, stylePlayer
	case "block":
		return glyph, styleDirt
	}
	return glyph, styleEnemy
}

// ItemGlyph maps a collectible to the rune and style drawn for it
func ItemGlyph(c engine.CollectibleView) (rune, tcell.Style) {
	switch c.Type {
	case "chip":
		return 'c', styleChip
	case "key":
		return 'k', styleBase.Foreground(keyColors[engine.KeyColor(c.Color)])
	}
	return '*', styleChip
}

// ParseKey decodes arrows, WASD and vi keys into moves, r into reset and
// q, Esc or Ctrl-C into quit
func ParseKey(ev *tcell.EventKey) Input {
	switch ev.Key() {
	case tcell.KeyUp:
		return Input{Action: ActionMove, Direction: engine.Up}
	case tcell.KeyDown:
		return Input{Action: ActionMove, Direction: engine.Down}
	case tcell.KeyLeft:
		return Input{Action: ActionMove, Direction: engine.Left}
	case tcell.KeyRight:
		return Input{Action: ActionMove, Direction: engine.Right}
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return Input{Action: ActionQuit}
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'w', 'k':
			return Input{Action: ActionMove, Direction: engine.Up}
		case 's', 'j':
			return Input{Action: ActionMove, Direction: engine.Down}
		case 'a', 'h':
			return Input{Action: ActionMove, Direction: engine.Left}
		case 'd', 'l':
			return Input{Action: ActionMove, Direction: engine.Right}
		case 'r':
			return Input{Action: ActionReset}
		case 'q':
			return Input{Action: ActionQuit}
		}
	}
	return Input{}
}

// FormatEvent renders one engine event as a log line
func FormatEvent(e engine.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "t%d", e.Tick+e.Offset)
	if e.Actor != "" {
		fmt.Fprintf(&b, " %s", e.Actor)
	}
	fmt.Fprintf(&b, " %s", e.Kind)
	switch {
	case e.From != nil && e.To != nil:
		fmt.Fprintf(&b, " %s→%s", *e.From, *e.To)
	case e.To != nil:
		fmt.Fprintf(&b, " %s", *e.To)
	case e.From != nil:
		fmt.Fprintf(&b, " %s", *e.From)
	}
	if e.Item != "" {
		fmt.Fprintf(&b, " %s", e.Item)
	}
	if e.Cause != "" {
		fmt.Fprintf(&b, " (%s)", e.Cause)
	}
	if e.Kind == engine.EventTimer {
		fmt.Fprintf(&b, " %d", e.Value)
	}
	return b.String()
}
