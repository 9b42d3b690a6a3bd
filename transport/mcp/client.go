package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/chipgrid/game/engine"
	"github.com/wricardo/chipgrid/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"chipgrid",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`chipgrid - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Collect enough chips to open the chip sockets, pick up keys for the doors and
reach the exit (E) before the timer runs out.

TIME:
The level only advances when told to. Either call move (queue a direction and
run the clock until the player can act again) or queue_input followed by tick.

AVAILABLE TOOLS:
- create_session: Create new game session on a level
- list_sessions: List all active sessions
- get_session: Get session details
- list_levels: List available levels
- game_state: Get current game state
- move: Single move (up/down/left/right) - requires intent explanation
- bulk_move: Multiple moves at once - requires intent explanation
- queue_input: Buffer a direction without advancing time
- tick: Advance the clock n ticks
- reset_game: Restart the level
- move_history: View past moves
- describe_cell: Get the tile, occupant and rules of one cell
- game_instructions: Get comprehensive game instructions and rules

NOTE: The 'intent' parameter on move/bulk_move tools serves as rubber duck debugging - explain your reasoning!`),
	)

	c.registerTools()
}

func sessionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

func directionProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        []string{"up", "down", "left", "right"},
		"description": description,
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new game session, optionally on a specific level",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"level_id": map[string]interface{}{
					"type":        "string",
					"description": "Level to play (see list_levels); the default level when omitted",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all active game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_levels",
		Description: "List the levels sessions can be created on",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListLevels)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the current game state",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move",
		Description: "Move the player one cell and advance time until the player can act again",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"direction":  directionProperty("Direction to move"),
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of the intent behind this move (serves as a rubber duck to help explain your reasoning)",
				},
				"reset": map[string]interface{}{
					"type":        "boolean",
					"description": "Reset before moving",
				},
			},
			Required: []string{"session_id", "direction"},
		},
	}, c.handleMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "bulk_move",
		Description: "Execute multiple moves in sequence, stopping at the first refused move",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"moves": map[string]interface{}{
					"type":        "array",
					"items":       directionProperty("Direction"),
					"description": fmt.Sprintf("Array of moves (at most %d)", engine.MaxBulkMoves),
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of the intent behind this sequence of moves (serves as a rubber duck to help explain your reasoning)",
				},
				"reset": map[string]interface{}{
					"type":        "boolean",
					"description": "Reset before moving",
				},
			},
			Required: []string{"session_id", "moves"},
		},
	}, c.handleBulkMove)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "queue_input",
		Description: "Buffer a direction for the player's next move opportunity without advancing time",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"direction":  directionProperty("Direction to queue"),
			},
			Required: []string{"session_id", "direction"},
		},
	}, c.handleQueueInput)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "tick",
		Description: "Advance the level clock; enemies move and queued input is consumed",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"n": map[string]interface{}{
					"type":        "integer",
					"description": fmt.Sprintf("Number of ticks (1-%d, default 1)", engine.MaxTicksPerRequest),
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleTick)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_game",
		Description: "Reset the level to its initial state",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
			},
			Required: []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "move_history",
		Description: "Get move history for a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number (default 1)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Moves per page (default 20)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleMoveHistory)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get comprehensive game instructions, tile legend and strategy",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "describe_cell",
		Description: "Get detailed information about a specific cell in the grid: its tile code, what occupies it and whether the player can enter it.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"x": map[string]interface{}{
					"type":        "integer",
					"description": "X coordinate (column) of the cell to describe (0-based)",
				},
				"y": map[string]interface{}{
					"type":        "integer",
					"description": "Y coordinate (row) of the cell to describe (0-based)",
				},
			},
			Required: []string{"session_id", "x", "y"},
		},
	}, c.handleDescribeCell)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

// intArg reads a JSON number argument
func intArg(args map[string]interface{}, key string) (int, bool) {
	switch v := args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	levelID, _ := args["level_id"].(string)

	body := map[string]string{}
	if levelID != "" {
		body["level_id"] = levelID
	}

	var session service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", body, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nLevel: %s (%s)\n\n%s",
		session.ID, session.LevelID, session.LevelName, formatGameState(session.GameState))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}

	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active Sessions (%d):\n\n", response.Count)
	for _, s := range response.Sessions {
		fmt.Fprintf(&b, "- %s (Level: %s, Created: %s)\n", s.ID, s.LevelID, s.CreatedAt.Format("15:04:05"))
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var session service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &session); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&session)), nil
}

func (c *Client) handleListLevels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var levels []service.LevelInfo
	if err := c.apiCall(ctx, "GET", "/api/levels", nil, &levels); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Levels:\n\n")
	for _, level := range levels {
		fmt.Fprintf(&b, "• %s - %s\n  %s\n  Grid: %dx%d, Chips: %d, Enemies: %d, Timer: %d\n\n",
			level.LevelID, level.Name, level.Description, level.Width, level.Height, level.Chips, level.Enemies, level.Timer)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatGameState(&state)), nil
}

func (c *Client) handleMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	direction, _ := args["direction"].(string)
	reset, _ := args["reset"].(bool)
	// intent is only there to make the caller think; it is not sent

	body := map[string]interface{}{
		"direction": direction,
		"reset":     reset,
	}

	var result service.MoveResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/move"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMoveResult(&result)), nil
}

func (c *Client) handleBulkMove(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	reset, _ := args["reset"].(bool)

	var moves []string
	switch raw := args["moves"].(type) {
	case []interface{}:
		for _, m := range raw {
			if move, ok := m.(string); ok {
				moves = append(moves, move)
			}
		}
	case []string:
		moves = raw
	}

	body := map[string]interface{}{
		"moves": moves,
		"reset": reset,
	}

	var result service.BulkMoveResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/bulk-move"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBulkMoveResult(sessionID, &result)), nil
}

func (c *Client) handleQueueInput(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	direction, _ := args["direction"].(string)

	var result service.InputResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/input"), map[string]string{"direction": direction}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Queued %s at tick %d\nPending input: %s\n(call tick to let time pass)",
		result.Direction, result.Tick, strings.Join(result.Pending, ", "))
	return mcp.NewToolResultText(text), nil
}

func (c *Client) handleTick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	n, ok := intArg(args, "n")
	if !ok {
		n = 1
	}

	var result service.TickResponse
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/tick"), map[string]int{"n": n}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Advanced %d/%d ticks\n", result.Ticks, result.Requested)
	b.WriteString(formatEvents(result.Events))
	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var response struct {
		Message string            `json:"message"`
		State   *engine.GameState `json:"state"`
	}

	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("%s\n\n%s", response.Message, formatGameState(response.State))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleMoveHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)

	query := url.Values{}
	if page, ok := intArg(args, "page"); ok {
		query.Set("page", fmt.Sprint(page))
	}
	if limit, ok := intArg(args, "limit"); ok {
		query.Set("limit", fmt.Sprint(limit))
	}
	path := sessionPath(sessionID, "/history")
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// Also fetch current segment from live state
	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultText(formatHistory(&history)), nil
	}

	return mcp.NewToolResultText(formatHistory(&history) + "\n" + formatCurrentSegment(&state)), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(instructions), nil
}

const instructions = `chipgrid - Complete Instructions

GAME OBJECTIVE:
Reach the exit (E). Chip sockets (CS_n) block the way until you carry n chips,
and colored doors need the matching key. Keys are never used up.

TIME:
Everything happens in ticks. Nothing moves between calls.
• move: queues one direction and runs ticks until you have moved and can act again
• queue_input + tick: buffer up to two directions, then advance time yourself
• Enemies keep their own pace: a bug moves every 2 ticks, a frog every 4
• The timer counts down once per second of ticks; at 0 the player is removed

GRID LEGEND (tile codes):
• P - Path (floor)
• W - Wall (never passable)
• S - Water (the player drowns; a pushed block fills it and becomes dirt)
• G - Dirt (the player clears it to path; enemies and blocks cannot enter)
• E - Exit (enter it to finish the level)
• I, I_TL, I_TR, I_BL, I_BR - Ice (you slide; corners turn you, the flat sides bounce you back)
• RD, GD, YD, BD - Locked door (red, green, yellow, blue key)
• B_n - Button n (opens and closes its traps)
• T_n - Trap linked to button n (holds whatever enters until the button is pressed)
• CS_n - Chip socket needing n chips (opens once, for good)

OCCUPANTS (shown over the tile):
• @ - You
• # - Block (push it; it cannot be pushed into walls, other blocks or dirt)
• b - Bug (follows a wall)
• o - Pink ball (bounces back and forth)
• f - Frog (walks toward you)
• c - Chip, k - Key, * - Item

STRATEGY:
1. Read the grid cell by cell; codes can be one to four characters wide
2. Count chips against every socket before committing to a route
3. Watch enemy pacing: tick in small steps when passing a bug's corridor
4. Use describe_cell when a code is ambiguous
5. Use bulk_move for known-safe stretches; it stops at the first refused move

VICTORY CONDITIONS:
- Step onto the exit; the level completes a few ticks later
- The game shows "LEVEL COMPLETE" when done

GAME OVER CONDITIONS:
- Drowning, being crushed, touching an enemy, or the timer reaching zero
- The game shows "GAME OVER"; reset_game starts the level again

SESSION MANAGEMENT:
- Multiple game sessions can run simultaneously
- Each session has a unique 4-character ID and its own clock

Good luck!`

var tileDescriptions = map[engine.TileKind]struct {
	name        string
	description string
}{
	engine.TilePath:       {"Path", "Open floor"},
	engine.TileWall:       {"Wall", "Impassable for everyone"},
	engine.TileWater:      {"Water", "The player drowns here; a pushed block turns it into dirt"},
	engine.TileDirt:       {"Dirt", "The player clears it to path; enemies and blocks are stopped"},
	engine.TileIce:        {"Ice", "Actors slide across it; corners turn them"},
	engine.TileLockedDoor: {"Locked door", "Opens for a player holding the matching key"},
	engine.TileButton:     {"Button", "Toggles its linked traps when stepped on"},
	engine.TileTrap:       {"Trap", "Holds whatever enters until its button opens it"},
	engine.TileChipSocket: {"Chip socket", "Opens for a player carrying enough chips"},
	engine.TileExit:       {"Exit", "Finishes the level when the player reaches it"},
}

func (c *Client) handleDescribeCell(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	x, okX := intArg(args, "x")
	y, okY := intArg(args, "y")
	if !okX || !okY {
		return mcp.NewToolResultError("x and y are required"), nil
	}

	var state engine.GameState
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if x < 0 || x >= state.Width || y < 0 || y >= state.Height {
		return mcp.NewToolResultError(fmt.Sprintf("Coordinates (%d, %d) are out of bounds. Grid size is %dx%d",
			x, y, state.Width, state.Height)), nil
	}

	code := state.Grid[y][x]
	kind := "Unknown"
	description := "Undecodable tile; treated as a wall"
	if tile, err := engine.ParseTileCode(code); err == nil {
		if d, ok := tileDescriptions[tile.Kind]; ok {
			kind, description = d.name, d.description
		}
		switch tile.Kind {
		case engine.TileLockedDoor:
			description += fmt.Sprintf(" (%s key)", tile.KeyColor)
		case engine.TileChipSocket:
			description += fmt.Sprintf(" (%d chips)", tile.RequiredChips)
		case engine.TileButton:
			description += fmt.Sprintf(" (button %d)", tile.ButtonID)
		case engine.TileTrap:
			description += fmt.Sprintf(" (button %d)", tile.LinkedButtonID)
		}
	}

	occupant := "none"
	if name := occupantAt(&state, engine.Position{X: x, Y: y}); name != "" {
		occupant = name
	}

	result := fmt.Sprintf(`Cell at position (%d, %d):
━━━━━━━━━━━━━━━━━━━━━━━━
Tile code: %s
Type: %s
Occupant: %s
Description: %s`,
		x, y, code, kind, occupant, description)

	return mcp.NewToolResultText(result), nil
}

// occupantAt names the actor or collectible on p
func occupantAt(state *engine.GameState, p engine.Position) string {
	for _, a := range state.Actors {
		if a.Position == p {
			return a.Type
		}
	}
	for _, item := range state.Collectibles {
		if item.Position != p {
			continue
		}
		switch {
		case item.Color != "":
			return item.Color + " " + item.Type
		case item.Tag != "":
			return item.Type + " " + item.Tag
		}
		return item.Type
	}
	return ""
}

// Formatting helpers

var actorGlyphs = map[string]string{
	"player":   "@",
	"block":    "#",
	"bug":      "b",
	"pinkball": "o",
	"frog":     "f",
}

var collectibleGlyphs = map[string]string{
	"chip": "c",
	"key":  "k",
}

func formatSessionInfo(session *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nLevel: %s (%s)\nCreated: %s\n\n%s",
		session.ID, session.LevelID, session.LevelName,
		session.CreatedAt.Format("2006-01-02 15:04:05"),
		formatGameState(session.GameState))
}

// formatGrid renders tile codes in aligned columns with occupants drawn over them
func formatGrid(state *engine.GameState) string {
	overlay := map[engine.Position]string{}
	for _, item := range state.Collectibles {
		glyph, ok := collectibleGlyphs[item.Type]
		if !ok {
			glyph = "*"
		}
		overlay[item.Position] = glyph
	}
	for _, a := range state.Actors {
		if glyph, ok := actorGlyphs[a.Type]; ok {
			overlay[a.Position] = glyph
		}
	}

	width := 1
	for _, row := range state.Grid {
		for _, code := range row {
			if len(code) > width {
				width = len(code)
			}
		}
	}

	var b strings.Builder
	for y, row := range state.Grid {
		for x, code := range row {
			if glyph, ok := overlay[engine.Position{X: x, Y: y}]; ok {
				code = glyph
			}
			if x > 0 {
				b.WriteString(" ")
			}
			fmt.Fprintf(&b, "%-*s", width, code)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatGameState(state *engine.GameState) string {
	if state == nil {
		return "No game state available"
	}

	var result strings.Builder

	header := fmt.Sprintf("Level: %s | Tick: %d", state.Name, state.Tick)
	if state.Timed {
		header += fmt.Sprintf(" | Timer: %d", state.Timer)
	}
	if p := state.Player; p != nil {
		header += fmt.Sprintf(" | Position: (%d,%d) | Chips: %d", p.Position.X, p.Position.Y, p.Chips)
		if len(p.Keys) > 0 {
			header += " | Keys: " + strings.Join(p.Keys, ",")
		}
		if len(p.PendingInput) > 0 {
			header += " | Queued: " + strings.Join(p.PendingInput, ",")
		}
	}
	header += fmt.Sprintf(" | Moves: %d", state.TotalMoves)
	result.WriteString(header + "\n\n")

	// Decision aids
	if state.ThreatLevel != "" {
		result.WriteString(fmt.Sprintf("Threat: %s\n", state.ThreatLevel))
	}
	if len(state.LocalView3x3) == 3 {
		result.WriteString("Local 3x3:\n")
		for _, row := range state.LocalView3x3 {
			result.WriteString(row + "\n")
		}
		result.WriteString("\n")
	}

	result.WriteString(formatGrid(state))

	// Status
	switch {
	case state.Complete:
		result.WriteString("\n🎉 LEVEL COMPLETE!")
	case state.GameOver:
		result.WriteString("\n💀 GAME OVER")
	case state.ExitPending:
		result.WriteString("\nExit reached, finishing...")
	}

	if state.Message != "" {
		result.WriteString(fmt.Sprintf("\nMessage: %s", state.Message))
	}

	return result.String()
}

func formatEvents(events []engine.Event) string {
	if len(events) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Events:\n")
	for _, ev := range events {
		line := fmt.Sprintf("- t%d %s", ev.Tick, ev.Kind)
		if ev.Actor != "" {
			line += " " + ev.Actor
		}
		if ev.From != nil && ev.To != nil {
			line += fmt.Sprintf(" (%d,%d)→(%d,%d)", ev.From.X, ev.From.Y, ev.To.X, ev.To.Y)
		} else if ev.To != nil {
			line += fmt.Sprintf(" at (%d,%d)", ev.To.X, ev.To.Y)
		}
		if ev.Item != "" {
			line += " " + ev.Item
		}
		if ev.Tile != "" {
			line += " tile=" + ev.Tile
		}
		if ev.Cause != "" {
			line += " cause=" + string(ev.Cause)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func formatMoveResult(result *service.MoveResult) string {
	response := ""
	if result.Success {
		response = "✓ Move successful\n"
	} else {
		response = "✗ Move failed\n"
	}

	if result.Step != nil {
		s := result.Step
		response += fmt.Sprintf("Step: %s (%d,%d)→(%d,%d) tile=%s chips=%d ticks=%d\n",
			s.Dir, s.From.X, s.From.Y, s.To.X, s.To.Y, s.Tile, s.ChipsAfter, s.Ticks)
		if len(s.PickedUp) > 0 {
			response += "Picked up: " + strings.Join(s.PickedUp, ", ") + "\n"
		}
	}

	if result.AttemptedTo != nil {
		a := result.AttemptedTo
		line := fmt.Sprintf("Blocked: attempted (%d,%d) tile=%s reason=%s", a.X, a.Y, a.Tile, a.Reason)
		if a.Occupant != "" {
			line += " occupant=" + a.Occupant
		}
		response += line + "\n"
	}

	response += formatEvents(result.Events)
	response += "\n" + formatGameState(result.GameState)
	return response
}

func formatBulkMoveResult(sessionID string, result *service.BulkMoveResult) string {
	var b strings.Builder

	name := ""
	if result.GameState != nil {
		name = result.GameState.Name
	}
	b.WriteString(fmt.Sprintf("Session: %s • Level: %s\n", sessionID, name))

	b.WriteString(fmt.Sprintf("Executed %d/%d moves in %d ticks\n", result.MovesExecuted, result.RequestedMoves, result.Ticks))
	if result.Truncated {
		b.WriteString(fmt.Sprintf("Truncated to %d moves\n", result.Limit))
	}
	if result.StoppedReason != "" {
		b.WriteString(fmt.Sprintf("Stopped on move %d: %s (%s)\n", result.StoppedOnMove, result.StoppedReason, result.StopReasonCode))
	}

	if len(result.Steps) > 0 {
		b.WriteString("\nSteps:\n")
		for _, s := range result.Steps {
			b.WriteString(formatStepLine(s))
		}
	}

	if a := result.AttemptedTo; a != nil {
		b.WriteString(fmt.Sprintf("\nBlocked: attempted (%d,%d) tile=%s reason=%s\n", a.X, a.Y, a.Tile, a.Reason))
	}

	b.WriteString(fmt.Sprintf("\nChips: %d → %d\n", result.StartChips, result.EndChips))
	if len(result.PossibleMoves) > 0 {
		b.WriteString("Possible moves: " + strings.Join(result.PossibleMoves, ",") + "\n")
	}

	b.WriteString("\n")
	b.WriteString(formatGameState(result.GameState))
	return b.String()
}

// formatStepLine renders a single compact step line
func formatStepLine(s service.StepInfo) string {
	status := "✗"
	if s.Success {
		status = "✓"
	}
	line := fmt.Sprintf("%d. %s (%d,%d)→(%d,%d) tile=%s chips=%d %s",
		s.Idx, s.Dir, s.From.X, s.From.Y, s.To.X, s.To.Y, s.Tile, s.ChipsAfter, status)
	if s.Slid {
		line += " slid"
	}
	if len(s.PickedUp) > 0 {
		line += " +" + strings.Join(s.PickedUp, ",+")
	}
	return line + "\n"
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Move History (Page %d/%d) - Total (cumulative): %d\n\n",
		history.Page, history.TotalPages, history.TotalMoves)

	for _, move := range history.Moves {
		status := "✓"
		if !move.Success {
			status = "✗"
			if move.Reason != "" {
				status += " " + move.Reason
			}
		}
		fmt.Fprintf(&b, "%d. %s %s [tick %d, chips %d]\n",
			move.MoveNumber, move.Action, status, move.Tick, move.Chips)
	}

	return b.String()
}

func formatCurrentSegment(state *engine.GameState) string {
	if state == nil {
		return "Current Segment: unavailable"
	}
	header := fmt.Sprintf("Current Move Segment - Moves: %d\n\n", state.CurrentMovesCount)
	if len(state.CurrentMoves) == 0 {
		return header + "(no moves in current segment)"
	}
	var b strings.Builder
	b.WriteString(header)
	for i, move := range state.CurrentMoves {
		status := "✓"
		if !move.Success {
			status = "✗"
		}
		fmt.Fprintf(&b, "%d. %s %s [tick %d, chips %d]\n", i+1, move.Action, status, move.Tick, move.Chips)
	}
	return b.String()
}
