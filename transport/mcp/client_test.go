package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wricardo/chipgrid/api"
	"github.com/wricardo/chipgrid/game/config"
	"github.com/wricardo/chipgrid/game/engine"
	"github.com/wricardo/chipgrid/game/service"
	"github.com/wricardo/chipgrid/game/session"
)

func toolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("Expected result, got nil")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return text.Text
}

func sampleState() *engine.GameState {
	return &engine.GameState{
		Name:   "First Steps",
		Width:  3,
		Height: 3,
		Grid: [][]string{
			{"W", "W", "W"},
			{"W", "CS_2", "E"},
			{"W", "P", "RD"},
		},
		Actors: []engine.ActorView{
			{ID: 0, Type: "player", Position: engine.Position{X: 1, Y: 2}},
		},
		Collectibles: []engine.CollectibleView{
			{ID: 1, Type: "key", Color: "red", Position: engine.Position{X: 2, Y: 2}},
		},
		Player: &engine.PlayerView{Position: engine.Position{X: 1, Y: 2}, Chips: 1, Keys: []string{"blue"}, Alive: true},
		Tick:   12,
		Timer:  48,
		Timed:  true,
	}
}

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080"
	client := NewClient(baseURL + "/")

	if client == nil {
		t.Fatal("Expected client to be created")
	}

	if client.baseURL != baseURL {
		t.Errorf("Expected baseURL %s, got %s", baseURL, client.baseURL)
	}

	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}

	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "ab12", "tick": 3})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var response map[string]interface{}
	if err := client.apiCall(context.Background(), "GET", "/api", nil, &response); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}

	if response["id"] != "ab12" {
		t.Errorf("Expected id ab12, got %v", response["id"])
	}
}

func TestClient_apiCall_Error(t *testing.T) {
	client := NewClient("http://invalid-url-that-does-not-exist:9999")

	if err := client.apiCall(context.Background(), "GET", "/api", nil, nil); err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"plain body", "Internal Server Error", "API error: 500"},
		{"json error", `{"error":"session not found"}`, "session not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := NewClient(server.URL).apiCall(context.Background(), "GET", "/api", nil, nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestClient_createSession(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/sessions" {
			t.Errorf("Expected POST /api/sessions, got %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(service.SessionInfo{
			ID:        "ab12",
			LevelID:   "intro",
			LevelName: "First Steps",
			GameState: sampleState(),
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleCreateSession(context.Background(), toolRequest("create_session", map[string]interface{}{
		"level_id": "intro",
	}))
	if err != nil {
		t.Fatalf("createSession failed: %v", err)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "Created session: ab12") || !strings.Contains(text, "First Steps") {
		t.Errorf("Unexpected result: %s", text)
	}
	if gotBody["level_id"] != "intro" {
		t.Errorf("Expected level_id to be forwarded, got %v", gotBody)
	}
}

func TestClient_queueInputAndTick(t *testing.T) {
	var tickBody map[string]int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/sessions/ab12/input":
			json.NewEncoder(w).Encode(service.InputResult{Direction: "up", Pending: []string{"up"}, Tick: 4})
		case "/api/sessions/ab12/tick":
			json.NewDecoder(r.Body).Decode(&tickBody)
			json.NewEncoder(w).Encode(service.TickResponse{
				Requested: tickBody["n"],
				Ticks:     tickBody["n"],
				Events: []engine.Event{{
					Kind: engine.EventMoved, Tick: 5, Actor: "player",
					From: &engine.Position{X: 1, Y: 2}, To: &engine.Position{X: 1, Y: 1},
				}},
				GameState: sampleState(),
			})
		default:
			t.Errorf("Unexpected request %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	result, err := client.handleQueueInput(ctx, toolRequest("queue_input", map[string]interface{}{
		"session_id": "ab12",
		"direction":  "up",
	}))
	if err != nil {
		t.Fatalf("queue_input failed: %v", err)
	}
	if text := resultText(t, result); !strings.Contains(text, "Queued up at tick 4") {
		t.Errorf("Unexpected queue_input result: %s", text)
	}

	// n defaults to 1
	result, _ = client.handleTick(ctx, toolRequest("tick", map[string]interface{}{"session_id": "ab12"}))
	if tickBody["n"] != 1 {
		t.Errorf("Expected default n=1, got %d", tickBody["n"])
	}

	result, _ = client.handleTick(ctx, toolRequest("tick", map[string]interface{}{"session_id": "ab12", "n": float64(3)}))
	text := resultText(t, result)
	if tickBody["n"] != 3 || !strings.Contains(text, "Advanced 3/3 ticks") || !strings.Contains(text, "t5 moved player (1,2)→(1,1)") {
		t.Errorf("Unexpected tick result: %s", text)
	}
}

func TestClient_describeCell(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(sampleState())
	}))
	defer server.Close()

	client := NewClient(server.URL)

	tests := []struct {
		name     string
		x, y     float64
		contains []string
		isError  bool
	}{
		{"socket", 1, 1, []string{"Tile code: CS_2", "Chip socket", "(2 chips)"}, false},
		{"player on path", 1, 2, []string{"Type: Path", "Occupant: player"}, false},
		{"key on door", 2, 2, []string{"Locked door", "(red key)", "Occupant: red key"}, false},
		{"out of bounds", 5, 0, []string{"out of bounds"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := client.handleDescribeCell(context.Background(), toolRequest("describe_cell", map[string]interface{}{
				"session_id": "ab12", "x": tt.x, "y": tt.y,
			}))
			if err != nil {
				t.Fatalf("describe_cell failed: %v", err)
			}
			if result.IsError != tt.isError {
				t.Errorf("Expected IsError=%v", tt.isError)
			}
			text := resultText(t, result)
			for _, want := range tt.contains {
				if !strings.Contains(text, want) {
					t.Errorf("Expected %q in %s", want, text)
				}
			}
		})
	}
}

func TestFormatGameState(t *testing.T) {
	result := formatGameState(sampleState())

	expectedFields := []string{
		"Level: First Steps",
		"Tick: 12",
		"Timer: 48",
		"Position: (1,2)",
		"Chips: 1",
		"Keys: blue",
		"W    W    W",
		"W    CS_2 E",
		"W    @    k",
	}

	for _, field := range expectedFields {
		if !strings.Contains(result, field) {
			t.Errorf("Expected field '%s' in formatted output, got:\n%s", field, result)
		}
	}
}

func TestFormatGameState_Finished(t *testing.T) {
	state := sampleState()
	state.GameOver = true
	if result := formatGameState(state); !strings.Contains(result, "💀 GAME OVER") {
		t.Errorf("Expected '💀 GAME OVER' in result, got: %s", result)
	}

	state.Complete = true
	if result := formatGameState(state); !strings.Contains(result, "🎉 LEVEL COMPLETE!") {
		t.Errorf("Expected '🎉 LEVEL COMPLETE!' in result, got: %s", result)
	}

	if result := formatGameState(nil); result != "No game state available" {
		t.Errorf("Unexpected nil state output: %s", result)
	}
}

func TestFormatMoveResult(t *testing.T) {
	ok := formatMoveResult(&service.MoveResult{
		Success:   true,
		GameState: sampleState(),
		Step:      &service.StepInfo{Dir: "up", From: engine.Position{X: 1, Y: 3}, To: engine.Position{X: 1, Y: 2}, Tile: "P", ChipsAfter: 1, Ticks: 1, PickedUp: []string{"chip"}},
	})
	for _, want := range []string{"✓ Move successful", "Step: up (1,3)→(1,2)", "Picked up: chip"} {
		if !strings.Contains(ok, want) {
			t.Errorf("Expected %q in %s", want, ok)
		}
	}

	failed := formatMoveResult(&service.MoveResult{
		Success:     false,
		GameState:   sampleState(),
		AttemptedTo: &service.AttemptInfo{X: 1, Y: 1, Tile: "CS_2", Reason: "blocked"},
	})
	if !strings.Contains(failed, "✗ Move failed") || !strings.Contains(failed, "Blocked: attempted (1,1) tile=CS_2") {
		t.Errorf("Unexpected failed move output: %s", failed)
	}
}

func TestClient_handleGameInstructions(t *testing.T) {
	client := NewClient("http://localhost:8080")

	result, err := client.handleGameInstructions(context.Background(), toolRequest("game_instructions", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("handleGameInstructions failed: %v", err)
	}

	text := resultText(t, result)
	for _, content := range []string{"GAME OBJECTIVE:", "TIME:", "GRID LEGEND", "CS_n", "OCCUPANTS", "VICTORY CONDITIONS:"} {
		if !strings.Contains(text, content) {
			t.Errorf("Expected '%s' in instructions", content)
		}
	}
}

func TestClient_AgainstServer(t *testing.T) {
	levels, err := config.NewManager("../../levels")
	if err != nil {
		t.Fatalf("Failed to create level manager: %v", err)
	}
	server := httptest.NewServer(api.NewServer(service.NewGameService(session.NewManager(), levels), nil))
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	result, err := client.handleCreateSession(ctx, toolRequest("create_session", map[string]interface{}{"level_id": "intro"}))
	if err != nil {
		t.Fatalf("create_session failed: %v", err)
	}
	match := regexp.MustCompile(`Created session: (\w+)`).FindStringSubmatch(resultText(t, result))
	if match == nil {
		t.Fatalf("No session ID in %s", resultText(t, result))
	}
	id := match[1]

	result, _ = client.handleBulkMove(ctx, toolRequest("bulk_move", map[string]interface{}{
		"session_id": id,
		"moves":      []interface{}{"right", "right", "up"},
		"intent":     "grab the first chip",
	}))
	text := resultText(t, result)
	for _, want := range []string{"Executed 2/3 moves", "Chips: 0 → 1"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in bulk move output:\n%s", want, text)
		}
	}

	result, _ = client.handleMoveHistory(ctx, toolRequest("move_history", map[string]interface{}{"session_id": id}))
	if text := resultText(t, result); !strings.Contains(text, "Total (cumulative): 3") {
		t.Errorf("Unexpected history:\n%s", text)
	}

	result, _ = client.handleListLevels(ctx, toolRequest("list_levels", nil))
	if text := resultText(t, result); !strings.Contains(text, "intro - First Steps") {
		t.Errorf("Expected intro in level list:\n%s", text)
	}

	result, _ = client.handleGameState(ctx, toolRequest("game_state", map[string]interface{}{"session_id": "zzzz"}))
	if !result.IsError {
		t.Error("Expected an error result for an unknown session")
	}
}
