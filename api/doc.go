// Package api provides the HTTP REST API for chipgrid.
//
// The api package implements:
//   - Session management endpoints
//   - Input queueing and explicit clock advancement
//   - Synchronous moves and bulk moves
//   - Level listing, download and upload
//   - WebSocket upgrade for live state updates
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create new session ({"level_id": "intro"})
//   - GET /api/sessions - List sessions (sort=created|accessed, order, limit)
//   - GET /api/sessions/unified - Several sessions side by side (sessionIds, levelId)
//   - GET /api/sessions/{id} - Get specific session
//   - DELETE /api/sessions/{id} - Delete session
//
// Input and Time:
//   - POST /api/sessions/{id}/input - Queue a direction ({"direction": "up"})
//   - POST /api/sessions/{id}/tick - Advance n ticks ({"n": 5} or ?n=5, default 1)
//
// Game Operations:
//   - GET /api/sessions/{id}/state - Current game state
//   - POST /api/sessions/{id}/move - Move and run the clock until the player can act again
//   - POST /api/sessions/{id}/bulk-move - Several moves, stopping at the first refusal
//   - POST /api/sessions/{id}/reset - Restart the level
//   - GET /api/sessions/{id}/history - Move history (page, limit, order)
//
// Levels:
//   - GET /api/levels - List levels
//   - POST /api/levels - Validate and save a level ({"level_id": "...", "level": {...}})
//   - GET /api/levels/{name} - Level document
//   - GET /api/schema/level - JSON schema of level documents
//
// Streaming:
//   - GET /ws?session={id} - Live state_update messages for one session
//
// Error Handling:
//
// Errors are returned as JSON with an error field. Unknown sessions and
// levels map to 404, malformed input to 400, refused input or a finished
// level to 409.
//
//	{
//	  "error": "session not found: session not found"
//	}
//
// Usage:
//
//	server := api.NewServer(gameService, hub)
//	http.ListenAndServe(":8080", server)
package api

//
// Move responses carry a step record ({idx, dir, from, to, tile, ticks,
// chips_before, chips_after, picked_up, slid, complete}) on success and an
// attempted_to cell ({x, y, tile, occupant, reason}) when the player was
// refused. Bulk move responses add requested_moves, moves_executed,
// stop_reason_code, stopped_on_move (1-based), truncated, start_pos,
// end_pos, possible_moves, local_view_3x3 and threat_level.
