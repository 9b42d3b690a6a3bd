// Package mcp exposes chipgrid to agents over the Model Context Protocol.
//
// The Client is a thin MCP tool server: every tool call is forwarded to the
// REST API and the JSON response is rendered as text an agent can read.
//
// MCP Tools:
//   - create_session, list_sessions, get_session: session management
//   - list_levels: levels a session can be created on
//   - game_state: grid with occupants, timer, chips and keys
//   - queue_input: buffer a direction without advancing time
//   - tick: advance the level clock n ticks
//   - move: queue a direction and run time until the player can act again
//   - bulk_move: several moves, stopping at the first refused one
//   - reset_game: restart the level
//   - move_history: paginated history plus the current segment
//   - describe_cell: tile code, occupant and rules of a single cell
//   - game_instructions: rules, legend and strategy
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
