// Package engine provides the core rules of the chipgrid puzzle game.
//
// The engine package implements the game mechanics including:
//   - Tile grid with single-occupant cells and a per-kind behavior table
//   - Movement resolution: pushes, pickups, kills and tile transformations
//   - Ice slides with corner redirects, bounded by Rules.MaxChainDepth
//   - Enemy decisions for bugs, pink balls and frogs (A* pathfinding)
//   - Tick scheduling with input queues, move cadences and deferred effects
//   - Level document decoding and encoding
//
// Core Types:
//
// LevelState owns the grid, the ordered roster and the collectibles, and is
// mutated only through AttemptMove and Tick. Every change is reported as an
// Event to subscribed listeners. GameEngine wraps a LevelState with a reset
// source, move history and JSON-friendly GameState snapshots.
//
// Usage:
//
//	rules, err := engine.LoadRules("levels/rules.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	gameEngine, err := engine.NewEngine(levelJSON, rules)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Queue input and let time pass
//	gameEngine.QueueInput("right")
//	gameEngine.Tick(1)
//	state := gameEngine.GetState()
//
// Game Rules:
//
// The player walks a grid collecting chips and keys. Keys open doors of
// their color, chips pay for chip sockets, blocks can be pushed into water to
// bridge it, and buttons hold traps open. Reaching the exit completes the
// level after a short delay; drowning, being crushed or caught by an enemy,
// or running out of time ends the game.
package engine
