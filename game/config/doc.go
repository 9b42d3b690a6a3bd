// Package config manages the level directory for chipgrid.
//
// The config package handles:
//   - Loading level documents from JSON files
//   - Validating levels for playability before they are served
//   - Default level selection
//   - Level discovery and listing
//   - The shared rules file (rules.yaml)
//
// Level Format:
//
// Levels are stored as JSON files in the levels directory. Hand-written
// levels use short tile codes (P path, W wall, S water, G dirt, E exit, RD/GD/YD/BD
// doors, I and I_BL/I_BR/I_TL/I_TR ice, B_<id> buttons, T_<id> traps,
// CS_<n> chip sockets); levels written back by the engine use one object per
// cell. The engine's LevelSchema describes both.
//
// Usage:
//
//	manager, err := config.NewManager("levels")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	level, err := manager.LoadLevel("intro")
//	id, level := manager.GetDefault()
//	levels, err := manager.ListLevels()
//
// Rules:
//
// rules.yaml in the level directory tunes the simulation for every level
// (ice slide delay, exit delay, chain depth, input queue size, ticks per
// second, RNG seed and per-type move intervals). Without it the engine
// defaults apply.
package config
