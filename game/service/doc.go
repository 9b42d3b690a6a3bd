// Package service provides the business logic layer for chipgrid.
//
// The service package implements:
//   - Multi-session game management
//   - Level loading and saving through a LevelManager
//   - Input queuing, clock ticks and whole-move processing
//   - Move history tracking with pagination
//
// Core Interfaces:
//
// GameService is the main service interface used by every transport.
// SessionManager handles session creation, retrieval and persistence.
// LevelManager loads level documents and the rules they are played with.
//
// Time:
//
// A level only advances when it is ticked. Clients either queue directions
// and tick explicitly (QueueInput, Tick), which is what a real-time renderer
// does, or call Move, which queues one direction and ticks until the player
// has acted and can act again. Every mutating call auto-saves the session.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	levelMgr, _ := config.NewManager("levels")
//	gameService := service.NewGameService(sessionMgr, levelMgr)
//
//	info, err := gameService.CreateSession(ctx, "intro")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := gameService.Move(ctx, info.ID, "up", false)
package service
