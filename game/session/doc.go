// Package session provides session management for chipgrid.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - Session lifecycle management
//   - Optional persistence to JSON files or PostgreSQL
//
// Core Types:
//
// Manager is the main session manager that handles all session operations.
// Each service.Session owns one engine.GameEngine started from a level
// document; sessions never share level state.
//
// Session Identifiers:
//
// Generated IDs are 4 hex characters from crypto/rand. Caller-chosen IDs may
// use letters, digits, '-' and '_' (up to 64 characters). Lookups are
// case-insensitive.
//
// Persistence:
//
// FilePersistence writes one JSON file per session; PostgresPersistence keeps
// one row per session. Both store the original level document next to the
// running level, so a restored session can still be reset.
//
// Usage:
//
//	levels, _ := config.NewManager("levels")
//	store, _ := session.NewFilePersistence("sessions", levels)
//	manager := session.NewManagerWithPersistence(store)
//
//	id, level := levels.GetDefault()
//	sess, err := manager.Create("", id, level, levels.Rules())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	sess, err = manager.Get(sess.ID)
//
// Cleanup:
//
// CleanupExpiredSessions drops idle sessions from memory; persisted copies
// load again on the next Get.
package session
