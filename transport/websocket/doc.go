// Package websocket streams session updates to renderers.
//
// A Hub keeps the connected clients grouped by session ID. Clients pick their
// session with the query parameter (/ws?session=ab12) and only listen; every
// change the service makes to that session is pushed as one JSON message:
//
//	{"session_id": "ab12", "event": "state_update",
//	 "game_state": {...}, "events": [{"kind": "moved", ...}]}
//
// A client that joins mid-level first receives the session's last state
// update, so it can draw a frame before the next move. Deleting a session
// sends session_closed and disconnects its clients. Custom notifications use
// the same envelope with a data field instead of game_state.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run()
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
//
//	hub.BroadcastUpdate(sessionID, state, events)
//
// Clients whose send buffer fills up are dropped rather than slowing the
// broadcaster down.
package websocket
