package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// levelDoc builds a load-form document from rows of space-separated codes
func levelDoc(rows ...string) *LevelDocument {
	doc := &LevelDocument{Actors: []ActorRecord{}}
	for _, row := range rows {
		var entries []TileEntry
		for _, code := range strings.Fields(row) {
			entries = append(entries, TileEntry{Code: code})
		}
		doc.Tiles = append(doc.Tiles, entries)
	}
	return doc
}

func (d *LevelDocument) with(actors ...ActorRecord) *LevelDocument {
	d.Actors = append(d.Actors, actors...)
	return d
}

func (d *LevelDocument) withItems(items ...CollectibleRecord) *LevelDocument {
	d.Collectibles = append(d.Collectibles, items...)
	return d
}

func player(x, y int) ActorRecord { return ActorRecord{Type: "player", X: x, Y: y} }
func block(x, y int) ActorRecord  { return ActorRecord{Type: "block", X: x, Y: y} }
func chip(x, y int) CollectibleRecord {
	return CollectibleRecord{Type: "chip", X: x, Y: y}
}
func key(x, y int, color string) CollectibleRecord {
	return CollectibleRecord{Type: "key", X: x, Y: y, Color: color}
}

func mustDecode(t *testing.T, doc *LevelDocument) *LevelState {
	t.Helper()
	return mustDecodeRules(t, doc, DefaultRules())
}

func mustDecodeRules(t *testing.T, doc *LevelDocument, rules Rules) *LevelState {
	t.Helper()
	l, diags, err := Decode(doc, rules)
	require.NoError(t, err)
	require.Empty(t, diags)
	return l
}

func actorAt(l *LevelState, x, y int) *Actor {
	return l.Grid.ActorAt(Position{X: x, Y: y})
}

func eventKinds(events []Event) []EventKind {
	kinds := make([]EventKind, 0, len(events))
	for _, ev := range events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func countEvents(events []Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// assertConsistent checks every occupant agrees with its entity's position
func assertConsistent(t *testing.T, l *LevelState) {
	t.Helper()
	for _, a := range l.Actors() {
		require.True(t, l.Grid.InBounds(a.Pos), "actor %d out of bounds", a.ID)
		require.Same(t, a, l.Grid.ActorAt(a.Pos), "actor %d not on its cell", a.ID)
	}
	for _, c := range l.Collectibles() {
		require.Same(t, c, l.Grid.CollectibleAt(c.Pos), "collectible %d not on its cell", c.ID)
	}
}
