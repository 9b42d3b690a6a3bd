package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/wricardo/chipgrid/game/service"
)

// PostgresPersistence implements SessionPersistence on a PostgreSQL table.
// Each session is one row with the level documents kept as JSONB.
type PostgresPersistence struct {
	db     *sql.DB
	levels service.LevelManager
}

// NewPostgresPersistence connects to PostgreSQL and makes sure the sessions
// table exists
func NewPostgresPersistence(connectionString string, levels service.LevelManager) (*PostgresPersistence, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &PostgresPersistence{db: db, levels: levels}
	if err := p.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return p, nil
}

func (p *PostgresPersistence) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS game_sessions (
		id TEXT PRIMARY KEY,
		level_id TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL,
		last_accessed_at TIMESTAMP WITH TIME ZONE NOT NULL,
		source JSONB NOT NULL,
		level JSONB NOT NULL,
		history JSONB NOT NULL,
		total_moves INTEGER NOT NULL,
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	`

	_, err := p.db.Exec(schema)
	return err
}

// Save upserts the session row
func (p *PostgresPersistence) Save(session *service.Session) error {
	data, err := newPersistedData(session)
	if err != nil {
		return err
	}

	history, err := json.Marshal(data.History)
	if err != nil {
		return fmt.Errorf("failed to marshal move history: %w", err)
	}

	query := `
	INSERT INTO game_sessions (id, level_id, created_at, last_accessed_at, source, level, history, total_moves)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id)
	DO UPDATE SET
		last_accessed_at = $4, level = $6, history = $7, total_moves = $8,
		updated_at = NOW()
	`

	_, err = p.db.Exec(query,
		data.ID, data.LevelID, data.CreatedAt, data.LastAccessedAt,
		string(data.Source), string(data.Level), string(history), data.TotalMoves)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

// Load reads one session row and rebuilds its engine
func (p *PostgresPersistence) Load(id string) (*service.Session, error) {
	query := `SELECT id, level_id, created_at, last_accessed_at, source, level, history, total_moves FROM game_sessions WHERE id = $1`

	var data PersistedSessionData
	var source, level, history string
	err := p.db.QueryRow(query, id).Scan(
		&data.ID, &data.LevelID, &data.CreatedAt, &data.LastAccessedAt,
		&source, &level, &history, &data.TotalMoves,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	data.Source = json.RawMessage(source)
	data.Level = json.RawMessage(level)
	if err := json.Unmarshal([]byte(history), &data.History); err != nil {
		return nil, fmt.Errorf("failed to unmarshal move history: %w", err)
	}

	return data.restore(p.levels.Rules())
}

// Delete removes a session row
func (p *PostgresPersistence) Delete(id string) error {
	res, err := p.db.Exec(`DELETE FROM game_sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ListAll returns all stored session IDs
func (p *PostgresPersistence) ListAll() ([]string, error) {
	rows, err := p.db.Query(`SELECT id FROM game_sessions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Exists checks whether a row exists for id
func (p *PostgresPersistence) Exists(id string) bool {
	var exists bool
	err := p.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM game_sessions WHERE id = $1)`, id).Scan(&exists)
	return err == nil && exists
}

// Close releases the database connection
func (p *PostgresPersistence) Close() error {
	return p.db.Close()
}
