package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"kidsmoney/internal/model"
	"kidsmoney/internal/store"
)

type SQLite struct {
	conn     *sqlx.DB
	instance string
}

type stateRow struct {
	Revision int64  `db:"revision"`
	Document string `db:"document"`
}

func OpenSQLite(ctx context.Context, path, instance string) (*SQLite, error) {
	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; the store already serialises saves.
	conn.SetMaxOpenConns(1)
	s := &SQLite{conn: conn, instance: instanceOrDefault(instance)}
	if err := s.initPragmas(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Close() error { return s.conn.Close() }

func (s *SQLite) initPragmas(ctx context.Context) error {
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := s.conn.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS game_state (
		instance_id TEXT PRIMARY KEY,
		revision INTEGER NOT NULL,
		document TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`)
	return err
}

func (s *SQLite) Load(ctx context.Context) (*model.GameState, error) {
	var row stateRow
	err := s.conn.GetContext(ctx, &row, "SELECT revision, document FROM game_state WHERE instance_id = ?", s.instance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.Decode([]byte(row.Document))
}

func (s *SQLite) Save(ctx context.Context, st *model.GameState) error {
	doc, err := model.Encode(st)
	if err != nil {
		return err
	}
	res, err := s.conn.ExecContext(ctx, `
		INSERT INTO game_state (instance_id, revision, document, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(instance_id) DO UPDATE SET
			revision = excluded.revision,
			document = excluded.document,
			updated_at = excluded.updated_at
		WHERE game_state.revision <= excluded.revision
	`, s.instance, st.EventRevision, string(doc), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: revision %d", errStaleRevision, st.EventRevision)
	}
	return nil
}

var errStaleRevision = errors.New("a newer revision is already stored")

func instanceOrDefault(id string) string {
	if id == "" {
		return "default"
	}
	return id
}
