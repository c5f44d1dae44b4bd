package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"kidsmoney/internal/model"
	"kidsmoney/internal/store"
)

type Postgres struct {
	db       *pgxpool.Pool
	log      *slog.Logger
	instance string
}

func NewPostgres(ctx context.Context, pool *pgxpool.Pool, instance string, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Postgres{db: pool, log: logger, instance: instanceOrDefault(instance)}
	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS kidsmoney_state (
			instance_id text PRIMARY KEY,
			revision bigint NOT NULL,
			document jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)
	`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	return p, nil
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}

func (p *Postgres) Load(ctx context.Context) (*model.GameState, error) {
	var doc []byte
	err := p.db.QueryRow(ctx, `
		SELECT document
		FROM kidsmoney_state
		WHERE instance_id = $1
	`, p.instance).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.Decode(doc)
}

// Save writes the document in a serializable transaction, retrying on
// serialization failures, and refuses to overwrite a newer revision.
func (p *Postgres) Save(ctx context.Context, st *model.GameState) error {
	doc, err := model.Encode(st)
	if err != nil {
		return err
	}

	const maxAttempts = 5
	retryDelay := 50 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = p.saveOnce(ctx, st.EventRevision, doc)
		if err == nil || !isSerializationError(err) {
			return err
		}
		p.log.Warn("state save conflict, retrying", "attempt", attempt+1, "revision", st.EventRevision)
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		retryDelay *= 2
	}
	return err
}

func (p *Postgres) saveOnce(ctx context.Context, revision int64, doc []byte) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO kidsmoney_state (instance_id, revision, document, updated_at)
		VALUES ($1, $2, $3::jsonb, now())
		ON CONFLICT (instance_id) DO UPDATE
		SET revision = EXCLUDED.revision,
		    document = EXCLUDED.document,
		    updated_at = now()
		WHERE kidsmoney_state.revision <= EXCLUDED.revision
	`, p.instance, revision, string(doc))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: revision %d", errStaleRevision, revision)
	}
	return tx.Commit(ctx)
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
