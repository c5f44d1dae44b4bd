package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"kidsmoney/internal/config"
	"kidsmoney/internal/db"
	"kidsmoney/internal/model"
	"kidsmoney/internal/store"
)

type Adapter interface {
	store.Persister
	Close() error
	Name() string
}

func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Adapter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case "memory":
		return NewMemory(), nil
	case "file":
		return NewFile(cfg.Path), nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.Path, cfg.InstanceID)
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		pg, err := NewPostgres(ctx, pool, cfg.InstanceID, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

type Memory struct {
	mu    sync.Mutex
	doc   []byte
	saves int
	FailSaves int
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Load(context.Context) (*model.GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return nil, store.ErrNotFound
	}
	return model.Decode(m.doc)
}

func (m *Memory) Save(_ context.Context, st *model.GameState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves > 0 {
		m.FailSaves--
		return fmt.Errorf("memory save failed")
	}
	doc, err := model.Encode(st)
	if err != nil {
		return err
	}
	m.doc = doc
	m.saves++
	return nil
}

func (m *Memory) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func (m *Memory) Close() error { return nil }
