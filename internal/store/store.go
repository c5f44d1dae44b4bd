package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kidsmoney/internal/model"
)

var ErrNotFound = errors.New("game state not found")

type Persister interface {
	Load(ctx context.Context) (*model.GameState, error)
	Save(ctx context.Context, st *model.GameState) error
}

type Options struct {
	AcquireTimeout time.Duration
	SaveAttempts   int
	SaveBackoff    time.Duration
}

// Commit describes one Update call. Before and After are private copies.
type Commit struct {
	Before    *model.GameState
	After     *model.GameState
	Changed   bool
	Delivered int
}

// Store owns the canonical GameState. Update is the only way to change it:
// one transform runs at a time, and a transform that fails or whose result
// cannot be persisted leaves the canonical state untouched.
type Store struct {
	p    Persister
	log  *slog.Logger
	opts Options

	// slot is a one-element semaphore. Goroutines blocked sending on a
	// channel are woken in arrival order, which gives FIFO fairness.
	slot chan struct{}

	cur *model.GameState
	raw []byte

	onCommit func(Commit) int
}

func Open(ctx context.Context, p Persister, seed func() *model.GameState, opts Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AcquireTimeout <= 0 {
		opts.AcquireTimeout = 5 * time.Second
	}
	if opts.SaveAttempts <= 0 {
		opts.SaveAttempts = 3
	}
	if opts.SaveBackoff <= 0 {
		opts.SaveBackoff = 50 * time.Millisecond
	}
	s := &Store{
		p:    p,
		log:  logger,
		opts: opts,
		slot: make(chan struct{}, 1),
	}

	st, err := p.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		st = seed()
		if err := s.save(ctx, st); err != nil {
			return nil, err
		}
		logger.Info("game state seeded", "stocks", len(st.Stocks), "lands", len(st.Lands))
	default:
		return nil, model.Wrap(model.KindPersistence, "load game state", err)
	}

	raw, err := model.Encode(st)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	s.cur, s.raw = st, raw
	return s, nil
}

// OnCommit registers fn to run for every changed commit while the slot is
// still held, so hooks observe revisions in order. fn must not block or call
// back into the store. Register it before the store is shared.
func (s *Store) OnCommit(fn func(Commit) int) {
	s.onCommit = fn
}

func (s *Store) Snapshot(ctx context.Context) (*model.GameState, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	raw := s.raw
	s.release()
	return model.Decode(raw)
}

func (s *Store) Revision(ctx context.Context) (int64, error) {
	if err := s.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.release()
	return s.cur.EventRevision, nil
}

// Update runs fn against a working copy of the state. If the copy differs
// from the canonical state afterwards (deep equality of the encoded
// document) the revision is bumped, the copy is persisted and becomes
// canonical. Persistence happens while the slot is held, so other mutators
// queue behind it.
func (s *Store) Update(ctx context.Context, fn func(st *model.GameState) error) (Commit, error) {
	if err := s.acquire(ctx); err != nil {
		return Commit{}, err
	}
	defer s.release()

	before, err := model.Decode(s.raw)
	if err != nil {
		return Commit{}, fmt.Errorf("decode state: %w", err)
	}
	work, err := model.Decode(s.raw)
	if err != nil {
		return Commit{}, fmt.Errorf("decode state: %w", err)
	}
	if err := fn(work); err != nil {
		return Commit{}, err
	}

	// The transform does not own the revision counter.
	work.EventRevision = s.cur.EventRevision
	raw, err := model.Encode(work)
	if err != nil {
		return Commit{}, fmt.Errorf("encode state: %w", err)
	}
	if bytes.Equal(raw, s.raw) {
		return Commit{Before: before, After: work}, nil
	}

	work.EventRevision = s.cur.EventRevision + 1
	if raw, err = model.Encode(work); err != nil {
		return Commit{}, fmt.Errorf("encode state: %w", err)
	}
	if err := s.save(ctx, work); err != nil {
		return Commit{}, err
	}

	after, err := model.Decode(raw)
	if err != nil {
		return Commit{}, fmt.Errorf("decode state: %w", err)
	}
	s.cur, s.raw = work, raw
	c := Commit{Before: before, After: after, Changed: true}
	if s.onCommit != nil {
		c.Delivered = s.onCommit(c)
	}
	return c, nil
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.slot <- struct{}{}:
		return nil
	default:
	}
	t := time.NewTimer(s.opts.AcquireTimeout)
	defer t.Stop()
	select {
	case s.slot <- struct{}{}:
		return nil
	case <-t.C:
		return model.Reject(model.KindBusy, "game state is busy, retry shortly")
	case <-ctx.Done():
		return model.Wrap(model.KindBusy, "waiting for game state", ctx.Err())
	}
}

func (s *Store) release() {
	<-s.slot
}

func (s *Store) save(ctx context.Context, st *model.GameState) error {
	delay := s.opts.SaveBackoff
	var err error
	for attempt := 1; attempt <= s.opts.SaveAttempts; attempt++ {
		if err = s.p.Save(ctx, st); err == nil {
			return nil
		}
		s.log.Warn("save game state failed", "attempt", attempt, "revision", st.EventRevision, "err", err)
		if attempt == s.opts.SaveAttempts {
			break
		}
		if serr := sleepWithContext(ctx, delay); serr != nil {
			break
		}
		delay *= 2
	}
	s.log.Error("game state not persisted", "revision", st.EventRevision, "err", err)
	return model.Wrap(model.KindPersistence, "persist game state", err)
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
