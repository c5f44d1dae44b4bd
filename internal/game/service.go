package game

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"kidsmoney/internal/action"
	"kidsmoney/internal/model"
	"kidsmoney/internal/notify"
	"kidsmoney/internal/sim"
	"kidsmoney/internal/store"
)

// Service ties the store, tick engine, action processor and notification
// hub together. Every state-dependent call first advances the clock inside
// the same critical section it reads or mutates under.
type Service struct {
	store  *store.Store
	engine *sim.Engine
	proc   *action.Processor
	hub    *notify.Hub
	log    *slog.Logger
	now    func() time.Time
}

func NewService(st *store.Store, engine *sim.Engine, proc *action.Processor, hub *notify.Hub, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if hub == nil {
		hub = notify.NewHub(logger)
	}
	s := &Service{
		store:  st,
		engine: engine,
		proc:   proc,
		hub:    hub,
		log:    logger,
		now:    time.Now,
	}
	st.OnCommit(s.publish)
	return s
}

func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Hub() *notify.Hub { return s.hub }

func (s *Service) Tick(ctx context.Context) (TickResult, error) {
	var out sim.Outcome
	commit, err := s.store.Update(ctx, func(st *model.GameState) error {
		out = s.engine.Advance(st, s.now())
		return nil
	})
	if err != nil {
		return TickResult{}, err
	}
	res := TickResult{
		Revision:     commit.After.EventRevision,
		Changed:      commit.Changed,
		TurnsCrossed: out.TurnsCrossed,
		Notified:     commit.Delivered,
	}
	if out.TurnsCrossed > 0 || out.RegimeChanged || out.DisasterStarted != "" || out.DisasterCleared != "" {
		s.log.Info("tick",
			"turn", commit.After.Turn,
			"turns_crossed", out.TurnsCrossed,
			"market_steps", out.MarketSteps,
			"regime", commit.After.Economy.Status,
			"disaster_started", out.DisasterStarted,
			"disaster_cleared", out.DisasterCleared,
			"revision", res.Revision,
		)
	}
	return res, nil
}

// Submit ticks and applies a under one mutation. A rejected action leaves
// the state untouched, including the tick.
func (s *Service) Submit(ctx context.Context, a action.Action) (Result, error) {
	var receipt model.Receipt
	commit, err := s.store.Update(ctx, func(st *model.GameState) error {
		now := s.now()
		s.engine.Advance(st, now)
		r, err := s.proc.Apply(st, a, now)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		if kind := model.KindOf(err); kind == model.KindPersistence || kind == model.KindInternal {
			s.log.Error("action failed", "kind", a.Kind, "actor", a.ActorID, "err", err)
		}
		return Result{}, err
	}
	return Result{Receipt: receipt, State: view(commit.After, a.ActorID)}, nil
}

func (s *Service) EnsureUser(ctx context.Context, userID, name string, role model.Role) error {
	_, err := s.Submit(ctx, action.Action{Kind: action.KindSignup, ActorID: userID, Name: name, Role: string(role)})
	if errors.Is(err, model.ErrConflict) {
		return nil
	}
	return err
}

func (s *Service) State(ctx context.Context, viewerID string) (PublicState, error) {
	st, err := s.current(ctx)
	if err != nil {
		return PublicState{}, err
	}
	return view(st, viewerID), nil
}

// StateSince is State for pollers: ok is false when the revision still
// equals since.
func (s *Service) StateSince(ctx context.Context, viewerID string, since int64) (PublicState, bool, error) {
	st, err := s.current(ctx)
	if err != nil {
		return PublicState{}, false, err
	}
	if since > 0 && st.EventRevision == since {
		return PublicState{}, false, nil
	}
	return view(st, viewerID), true, nil
}

func (s *Service) current(ctx context.Context) (*model.GameState, error) {
	commit, err := s.store.Update(ctx, func(st *model.GameState) error {
		s.engine.Advance(st, s.now())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return commit.After, nil
}

func (s *Service) ListStocks(ctx context.Context) ([]StockView, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return stockViews(st, false), nil
}

func (s *Service) ForbiddenMarket(ctx context.Context, viewerID string) ([]StockView, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	u := st.User(viewerID)
	if u == nil {
		return nil, model.Reject(model.KindUnauthorized, "unknown user %q", viewerID)
	}
	if !u.ForbiddenUnlocked && u.Role != model.RoleAdmin {
		return nil, model.Reject(model.KindForbidden, "forbidden market is locked")
	}
	return stockViews(st, true), nil
}

func (s *Service) StockDetail(ctx context.Context, viewerID, id string) (StockDetail, error) {
	st, err := s.current(ctx)
	if err != nil {
		return StockDetail{}, err
	}
	stock := st.Stock(id)
	if stock != nil && stock.Forbidden {
		u := st.User(viewerID)
		if u == nil || (!u.ForbiddenUnlocked && u.Role != model.RoleAdmin) {
			stock = nil
		}
	}
	if stock == nil {
		return StockDetail{}, model.Reject(model.KindNotFound, "unknown stock %q", id)
	}
	out := StockDetail{StockView: stockView(*stock)}
	for i := len(stock.History) - 1; i >= 0 && len(out.Series) < 64; i-- {
		p := stock.History[i]
		out.Series = append(out.Series, PricePoint{Turn: p.Turn, Price: p.Price, At: p.At})
	}
	return out, nil
}

// Leaderboard ranks players by net worth: cash, deposit and public plus
// forbidden holdings at current prices, less debt.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	prices := make(map[string]int64, len(st.Stocks))
	for _, stock := range st.Stocks {
		prices[stock.ID] = stock.Price
	}
	var rows []LeaderboardRow
	for _, u := range st.Users {
		if u.Role != model.RolePlayer {
			continue
		}
		worth := u.Balance + u.Deposit - u.Debt
		for id, qty := range u.Stocks {
			worth += prices[id] * qty
		}
		for id, qty := range u.ForbiddenStocks {
			worth += prices[id] * qty
		}
		rows = append(rows, LeaderboardRow{UserID: u.ID, Name: u.Name, NetWorth: worth})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].NetWorth != rows[j].NetWorth {
			return rows[i].NetWorth > rows[j].NetWorth
		}
		return rows[i].UserID < rows[j].UserID
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		rows[i].Rank = int64(i + 1)
	}
	return rows, nil
}

// Subscribe opens a notification stream for userID. Admins receive every
// user's notifications.
func (s *Service) Subscribe(ctx context.Context, userID string) (*notify.Subscription, error) {
	st, err := s.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	u := st.User(userID)
	if u == nil {
		return nil, model.Reject(model.KindUnauthorized, "unknown user %q", userID)
	}
	return s.hub.Subscribe(userID, u.Role == model.RoleAdmin, 0), nil
}

func (s *Service) RunTicker(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = time.Second
	}
	s.log.Info("ticker started", "every", every.String())
	if _, err := s.Tick(ctx); err != nil {
		s.log.Error("tick failed", "err", err)
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("ticker stopped")
			return nil
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.log.Error("tick failed", "err", err)
			}
		}
	}
}

func (s *Service) publish(c store.Commit) int {
	return s.hub.Publish(notify.Diff(c.Before, c.After))
}
