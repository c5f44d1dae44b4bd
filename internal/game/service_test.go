package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"kidsmoney/internal/action"
	"kidsmoney/internal/model"
	"kidsmoney/internal/notify"
	"kidsmoney/internal/persistence"
	"kidsmoney/internal/sim"
	"kidsmoney/internal/store"
)

var start = time.Date(2026, 8, 10, 15, 0, 0, 0, time.UTC)

type harness struct {
	svc *Service
	mem *persistence.Memory
	now time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{mem: persistence.NewMemory(), now: start}
	st, err := store.Open(ctx, h.mem, func() *model.GameState {
		return model.NewGameState(start, 3, time.Minute)
	}, store.Options{SaveBackoff: time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	engine := sim.New(sim.DefaultConfig(), rand.New(rand.NewSource(3)))
	h.svc = NewService(st, engine, action.NewProcessor(action.DefaultConfig()), notify.NewHub(nil), nil)
	h.svc.SetClock(func() time.Time { return h.now })

	for _, u := range []struct {
		id   string
		role model.Role
	}{
		{"admin_1", model.RoleAdmin},
		{"kid_one", model.RolePlayer},
		{"kid_two", model.RolePlayer},
	} {
		if err := h.svc.EnsureUser(ctx, u.id, "", u.role); err != nil {
			t.Fatalf("ensure %s: %v", u.id, err)
		}
	}
	return h
}

func TestEnsureUserIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if err := h.svc.EnsureUser(ctx, "kid_one", "", model.RolePlayer); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	st, err := h.svc.State(ctx, "kid_one")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if len(st.Players) != 3 {
		t.Fatalf("players = %d", len(st.Players))
	}
}

func TestSubmitReturnsReceiptAndView(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.svc.Submit(ctx, action.Action{Kind: action.KindBuyStock, ActorID: "kid_one", StockID: "CANDY", Quantity: 2})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Receipt.Amount != 200 || res.State.Me == nil || res.State.Me.Balance != 800 {
		t.Fatalf("result = %+v", res.Receipt)
	}
	for _, s := range res.State.Stocks {
		if s.Forbidden {
			t.Fatalf("forbidden stock %s leaked into the public view", s.ID)
		}
	}
}

func TestRejectedActionDiscardsTick(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	before, err := h.svc.State(ctx, "kid_one")
	if err != nil {
		t.Fatalf("state: %v", err)
	}

	h.now = start.Add(2 * time.Minute)
	_, err = h.svc.Submit(ctx, action.Action{Kind: action.KindWithdraw, ActorID: "kid_one", Amount: 5})
	if !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("err = %v", err)
	}

	h.now = start
	after, ok, err := h.svc.StateSince(ctx, "kid_one", before.Revision)
	if err != nil {
		t.Fatalf("state since: %v", err)
	}
	if ok {
		t.Fatalf("rejected action moved the revision to %d", after.Revision)
	}
}

func TestStateSinceAndTick(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cur, err := h.svc.State(ctx, "kid_two")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if _, ok, _ := h.svc.StateSince(ctx, "kid_two", cur.Revision); ok {
		t.Fatalf("unchanged state should report not modified")
	}

	h.now = start.Add(90 * time.Second)
	res, err := h.svc.Tick(ctx)
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	if !res.Changed || res.TurnsCrossed != 1 || res.Revision != cur.Revision+1 {
		t.Fatalf("tick = %+v", res)
	}
	next, ok, err := h.svc.StateSince(ctx, "kid_two", cur.Revision)
	if err != nil || !ok {
		t.Fatalf("expected fresh state, ok=%v err=%v", ok, err)
	}
	if next.Turn != 2 || next.TimeRemainingMS != 30_000 {
		t.Fatalf("turn=%d remaining=%d", next.Turn, next.TimeRemainingMS)
	}
}

func TestPersistenceFailureLeavesState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.mem.FailSaves = 10
	_, err := h.svc.Submit(ctx, action.Action{Kind: action.KindDeposit, ActorID: "kid_one", Amount: 100})
	if model.KindOf(err) != model.KindPersistence {
		t.Fatalf("err = %v", err)
	}
	h.mem.FailSaves = 0
	st, err := h.svc.State(ctx, "kid_one")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.Me.Deposit != 0 || st.Me.Balance != model.StarterBalance {
		t.Fatalf("unsaved action leaked: %+v", st.Me)
	}
}

func TestViewHidesOtherPlayersData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mustSubmit(t, h, action.Action{Kind: action.KindSendMessage, ActorID: "kid_one", TargetID: "kid_two", Body: "secret"})
	mustSubmit(t, h, action.Action{Kind: action.KindRequestLoan, ActorID: "kid_one", Amount: 20})

	other, err := h.svc.State(ctx, "admin_1")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if len(other.Messages) != 0 {
		t.Fatalf("admin sees private messages")
	}
	if len(other.Requests) != 1 {
		t.Fatalf("staff should see requests, got %d", len(other.Requests))
	}

	two, _ := h.svc.State(ctx, "kid_two")
	if len(two.Messages) != 1 || two.Unread != 1 || len(two.Requests) != 0 {
		t.Fatalf("kid_two view: messages=%d unread=%d requests=%d", len(two.Messages), two.Unread, len(two.Requests))
	}
}

func TestForbiddenMarketAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.ForbiddenMarket(ctx, "kid_one"); !errors.Is(err, model.ErrForbidden) {
		t.Fatalf("err = %v", err)
	}
	if _, err := h.svc.StockDetail(ctx, "kid_one", "SHADY"); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("locked detail err = %v", err)
	}
	mustSubmit(t, h, action.Action{Kind: action.KindUnlockForbidden, ActorID: "kid_one"})
	stocks, err := h.svc.ForbiddenMarket(ctx, "kid_one")
	if err != nil || len(stocks) != 3 {
		t.Fatalf("forbidden market = %d err=%v", len(stocks), err)
	}
	detail, err := h.svc.StockDetail(ctx, "kid_one", "SHADY")
	if err != nil || len(detail.Series) == 0 {
		t.Fatalf("detail = %+v err=%v", detail, err)
	}
}

func TestLeaderboard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	mustSubmit(t, h, action.Action{Kind: action.KindTransfer, ActorID: "kid_one", TargetID: "kid_two", Amount: 300})
	mustSubmit(t, h, action.Action{Kind: action.KindTakeLoan, ActorID: "kid_one", Amount: 500})

	rows, err := h.svc.Leaderboard(ctx, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0].UserID != "kid_two" || rows[0].NetWorth != 1_300 || rows[0].Rank != 1 {
		t.Fatalf("top row = %+v", rows[0])
	}
	// A loan adds cash and debt in equal measure.
	if rows[1].NetWorth != 700 {
		t.Fatalf("second row = %+v", rows[1])
	}

	rows, _ = h.svc.Leaderboard(ctx, 1)
	if len(rows) != 1 {
		t.Fatalf("limit ignored")
	}
}

func TestSubscribeReceivesNotifications(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.Subscribe(ctx, "ghost"); !errors.Is(err, model.ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}
	sub, err := h.svc.Subscribe(ctx, "kid_two")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	mustSubmit(t, h, action.Action{Kind: action.KindTransfer, ActorID: "kid_one", TargetID: "kid_two", Amount: 40})

	found := false
	for len(sub.C) > 0 {
		n := <-sub.C
		if n.UserID != "" && n.UserID != "kid_two" {
			t.Fatalf("received another user's notification: %+v", n)
		}
		if n.Kind == notify.KindBalanceChanged && n.Amount == 1_040 {
			found = true
		}
	}
	if !found {
		t.Fatalf("balance notification not delivered")
	}
}

func TestRunTickerStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.svc.RunTicker(ctx, 10*time.Millisecond) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("ticker: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("ticker did not stop")
	}
}

func mustSubmit(t *testing.T, h *harness, a action.Action) Result {
	t.Helper()
	res, err := h.svc.Submit(context.Background(), a)
	if err != nil {
		t.Fatalf("%s: %v", a.Kind, err)
	}
	return res
}

func TestConcurrentLandPurchaseHasOneWinner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	const buyers = 12
	for i := 0; i < buyers; i++ {
		if err := h.svc.EnsureUser(ctx, fmt.Sprintf("buyer_%02d", i), "", model.RolePlayer); err != nil {
			t.Fatalf("ensure buyer %d: %v", i, err)
		}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  []string
		conflict int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := h.svc.Submit(ctx, action.Action{Kind: action.KindBuyLand, ActorID: id, LandID: "L0-0"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners = append(winners, id)
			case errors.Is(err, model.ErrConflict):
				conflict++
			default:
				t.Errorf("%s: %v", id, err)
			}
		}(fmt.Sprintf("buyer_%02d", i))
	}
	wg.Wait()

	if len(winners) != 1 || conflict != buyers-1 {
		t.Fatalf("winners=%v conflicts=%d", winners, conflict)
	}
	st, err := h.mem.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	l := st.Land("L0-0")
	if l.Status != model.LandSold || l.OwnerID == nil || *l.OwnerID != winners[0] {
		t.Fatalf("land = %+v", l)
	}
	for _, u := range st.Users {
		if !strings.HasPrefix(u.ID, "buyer_") {
			continue
		}
		want := model.StarterBalance
		if u.ID == winners[0] {
			want -= l.Price
		}
		if u.Balance != want {
			t.Fatalf("%s balance = %d want %d", u.ID, u.Balance, want)
		}
	}
}
