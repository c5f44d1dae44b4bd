package model

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNotional(t *testing.T) {
	got, err := Notional(150, 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 3_750 {
		t.Fatalf("got %d want 3750", got)
	}
	if _, err := Notional(math.MaxInt64/2, 3); err == nil {
		t.Fatalf("expected overflow error")
	}
}

func TestApplyRateRounding(t *testing.T) {
	tests := []struct {
		amount    int64
		rate      string
		floor     int64
		ceil      int64
	}{
		{amount: 1_000, rate: "0.02", floor: 20, ceil: 20},
		{amount: 999, rate: "0.01", floor: 9, ceil: 10},
		{amount: 1, rate: "0.5", floor: 0, ceil: 1},
		{amount: 0, rate: "0.5", floor: 0, ceil: 0},
		{amount: -50, rate: "0.1", floor: 0, ceil: 0},
		{amount: 500, rate: "0", floor: 0, ceil: 0},
	}
	for _, tc := range tests {
		rate := decimal.RequireFromString(tc.rate)
		if got := ApplyRate(tc.amount, rate); got != tc.floor {
			t.Fatalf("ApplyRate(%d, %s) = %d want %d", tc.amount, tc.rate, got, tc.floor)
		}
		if got := ApplyRateCeil(tc.amount, rate); got != tc.ceil {
			t.Fatalf("ApplyRateCeil(%d, %s) = %d want %d", tc.amount, tc.rate, got, tc.ceil)
		}
	}
}

func TestClampSuspicion(t *testing.T) {
	for in, want := range map[int]int{-5: 0, 0: 0, 42: 42, 100: 100, 250: 100} {
		if got := ClampSuspicion(in); got != want {
			t.Fatalf("ClampSuspicion(%d) = %d want %d", in, got, want)
		}
	}
}

func TestMoneySupplyCountsTreasury(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewGameState(now, 1, 0)
	s.Users = append(s.Users, NewUser("alice", "Alice", RolePlayer, now))
	s.Treasury.Minted = StarterBalance
	if got := MoneySupply(s); got != 0 {
		t.Fatalf("fresh supply = %d want 0", got)
	}

	// A stock purchase moves coins from the balance into the market bucket.
	s.Users[0].Balance -= 300
	s.Treasury.Market += 300
	// A deposit moves coins between the user's own buckets.
	s.Users[0].Balance -= 100
	s.Users[0].Deposit += 100
	if got := MoneySupply(s); got != 0 {
		t.Fatalf("supply after transfers = %d want 0", got)
	}

	s.Users[0].Balance += 5
	if got := MoneySupply(s); got != 5 {
		t.Fatalf("unbacked coins should show up, got %d", got)
	}
}

func TestNewGameStateSeed(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewGameState(now, 7, 0)
	if s.Turn != 1 || !s.IsTimerRunning {
		t.Fatalf("expected turn 1 with a running timer, got turn=%d running=%v", s.Turn, s.IsTimerRunning)
	}
	if s.TimeRemainingMS != DefaultTurnDuration.Milliseconds() {
		t.Fatalf("remaining = %d want %d", s.TimeRemainingMS, DefaultTurnDuration.Milliseconds())
	}
	if got := len(s.Lands); got != LandGridSize*LandGridSize+4 {
		t.Fatalf("lands = %d", got)
	}
	centre := s.Land("L3-3")
	if centre == nil || centre.Price != 900 {
		t.Fatalf("centre parcel = %+v", centre)
	}
	corner := s.Land("L0-0")
	if corner == nil || corner.Price != 420 {
		t.Fatalf("corner parcel = %+v", corner)
	}
	forbidden := 0
	for _, st := range s.Stocks {
		if st.Forbidden {
			forbidden++
		}
		if st.Price <= 0 || len(st.History) != 1 {
			t.Fatalf("stock %s seeded badly: %+v", st.ID, st)
		}
	}
	if forbidden != 3 {
		t.Fatalf("forbidden stocks = %d want 3", forbidden)
	}
}

func TestEncodeIsStable(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewGameState(now, 3, 0)
	u := NewUser("bob", "Bob", RolePlayer, now)
	u.Stocks["CANDY"] = 2
	u.Stocks["ROBOT"] = 1
	s.Users = append(s.Users, u)

	first, err := Encode(s)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	clone, err := Clone(s)
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	second, err := Encode(clone)
	if err != nil {
		t.Fatalf("encode clone: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("clone encodes differently")
	}
	clone.Users[0].Balance = 1
	if s.Users[0].Balance != StarterBalance {
		t.Fatalf("clone shares memory with the original")
	}
}

func TestAddNewsCapsHistory(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewGameState(now, 1, 0)
	for i := 0; i < MaxNews+7; i++ {
		s.AddNews("market", fmt.Sprintf("headline %d", i), now)
	}
	if len(s.News) != MaxNews {
		t.Fatalf("news = %d want %d", len(s.News), MaxNews)
	}
	if s.News[0].Headline != "headline 7" {
		t.Fatalf("oldest kept = %q", s.News[0].Headline)
	}
}

func TestAdjustHappinessBounds(t *testing.T) {
	u := NewUser("c1", "C", RolePlayer, time.Now())
	u.AdjustHappiness(80)
	if u.Happiness != 100 {
		t.Fatalf("happiness = %d want 100", u.Happiness)
	}
	u.AdjustHappiness(-300)
	if u.Happiness != 0 {
		t.Fatalf("happiness = %d want 0", u.Happiness)
	}
}

func TestErrorKinds(t *testing.T) {
	err := Reject(KindInsufficientFunds, "need %d coins", 50)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds match")
	}
	if errors.Is(err, ErrConflict) {
		t.Fatalf("unexpected conflict match")
	}
	if err.Error() != "need 50 coins" {
		t.Fatalf("message = %q", err.Error())
	}

	cause := errors.New("disk full")
	wrapped := fmt.Errorf("commit: %w", Wrap(KindPersistence, "save state", cause))
	if KindOf(wrapped) != KindPersistence {
		t.Fatalf("kind = %s", KindOf(wrapped))
	}
	if !errors.Is(wrapped, cause) || !errors.Is(wrapped, ErrPersistence) {
		t.Fatalf("wrapped error lost its chain")
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatalf("untyped errors should be internal")
	}
}
