package sim

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kidsmoney/internal/model"
)

func TestCrisisEndsAfterMaxTurns(t *testing.T) {
	e := newTestEngine(DefaultConfig(), 1)
	st := newTestState()
	st.Turn = 9
	st.Economy.Status = model.RegimeCrisis
	st.Economy.RegimeSince = 9 - maxCrisisTurns
	st.Economy.PriceIndex = 10_000
	st.News = nil

	if !e.evolveEconomy(st, t0) {
		t.Fatalf("crisis should give way after %d turns", maxCrisisTurns)
	}
	eco := st.Economy
	if eco.Status != model.RegimeRecession || eco.RegimeSince != 9 || eco.LastUpdateTurn != 9 {
		t.Fatalf("economy = %+v", eco)
	}
	if !eco.InterestRate.Equal(decimal.RequireFromString("0.015")) || !eco.TaxAdjustment.Equal(decimal.RequireFromString("-0.01")) {
		t.Fatalf("rates not reset: interest=%s tax=%s", eco.InterestRate, eco.TaxAdjustment)
	}
	if eco.Trend != -1 || eco.PriceIndex != 9_980 {
		t.Fatalf("trend=%d index=%d", eco.Trend, eco.PriceIndex)
	}
	if len(st.News) != 1 || st.News[0].Category != "economy" {
		t.Fatalf("news = %+v", st.News)
	}
}

func TestUnknownRegimeFallsBackToNormal(t *testing.T) {
	e := newTestEngine(DefaultConfig(), 1)
	st := newTestState()
	st.Economy.Status = "panic"
	e.evolveEconomy(st, t0)
	if _, ok := regimeProfiles[st.Economy.Status]; !ok {
		t.Fatalf("status = %q", st.Economy.Status)
	}
}

func TestDisasterCountsDownAndClears(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DisasterChance = 0
	e := newTestEngine(cfg, 1)
	st := newTestState()
	st.Environment.Disaster = &model.Disaster{ID: "d1", Kind: "flood", Severity: 1, RemainingTurns: 2, StartedTurn: 1}
	st.News = nil

	var out Outcome
	st.Turn++
	e.evolveEnvironment(st, t0, &out)
	if d := st.Environment.Disaster; d == nil || d.RemainingTurns != 1 || out.DisasterCleared != "" {
		t.Fatalf("after one turn disaster=%+v cleared=%q", d, out.DisasterCleared)
	}

	st.Turn++
	e.evolveEnvironment(st, t0, &out)
	if st.Environment.Disaster != nil || out.DisasterCleared != "d1" {
		t.Fatalf("disaster=%+v cleared=%q", st.Environment.Disaster, out.DisasterCleared)
	}
	found := false
	for _, n := range st.News {
		if n.Category == "disaster" && strings.Contains(n.Headline, "flood") {
			found = true
		}
	}
	if !found {
		t.Fatalf("no clearing news in %+v", st.News)
	}

	out = Outcome{}
	st.Turn++
	e.evolveEnvironment(st, t0, &out)
	if st.Environment.Disaster != nil || out.DisasterStarted != "" {
		t.Fatalf("disaster spawned with zero chance")
	}
}

func TestSpawnRespectsCaps(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxActiveNPCs = 2
	cfg.MaxActiveEvents = 1
	e := newTestEngine(cfg, 7)
	st := newTestState()

	for i := 0; i < 300; i++ {
		st.Turn++
		var out Outcome
		e.spawnEntities(st, t0, &out)
		if len(st.ActiveNPCs) > 2 || len(st.ActiveEvents) > 1 {
			t.Fatalf("turn %d: npcs=%d events=%d", st.Turn, len(st.ActiveNPCs), len(st.ActiveEvents))
		}
	}
	if len(st.ActiveNPCs) != 2 || len(st.ActiveEvents) != 1 {
		t.Fatalf("caps never reached: npcs=%d events=%d", len(st.ActiveNPCs), len(st.ActiveEvents))
	}
}

func TestSpawnOneInstancePerTemplate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxActiveNPCs = 10
	cfg.MaxActiveEvents = 10
	e := newTestEngine(cfg, 3)
	st := newTestState()

	for i := 0; i < 200; i++ {
		st.Turn++
		e.spawnEntities(st, t0, &Outcome{})
	}
	seen := map[string]bool{}
	for _, n := range st.ActiveNPCs {
		if seen[n.TemplateID] {
			t.Fatalf("two %s active", n.TemplateID)
		}
		seen[n.TemplateID] = true
	}
	for _, ev := range st.ActiveEvents {
		if seen[ev.TemplateID] {
			t.Fatalf("two %s active", ev.TemplateID)
		}
		seen[ev.TemplateID] = true
	}
	if len(st.ActiveNPCs) > len(npcTemplates) || len(st.ActiveEvents) > len(eventTemplates) {
		t.Fatalf("npcs=%d events=%d", len(st.ActiveNPCs), len(st.ActiveEvents))
	}
}

func TestExpiryAtDuration(t *testing.T) {
	e := newTestEngine(DefaultConfig(), 1)
	st := newTestState()
	st.ActiveNPCs = []model.ActiveNPC{{ID: "n1", TemplateID: "street_musician", StartedAt: t0, DurationMS: 90_000}}
	st.ActiveEvents = []model.ActiveEvent{{ID: "ev1", TemplateID: "festival", StartedAt: t0, DurationMS: 60_000}}

	var out Outcome
	e.expireEntities(st, t0.Add(60*time.Second-time.Millisecond), &out)
	if len(out.Expired) != 0 || len(st.ActiveNPCs) != 1 || len(st.ActiveEvents) != 1 {
		t.Fatalf("expired early: %v", out.Expired)
	}

	e.expireEntities(st, t0.Add(60*time.Second), &out)
	if len(st.ActiveEvents) != 0 || len(st.ActiveNPCs) != 1 || len(out.Expired) != 1 || out.Expired[0] != "ev1" {
		t.Fatalf("at 60s expired=%v npcs=%d events=%d", out.Expired, len(st.ActiveNPCs), len(st.ActiveEvents))
	}

	e.expireEntities(st, t0.Add(90*time.Second), &out)
	if len(st.ActiveNPCs) != 0 || len(out.Expired) != 2 || out.Expired[1] != "n1" {
		t.Fatalf("at 90s expired=%v", out.Expired)
	}
}

func TestForbiddenStocksSwingHarder(t *testing.T) {
	cfg := DefaultConfig()
	// Same seed, so both engines draw identical noise.
	plain := newTestEngine(cfg, 11)
	wild := newTestEngine(cfg, 11)
	p := volatilityParams(cfg.Volatility)

	normal := model.Stock{ID: "N", Volatility: 0.02}
	forbidden := model.Stock{ID: "F", Volatility: 0.02, Forbidden: true}
	var moveNormal, moveForbidden int64
	for i := 0; i < 400; i++ {
		normal.Price, normal.Anchor = 10_000, 10_000
		forbidden.Price, forbidden.Anchor = 10_000, 10_000
		plain.walk(&normal, 0, p, 1, t0)
		wild.walk(&forbidden, 0, p, 1, t0)
		if normal.PreviousPrice != 10_000 || forbidden.PreviousPrice != 10_000 {
			t.Fatalf("previous price not recorded: %d %d", normal.PreviousPrice, forbidden.PreviousPrice)
		}
		moveNormal += abs64(normal.Price - 10_000)
		moveForbidden += abs64(forbidden.Price - 10_000)
	}
	if moveNormal == 0 || moveForbidden <= 2*moveNormal {
		t.Fatalf("forbidden moved %d, normal moved %d", moveForbidden, moveNormal)
	}
}

func TestMarketStepRecordsPreviousPrice(t *testing.T) {
	e := newTestEngine(DefaultConfig(), 5)
	st := newTestState()
	st.LastMarketAt = t0

	var out Outcome
	e.stepMarket(st, t0.Add(30*time.Second), &out)
	if out.MarketSteps != 3 {
		t.Fatalf("steps = %d", out.MarketSteps)
	}
	for _, s := range st.Stocks {
		n := len(s.History)
		if n < 2 || s.History[n-1].Price != s.Price || s.History[n-2].Price != s.PreviousPrice {
			t.Fatalf("%s: price=%d previous=%d history=%v", s.ID, s.Price, s.PreviousPrice, s.History)
		}
	}
}

func TestDebtInterestRoundsUp(t *testing.T) {
	st := newTestState()
	u := model.NewUser("kid1", "Kid", model.RolePlayer, t0)
	u.Debt = 10
	st.Users = append(st.Users, u)
	st.Economy.InterestRate = decimal.RequireFromString("0.02")
	st.Settings.LoanRate = decimal.RequireFromString("0.01")

	settle(st, t0)

	if got := st.Users[0].Debt; got != 11 {
		t.Fatalf("debt = %d want 11", got)
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
