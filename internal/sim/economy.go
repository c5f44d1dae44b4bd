package sim

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"kidsmoney/internal/model"
)

type regimeOdds struct {
	to   model.Regime
	prob float64
}

// Per-turn transition odds. Crisis is rare to enter and quick to leave.
var regimeTransitions = map[model.Regime][]regimeOdds{
	model.RegimeNormal:    {{model.RegimeBoom, 0.08}, {model.RegimeRecession, 0.06}},
	model.RegimeBoom:      {{model.RegimeNormal, 0.15}, {model.RegimeRecession, 0.05}},
	model.RegimeRecession: {{model.RegimeNormal, 0.12}, {model.RegimeBoom, 0.03}, {model.RegimeCrisis, 0.04}},
	model.RegimeCrisis:    {{model.RegimeRecession, 0.55}},
}

const maxCrisisTurns = 3

type regimeProfile struct {
	drift         float64
	interest      decimal.Decimal
	taxAdjustment decimal.Decimal
	indexBps      int64
	trend         int
}

var regimeProfiles = map[model.Regime]regimeProfile{
	model.RegimeBoom:      {0.006, decimal.RequireFromString("0.03"), decimal.RequireFromString("0.01"), 40, 1},
	model.RegimeNormal:    {0.0, decimal.RequireFromString("0.02"), decimal.Zero, 10, 0},
	model.RegimeRecession: {-0.005, decimal.RequireFromString("0.015"), decimal.RequireFromString("-0.01"), -20, -1},
	model.RegimeCrisis:    {-0.02, decimal.RequireFromString("0.05"), decimal.RequireFromString("-0.02"), -60, -1},
}

func regimeDrift(r model.Regime) float64 {
	return regimeProfiles[r].drift
}

func (e *Engine) evolveEconomy(st *model.GameState, now time.Time) bool {
	eco := &st.Economy
	if _, ok := regimeProfiles[eco.Status]; !ok {
		eco.Status = model.RegimeNormal
	}

	next := eco.Status
	if eco.Status == model.RegimeCrisis && st.Turn-eco.RegimeSince >= maxCrisisTurns {
		next = model.RegimeRecession
	} else {
		roll := e.rng.Float64()
		acc := 0.0
		for _, odds := range regimeTransitions[eco.Status] {
			acc += odds.prob
			if roll < acc {
				next = odds.to
				break
			}
		}
	}

	changed := next != eco.Status
	if changed {
		prev := eco.Status
		p := regimeProfiles[next]
		eco.Status = next
		eco.RegimeSince = st.Turn
		eco.InterestRate = p.interest
		eco.TaxAdjustment = p.taxAdjustment
		eco.Trend = p.trend
		st.AddNews("economy", fmt.Sprintf("Economy shifts from %s to %s", prev, next), now)
	}

	eco.PriceIndex = max(5_000, eco.PriceIndex+regimeProfiles[eco.Status].indexBps)
	eco.LastUpdateTurn = st.Turn
	return changed
}
