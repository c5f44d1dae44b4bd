package sim

import (
	"math"
	"strings"
	"time"

	"kidsmoney/internal/model"
)

type marketDynamics struct {
	NoiseScale       float64
	ShockProb        float64
	ShockScale       float64
	ExtremeShockProb float64
	MeanReversion    float64
	AnchorNoiseScale float64
	MaxDropPerStep   float64
}

func volatilityParams(mode string) marketDynamics {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "calm":
		return marketDynamics{
			NoiseScale:       0.6,
			ShockProb:        0.03,
			ShockScale:       1.5,
			ExtremeShockProb: 0.004,
			MeanReversion:    0.05,
			AnchorNoiseScale: 0.004,
			MaxDropPerStep:   0.25,
		}
	case "wild":
		return marketDynamics{
			NoiseScale:       1.6,
			ShockProb:        0.10,
			ShockScale:       2.5,
			ExtremeShockProb: 0.025,
			MeanReversion:    0.015,
			AnchorNoiseScale: 0.012,
			MaxDropPerStep:   0.60,
		}
	default:
		return marketDynamics{
			NoiseScale:       1.0,
			ShockProb:        0.06,
			ShockScale:       2.0,
			ExtremeShockProb: 0.01,
			MeanReversion:    0.03,
			AnchorNoiseScale: 0.008,
			MaxDropPerStep:   0.40,
		}
	}
}

// stepMarket replays the random walk for every MarketEvery interval that
// has elapsed since the last step, so price movement does not depend on how
// often Advance is called.
func (e *Engine) stepMarket(st *model.GameState, now time.Time, out *Outcome) {
	if st.LastMarketAt.IsZero() {
		st.LastMarketAt = now
		return
	}
	steps := int(now.Sub(st.LastMarketAt) / e.cfg.MarketEvery)
	if steps <= 0 {
		return
	}
	if steps > e.cfg.MaxMarketSteps {
		steps = e.cfg.MaxMarketSteps
		st.LastMarketAt = now
	} else {
		st.LastMarketAt = st.LastMarketAt.Add(time.Duration(steps) * e.cfg.MarketEvery)
	}

	params := volatilityParams(e.cfg.Volatility)
	drift := regimeDrift(st.Economy.Status)
	for _, ev := range st.ActiveEvents {
		drift += ev.Drift
	}
	for n := 0; n < steps; n++ {
		for i := range st.Stocks {
			e.walk(&st.Stocks[i], drift, params, st.Turn, now)
		}
	}
	out.MarketSteps = steps
}

func (e *Engine) walk(s *model.Stock, drift float64, p marketDynamics, turn int, now time.Time) {
	vol := s.Volatility * p.NoiseScale
	if s.Forbidden {
		vol *= e.cfg.ForbiddenMultiplier
	}

	anchorRet := 0.3*drift + p.AnchorNoiseScale*e.rng.NormFloat64()
	s.Anchor = e.clampPrice(evolvePrice(s.Anchor, anchorRet, p.MaxDropPerStep))

	ret := drift + vol*e.rng.NormFloat64() + meanReversion(s.Price, s.Anchor, p.MeanReversion)
	if e.rng.Float64() < p.ShockProb {
		ret += signedShock(e.rng.Float64(), e.rng.Float64(), vol*p.ShockScale)
	}
	if e.rng.Float64() < p.ExtremeShockProb {
		ret += signedShock(e.rng.Float64(), e.rng.Float64(), vol*p.ShockScale*2)
	}

	s.PreviousPrice = s.Price
	s.Price = e.clampPrice(evolvePrice(s.Price, ret, p.MaxDropPerStep))
	s.History = append(s.History, model.PricePoint{Turn: turn, Price: s.Price, At: now})
	if over := len(s.History) - e.cfg.PriceHistory; over > 0 {
		s.History = append([]model.PricePoint(nil), s.History[over:]...)
	}
}

func (e *Engine) clampPrice(p int64) int64 {
	return max(e.cfg.MinPrice, min(e.cfg.MaxPrice, p))
}

func meanReversion(price, anchor int64, strength float64) float64 {
	if anchor <= 0 || price <= 0 {
		return 0
	}
	return strength * (float64(anchor-price) / float64(anchor))
}

func signedShock(magSeed, signSeed, base float64) float64 {
	mag := base * (0.35 + 2.8*magSeed*magSeed)
	if signSeed < 0.5 {
		return -mag
	}
	return mag
}

func evolvePrice(price int64, ret, maxDrop float64) int64 {
	if price <= 0 {
		return 1
	}
	// Bound only the downside; upside can run until the ceiling.
	if ret < -maxDrop {
		ret = -maxDrop
	}
	f := float64(price) * math.Exp(ret)
	if f > 1e15 || math.IsNaN(f) {
		f = 1e15
	}
	next := int64(math.Round(f))
	if next < 1 {
		next = 1
	}
	return next
}
