package sim

import (
	"math/rand"
	"time"

	"kidsmoney/internal/model"
)

type Config struct {
	TurnDuration time.Duration
	MinStep     time.Duration
	MarketEvery time.Duration
	MaxMarketSteps      int
	Volatility          string
	ForbiddenMultiplier float64
	PriceHistory        int
	MinPrice            int64
	MaxPrice            int64
	WeatherEveryTurns   int
	TurnsPerSeason      int
	DisasterChance      float64
	MaxActiveNPCs       int
	MaxActiveEvents     int
	MaxCatchUpTurns     int
	CallRingTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		TurnDuration:        model.DefaultTurnDuration,
		MinStep:             time.Second,
		MarketEvery:         10 * time.Second,
		MaxMarketSteps:      50,
		Volatility:          "mor",
		ForbiddenMultiplier: 3,
		PriceHistory:        50,
		MinPrice:            1,
		MaxPrice:            1_000_000,
		WeatherEveryTurns:   3,
		TurnsPerSeason:      12,
		DisasterChance:      0.03,
		MaxActiveNPCs:       3,
		MaxActiveEvents:     2,
		MaxCatchUpTurns:     1_000,
		CallRingTimeout:     30 * time.Second,
	}
}

type Outcome struct {
	Changed         bool
	TurnsCrossed    int
	MarketSteps     int
	RegimeChanged   bool
	DisasterStarted string
	DisasterCleared string
	Spawned         []string
	Expired         []string
	Resolved        []string
	CallsMissed     int
}

// Engine advances a GameState through wall-clock time. It keeps no state of
// its own besides the random source, and is not safe for concurrent use; the
// store's mutation slot serialises calls.
type Engine struct {
	cfg Config
	rng *rand.Rand
}

func New(cfg Config, rng *rand.Rand) *Engine {
	def := DefaultConfig()
	if cfg.TurnDuration <= 0 {
		cfg.TurnDuration = def.TurnDuration
	}
	if cfg.MarketEvery <= 0 {
		cfg.MarketEvery = def.MarketEvery
	}
	if cfg.MaxMarketSteps <= 0 {
		cfg.MaxMarketSteps = def.MaxMarketSteps
	}
	if cfg.PriceHistory <= 0 {
		cfg.PriceHistory = def.PriceHistory
	}
	if cfg.MinPrice <= 0 {
		cfg.MinPrice = def.MinPrice
	}
	if cfg.MaxPrice <= cfg.MinPrice {
		cfg.MaxPrice = def.MaxPrice
	}
	if cfg.ForbiddenMultiplier < 1 {
		cfg.ForbiddenMultiplier = def.ForbiddenMultiplier
	}
	if cfg.WeatherEveryTurns <= 0 {
		cfg.WeatherEveryTurns = def.WeatherEveryTurns
	}
	if cfg.TurnsPerSeason <= 0 {
		cfg.TurnsPerSeason = def.TurnsPerSeason
	}
	if cfg.MaxCatchUpTurns <= 0 {
		cfg.MaxCatchUpTurns = def.MaxCatchUpTurns
	}
	if cfg.CallRingTimeout <= 0 {
		cfg.CallRingTimeout = def.CallRingTimeout
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{cfg: cfg, rng: rng}
}

func (e *Engine) Config() Config { return e.cfg }

// Advance evolves st in place up to now. Each turn boundary crossed runs the
// end-of-turn settlement exactly once; a long sleep replays at most
// MaxCatchUpTurns boundaries and then restarts the countdown at a full turn.
func (e *Engine) Advance(st *model.GameState, now time.Time) Outcome {
	now = now.UTC()
	elapsed := now.Sub(st.LastTick)
	if elapsed < e.cfg.MinStep || elapsed <= 0 {
		return Outcome{}
	}
	st.LastTick = now
	out := Outcome{Changed: true}

	if st.IsTimerRunning {
		turnMS := e.turnDuration(st).Milliseconds()
		remaining := st.TimeRemainingMS - elapsed.Milliseconds()
		for remaining <= 0 {
			if out.TurnsCrossed >= e.cfg.MaxCatchUpTurns {
				remaining = turnMS
				break
			}
			out.TurnsCrossed++
			st.Turn++
			st.IsDay = !st.IsDay
			e.endOfTurn(st, now, &out)
			remaining += turnMS
		}
		st.TimeRemainingMS = remaining
	}

	e.stepMarket(st, now, &out)
	e.expireEntities(st, now, &out)
	e.resolveProposals(st, now, &out)
	e.missCalls(st, now, &out)
	return out
}

func (e *Engine) turnDuration(st *model.GameState) time.Duration {
	if st.Settings.TurnDurationMS > 0 {
		return time.Duration(st.Settings.TurnDurationMS) * time.Millisecond
	}
	return e.cfg.TurnDuration
}

func (e *Engine) endOfTurn(st *model.GameState, now time.Time, out *Outcome) {
	settle(st, now)
	if e.evolveEconomy(st, now) {
		out.RegimeChanged = true
	}
	e.evolveEnvironment(st, now, out)
	e.spawnEntities(st, now, out)
	for i := range st.Users {
		st.Users[i].Suspicion = model.ClampSuspicion(st.Users[i].Suspicion - 1)
	}
}
