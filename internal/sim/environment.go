package sim

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ojrac/opensimplex-go"

	"kidsmoney/internal/model"
)

var seasons = [4]string{"spring", "summer", "autumn", "winter"}

var seasonBaseTemp = map[string]int{
	"spring": 15,
	"summer": 27,
	"autumn": 12,
	"winter": 2,
}

type weatherOdds struct {
	weather string
	weight  int
}

var seasonWeather = map[string][]weatherOdds{
	"spring": {{"sunny", 4}, {"cloudy", 3}, {"rain", 3}, {"storm", 1}},
	"summer": {{"sunny", 6}, {"cloudy", 2}, {"storm", 1}, {"heatwave", 2}},
	"autumn": {{"sunny", 2}, {"cloudy", 4}, {"rain", 4}, {"storm", 2}},
	"winter": {{"cloudy", 4}, {"snow", 4}, {"sunny", 2}, {"storm", 1}},
}

var weatherTemp = map[string]int{
	"sunny":    3,
	"cloudy":   0,
	"rain":     -2,
	"storm":    -3,
	"snow":     -6,
	"heatwave": 8,
}

var weatherDisaster = map[string]struct {
	factor float64
	kind   string
}{
	"storm":    {3, "flood"},
	"heatwave": {2, "wildfire"},
	"snow":     {1.5, "blizzard"},
	"rain":     {1.2, "flood"},
}

const infrastructureDamagePerSeverity = 3

func seasonForTurn(turn, turnsPerSeason int) string {
	idx := ((max(turn, 1) - 1) / turnsPerSeason) % len(seasons)
	return seasons[idx]
}

func (e *Engine) evolveEnvironment(st *model.GameState, now time.Time, out *Outcome) {
	env := &st.Environment
	if env.Infrastructure == nil {
		env.Infrastructure = map[string]int{}
	}

	season := seasonForTurn(st.Turn, e.cfg.TurnsPerSeason)
	if season != env.Season {
		env.Season = season
		st.AddNews("environment", fmt.Sprintf("A new season begins: %s", season), now)
	}
	if st.Turn >= env.WeatherUntilTurn {
		env.Weather = e.pickWeather(season)
		env.WeatherUntilTurn = st.Turn + e.cfg.WeatherEveryTurns
	}

	// Smooth drift around the seasonal base; seeded from the state so the
	// curve survives restarts.
	noise := opensimplex.New(st.Seed)
	wobble := noise.Eval2(float64(st.Turn)/8, 0)
	env.Temperature = seasonBaseTemp[season] + weatherTemp[env.Weather] + int(6*wobble)

	if d := env.Disaster; d != nil {
		d.RemainingTurns--
		if d.RemainingTurns <= 0 {
			env.Disaster = nil
			out.DisasterCleared = d.ID
			st.AddNews("disaster", fmt.Sprintf("The %s is over, the town is recovering", d.Kind), now)
		}
		return
	}

	for k, v := range env.Infrastructure {
		env.Infrastructure[k] = min(100, v+1)
	}

	chance := e.cfg.DisasterChance
	kind := "earthquake"
	if w, ok := weatherDisaster[env.Weather]; ok {
		chance *= w.factor
		kind = w.kind
	}
	if e.rng.Float64() >= chance {
		return
	}

	severity := 1 + e.rng.Intn(5)
	d := &model.Disaster{
		ID:             uuid.NewString(),
		Kind:           kind,
		Severity:       severity,
		RemainingTurns: severity + 1,
		StartedTurn:    st.Turn,
	}
	env.Disaster = d
	for k, v := range env.Infrastructure {
		env.Infrastructure[k] = max(0, v-severity*infrastructureDamagePerSeverity)
	}
	for i := range st.Users {
		st.Users[i].AdjustHappiness(-severity)
	}
	out.DisasterStarted = d.ID
	st.AddNews("disaster", fmt.Sprintf("A severity %d %s hits the town", severity, kind), now)
}

func (e *Engine) pickWeather(season string) string {
	odds := seasonWeather[season]
	total := 0
	for _, o := range odds {
		total += o.weight
	}
	if total == 0 {
		return "sunny"
	}
	roll := e.rng.Intn(total)
	for _, o := range odds {
		if roll < o.weight {
			return o.weather
		}
		roll -= o.weight
	}
	return odds[len(odds)-1].weather
}
