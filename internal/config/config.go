package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr      string          `yaml:"addr"`
	LogLevel  string          `yaml:"log_level"`
	AdminIDs  []string        `yaml:"admin_ids"`
	BankerIDs []string        `yaml:"banker_ids"`
	Storage   StorageConfig   `yaml:"storage"`
	Game      GameConfig      `yaml:"game"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"`
	Path        string `yaml:"path"`
	DatabaseURL string `yaml:"database_url"`
	InstanceID  string `yaml:"instance_id"`
}

type GameConfig struct {
	Seed                          int64         `yaml:"seed"`
	TurnDuration                  time.Duration `yaml:"turn_duration"`
	MinTickStep                   time.Duration `yaml:"min_tick_step"`
	MarketEvery                   time.Duration `yaml:"market_every"`
	TickEvery                     time.Duration `yaml:"tick_every"`
	Volatility                    string        `yaml:"volatility"`
	ForbiddenVolatilityMultiplier float64       `yaml:"forbidden_volatility_multiplier"`
	PriceHistory                  int           `yaml:"price_history"`
	MinPrice                      int64         `yaml:"min_price"`
	MaxPrice                      int64         `yaml:"max_price"`
	StarterBalance                int64         `yaml:"starter_balance"`
	LoanCap                       int64         `yaml:"loan_cap"`
	UnlockFee                     int64         `yaml:"unlock_fee"`
	IdempotencyCapacity           int           `yaml:"idempotency_capacity"`
	MutationTimeout               time.Duration `yaml:"mutation_timeout"`
	SaveAttempts                  int           `yaml:"save_attempts"`
	WeatherEveryTurns             int           `yaml:"weather_every_turns"`
	DisasterChance                float64       `yaml:"disaster_chance"`
	MaxActiveNPCs                 int           `yaml:"max_active_npcs"`
	MaxActiveEvents               int           `yaml:"max_active_events"`
	MaxCatchUpTurns               int           `yaml:"max_catch_up_turns"`
}

type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

type CLIConfig struct {
	APIBaseURL string
}

func DefaultAPI() APIConfig {
	return APIConfig{
		Addr:     ":8080",
		LogLevel: "info",
		Storage: StorageConfig{
			Driver:     "file",
			Path:       "kidsmoney.state.zst",
			InstanceID: "default",
		},
		Game: GameConfig{
			TurnDuration:                  60 * time.Second,
			MinTickStep:                   time.Second,
			MarketEvery:                   10 * time.Second,
			TickEvery:                     5 * time.Second,
			Volatility:                    "mor",
			ForbiddenVolatilityMultiplier: 3,
			PriceHistory:                  50,
			MinPrice:                      1,
			MaxPrice:                      1_000_000,
			StarterBalance:                1_000,
			LoanCap:                       5_000,
			UnlockFee:                     250,
			IdempotencyCapacity:           4096,
			MutationTimeout:               5 * time.Second,
			SaveAttempts:                  3,
			WeatherEveryTurns:             3,
			DisasterChance:                0.03,
			MaxActiveNPCs:                 3,
			MaxActiveEvents:               2,
			MaxCatchUpTurns:               1_000,
		},
		RateLimit: RateLimitConfig{PerSecond: 5, Burst: 10},
	}
}

func (c *APIConfig) applyEnv() {
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		c.Addr = port
	} else {
		c.Addr = envDefault("KIDSMONEY_ADDR", c.Addr)
	}
	c.LogLevel = envDefault("KIDSMONEY_LOG_LEVEL", c.LogLevel)
	c.AdminIDs = envListDefault("KIDSMONEY_ADMIN_IDS", c.AdminIDs)
	c.BankerIDs = envListDefault("KIDSMONEY_BANKER_IDS", c.BankerIDs)

	c.Storage.Driver = strings.ToLower(envDefault("KIDSMONEY_STORAGE", c.Storage.Driver))
	c.Storage.Path = envDefault("KIDSMONEY_STORAGE_PATH", c.Storage.Path)
	c.Storage.DatabaseURL = envDefault("DATABASE_URL", c.Storage.DatabaseURL)
	c.Storage.InstanceID = envDefault("KIDSMONEY_INSTANCE_ID", c.Storage.InstanceID)

	g := &c.Game
	g.Seed = envInt64Default("KIDSMONEY_SEED", g.Seed)
	g.TurnDuration = envDurationDefault("KIDSMONEY_TURN_DURATION", g.TurnDuration)
	g.MarketEvery = envDurationDefault("KIDSMONEY_MARKET_EVERY", g.MarketEvery)
	g.TickEvery = envDurationDefault("KIDSMONEY_TICK_EVERY", g.TickEvery)
	g.Volatility = envVolatilityDefault(g.Volatility)
	g.StarterBalance = envInt64Default("KIDSMONEY_STARTER_BALANCE", g.StarterBalance)
	g.LoanCap = envInt64Default("KIDSMONEY_LOAN_CAP", g.LoanCap)
	g.DisasterChance = envFloatDefault("KIDSMONEY_DISASTER_CHANCE", g.DisasterChance)
	g.MutationTimeout = envDurationDefault("KIDSMONEY_MUTATION_TIMEOUT", g.MutationTimeout)

	c.RateLimit.PerSecond = envFloatDefault("KIDSMONEY_RATE_PER_SECOND", c.RateLimit.PerSecond)
	c.RateLimit.Burst = int(envInt64Default("KIDSMONEY_RATE_BURST", int64(c.RateLimit.Burst)))
}

func (c APIConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("addr is required")
	}
	switch c.Storage.Driver {
	case "memory":
	case "file", "sqlite":
		if strings.TrimSpace(c.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for the %s driver", c.Storage.Driver)
		}
	case "postgres":
		if strings.TrimSpace(c.Storage.DatabaseURL) == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	g := c.Game
	switch {
	case g.TurnDuration < time.Second:
		return fmt.Errorf("game.turn_duration must be at least 1s")
	case g.MarketEvery <= 0 || g.TickEvery <= 0:
		return fmt.Errorf("game.market_every and game.tick_every must be > 0")
	case g.MinPrice <= 0 || g.MaxPrice <= g.MinPrice:
		return fmt.Errorf("game.min_price must be > 0 and below game.max_price")
	case g.StarterBalance <= 0:
		return fmt.Errorf("game.starter_balance must be > 0")
	case g.LoanCap < 0:
		return fmt.Errorf("game.loan_cap must be >= 0")
	case g.DisasterChance < 0 || g.DisasterChance > 1:
		return fmt.Errorf("game.disaster_chance must be within 0..1")
	case g.ForbiddenVolatilityMultiplier < 1:
		return fmt.Errorf("game.forbidden_volatility_multiplier must be >= 1")
	case g.MutationTimeout <= 0:
		return fmt.Errorf("game.mutation_timeout must be > 0")
	}
	switch g.Volatility {
	case "calm", "mor", "wild":
	default:
		return fmt.Errorf("game.volatility must be calm, mor or wild")
	}
	if c.RateLimit.PerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate_limit.per_second and rate_limit.burst must be > 0")
	}
	return nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("KMC_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envInt64Default(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envListDefault(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func envVolatilityDefault(fallback string) string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("VOLATILITY")))
	if v == "" {
		v = strings.ToLower(strings.TrimSpace(os.Getenv("KIDSMONEY_MARKET_VOLATILITY")))
	}
	switch v {
	case "calm", "mor", "wild":
		return v
	default:
		return fallback
	}
}
