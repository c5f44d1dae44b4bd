package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"kidsmoney/internal/action"
	"kidsmoney/internal/api"
	"kidsmoney/internal/auth"
	"kidsmoney/internal/config"
	"kidsmoney/internal/game"
	"kidsmoney/internal/model"
	"kidsmoney/internal/notify"
	"kidsmoney/internal/persistence"
	"kidsmoney/internal/sim"
	"kidsmoney/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPI(os.Getenv("KIDSMONEY_CONFIG"))
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	adapter, err := persistence.Open(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("storage open failed", "driver", cfg.Storage.Driver, "err", err)
		os.Exit(1)
	}
	defer adapter.Close()

	g := cfg.Game
	seed := g.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	st, err := store.Open(ctx, adapter, func() *model.GameState {
		s := model.NewGameState(time.Now(), seed, g.TurnDuration)
		s.Settings.LoanCap = g.LoanCap
		return s
	}, store.Options{
		AcquireTimeout: g.MutationTimeout,
		SaveAttempts:   g.SaveAttempts,
	}, logger)
	if err != nil {
		logger.Error("state load failed", "err", err)
		os.Exit(1)
	}

	engine := sim.New(engineConfig(g), rand.New(rand.NewSource(seed)))
	proc := action.NewProcessor(processorConfig(g))
	gameSvc := game.NewService(st, engine, proc, notify.NewHub(logger), logger)
	for _, id := range cfg.AdminIDs {
		if err := gameSvc.EnsureUser(ctx, id, "Admin", model.RoleAdmin); err != nil {
			logger.Warn("admin bootstrap failed", "user", id, "err", err)
		}
	}
	for _, id := range cfg.BankerIDs {
		if err := gameSvc.EnsureUser(ctx, id, "Banker", model.RoleBanker); err != nil {
			logger.Warn("banker bootstrap failed", "user", id, "err", err)
		}
	}

	server, err := api.New(cfg, logger, auth.NewResolver(cfg.AdminIDs, cfg.BankerIDs), gameSvc)
	if err != nil {
		logger.Error("api init failed", "err", err)
		os.Exit(1)
	}
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		return gameSvc.RunTicker(ctx, g.TickEvery)
	})
	grp.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	grp.Go(func() error {
		logger.Info("kidsmoney api listening", "addr", cfg.Addr, "storage", adapter.Name())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if err := grp.Wait(); err != nil {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
	logger.Info("kidsmoney api stopped")
}

func engineConfig(g config.GameConfig) sim.Config {
	c := sim.DefaultConfig()
	c.TurnDuration = g.TurnDuration
	c.MinStep = g.MinTickStep
	c.MarketEvery = g.MarketEvery
	c.Volatility = g.Volatility
	c.ForbiddenMultiplier = g.ForbiddenVolatilityMultiplier
	c.PriceHistory = g.PriceHistory
	c.MinPrice = g.MinPrice
	c.MaxPrice = g.MaxPrice
	c.WeatherEveryTurns = g.WeatherEveryTurns
	c.DisasterChance = g.DisasterChance
	c.MaxActiveNPCs = g.MaxActiveNPCs
	c.MaxActiveEvents = g.MaxActiveEvents
	c.MaxCatchUpTurns = g.MaxCatchUpTurns
	return c
}

func processorConfig(g config.GameConfig) action.Config {
	c := action.DefaultConfig()
	c.StarterBalance = g.StarterBalance
	c.UnlockFee = g.UnlockFee
	c.IdempotencyCapacity = g.IdempotencyCapacity
	return c
}

func logLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
