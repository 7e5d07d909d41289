package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/rewired-gh/monkeyball/internal/agent"
	"github.com/rewired-gh/monkeyball/internal/config"
	"github.com/rewired-gh/monkeyball/internal/logger"
	"github.com/rewired-gh/monkeyball/internal/market"
	"github.com/rewired-gh/monkeyball/internal/memory"
	"github.com/rewired-gh/monkeyball/internal/models"
	"github.com/rewired-gh/monkeyball/internal/profile"
	"github.com/rewired-gh/monkeyball/internal/save"
	"github.com/rewired-gh/monkeyball/internal/sim"
	"github.com/rewired-gh/monkeyball/internal/telegram"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	// Seed all randomness from one root so episodes replay under a fixed seed
	seed := cfg.Game.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger.Info("Using seed %d", seed)

	portfolio := loadPortfolio(cfg.Portfolio.Path)
	profiles := profile.NewManager(cfg.Profiles.Dir, cfg.Profiles.ActiveRetail, cfg.Profiles.ActiveMonkey)

	retailMem := memory.NewStore(models.RoleRetail, cfg.Memory.MaxMemories, cfg.Memory.LogsDir, rand.New(rand.NewSource(seed+1)))
	monkeyMem := memory.NewStore(models.RoleMonkey, cfg.Memory.MaxMemories, cfg.Memory.LogsDir, rand.New(rand.NewSource(seed+2)))
	retail := agent.NewRetail(profiles, retailMem, rand.New(rand.NewSource(seed+3)))
	monkey := agent.NewMonkey(profiles, monkeyMem, rand.New(rand.NewSource(seed+4)))

	loader := market.NewLoader(market.Config{
		Ticker:            cfg.Market.Ticker,
		DataDir:           cfg.Market.DataDir,
		StrikeRange:       cfg.Market.StrikeRange,
		FallbackPrice:     cfg.Market.FallbackPrice,
		FallbackVol:       cfg.Market.FallbackVol,
		MaxHistoricalDays: cfg.Market.MaxHistoricalDays,
	}, portfolio)

	engine, err := sim.NewEngine(
		sim.Config{
			Trials:   cfg.Game.Trials,
			FPS:      cfg.Game.FPS,
			Width:    cfg.Game.Width,
			Height:   cfg.Game.Height,
			SpeedMin: cfg.Game.SpeedMin,
			SpeedMax: cfg.Game.SpeedMax,
		},
		loader.State(),
		portfolio,
		profiles,
		loader,
		retail,
		monkey,
		rand.New(rand.NewSource(seed)),
	)
	if err != nil {
		logger.Fatal("Failed to initialize engine: %v", err)
	}

	// Initialize Telegram client
	var telegramClient *telegram.Client
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	logger.Info("Starting episode (trials: %d, fps: %d, spot: %.2f, strikes: %d)",
		cfg.Game.Trials, cfg.Game.FPS, loader.State().Price, len(loader.State().Strikes))

	refresher := market.NewRefresher(loader, cfg.Market.RefreshInterval)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return refresher.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return runEpisode(gctx, cfg, engine, refresher)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Episode failed: %v", err)
	}

	finish(cfg, engine, retailMem, monkeyMem, telegramClient, time.Since(start))
	logger.Info("Service stopped")
}

// runEpisode drives the engine at the configured frame rate until the trial
// budget is spent and every coconut has resolved, draining market refreshes
// between ticks.
func runEpisode(ctx context.Context, cfg *config.Config, engine *sim.Engine, refresher *market.Refresher) error {
	ticker := time.NewTicker(time.Second / time.Duration(cfg.Game.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case state := <-refresher.Updates():
			engine.SetMarketState(state)
			logger.Info("Market refreshed: spot %.2f, vol %.2f", state.Price, state.ImpliedVol)
		case <-ticker.C:
			engine.Update()
			if engine.Done() {
				logger.Info("Episode complete after %d launches", engine.Frame())
				return nil
			}
		}
	}
}

// finish persists the session and sends the digest, regardless of whether
// the episode completed or was interrupted.
func finish(cfg *config.Config, engine *sim.Engine, retailMem, monkeyMem *memory.Store, telegramClient *telegram.Client, elapsed time.Duration) {
	stats := engine.Statistics()

	if cfg.Save.Enabled {
		manager, err := save.NewManager(cfg.Save.OutputDir)
		if err != nil {
			logger.Error("Failed to initialize save manager: %v", err)
		} else {
			memories := map[string][]models.MemoryRecord{
				models.RoleRetail: retailMem.Records(),
				models.RoleMonkey: monkeyMem.Records(),
			}
			if _, err := manager.SaveSession(engine.GameState(), stats, memories); err != nil {
				logger.Error("Failed to save session: %v", err)
			}
		}
	}

	if telegramClient != nil {
		digest := telegram.Digest{
			Ticker:     cfg.Market.Ticker,
			SpotPrice:  engine.GameState().SpotPrice,
			Trials:     engine.Frame(),
			Duration:   elapsed,
			Stats:      stats,
			Summaries:  []string{retailMem.Summarize(), monkeyMem.Summarize()},
			FinishedAt: time.Now(),
		}
		if err := telegramClient.Send(digest); err != nil {
			logger.Error("Failed to send digest: %v", err)
		}
	}
}

// loadPortfolio reads the slingshot catalog from YAML, falling back to the
// built-in catalog when no path is configured or the file is unusable.
func loadPortfolio(path string) models.Portfolio {
	if path == "" {
		return models.DefaultPortfolio()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("Portfolio file unreadable, using built-in catalog: %v", err)
		return models.DefaultPortfolio()
	}
	var portfolio models.Portfolio
	if err := yaml.Unmarshal(data, &portfolio); err != nil {
		logger.Warn("Portfolio file invalid, using built-in catalog: %v", err)
		return models.DefaultPortfolio()
	}
	if err := portfolio.Validate(); err != nil {
		logger.Warn("Portfolio rejected (%v), using built-in catalog", err)
		return models.DefaultPortfolio()
	}
	logger.Info("Loaded %d slingshots from %s", len(portfolio.Slingshots), path)
	return portfolio
}
