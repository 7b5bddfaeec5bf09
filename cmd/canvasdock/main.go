package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/canvasdock/server/internal/config"
	"github.com/canvasdock/server/internal/core/event"
	coresys "github.com/canvasdock/server/internal/core/system"
	"github.com/canvasdock/server/internal/dock"
	gonet "github.com/canvasdock/server/internal/net"
	"github.com/canvasdock/server/internal/persist"
	"github.com/canvasdock/server/internal/scene"
	"github.com/canvasdock/server/internal/scripting"
	"github.com/canvasdock/server/internal/system"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(name string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             canvasdock  v0.1.0            \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mscene:\033[0m %s\n\n", name)
}

func printSection(title string) {
	lineLen := 46 - len(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := 42 - len(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Flags and config
	defaultPath := "config/canvasdock.toml"
	if p := os.Getenv("CANVASDOCK_CONFIG"); p != "" {
		defaultPath = p
	}
	flags := pflag.NewFlagSet("canvasdock", pflag.ContinueOnError)
	cfgPath := flags.StringP("config", "c", defaultPath, "path to the TOML config file")
	scripts := flags.StringSlice("script", nil, "extra Lua script to run once the loop is up (repeatable)")
	hashToken := flags.String("hash-token", "", "print a bcrypt hash for bridge.token_hash and exit")
	imports := flags.StringSlice("import-asset", nil, "store name=path in the scene store and exit (repeatable)")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}
	if *hashToken != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*hashToken), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash token: %w", err)
		}
		fmt.Println(string(hash))
		return nil
	}

	cfg, err := config.Load(*cfgPath)
	if errors.Is(err, fs.ErrNotExist) && !flags.Changed("config") {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Dock, scene and command workers
	printSection("simulation")
	d := dock.New(log)
	sc := scene.NewState()
	bus := event.NewBus()
	runner := coresys.NewRunner()
	system.RegisterAll(runner, system.Deps{
		Dock:          d,
		Scene:         sc,
		Bus:           bus,
		Log:           log,
		PerTick:       cfg.Simulation.PerTick,
		MaxPickRadius: cfg.Simulation.PickRadiusMax,
	})
	printStat("command classes", len(dock.Classes()))
	printStat("commands per tick", cfg.Simulation.PerTick)
	fmt.Println()

	// 4. Scene store (optional)
	var store *persist.SceneRepo
	if cfg.SceneStore.DSN != "" {
		printSection("scene store")
		connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
		db, err := persist.NewDB(connCtx, cfg.SceneStore, log)
		if err != nil {
			connCancel()
			return fmt.Errorf("scene store: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		version, err := persist.Migrate(connCtx, db.Pool)
		connCancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		printStat("schema version", int(version))
		store = persist.NewSceneRepo(db)
		fmt.Println()
	}

	if len(*imports) > 0 {
		if store == nil {
			return errors.New("--import-asset needs scene_store.dsn")
		}
		n, err := importAssets(ctx, store, *imports)
		printStat("assets imported", n)
		return err
	}

	// 5. Bridges
	engine := scripting.NewEngine(d, cfg.Scripting.Dir, cfg.Scripting.CallTimeout, log)

	var bridge *gonet.Server
	if cfg.Bridge.Enabled {
		bridge, err = gonet.NewServer(d, gonet.Options{
			Path:         cfg.Bridge.Path,
			OutQueueSize: cfg.Bridge.OutQueueSize,
			ReadTimeout:  cfg.Bridge.ReadTimeout,
			WriteTimeout: cfg.Bridge.WriteTimeout,
			CallTimeout:  cfg.Bridge.CallTimeout,
			TokenHash:    cfg.Bridge.TokenHash,
		}, log)
		if err != nil {
			return fmt.Errorf("bridge: %w", err)
		}
		if err := bridge.Listen(cfg.Bridge.BindAddress); err != nil {
			return fmt.Errorf("bridge listen: %w", err)
		}
		go bridge.Serve()
	}

	// 6. Producers that need the loop running
	if store != nil {
		go seedScene(ctx, d, store, cfg.SceneStore.SeedTimeout, log)
	}
	startup := append(append([]string(nil), cfg.Scripting.Startup...), *scripts...)
	if len(startup) > 0 {
		go runStartupScripts(ctx, engine, startup, log)
	}

	// 7. Tick loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Simulation.TickRate)
	defer ticker.Stop()

	printSection("ready")
	if bridge != nil {
		printReady(fmt.Sprintf("bridge listening on ws://%s%s", bridge.Addr().String(), cfg.Bridge.Path))
	}
	printReady(fmt.Sprintf("tick loop started (tick: %s)", cfg.Simulation.TickRate))
	fmt.Println()

	const statsInterval = 60 * time.Second
	statsEvery := uint64(statsInterval / cfg.Simulation.TickRate)
	if statsEvery == 0 {
		statsEvery = 1
	}

	for {
		select {
		case <-ticker.C:
			runner.Tick(cfg.Simulation.TickRate)
			if runner.Ticks()%statsEvery == 0 {
				vectors, particles := d.AssetCounts()
				log.Info("scene stats",
					zap.Uint64("tick", runner.Ticks()),
					zap.Int("entities", d.EntityCount()),
					zap.Int("vectors", vectors),
					zap.Int("particles", particles),
					zap.Int("pending", d.Pending()),
				)
				if d.Pending() > 0 {
					for _, class := range dock.Classes() {
						log.Debug("queue depth", zap.Stringer("class", class), zap.Int("queued", d.Queued(class)))
					}
				}
			}
		case sig := <-shutdownCh:
			log.Info("shutdown signal received", zap.String("signal", sig.String()))
			cancel()
			if bridge != nil {
				shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := bridge.Shutdown(shutCtx); err != nil {
					log.Warn("bridge shutdown", zap.Error(err))
				}
				shutCancel()
			}
			log.Info("server stopped", zap.Int("pending", d.Pending()))
			return nil
		}
	}
}

func seedScene(ctx context.Context, d *dock.Dock, store *persist.SceneRepo, timeout time.Duration, log *zap.Logger) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	stats, err := persist.NewSeeder(d, log).SeedFrom(ctx, store)
	if err != nil {
		log.Error("scene seed failed", zap.Error(err))
		return
	}
	log.Info("scene seeded",
		zap.Int("assets", stats.Assets),
		zap.Int("assets_failed", stats.AssetsFailed),
		zap.Int("entities", stats.Entities),
		zap.Int("entities_failed", stats.EntitiesFailed),
	)
}

func runStartupScripts(ctx context.Context, engine *scripting.Engine, names []string, log *zap.Logger) {
	n, err := engine.RunStartup(ctx, names)
	if err != nil {
		log.Error("startup script failed", zap.Int("completed", n), zap.Error(err))
		return
	}
	log.Info("startup scripts finished", zap.Int("count", n))
}

func importAssets(ctx context.Context, store *persist.SceneRepo, specs []string) (int, error) {
	for i, spec := range specs {
		name, path, ok := strings.Cut(spec, "=")
		if !ok || name == "" {
			return i, fmt.Errorf("import %q: want name=path", spec)
		}
		kind, ok := persist.AssetKindForPath(path)
		if !ok {
			return i, fmt.Errorf("import %s: unknown asset type %s", name, filepath.Ext(path))
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return i, fmt.Errorf("import %s: %w", name, err)
		}
		if err := store.SaveAsset(ctx, persist.AssetRow{Name: name, Kind: kind, Data: data}); err != nil {
			return i, err
		}
	}
	return len(specs), nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
