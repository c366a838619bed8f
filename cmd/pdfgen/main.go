package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"pdfgen/internal/config"
	"pdfgen/internal/http/server"
	"pdfgen/internal/infra/logging"
	"pdfgen/internal/infra/postgres"
	"pdfgen/internal/infra/ratelimit"
	"pdfgen/internal/tokens"
	"pdfgen/pkg/pdfgen"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("pdfgen", flag.ContinueOnError)
	configPath := fs.StringP("config", "c", "", "path to the YAML config (default $CONFIG_PATH or "+config.DefaultPath+")")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	var cfg config.Config
	if *configPath != "" {
		cfg = config.LoadFrom(*configPath)
	} else {
		cfg = config.Load()
	}
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	logging.SetLogLevel(cfg.Logger.Level)

	// maxprocs.Set only fails on an invalid GOMAXPROCS value; the runtime default applies then.
	undo, _ := maxprocs.Set(maxprocs.Logger(func(format string, a ...any) {
		logging.Debug(fmt.Sprintf(format, a...))
	}))
	defer undo()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var rdb *redis.Client
	if cfg.Redis.Host != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Host,
			DB:   cfg.Redis.PDFCacheDB,
		})
		defer rdb.Close()
	}
	store := ratelimit.NewStore(ratelimit.RedisConfig{Addr: cfg.Redis.Host, DB: cfg.Redis.RateLimitDB})
	defer store.Close()

	var cache *tokens.Cache
	if cfg.Auth.Enabled {
		db := postgres.NewDB()
		defer db.Close()

		var err error
		if cache, err = startTokenReloader(ctx, cfg, db); err != nil {
			return err
		}
	}

	gen := pdfgen.New(
		pdfgen.WithChrome(pdfgen.ChromeConfig{
			ExecPath:          cfg.PDF.ChromePath,
			UserDataDir:       cfg.PDF.UserDataDir,
			NavigationTimeout: cfg.PDF.NavigationTimeout,
			IdleWindow:        cfg.PDF.IdleWindow,
		}),
		pdfgen.WithCSSInlining(cfg.PDF.InlineCSS),
		pdfgen.WithKillPolicy(cfg.PDF.KillAttempts, cfg.PDF.KillDelay),
		pdfgen.WithValidation(cfg.PDF.ValidateOutput),
	)

	app := server.New(server.Deps{
		Config:    cfg,
		Generator: gen,
		Tokens:    cache,
		Store:     store,
		Redis:     rdb,
	})

	idleConnsClosed := make(chan struct{})
	if err := startServer(app, cfg, idleConnsClosed); err != nil {
		return err
	}
	<-idleConnsClosed
	return nil
}

// startTokenReloader loads the API tokens once and keeps them fresh until ctx is done. A failed
// first load is logged; the service then reports not ready until a reload succeeds.
func startTokenReloader(ctx context.Context, cfg config.Config, db *postgres.DB) (*tokens.Cache, error) {
	dsn, err := postgres.DSN(cfg.Auth.Postgres)
	if err != nil {
		return nil, fmt.Errorf("auth.postgres: %w", err)
	}

	if cfg.Auth.EnsureSchema {
		if conn, err := db.Get(dsn); err != nil {
			logging.Error("Failed to open token database", "error", err)
		} else if err := postgres.EnsureSchema(ctx, conn); err != nil {
			logging.Error("Failed to create tokens schema", "error", err)
		}
	}

	cache := tokens.NewCache()
	reloader := tokens.NewReloader(postgres.NewTokenRepository(db, dsn), cache, cfg.Auth.ReloadInterval)
	if err := reloader.LoadOnce(ctx); err != nil {
		logging.Error("Failed to load API tokens", "error", err)
	} else {
		logging.Info("API tokens loaded", "count", cache.Len())
	}
	reloader.Start(ctx)
	return cache, nil
}

// startServer starts the Fiber app and listens for shutdown signals. It returns the listen
// error if the server stops on its own.
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) error {
	errCh := make(chan error, 1)
	go func() {
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			errCh <- err
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigint)

	select {
	case err := <-errCh:
		logging.Error("Server error", "error", err)
		close(idleConnsClosed)
		return fmt.Errorf("listen: %w", err)
	case <-sigint:
	}

	logging.Warn("Shutdown signal received, closing server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
	return nil
}
