package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/me/hireflow/internal/config"
	"github.com/me/hireflow/internal/dispatch"
	"github.com/me/hireflow/internal/logging"
	"github.com/me/hireflow/internal/mail"
	"github.com/me/hireflow/internal/scheduler"
	"github.com/me/hireflow/internal/server"
	"github.com/me/hireflow/internal/store"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	cfg := config.DefaultServerConfig()

	configFile := flag.String("config", "", "Path to YAML server config")
	addr := flag.String("addr", cfg.Addr, "Listen address")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", cfg.LogFormat, "Log format (text, json)")
	dbDriver := flag.String("db-driver", cfg.DBDriver, "Store driver (sqlite, postgres)")
	dbPath := flag.String("db", cfg.DBPath, "SQLite database path (default ~/.hireflow/hireflow.db)")
	databaseURL := flag.String("database-url", cfg.DatabaseURL, "Postgres connection string")
	mailer := flag.String("mailer", cfg.Mailer, "Invitation transport (log, amqp)")
	amqpURL := flag.String("amqp-url", cfg.AMQPURL, "AMQP broker URL for the amqp mailer")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	if *configFile != "" {
		if err := config.LoadFile(*configFile, &cfg); err != nil {
			fatal(err)
		}
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		fatal(err)
	}
	// Explicit flags win over the file and the environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "log-level":
			cfg.LogLevel = *logLevel
		case "log-format":
			cfg.LogFormat = *logFormat
		case "db-driver":
			cfg.DBDriver = *dbDriver
		case "db":
			cfg.DBPath = *dbPath
		case "database-url":
			cfg.DatabaseURL = *databaseURL
		case "mailer":
			cfg.Mailer = *mailer
		case "amqp-url":
			cfg.AMQPURL = *amqpURL
		}
	})
	if *debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fatal(fmt.Errorf("invalid config: %w", err))
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "hireflow-server"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		fatal(err)
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		fatal(fmt.Errorf("migrate database: %w", err))
	}

	m, err := openMailer(cfg, logger)
	if err != nil {
		fatal(err)
	}
	if c, ok := m.(io.Closer); ok {
		defer c.Close()
	}

	d := dispatch.New(st, m, dispatch.NewTemplater(), dispatch.Config{
		SlotDays:    cfg.SlotDays,
		SlotsPerDay: cfg.SlotsPerDay,
		Concurrency: cfg.DispatchConcurrency,
	}, logger)
	orch := scheduler.New(st, d, scheduler.Config{Threshold: cfg.Threshold, TopN: cfg.TopN}, logger)
	srv := server.New(cfg, st, orch, logger, server.WithVersion(version))

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", cfg.Addr, "version", version,
			"threshold", cfg.Threshold, "top_n", cfg.TopN)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

func openStore(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		st, err := store.NewPostgresStore(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		logger.Info("database ready", "driver", "postgres")
		return st, nil
	default:
		path, err := cfg.ResolveDBPath()
		if err != nil {
			return nil, err
		}
		st, err := store.NewSQLiteStore(path, logger)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		logger.Info("database ready", "driver", "sqlite", "path", path)
		return st, nil
	}
}

func openMailer(cfg config.ServerConfig, logger *slog.Logger) (dispatch.Mailer, error) {
	if cfg.Mailer == "amqp" {
		m, err := mail.NewAMQPMailer(cfg.AMQPURL, cfg.AMQPQueue, logger)
		if err != nil {
			return nil, fmt.Errorf("connect mailer: %w", err)
		}
		logger.Info("mailer ready", "transport", "amqp", "queue", cfg.AMQPQueue)
		return m, nil
	}
	logger.Info("mailer ready", "transport", "log")
	return mail.NewLogMailer(logger), nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
