package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	infraredis "live-quiz-service/internal/infra/redis"
	transport "live-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Server.LogLevel)

	engine, cleanup, err := buildEngine(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	handler := transport.NewHandler(engine, log)
	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Routes(transport.NewWSHandler(engine, log)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting quiz engine")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildEngine wires the engine from config: Postgres when postgres.url is set,
// Redis locks and caches when redis.addr is set, in-memory otherwise.
func buildEngine(ctx context.Context, cfg config.Config, log *logrus.Logger) (*app.SessionEngine, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var store app.Store = memory.NewStore()
	var locker app.Locker = memory.NewLocker()
	opts := []app.Option{
		app.WithLogger(log),
		app.WithLeaderboardLimit(cfg.Quiz.LeaderboardLimit),
	}

	if cfg.Postgres.URL != "" {
		db := openBunDB(cfg.Postgres.URL)
		closers = append(closers, func() { _ = db.Close() })
		if err := migrateDB(ctx, db, log); err != nil {
			cleanup()
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, pool.Close)
		store = postgres.NewStore(db, pool)
		log.Info("using postgres store")
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			cleanup()
			return nil, nil, err
		}

		store = infraredis.NewCatalogCache(store, client, config.TTLDuration(cfg.Quiz.CatalogTTL, 10*time.Minute))
		locker = infraredis.NewLocker(client,
			config.TTLDuration(cfg.Quiz.LockTTL, 5*time.Second),
			config.TTLDuration(cfg.Quiz.LockWait, 2*time.Second),
		)
		opts = append(opts, app.WithLeaderboardCache(
			infraredis.NewLeaderboardCache(client, config.TTLDuration(cfg.Quiz.LeaderboardTTL, 30*time.Second)),
		))
		log.WithField("addr", cfg.Redis.Addr).Info("using redis locks and caches")
	}

	return app.NewSessionEngine(store, locker, opts...), cleanup, nil
}
