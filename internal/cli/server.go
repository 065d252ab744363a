package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"chainquiz-service/internal/app"
	"chainquiz-service/internal/config"
	infrapg "chainquiz-service/internal/infra/postgres"
	infraredis "chainquiz-service/internal/infra/redis"
	"chainquiz-service/internal/ledger"
	"chainquiz-service/internal/storage"
	transport "chainquiz-service/internal/transport/http"
	"chainquiz-service/pkg/logger"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	logger.Init()
	defer logger.Sync()

	cfg, err := config.Load(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		logger.Warn("config file not found, using defaults", "path", configPath)
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var snapshots app.SnapshotStore
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		snapshots = infraredis.NewSnapshotStore(redisClient, config.Duration(cfg.Redis.SnapshotTTL, 30*time.Minute))
	}

	var archive app.ResultArchive
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		archive = infrapg.NewResultArchive(pool)
	}

	var ledgerClient app.LedgerClient
	if cfg.Ledger.URL != "" {
		ledgerClient = ledger.NewHTTPClient(cfg.Ledger.URL, config.Duration(cfg.Ledger.Timeout, 10*time.Second))
	} else {
		logger.Warn("no ledger configured, rewards settle in-process only")
		ledgerClient = ledger.NewNoopClient()
	}
	dispatcher := app.NewRewardDispatcher(ledgerClient, config.Duration(cfg.Ledger.Timeout, 10*time.Second))

	var media storage.Uploader
	if cfg.Storage.URL != "" {
		media = storage.NewHTTPClient(cfg.Storage.URL,
			config.Duration(cfg.Storage.Timeout, 15*time.Second),
			config.Duration(cfg.Storage.CacheTTL, 10*time.Minute))
	}

	service := app.NewRoomService(app.NewRegistry(), dispatcher, snapshots, archive, app.Defaults{
		TimePerQuestion: cfg.Game.TimePerQuestion,
		MaxPlayers:      cfg.Game.MaxPlayers,
		TickInterval:    config.Duration(cfg.Game.TickInterval, time.Second),
	})

	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	transport.NewHandler(service, media).Register(router)
	router.HandleFunc("/ws/{code}", transport.NewWSHandler(service).ServeWS)

	origins := cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Identity"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      corsMiddleware.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info("starting chainquiz service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
