package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vedran77/murmur/internal/auth"
	"github.com/vedran77/murmur/internal/config"
	"github.com/vedran77/murmur/internal/database"
	"github.com/vedran77/murmur/internal/logger"
	"github.com/vedran77/murmur/internal/presence"
	mongorepo "github.com/vedran77/murmur/internal/repository/mongo"
	postgresrepo "github.com/vedran77/murmur/internal/repository/postgres"
	redisrepo "github.com/vedran77/murmur/internal/repository/redis"
	"github.com/vedran77/murmur/internal/service"
	"github.com/vedran77/murmur/internal/storage"
	"github.com/vedran77/murmur/internal/transport/http/handlers"
	"github.com/vedran77/murmur/internal/transport/http/router"
	"github.com/vedran77/murmur/internal/transport/ws"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and websocket server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := database.MigrateUp(cfg); err != nil {
			return err
		}
		log.Info("Schema up to date")
	}

	// Databases
	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info("Connected to postgres")

	mdb, err := database.ConnectMongo(ctx, cfg)
	if err != nil {
		return err
	}
	defer mdb.Client().Disconnect(context.Background())
	log.Info("Connected to mongo", zap.String("database", cfg.MongoDB))

	rdb, err := database.ConnectRedis(cfg)
	if err != nil {
		return err
	}
	defer rdb.Close()
	log.Info("Connected to redis")

	// Repositories
	userRepo := postgresrepo.NewUserRepo(pool)
	messageRepo := mongorepo.NewMessageRepo(mdb)
	if err := messageRepo.EnsureIndexes(ctx); err != nil {
		return err
	}
	blocklist := redisrepo.NewTokenBlocklist(rdb)

	blobs, err := storage.NewLocalStore(cfg.UploadsDir, "/uploads")
	if err != nil {
		return err
	}

	// Services
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	authService := service.NewAuthService(userRepo, blocklist, tokens, log.Named("auth"))

	directory := presence.NewDirectory()
	messageService := service.NewMessageService(messageRepo, userRepo, directory, log.Named("messages"))

	// Realtime
	hub := ws.NewHub(directory, messageService, log.Named("ws"))
	messageService.SetNotifier(ws.NewHubNotifier(hub))

	// Routes
	handler := router.New(router.Options{
		Auth:           handlers.NewAuthHandler(authService, log),
		Messages:       handlers.NewMessageHandler(messageService, log),
		Uploads:        handlers.NewUploadHandler(blobs, cfg.UploadMaxBytes, log),
		Authn:          authService,
		WS:             ws.ServeWS(hub, authService, cfg.CORSOrigin, log.Named("ws")),
		Blobs:          blobs.Handler(),
		CORSOrigin:     cfg.CORSOrigin,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Log:            log.Named("http"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	hub.CloseAll("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
