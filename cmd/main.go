package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/immxrtalbeast/codetutor/internal/api/http"
	"github.com/immxrtalbeast/codetutor/internal/broker"
	"github.com/immxrtalbeast/codetutor/internal/config"
	"github.com/immxrtalbeast/codetutor/internal/metrics"
	"github.com/immxrtalbeast/codetutor/internal/repository"
	"github.com/immxrtalbeast/codetutor/internal/repository/model"
	"github.com/immxrtalbeast/codetutor/internal/service"
	"github.com/immxrtalbeast/codetutor/lib/logger/sl"
	"github.com/immxrtalbeast/codetutor/lib/logger/slogpretty"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	roomRepo, contentRepo, err := setupStorage(cfg.Storage)
	if err != nil {
		log.Error("failed to set up storage", sl.Err(err))
		os.Exit(1)
	}

	b, err := setupBroker(ctx, cfg.Broker, log)
	if err != nil {
		log.Error("failed to set up broker", sl.Err(err))
		os.Exit(1)
	}
	defer b.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	roomService := service.NewRoomService(roomRepo, contentRepo, b, log, service.Options{
		ICEServers: cfg.WebRTC.STUNServers,
		Lifetime:   cfg.Room.Lifetime,
		Metrics:    m,
	})
	defer roomService.Close()
	sessionService := service.NewSessionService(cfg.HTTP.PublicURL, log)

	go roomService.Run(ctx, cfg.Room.SweepInterval)

	roomController := httpapi.NewRoomController(roomService, cfg.HTTP.PublicURL, log)
	sessionController := httpapi.NewSessionController(sessionService)

	router := httpapi.SetupRouter(cfg.HTTP.AllowOrigins, roomController, sessionController, metrics.Handler(reg))

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown", sl.Err(err))
		}
	}()

	log.Info("starting application",
		slog.String("addr", cfg.HTTP.Address),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("broker", cfg.Broker.Driver),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("http server stopped", sl.Err(err))
		os.Exit(1)
	}
	log.Info("application stopped")
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = setupPrettySlog()
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func setupStorage(cfg config.StorageConfig) (repository.RoomRepository, repository.ContentRepository, error) {
	if cfg.Driver == config.StorageMemory {
		return repository.NewInMemoryRoomRepository(), repository.NewInMemoryContentRepository(), nil
	}

	db, err := connectDatabase(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewPostgresRoomRepository(db), repository.NewPostgresContentRepository(db), nil
}

func connectDatabase(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, config.ErrEmptyDSN
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(model.All()...); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}

func setupBroker(ctx context.Context, cfg config.BrokerConfig, log *slog.Logger) (broker.Broker, error) {
	if cfg.Driver == config.BrokerRedis {
		return broker.NewRedis(ctx, cfg.RedisAddr, cfg.Buffer, log)
	}
	return broker.NewMemory(cfg.Buffer, log), nil
}
