package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/example/beezap/internal/common"
	"github.com/example/beezap/internal/delivery"
	"github.com/example/beezap/internal/gateway"
	"github.com/example/beezap/internal/graph"
	"github.com/example/beezap/internal/logfile"
	"github.com/example/beezap/internal/whatsapp"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := common.LoadConfig("gateway")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	common.SetClock(cfg.Location)

	var extra []io.Writer
	if cfg.LogDir != "" {
		daily := logfile.NewDailyWriter(cfg.LogDir, cfg.Location)
		defer daily.Close()
		extra = append(extra, daily)
	}
	logger := common.NewLogger(cfg.ServiceName, cfg.LogLevel, extra...)

	shutdown, err := common.SetupOTel(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise telemetry")
	}
	defer common.ShutdownTelemetry(context.Background(), shutdown)

	if metricsSrv := common.StartMetricsServer(cfg.MetricsPort, logger); metricsSrv != nil {
		defer metricsSrv.Shutdown(context.Background())
	}

	for _, dir := range []string{cfg.UploadDir, cfg.GraphDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal().Err(err).Str("dir", dir).Msg("create working directory")
		}
	}

	renderer, err := graph.NewRenderer(cfg.GraphCommand, cfg.GraphDir, cfg.GraphTimeout, cfg.GraphMaxOutput)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid GRAPH_COMMAND")
	}

	recorder := &delivery.Recorder{Logger: logger}
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect postgres")
		}
		defer pool.Close()
		repo, err := delivery.NewPostgresRepository(pool)
		if err != nil {
			logger.Fatal().Err(err).Msg("delivery repository")
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("create deliveries table")
		}
		recorder.Repo = repo
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := delivery.NewKafkaPublisher(cfg.KafkaBrokers, cfg.DeliveryTopic)
		defer publisher.Close()
		recorder.Publisher = publisher
	}

	device, container, err := whatsapp.OpenDevice(ctx, whatsapp.StoreConfig{
		Kind:        cfg.SessionStore,
		Dir:         cfg.SessionDir,
		DatabaseURL: cfg.DatabaseURL,
	}, waLog.Zerolog(logger.With().Str("component", "sqlstore").Logger()))
	if err != nil {
		logger.Fatal().Err(err).Msg("open whatsapp session store")
	}
	defer container.Close()

	session := whatsapp.NewSession()
	client := whatsapp.NewClient(device, session, logger)
	if err := client.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("start whatsapp client")
	}
	defer client.Close()

	logger.Info().Msg("waiting for whatsapp session")
	if err := session.Wait(ctx); err != nil {
		logger.Error().Err(err).Str("state", session.State().String()).Msg("whatsapp session failed, exiting")
		client.Close()
		os.Exit(1)
	}
	logger.Info().Msg("whatsapp client is ready")

	h := gateway.NewHandler(session, renderer, recorder, cfg.UploadDir, logger)
	srv := &http.Server{
		Addr:              formatAddr(cfg.HTTPPort),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Int("port", cfg.HTTPPort).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func formatAddr(port int) string {
	return ":" + strconv.Itoa(port)
}
