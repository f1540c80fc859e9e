package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/CypherNinjaa/social-media-sub000/internal/app/wiring"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/broker/kafka"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/config"
	ginserver "github.com/CypherNinjaa/social-media-sub000/internal/infra/http/gin"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/jobs"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/obs"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/outbox"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/realtime"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/security"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger := obs.NewLogger("dev")
		logger.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		logger.Error("backend init failed", "error", err)
		os.Exit(1)
	}
	defer b.close(logger)

	app := wiring.Build(wiring.Deps{
		UoWFactory:  b.uow,
		Profiles:    b.profiles,
		Sink:        b.outbox,
		Idempotency: b.idempotency,
		Limiter:     b.limiter,
		SearchLimit: cfg.SearchLimit,
		Logger:      logger,
	})

	hub := realtime.NewHub(0)
	dispatcher := &realtime.Dispatcher{
		Sinks:  []realtime.Sink{hub, b.feed},
		Dedupe: b.deduper,
		Logger: logger,
	}

	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("background task stopped", "task", name, "error", err)
			}
		}()
	}

	worker := &outbox.Worker{
		Store:       b.outbox,
		Producer:    dispatcher,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
		MaxAttempts: cfg.OutboxMaxAttempts,
		Logger:      logger,
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			logger.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		worker.Producer = producer

		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, kafka.Bridge{Target: dispatcher}, logger)
		if err != nil {
			logger.Error("kafka consumer init failed", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()
		run("kafka-consumer", func(ctx context.Context) error {
			return consumer.Run(ctx, []string{worker.Topic()})
		})
		logger.Info("realtime relay via kafka", "topic", worker.Topic())
	} else {
		logger.Info("realtime relay in process")
	}
	run("outbox-relay", worker.Run)

	scheduler, err := jobs.NewScheduler(cfg.JanitorSchedule, &jobs.Janitor{
		UoWFactory: b.uow,
		Grace:      cfg.OrphanGrace,
		Logger:     logger,
	}, logger)
	if err != nil {
		logger.Error("janitor init failed", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	var verifier ginserver.TokenVerifier
	if cfg.JWTSecret != "" {
		verifier = security.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	} else {
		logger.Warn("AUTH_JWT_SECRET not set; every request is anonymous")
	}
	healthHandlers := obs.HealthHandlers{Checks: b.checks, Timeout: 2 * time.Second}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, healthHandlers, ginserver.Handlers{
		Chat: ginserver.ChatHandler{
			Commands: app.Commands,
			Queries:  app.Queries,
			Logger:   logger,
		},
		Realtime: ginserver.RealtimeHandler{
			Hub:    hub,
			Feed:   b.feed,
			Logger: logger,
		},
		AuthMiddleware: ginserver.AuthMiddleware{Verifier: verifier, Logger: logger}.Handle,
	})

	var grpcServer *grpc.Server
	if cfg.GRPCAddr != "" {
		grpcServer, err = serveHealth(ctx, cfg.GRPCAddr, healthHandlers, logger)
		if err != nil {
			logger.Error("grpc health init failed", "error", err, "addr", cfg.GRPCAddr)
			os.Exit(1)
		}
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		<-scheduler.Stop().Done()
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "env", cfg.Env)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		stop()
	}
	wg.Wait()
	logger.Info("HTTP server stopped")
}

// serveHealth exposes grpc.health.v1 and keeps its serving status in step
// with the readiness probes.
func serveHealth(ctx context.Context, addr string, probes obs.HealthHandlers, logger *slog.Logger) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			status := healthpb.HealthCheckResponse_SERVING
			if failures := probes.Probe(ctx); len(failures) > 0 {
				status = healthpb.HealthCheckResponse_NOT_SERVING
			}
			hs.SetServingStatus("", status)
			select {
			case <-ctx.Done():
				hs.Shutdown()
				return
			case <-ticker.C:
			}
		}
	}()

	go func() {
		logger.Info("grpc health server starting", "addr", addr)
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Error("grpc server failed", "error", err)
		}
	}()
	return srv, nil
}
