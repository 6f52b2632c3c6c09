package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"social_automation/internal/cache"
	"social_automation/internal/config"
	"social_automation/internal/handlers"
	"social_automation/internal/kafka"
	"social_automation/internal/logging"
	"social_automation/internal/metrics"
	"social_automation/internal/notify"
	"social_automation/internal/platform"
	"social_automation/internal/ratelimit"
	"social_automation/internal/repository"
	"social_automation/internal/scheduler"
	"social_automation/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := logging.New()

	// ---------- config ----------
	cfg := config.Load()

	metrics.Register()

	// ---------- db ----------
	pool, err := repository.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		logger.WithError(err).Fatal("db")
	}
	defer pool.Close()

	// ---------- redis ----------
	redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	defer redisCache.Close()

	if err := redisCache.RawClient().Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("redis")
	}

	// ---------- repositories ----------
	postRepo := repository.NewPostRepository(pool)
	accountRepo := repository.NewAccountRepository(pool)
	metricRepo := repository.NewMetricRepository(pool)
	notifRepo := repository.NewNotificationRepository(pool)
	retentionRepo := repository.NewRetentionRepository(pool)

	// ---------- shared services ----------
	limiter := ratelimit.NewLimiter(redisCache, logger)
	notifySvc := notify.NewService(notifRepo, redisCache, logger)

	// Platform adapters are registered by the integration layer of the
	// deployment; the core only consumes the registry.
	adapters := platform.NewRegistry()

	// ---------- kafka ----------
	// The event bus is best-effort: the core runs without it.
	producer, err := kafka.NewSyncProducer(cfg.KafkaBrokers, cfg.KafkaEventsTopic)
	if err != nil {
		logger.WithError(err).Warn("kafka producer unavailable, lifecycle events disabled")
	}

	var dispatcher *service.Dispatcher
	if producer != nil {
		defer producer.Close()
		dispatcher = service.NewDispatcher(postRepo, accountRepo, adapters, limiter, notifySvc, producer, logger)
	} else {
		dispatcher = service.NewDispatcher(postRepo, accountRepo, adapters, limiter, notifySvc, nil, logger)
	}

	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaEngagementTopic, notifySvc, logger)
	if err != nil {
		logger.WithError(err).Warn("kafka consumer unavailable, engagement events disabled")
	} else {
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				logger.WithError(err).Error("engagement consumer stopped")
			}
		}()
	}

	// ---------- background jobs ----------
	collector := service.NewCollector(accountRepo, metricRepo, adapters, limiter, logger)
	sweeper := service.NewSweeper(retentionRepo, logger)

	sched := scheduler.New(logger)
	sched.Schedule(service.JobDispatch, service.DispatchInterval, dispatcher.RunOnce)
	sched.Schedule(service.JobCollection, service.CollectionInterval, collector.RunOnce)
	sched.Schedule(service.JobRetention, service.RetentionInterval, sweeper.RunOnce)
	sched.Start()

	// ---------- router ----------
	r := chi.NewRouter()
	r.Use(metrics.HTTPMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	notifHandler := handlers.NewNotificationHandler(notifySvc, logger)
	handlers.RegisterNotificationRoutes(r, notifHandler, limiter)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: r,
	}

	go func() {
		logger.WithField("addr", srv.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Job loops finish their current tick before Stop returns.
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("http shutdown")
	}

	logger.Info("bye")
}
