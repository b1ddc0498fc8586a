package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/geekinsanemx/sms-gateway/internal/api"
	"github.com/geekinsanemx/sms-gateway/internal/auth"
	"github.com/geekinsanemx/sms-gateway/internal/cache"
	"github.com/geekinsanemx/sms-gateway/internal/config"
	"github.com/geekinsanemx/sms-gateway/internal/engine"
	"github.com/geekinsanemx/sms-gateway/internal/modem"
	"github.com/geekinsanemx/sms-gateway/internal/phone"
	"github.com/geekinsanemx/sms-gateway/internal/scheduler"
	"github.com/geekinsanemx/sms-gateway/internal/service"
	"github.com/geekinsanemx/sms-gateway/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	slog.Info("sms gateway starting",
		"addr", cfg.Server.Address,
		"modem_url", cfg.Modem.URL,
		"redis", cfg.Redis.Enabled,
	)

	normalizer := phone.NewNormalizer(cfg.Phone.CountryPrefix, cfg.Phone.ServiceNumbers)
	st := store.New()
	queue := engine.NewQueue()
	correlator := engine.NewCorrelator(st, normalizer,
		cfg.Phone.BalanceNumber, cfg.Phone.BalanceMarker, cfg.Phone.RechargeNumber)

	var outcomes cache.OutcomeLog
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		outcomes = cache.NewRedisLog(rdb, cfg.Engine.Retention)
	}

	dial := func(ctx context.Context) (modem.Modem, error) {
		c := modem.NewClient(cfg.Modem.URL)
		if err := c.Ping(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}

	worker := engine.NewWorker(st, queue, dial, correlator, outcomes, engine.WorkerConfig{
		QueueWait:    cfg.Engine.QueueWait,
		PollInterval: cfg.Engine.PollInterval,
	})

	sched := scheduler.New()
	if err := sched.Add("reply-timeout-sweep", cfg.Engine.SweepInterval, func(ctx context.Context) {
		for _, m := range engine.SweepTimeouts(st, time.Now().UTC()) {
			if outcomes != nil {
				if err := outcomes.Record(ctx, m); err != nil {
					slog.Warn("outcome log write failed", "message_id", m.ID, "error", err)
				}
			}
		}
	}); err != nil {
		log.Fatal(err)
	}
	if err := sched.Add("retention-clean", cfg.Engine.SweepInterval, func(ctx context.Context) {
		engine.CleanExpired(st, cfg.Engine.Retention, time.Now().UTC())
	}); err != nil {
		log.Fatal(err)
	}

	worker.Start()
	sched.Start()

	creds := auth.NewHtpasswd(cfg.Auth.HtpasswdFile)
	handler := api.NewHandler(service.New(st, queue, normalizer, service.Config{
		ContentMax:         cfg.Engine.ContentMax,
		DefaultReplyWindow: cfg.Engine.DefaultReplyWindow,
		MaxReplyWindow:     cfg.Engine.MaxReplyWindow,
	}), creds, worker, sched)

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: loggingMiddleware(api.Router(handler)),
	}

	go func() {
		slog.Info("http server listening", "addr", cfg.Server.Address)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown failed", "error", err)
	}

	// The worker drains remaining queued jobs before exiting.
	worker.Stop()
	sched.Stop()

	slog.Info("sms gateway stopped")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
		)
	})
}
