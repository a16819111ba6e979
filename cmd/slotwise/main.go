package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/slotwise/slotwise/internal/booking"
	"github.com/slotwise/slotwise/internal/cache"
	"github.com/slotwise/slotwise/internal/consumer"
	"github.com/slotwise/slotwise/internal/handlers"
	"github.com/slotwise/slotwise/internal/inbox"
	"github.com/slotwise/slotwise/internal/outbox"
	"github.com/slotwise/slotwise/internal/settings"
	"github.com/slotwise/slotwise/internal/storage"
	"github.com/slotwise/slotwise/libs/config"
	"github.com/slotwise/slotwise/libs/db"
	"github.com/slotwise/slotwise/libs/httpx"
	"github.com/slotwise/slotwise/libs/kafkax"
	"github.com/slotwise/slotwise/libs/otelx"
	"github.com/slotwise/slotwise/libs/runtime"
)

// verifyTimezoneData fails fast when the tzdata the resolver depends on is
// missing from the runtime image. Availability math is wrong without it.
func verifyTimezoneData() error {
	_, err := time.LoadLocation("America/New_York")
	return err
}

func main() {
	service := config.String("SERVICE_NAME", "slotwise")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	if err := verifyTimezoneData(); err != nil {
		logger.Error("timezone database unavailable", "err", err)
		panic(err)
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	var rdb *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()
	}

	outboxRepo := outbox.NewRepository()
	inboxRepo := inbox.NewRepository(pool)
	bookingRepo := storage.NewBookingRepository(pool, outboxRepo)
	settingsRepo := storage.NewSettingsRepository(pool)

	var provider settings.Provider = settingsRepo
	if addr := config.String("CALENDAR_GRPC_ADDR", ""); addr != "" {
		remote, err := settings.NewRemoteProvider(addr)
		if err != nil {
			logger.Error("remote settings provider init failed; using local store", "err", err)
		} else if remote != nil {
			provider = remote
		}
	}

	var slotCache booking.SlotCache
	var slotsCache *cache.SlotsCache
	if rdb != nil {
		slotsCache = cache.NewSlotsCache(rdb, config.Duration("SLOT_CACHE_TTL", 30*time.Second), logger)
		slotCache = slotsCache
	}

	svc := booking.NewService(provider, bookingRepo, slotCache, logger, time.Now)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	// Settings edits elsewhere in the platform arrive over Kafka; all we need
	// from them here is the owner whose cached slots went stale.
	if topic := config.String("KAFKA_CONSUME_TOPIC", "calendar.settings.updated.v1"); strings.TrimSpace(topic) != "" && slotsCache != nil {
		consumerCfg := consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "slotwise"),
			Topic:   topic,
		}
		eventConsumer := consumer.New(logger, inboxRepo, consumerCfg, func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				OwnerID string `json:"owner_id"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.OwnerID == "" {
				logger.Error("missing owner_id in event", "topic", msg.Topic)
				return nil
			}
			slotsCache.InvalidateOwner(ctx, payload.OwnerID)
			return nil
		})
		go eventConsumer.Run(ctx)
	}

	maintenance := cron.New()
	_, err = maintenance.AddFunc(config.String("MAINTENANCE_CRON", "30 3 * * *"), func() {
		purgeCtx, cancel := context.WithTimeout(ctx, 1*time.Minute)
		defer cancel()
		cutoff := time.Now().UTC().Add(-7 * 24 * time.Hour)

		tx, err := pool.Begin(purgeCtx)
		if err != nil {
			logger.Error("maintenance tx begin failed", "err", err)
			return
		}
		defer func() { _ = tx.Rollback(purgeCtx) }()
		outboxPurged, err := outboxRepo.PurgePublishedBefore(purgeCtx, tx, cutoff)
		if err != nil {
			logger.Error("outbox purge failed", "err", err)
			return
		}
		if err := tx.Commit(purgeCtx); err != nil {
			logger.Error("maintenance tx commit failed", "err", err)
			return
		}

		inboxPurged, err := inboxRepo.PurgeBefore(purgeCtx, cutoff)
		if err != nil {
			logger.Error("inbox purge failed", "err", err)
			return
		}
		logger.Info("maintenance purge complete", "outbox_rows", outboxPurged, "inbox_rows", inboxPurged)
	})
	if err != nil {
		logger.Error("maintenance schedule invalid", "err", err)
	} else {
		maintenance.Start()
		defer maintenance.Stop()
	}

	bookingHandler := handlers.NewBookingHandler(svc, bookingRepo, logger)
	feedHandler := handlers.NewFeedHandler(provider, bookingRepo, logger)

	checks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if brokers := config.String("KAFKA_BROKERS", ""); brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	if rdb != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	}
	mux := runtime.NewBaseMux(checks...)
	mux.HandleFunc("/api/v1/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/bookings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			bookingHandler.List(w, r)
			return
		}
		bookingHandler.Create(w, r)
	})
	mux.HandleFunc("/api/v1/bookings/cancel", bookingHandler.Cancel)
	mux.HandleFunc("/api/v1/bookings/feed.ics", feedHandler.Feed)

	var limit httpx.Middleware
	rateLimit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if rdb != nil {
		limit = httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, service).Middleware(logger, true)
	} else {
		limit = httpx.NewRateLimiter(rateLimit, time.Minute).Middleware()
	}

	var corsOrigins []string
	if raw := config.String("CORS_ALLOWED_ORIGINS", ""); raw != "" {
		corsOrigins = strings.Split(raw, ",")
	}
	cors := httpx.WithCORS(httpx.CORSPolicy{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-Id"},
		MaxAge:         10 * time.Minute,
	})

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
		cors,
		limit,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
