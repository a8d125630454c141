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

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"candilib/internal/admin"
	"candilib/internal/auth"
	bookinghandler "candilib/internal/booking/handler"
	"candilib/internal/booking/rules"
	bookingservice "candilib/internal/booking/service"
	"candilib/internal/booking/store/archive"
	"candilib/internal/booking/store/candidate"
	"candilib/internal/booking/store/centre"
	"candilib/internal/booking/store/place"
	"candilib/internal/civiltime"
	"candilib/internal/jwtauth"
	"candilib/internal/notification"
	"candilib/internal/planning"
	"candilib/internal/platform/config"
	"candilib/internal/platform/httpserver"
	"candilib/internal/platform/logger"
	"candilib/internal/platform/metrics"
	"candilib/internal/platform/postgres"
	"candilib/internal/platform/redis"
	"candilib/internal/whitelist"
	auditpkg "candilib/pkg/platform/audit"
	"candilib/pkg/platform/audit/publisher"
	auditstore "candilib/pkg/platform/audit/store/postgres"
	auditworker "candilib/pkg/platform/audit/worker"
	"candilib/pkg/platform/tx"
)

const (
	auditInboxSize  = 1024
	listingCacheTTL = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	cal, err := civiltime.NewCalendar(cfg.Booking.Timezone)
	if err != nil {
		return err
	}

	db, err := postgres.Open(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	pool, err := postgres.OpenPool(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		return err
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	m := metrics.New()
	tokens := jwtauth.NewService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	mailer := notification.NewSMTPMailer(cfg.SMTP.Addr, cfg.SMTP.From, cfg.Booking.ForbidCancelDays, log)

	// Audit pipeline: recorder -> inbox -> worker -> outbox -> Kafka.
	inbox := make(chan auditpkg.Event, auditInboxSize)
	recorder := auditpkg.NewRecorder(inbox, log)
	worker := auditworker.NewWorker(auditstore.New(db), inbox, log,
		auditworker.WithTxRunner(tx.NewRunner(db)))

	var outbox *publisher.Outbox
	if len(cfg.Kafka.Brokers) > 0 {
		outbox, err = publisher.New(db, cfg.Kafka.Brokers, cfg.Kafka.AuditTopic, log,
			publisher.WithPublishedCounter(m.AuditEventsPublished))
		if err != nil {
			return err
		}
		defer outbox.Close()
		if err := outbox.EnsureTopic(ctx, 3, 1); err != nil {
			return err
		}
	} else {
		log.Warn("kafka brokers not configured, audit events stay in the outbox")
	}

	engine := rules.NewEngine(rules.Rules{
		DelayToBookDays:  cfg.Booking.DelayToBookDays,
		ForbidCancelDays: cfg.Booking.ForbidCancelDays,
		RetryTimeoutDays: cfg.Booking.RetryTimeoutDays,
		ETGValidityYears: cfg.Booking.ETGValidityYears,
		VisibleMonths:    cfg.Booking.VisibleMonths,
	}, cal)

	places := place.NewPostgres(pool)
	candidates := candidate.NewPostgres(db)
	centres := centre.NewPostgres(db)
	archives := archive.NewPostgres(db)

	var cache *bookingservice.ListingCache
	if redisClient != nil {
		cache = bookingservice.NewListingCache(redisClient.Client, listingCacheTTL, log)
	}

	booking := bookingservice.New(engine, places, candidates, centres, archives, mailer, recorder, m, cache, log)

	whitelistSvc := whitelist.NewService(whitelist.NewPostgres(db), recorder)
	authSvc := auth.NewService(candidates, auth.NewPostgresAdminStore(db), whitelistSvc,
		tokens, mailer, recorder, m, log,
		cfg.Server.BaseURL, cfg.Server.MagicLinkTTL, cfg.Server.TokenTTL)
	planningSvc := planning.NewService(places, centres, cal, recorder, m)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	auth.NewHandler(authSvc, log, m).Register(r)
	bookinghandler.New(booking, log, m, tokens).Register(r)
	admin.NewRouter(
		whitelist.NewHandler(whitelistSvc, log),
		planning.NewHandler(planningSvc, log),
		tokens, log, m,
	).Register(r)

	srv := httpserver.New(cfg.Server.Addr, r)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	if outbox != nil {
		g.Go(func() error { return outbox.Run(gctx) })
	}
	g.Go(func() error {
		log.Info("starting candilib", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
