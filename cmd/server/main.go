package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"regflow/internal/audit"
	docstore "regflow/internal/document/store"
	"regflow/internal/payment"
	"regflow/internal/platform/config"
	"regflow/internal/platform/httpserver"
	"regflow/internal/platform/logger"
	"regflow/internal/platform/metrics"
	"regflow/internal/platform/postgres"
	platformredis "regflow/internal/platform/redis"
	"regflow/internal/ratelimit"
	"regflow/internal/review"
	"regflow/internal/session"
	httptransport "regflow/internal/transport/http"
	"regflow/internal/workflow"
	"regflow/internal/workflow/lock"
	wfmetrics "regflow/internal/workflow/metrics"
	"regflow/internal/workflow/statestore"
)

const shutdownGrace = 15 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("regflow stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("regflow stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	reg := metrics.NewRegistry()
	httpMetrics := metrics.New(reg)
	paymentMetrics := payment.NewMetrics(reg)
	workflowMetrics := wfmetrics.New(reg)

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		defer rc.Close()
	}

	docs, err := openDocuments(ctx, g, cfg, log)
	if err != nil {
		return err
	}

	states, closeStates, err := openStateStore(ctx, cfg, rc)
	if err != nil {
		return err
	}
	defer closeStates()

	var locker workflow.Locker = lock.NewSharded()
	if rc != nil {
		locker = lock.NewRedis(rc.Client, lock.WithLogger(log))
	}

	auditor, err := openAudit(ctx, g, cfg, log)
	if err != nil {
		return err
	}

	fees := payment.DefaultFees()
	fees.PerInvestor = cfg.Payment.FeePerInvestor
	fees.Currency = cfg.Payment.Currency
	charger := payment.NewSimulator(
		payment.WithDelay(cfg.Payment.Delay),
		payment.WithTimeout(cfg.Payment.Timeout),
		payment.WithTransactionPrefix(cfg.Payment.TransactionPrefix),
		payment.WithMetrics(paymentMetrics),
		payment.WithLogger(log),
	)

	registry := workflow.NewRegistry(workflow.Deps{
		Docs:    docs,
		States:  states,
		Charger: charger,
		Locker:  locker,
	}, cfg.Session.IdleTTL, log, workflowMetrics,
		workflow.WithAuditPublisher(auditor),
		workflow.WithFees(fees),
	)
	defer registry.Close()

	sessions := session.NewService(session.NewSigner(cfg.Session.SigningKey),
		session.WithTTL(cfg.Session.TTL),
		session.WithAuditPublisher(auditor),
		session.WithLogger(log),
	)
	reviews := review.NewService(docs, review.WithAuditPublisher(auditor), review.WithLogger(log))
	links := payment.NewLinkGenerator(cfg.Server.PaymentLinkURL, payment.LogSender{Delay: time.Second, Logger: log}, paymentMetrics)

	sessionLimit := window(cfg.RateLimit.SessionsPerMinute, time.Minute)
	inspectLimit := window(cfg.RateLimit.InspectPerMinute, time.Minute)
	linkLimit := window(cfg.RateLimit.LinksPerHour, time.Hour)
	g.Go(func() error {
		return ratelimit.RunSweeper(ctx, 5*time.Minute, sessionLimit, inspectLimit, linkLimit)
	})

	checks := map[string]func(context.Context) error{}
	if rc != nil {
		checks["redis"] = rc.Health
	}
	if pg, ok := docs.(*docstore.PostgresStore); ok {
		checks["postgres"] = pg.Ping
	}

	router := httptransport.NewRouter(
		httptransport.RouterConfig{
			Logger:         log,
			Metrics:        httpMetrics,
			MetricsHandler: metrics.Handler(reg),
			Timeout:        cfg.Payment.Timeout + 15*time.Second,
			ReadyChecks:    checks,
		},
		httptransport.NewSessionHandler(sessions, sessionLimit, log),
		httptransport.NewCatalogHandler(inspectLimit, log),
		httptransport.NewWorkflowHandler(registry, links, linkLimit, sessions, log),
		httptransport.NewAdminHandler(reviews, cfg.Server.AdminAPIToken, log),
	)
	if cfg.Server.AdminAPIToken == "" {
		log.Warn("ADMIN_API_TOKEN is empty; reviewer routes are disabled")
	}

	srv := httpserver.New(cfg.Server.Addr, router)
	g.Go(func() error {
		return httpserver.Run(ctx, srv, shutdownGrace, log)
	})

	return g.Wait()
}

func window(limit int, per time.Duration) *ratelimit.Window {
	if limit <= 0 {
		return nil
	}
	return ratelimit.NewWindow(limit, per)
}

// workflowDocuments is what both the workflow and the reviewer need from the
// document store.
type workflowDocuments interface {
	workflow.DocumentStore
	review.Store
}

func openDocuments(ctx context.Context, g *errgroup.Group, cfg config.Config, log *slog.Logger) (workflowDocuments, error) {
	if cfg.Postgres.URL == "" {
		log.Warn("DATABASE_URL is empty; documents are kept in memory")
		return docstore.NewInMemory(), nil
	}
	db, err := postgres.Open(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, err
	}
	store := docstore.NewPostgres(db)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	notifier, err := store.Listen(cfg.Postgres.URL, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	g.Go(func() error {
		defer db.Close()
		return notifier.Run(ctx)
	})
	return store, nil
}

func openStateStore(ctx context.Context, cfg config.Config, rc *platformredis.Client) (workflow.StateStore, func(), error) {
	switch cfg.State.Backend {
	case config.StateBackendRedis:
		return statestore.NewRedis(rc.Client, statestore.WithTTL(cfg.State.TTL)), func() {}, nil
	case config.StateBackendSQLite:
		st, err := statestore.OpenSQLite(ctx, cfg.State.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { _ = st.Close() }, nil
	default:
		return statestore.NewInMemory(), func() {}, nil
	}
}

func openAudit(ctx context.Context, g *errgroup.Group, cfg config.Config, log *slog.Logger) (*audit.Publisher, error) {
	var sink audit.Sink = audit.NewInMemoryStore()
	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.AuditTopic)
		if err != nil {
			return nil, err
		}
		if err := ks.EnsureTopic(ctx, 3, 1); err != nil {
			log.WarnContext(ctx, "audit topic bootstrap failed", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
		sink = ks
	}
	pub := audit.NewPublisher(sink, audit.WithBuffer(1024), audit.WithLogger(log))
	worker := pub.Worker()
	g.Go(func() error {
		err := worker.Run(ctx)
		if ks, ok := sink.(*audit.KafkaSink); ok {
			ks.Close()
		}
		return err
	})
	return pub, nil
}
