// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"expensio/internal/company"
	"expensio/internal/currency"
	"expensio/internal/directory"
	"expensio/internal/expense"
	expensehandler "expensio/internal/expense/handler"
	expmetrics "expensio/internal/expense/metrics"
	expenseservice "expensio/internal/expense/service"
	identityhandler "expensio/internal/identity/handler"
	identityservice "expensio/internal/identity/service"
	"expensio/internal/identity/token"
	"expensio/internal/platform/config"
	"expensio/internal/platform/httpserver"
	"expensio/internal/platform/logger"
	"expensio/internal/platform/metrics"
	platformpg "expensio/internal/platform/postgres"
	platformredis "expensio/internal/platform/redis"
	"expensio/internal/policy"
	policyhandler "expensio/internal/policy/handler"
	policyservice "expensio/internal/policy/service"
	httptransport "expensio/internal/transport/http"
	"expensio/pkg/platform/audit"
	auditmemory "expensio/pkg/platform/audit/store/memory"
	auditpostgres "expensio/pkg/platform/audit/store/postgres"
	auditworker "expensio/pkg/platform/audit/worker"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: postgres when configured, in-memory otherwise.
	var (
		users     directory.Store
		companies company.Store
		policies  policy.Store
		expenses  expense.Store
		auditDB   *sql.DB
	)
	if cfg.PostgresURL != "" {
		pool, err := platformpg.NewPool(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		users = directory.NewPostgres(pool)
		companies = company.NewPostgres(pool)
		policies = policy.NewPostgres(pool)
		expenses = expense.NewPostgres(pool)

		auditDB, err = sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			log.Error("audit outbox connection failed", "error", err)
			os.Exit(1)
		}
		defer auditDB.Close()
	} else {
		users = directory.NewInMemory()
		companies = company.NewInMemory()
		policies = policy.NewInMemory()
		expenses = expense.NewInMemory()
	}

	var auditStore audit.Store
	var outbox audit.Outbox
	if auditDB != nil {
		pgStore := auditpostgres.New(auditDB)
		auditStore = pgStore
		outbox = pgStore
	} else {
		auditStore = auditmemory.New()
	}
	publisher := audit.NewPublisher(auditStore, log)

	// Rate source: redis cache in front of the static table when configured.
	var rateSource currency.RateSource = currency.NewStaticSource(currency.DefaultRates())
	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		rateSource = currency.NewRedisSource(redisClient.Client, rateSource, time.Hour)
	}
	converter := currency.NewConverter(rateSource)

	tokens := token.NewService(cfg.JWTSigningKey, cfg.TokenTTL)
	validator := token.NewMiddlewareAdapter(tokens)

	identitySvc := identityservice.New(users, companies, policies, tokens,
		identityservice.WithAudit(publisher))
	policySvc := policyservice.New(policies, policyservice.WithAudit(publisher))
	expenseSvc := expenseservice.New(expenses, users, companies, policies, converter,
		expenseservice.WithAudit(publisher),
		expenseservice.WithMetrics(expmetrics.New()))

	router := httptransport.NewRouter(log, metrics.New(),
		identityhandler.New(identitySvc, validator, log),
		policyhandler.New(policySvc, validator, log),
		expensehandler.New(expenseSvc, validator, log),
	)
	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting expensio", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down")
		return httpserver.Shutdown(srv, 10*time.Second)
	})

	// Audit worker needs both Kafka brokers and the durable outbox.
	if len(cfg.KafkaBrokers) > 0 && outbox != nil {
		worker, err := auditworker.New(cfg.KafkaBrokers, cfg.AuditTopic, outbox, log)
		if err != nil {
			log.Error("audit worker startup failed", "error", err)
			os.Exit(1)
		}
		group.Go(func() error {
			if err := worker.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
