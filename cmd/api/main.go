package main

import (
	"database/sql"
	"net/http"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	server "hotel_rates/internal/adapters/http_server"
	"hotel_rates/internal/adapters/observability"
	redisad "hotel_rates/internal/adapters/redis"
	"hotel_rates/internal/app"
	"hotel_rates/internal/domain"
	"hotel_rates/internal/shared"
	"hotel_rates/internal/storage/memory"
	mysqlrepo "hotel_rates/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)

	observability.Serve(cfg.MetricsAddr)

	var (
		rates domain.RateRepository
		rules domain.RuleRepository
		adjs  domain.AdjustmentRepository
		audit domain.AuditLog
	)
	switch cfg.StorageDriver {
	case "memory":
		st := memory.New()
		rates, rules, adjs, audit = st, st, st, st
		log.Info().Msg("using in-memory storage")
	default:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("database connection ok")
		repo := mysqlrepo.New(db)
		rates, rules, adjs, audit = repo, repo, repo, repo
	}
	audit = observability.InstrumentAuditLog(audit)

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	ver := app.NewVersion()

	catalog := app.NewCatalogService(rates, audit, cache, ver)
	ruleSvc := app.NewRuleService(rules, rates, audit, ver)
	workflow := app.NewWorkflowService(adjs, rates, audit, cache, ver)
	query := app.NewQueryService(rates, cache, cfg.CacheTTL)
	resolver := app.NewResolver(rates, rules, cache, ver, cfg.CacheTTL)

	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Catalog:     catalog,
		Rules:       ruleSvc,
		Workflow:    workflow,
		Query:       query,
		Resolver:    resolver,
		Audit:       audit,
		Cache:       cache,
		IdemTTL:     cfg.IdemTTL,
		MutationRPS: cfg.MutationRPS,
	})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux()}

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
