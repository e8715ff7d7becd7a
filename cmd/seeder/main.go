package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"hotel_rates/internal/adapters/observability"
	redisad "hotel_rates/internal/adapters/redis"
	"hotel_rates/internal/app"
	"hotel_rates/internal/domain"
	"hotel_rates/internal/shared"
	"hotel_rates/internal/storage/memory"
	mysqlrepo "hotel_rates/internal/storage/mysql"
)

type seedCondition struct {
	Type      string  `json:"type"`
	Operator  string  `json:"operator"`
	Threshold float64 `json:"threshold"`
}

type seedRule struct {
	Ref                string                     `json:"ref"` // local handle used by rates in the same file
	Name               string                     `json:"name"`
	Description        string                     `json:"description"`
	Operator           string                     `json:"operator"`
	Value              decimal.Decimal            `json:"value"`
	ChannelMultipliers map[string]decimal.Decimal `json:"channelMultipliers"`
	Conditions         []seedCondition            `json:"conditions"`
	Priority           int                        `json:"priority"`
}

type seedRate struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	RoomType      string          `json:"roomType"`
	RateType      string          `json:"rateType"`
	Channels      []string        `json:"channels"`
	EffectiveFrom string          `json:"effectiveFrom"`
	EffectiveTo   string          `json:"effectiveTo"`
	BasePrice     decimal.Decimal `json:"basePrice"`
	Currency      string          `json:"currency"`
	MinStay       *int            `json:"minStay"`
	MaxStay       *int            `json:"maxStay"`
	Priority      int             `json:"priority"`
	RuleRefs      []string        `json:"ruleRefs"`
	Status        string          `json:"status"`
	Notes         string          `json:"notes"`
}

type seedFile struct {
	Rules []seedRule `json:"rules"`
	Rates []seedRate `json:"rates"`
}

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Str("file", cfg.SeedFile).
		Int("workers", cfg.SeedWorkers).
		Msg("seeder starting")

	raw, err := os.ReadFile(cfg.SeedFile)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		log.Fatal().Err(err).Msg("failed to parse seed file")
	}

	var (
		rates domain.RateRepository
		rules domain.RuleRepository
		audit domain.AuditLog
	)
	switch cfg.StorageDriver {
	case "memory":
		st := memory.New()
		rates, rules, audit = st, st, st
	default:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		if err := db.Ping(); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("db ping ok")
		repo := mysqlrepo.New(db)
		rates, rules, audit = repo, repo, repo
	}

	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	ver := app.NewVersion()
	catalog := app.NewCatalogService(rates, audit, cache, ver)
	ruleSvc := app.NewRuleService(rules, rates, audit, ver)

	// rules first, sequentially: rates reference them by ref
	ruleIDs := make(map[string]string, len(seed.Rules))
	for _, sr := range seed.Rules {
		conds := make([]domain.RuleCondition, 0, len(sr.Conditions))
		for _, c := range sr.Conditions {
			conds = append(conds, domain.RuleCondition{
				Type:      domain.ConditionType(c.Type),
				Operator:  domain.ConditionOperator(c.Operator),
				Threshold: c.Threshold,
			})
		}
		created, err := ruleSvc.Create(ctx, domain.RateRule{
			Name:               sr.Name,
			Description:        sr.Description,
			Operator:           domain.RuleOperator(sr.Operator),
			Value:              sr.Value,
			ChannelMultipliers: sr.ChannelMultipliers,
			Conditions:         conds,
			Priority:           sr.Priority,
			CreatedBy:          "seeder",
		})
		if err != nil {
			log.Fatal().Str("rule", sr.Name).Err(err).Msg("rule seed failed")
		}
		if sr.Ref != "" {
			ruleIDs[sr.Ref] = created.ID
		}
		log.Info().Str("id", created.ID).Str("name", created.Name).Msg("rule seeded")
	}

	sem := semaphore.NewWeighted(int64(max(cfg.SeedWorkers, 1)))
	var wg sync.WaitGroup

	for _, sr := range seed.Rates {
		rt, err := toRate(sr, ruleIDs)
		if err != nil {
			log.Fatal().Str("code", sr.Code).Err(err).Msg("bad seed rate")
		}

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(rt domain.Rate) {
			defer wg.Done()
			defer sem.Release(1)

			created, err := catalog.Create(ctx, rt)
			if err != nil {
				log.Warn().Str("code", rt.Code).Err(err).Msg("rate seed failed")
				return
			}
			log.Info().Str("id", created.ID).Str("code", created.Code).Msg("rate seeded")
		}(rt)
	}

	wg.Wait()
	log.Info().Msg("seeding completed")
}

func toRate(sr seedRate, ruleIDs map[string]string) (domain.Rate, error) {
	from, err := domain.ParseDate(sr.EffectiveFrom)
	if err != nil {
		return domain.Rate{}, err
	}
	to, err := domain.ParseDate(sr.EffectiveTo)
	if err != nil {
		return domain.Rate{}, err
	}
	ids := make([]string, 0, len(sr.RuleRefs))
	for _, ref := range sr.RuleRefs {
		id, ok := ruleIDs[ref]
		if !ok {
			return domain.Rate{}, &domain.ValidationError{Field: "ruleRefs", Reason: "unknown rule ref " + ref}
		}
		ids = append(ids, id)
	}
	return domain.Rate{
		Code:          sr.Code,
		Name:          sr.Name,
		RoomType:      sr.RoomType,
		RateType:      sr.RateType,
		Channels:      sr.Channels,
		EffectiveFrom: from,
		EffectiveTo:   to,
		BasePrice:     sr.BasePrice,
		Currency:      sr.Currency,
		MinStay:       sr.MinStay,
		MaxStay:       sr.MaxStay,
		Priority:      sr.Priority,
		RuleIDs:       ids,
		Status:        domain.RateStatus(sr.Status),
		Notes:         sr.Notes,
		CreatedBy:     "seeder",
	}, nil
}
