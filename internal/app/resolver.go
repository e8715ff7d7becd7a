package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"hotel_rates/internal/domain"
)

// Resolver computes effective prices. It is a pure read layer: winner
// selection over the catalog, then a sequential fold of the winner's rules.
//
// Ordering is deliberately asymmetric and easy to invert by accident:
// rates are ranked by priority DESCENDING (highest wins), while rules fold in
// ASCENDING priority order. The fold is order-sensitive — each rule sees the
// previous rule's output, so two 10% increases compound to 21%, not 20%.
type Resolver struct {
	rates domain.RateRepository
	rules domain.RuleRepository
	cache domain.Cache
	ver   *Version
	ttl   time.Duration
}

func NewResolver(rates domain.RateRepository, rules domain.RuleRepository, cache domain.Cache, ver *Version, ttl time.Duration) *Resolver {
	return &Resolver{rates: rates, rules: rules, cache: cache, ver: ver, ttl: ttl}
}

// ResolvePrice returns the effective price for the query, rounded to cents
// and clamped at zero. When no active rate covers the query it returns
// domain.ErrNoApplicableRate (the room is unavailable, not free).
func (r *Resolver) ResolvePrice(ctx context.Context, q domain.ResolveQuery) (domain.Quote, error) {
	if err := q.Validate(); err != nil {
		return domain.Quote{}, err
	}
	q = q.WithDefaults()

	key := priceCacheKey(r.ver.Current(), fmt.Sprintf("%s:%s:%s:%d:%d:%d",
		q.RoomType, domain.DateOnly(q.Date).Format("2006-01-02"), q.Channel,
		*q.OccupancyPct, *q.LengthOfStay, *q.LeadTimeDays))
	if r.cache != nil {
		var cached domain.Quote
		if ok, _ := r.cache.Get(ctx, key, &cached); ok {
			return cached, nil
		}
	}

	winner, err := r.selectWinner(ctx, q)
	if err != nil {
		return domain.Quote{}, err
	}

	rules, err := applicableRules(ctx, r.rules, winner)
	if err != nil {
		return domain.Quote{}, err
	}

	price := winner.BasePrice
	applied := make([]string, 0, len(rules))
	for _, rule := range rules {
		if !rule.Applies(q) {
			continue
		}
		price = rule.Apply(price, q.Channel)
		applied = append(applied, rule.ID)
	}
	if price.IsNegative() {
		price = decimal.Zero
	}
	price = price.Round(2)

	quote := domain.Quote{
		RateID:       winner.ID,
		RateCode:     winner.Code,
		Currency:     winner.Currency,
		Price:        price,
		AppliedRules: applied,
	}
	if r.cache != nil {
		_ = r.cache.Set(ctx, key, quote, r.ttl)
	}
	return quote, nil
}

// selectWinner filters the catalog to active rates matching room type, date
// window and channel, then picks the highest priority. The sort is stable, so
// ties fall back to catalog insertion order.
func (r *Resolver) selectWinner(ctx context.Context, q domain.ResolveQuery) (domain.Rate, error) {
	all, err := r.rates.ListRates(ctx)
	if err != nil {
		return domain.Rate{}, err
	}
	candidates := all[:0:0]
	for _, rate := range all {
		if rate.RoomType != q.RoomType || rate.Status != domain.RateActive {
			continue
		}
		if !rate.InWindow(q.Date) || !rate.HasChannel(q.Channel) {
			continue
		}
		candidates = append(candidates, rate)
	}
	if len(candidates) == 0 {
		return domain.Rate{}, domain.ErrNoApplicableRate
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority > candidates[j].Priority
	})
	return candidates[0], nil
}
