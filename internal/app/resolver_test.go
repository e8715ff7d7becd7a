package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"hotel_rates/internal/app"
	"hotel_rates/internal/domain"
	"hotel_rates/internal/storage/memory"
)

func TestResolvePrice_HighestPriorityWins(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	_ = st.PutRate(ctx, mkRate("r-low", "STD", 1, "100"))
	_ = st.PutRate(ctx, mkRate("r-high", "SUMMER", 5, "150"))

	res := app.NewResolver(st, st, nil, app.NewVersion(), time.Minute)
	q, err := res.ResolvePrice(ctx, julyQuery())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if q.RateID != "r-high" || !q.Price.Equal(dec("150")) {
		t.Fatalf("unexpected quote: %+v", q)
	}
}

func TestResolvePrice_TieBreaksByInsertionOrder(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	_ = st.PutRate(ctx, mkRate("r-first", "A", 3, "100"))
	_ = st.PutRate(ctx, mkRate("r-second", "B", 3, "90"))

	res := app.NewResolver(st, st, nil, app.NewVersion(), time.Minute)
	q, err := res.ResolvePrice(ctx, julyQuery())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if q.RateID != "r-first" {
		t.Fatalf("equal priorities must fall back to insertion order, got %s", q.RateID)
	}
}

func TestResolvePrice_CandidateFiltering(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	wrongRoom := mkRate("r1", "A", 9, "10")
	wrongRoom.RoomType = "suite"
	inactive := mkRate("r2", "B", 9, "10")
	inactive.Status = domain.RateInactive
	outOfWindow := mkRate("r3", "C", 9, "10")
	outOfWindow.EffectiveFrom, outOfWindow.EffectiveTo = day(2026, 8, 1), day(2026, 8, 31)
	wrongChannel := mkRate("r4", "D", 9, "10")
	wrongChannel.Channels = []string{"Direct"}
	for _, r := range []domain.Rate{wrongRoom, inactive, outOfWindow, wrongChannel} {
		_ = st.PutRate(ctx, r)
	}

	res := app.NewResolver(st, st, nil, app.NewVersion(), time.Minute)
	if _, err := res.ResolvePrice(ctx, julyQuery()); !errors.Is(err, domain.ErrNoApplicableRate) {
		t.Fatalf("expected ErrNoApplicableRate, got %v", err)
	}

	// a wildcard-channel rate does match
	wild := mkRate("r5", "E", 1, "80")
	wild.Channels = []string{domain.ChannelAll}
	_ = st.PutRate(ctx, wild)
	q, err := res.ResolvePrice(ctx, julyQuery())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if q.RateID != "r5" {
		t.Fatalf("wildcard rate must win, got %s", q.RateID)
	}
}

func TestResolvePrice_FoldIsSequentialAndCompounding(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	ten := domain.RateRule{ID: "ru-1", Name: "ten-a", Operator: domain.OpPercentageIncrease, Value: dec("10"), Priority: 1, CreatedBy: "test"}
	ten2 := ten
	ten2.ID, ten2.Name, ten2.Priority = "ru-2", "ten-b", 2
	_ = st.PutRule(ctx, ten)
	_ = st.PutRule(ctx, ten2)

	r := mkRate("r1", "A", 1, "100")
	r.RuleIDs = []string{"ru-2", "ru-1"} // reference order must not matter
	_ = st.PutRate(ctx, r)

	res := app.NewResolver(st, st, nil, app.NewVersion(), time.Minute)
	q, err := res.ResolvePrice(ctx, julyQuery())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// two 10% increases compound: 100 -> 110 -> 121
	if got := q.Price.StringFixed(2); got != "121.00" {
		t.Fatalf("expected 121.00, got %s", got)
	}
	if len(q.AppliedRules) != 2 || q.AppliedRules[0] != "ru-1" || q.AppliedRules[1] != "ru-2" {
		t.Fatalf("applied rules must be in ascending priority order, got %v", q.AppliedRules)
	}
}

func TestResolvePrice_DecreaseThenChannelMultiplier(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	_ = st.PutRule(ctx, domain.RateRule{
		ID: "ru-disc", Name: "early-bird", Operator: domain.OpPercentageDecrease,
		Value: dec("10"), Priority: 1, CreatedBy: "test",
	})
	_ = st.PutRule(ctx, domain.RateRule{
		ID: "ru-ota", Name: "ota-markup", Operator: domain.OpMultiplier,
		ChannelMultipliers: map[string]decimal.Decimal{"OTA": dec("1.1")},
		Priority:           2, CreatedBy: "test",
	})

	r := mkRate("r1", "A", 1, "120")
	r.RuleIDs = []string{"ru-disc", "ru-ota"}
	_ = st.PutRate(ctx, r)

	res := app.NewResolver(st, st, nil, app.NewVersion(), time.Minute)
	q, err := res.ResolvePrice(ctx, julyQuery())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	// 120 - 10% = 108, then OTA multiplier 1.1 = 118.80
	if got := q.Price.StringFixed(2); got != "118.80" {
		t.Fatalf("expected 118.80, got %s", got)
	}
}

func TestResolvePrice_ConditionGating(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	_ = st.PutRule(ctx, domain.RateRule{
		ID: "ru-surge", Name: "high-occupancy", Operator: domain.OpPercentageIncrease,
		Value: dec("20"), Priority: 1, CreatedBy: "test",
		Conditions: []domain.RuleCondition{
			{Type: domain.CondOccupancy, Operator: domain.CondGreaterThan, Threshold: 80},
		},
	})
	r := mkRate("r1", "A", 1, "100")
	r.RuleIDs = []string{"ru-surge"}
	_ = st.PutRate(ctx, r)

	res := app.NewResolver(st, st, nil, app.NewVersion(), time.Minute)

	// default occupancy (70) does not trip the condition
	q1, err := res.ResolvePrice(ctx, julyQuery())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := q1.Price.StringFixed(2); got != "100.00" {
		t.Fatalf("expected 100.00 at default occupancy, got %s", got)
	}
	if len(q1.AppliedRules) != 0 {
		t.Fatalf("gated rule must not be listed as applied: %v", q1.AppliedRules)
	}

	hot := julyQuery()
	hot.OccupancyPct = ptr(90)
	q2, err := res.ResolvePrice(ctx, hot)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := q2.Price.StringFixed(2); got != "120.00" {
		t.Fatalf("expected 120.00 at occupancy 90, got %s", got)
	}
}

func TestResolvePrice_ExplicitZeroLeadTimeIsKept(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	_ = st.PutRule(ctx, domain.RateRule{
		ID: "ru-late", Name: "last-minute", Operator: domain.OpPercentageDecrease,
		Value: dec("20"), Priority: 1, CreatedBy: "test",
		Conditions: []domain.RuleCondition{
			{Type: domain.CondLeadTime, Operator: domain.CondLessThan, Threshold: 7},
		},
	})
	r := mkRate("r1", "A", 1, "100")
	r.RuleIDs = []string{"ru-late"}
	_ = st.PutRate(ctx, r)

	res := app.NewResolver(st, st, nil, app.NewVersion(), time.Minute)

	// lead time 0 is a same-day booking, not "use the default"
	q := julyQuery()
	q.LeadTimeDays = ptr(0)
	got, err := res.ResolvePrice(ctx, q)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if s := got.Price.StringFixed(2); s != "80.00" {
		t.Fatalf("same-day booking must trip the lead_time rule, expected 80.00, got %s", s)
	}
	if len(got.AppliedRules) != 1 || got.AppliedRules[0] != "ru-late" {
		t.Fatalf("expected ru-late applied, got %v", got.AppliedRules)
	}

	// an absent lead time falls back to the default (14), outside the condition
	abs := julyQuery()
	abs.LeadTimeDays = nil
	got2, err := res.ResolvePrice(ctx, abs)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if s := got2.Price.StringFixed(2); s != "100.00" {
		t.Fatalf("absent lead time must default past the threshold, expected 100.00, got %s", s)
	}
}

func TestResolvePrice_IsDeterministic(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	_ = st.PutRule(ctx, domain.RateRule{
		ID: "ru-up", Name: "up", Operator: domain.OpPercentageIncrease,
		Value: dec("10"), Priority: 1, CreatedBy: "test",
	})
	_ = st.PutRule(ctx, domain.RateRule{
		ID: "ru-ota", Name: "ota", Operator: domain.OpMultiplier,
		ChannelMultipliers: map[string]decimal.Decimal{"OTA": dec("1.1")},
		Priority:           2, CreatedBy: "test",
	})
	winner := mkRate("r-win", "WIN", 5, "100")
	winner.RuleIDs = []string{"ru-ota", "ru-up"}
	_ = st.PutRate(ctx, winner)
	_ = st.PutRate(ctx, mkRate("r-other", "OTHER", 5, "90"))

	// no cache: both calls walk the full selection and fold
	res := app.NewResolver(st, st, nil, app.NewVersion(), time.Minute)
	first, err := res.ResolvePrice(ctx, julyQuery())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := res.ResolvePrice(ctx, julyQuery())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if first.RateID != second.RateID || first.RateCode != second.RateCode || first.Currency != second.Currency {
		t.Fatalf("identical queries resolved different rates: %+v vs %+v", first, second)
	}
	if !first.Price.Equal(second.Price) {
		t.Fatalf("identical queries priced differently: %s vs %s", first.Price, second.Price)
	}
	if len(first.AppliedRules) != len(second.AppliedRules) {
		t.Fatalf("applied rules differ: %v vs %v", first.AppliedRules, second.AppliedRules)
	}
	for i := range first.AppliedRules {
		if first.AppliedRules[i] != second.AppliedRules[i] {
			t.Fatalf("applied rules differ: %v vs %v", first.AppliedRules, second.AppliedRules)
		}
	}
}

func TestResolvePrice_ClampAndRounding(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	_ = st.PutRule(ctx, domain.RateRule{
		ID: "ru-big", Name: "big-discount", Operator: domain.OpFixedDiscount,
		Value: dec("80"), Priority: 1, CreatedBy: "test",
	})
	r := mkRate("r1", "A", 1, "50")
	r.RuleIDs = []string{"ru-big"}
	_ = st.PutRate(ctx, r)

	res := app.NewResolver(st, st, nil, app.NewVersion(), time.Minute)
	q, err := res.ResolvePrice(ctx, julyQuery())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := q.Price.StringFixed(2); got != "0.00" {
		t.Fatalf("negative fold result must clamp to 0.00, got %s", got)
	}

	// rounding: 100 * 1/3 % increase -> 100.333... -> 100.33
	_ = st.PutRule(ctx, domain.RateRule{
		ID: "ru-third", Name: "third", Operator: domain.OpPercentageIncrease,
		Value: dec("0.3333"), Priority: 1, CreatedBy: "test",
	})
	r2 := mkRate("r2", "B", 9, "100")
	r2.RuleIDs = []string{"ru-third"}
	_ = st.PutRate(ctx, r2)
	q2, err := res.ResolvePrice(ctx, julyQuery())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := q2.Price.StringFixed(2); got != "100.33" {
		t.Fatalf("expected 100.33, got %s", got)
	}
}

func TestResolvePrice_DanglingRuleIDIsSkipped(t *testing.T) {
	st := memory.New()
	ctx := context.Background()

	r := mkRate("r1", "A", 1, "100")
	r.RuleIDs = []string{"gone"}
	_ = st.PutRate(ctx, r)

	res := app.NewResolver(st, st, nil, app.NewVersion(), time.Minute)
	q, err := res.ResolvePrice(ctx, julyQuery())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := q.Price.StringFixed(2); got != "100.00" {
		t.Fatalf("dangling rule id must be ignored, got %s", got)
	}
}

func TestResolvePrice_ValidatesQuery(t *testing.T) {
	st := memory.New()
	res := app.NewResolver(st, st, nil, app.NewVersion(), time.Minute)

	var ve *domain.ValidationError
	_, err := res.ResolvePrice(context.Background(), domain.ResolveQuery{RoomType: "double", Channel: "OTA"})
	if !errors.As(err, &ve) {
		t.Fatalf("missing date must fail validation, got %v", err)
	}
}

func TestResolvePrice_CacheHitAndGenerationInvalidation(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	cache := &fakeCache{}
	ver := app.NewVersion()

	_ = st.PutRate(ctx, mkRate("r1", "A", 1, "100"))

	res := app.NewResolver(st, st, cache, ver, time.Minute)
	if _, err := res.ResolvePrice(ctx, julyQuery()); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("first resolve must populate the cache, sets=%d", cache.sets)
	}

	// second resolve is a hit: the store can change underneath without effect
	_ = st.PutRate(ctx, mkRate("r2", "B", 9, "500"))
	q, err := res.ResolvePrice(ctx, julyQuery())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !q.Price.Equal(dec("100")) {
		t.Fatalf("expected cached 100, got %s", q.Price)
	}

	// bumping the generation changes the key and forces a recompute
	ver.Bump()
	q2, err := res.ResolvePrice(ctx, julyQuery())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !q2.Price.Equal(dec("500")) {
		t.Fatalf("expected recomputed 500 after bump, got %s", q2.Price)
	}
}
