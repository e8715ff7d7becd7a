package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"hotel_rates/internal/domain"
)

// RuleService owns RateRule records. Rates reference rules by id only, so
// deletion detaches the id from every referencing rate before removing the
// rule; nothing is left dangling.
type RuleService struct {
	mu    sync.Mutex
	rules domain.RuleRepository
	rates domain.RateRepository
	audit domain.AuditLog
	ver   *Version
}

func NewRuleService(rules domain.RuleRepository, rates domain.RateRepository, audit domain.AuditLog, ver *Version) *RuleService {
	return &RuleService{rules: rules, rates: rates, audit: audit, ver: ver}
}

func (s *RuleService) Create(ctx context.Context, r domain.RateRule) (domain.RateRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt, r.UpdatedAt = now, now
	if r.UpdatedBy == "" {
		r.UpdatedBy = r.CreatedBy
	}
	if err := r.Validate(); err != nil {
		return domain.RateRule{}, err
	}
	if err := s.rules.PutRule(ctx, r); err != nil {
		return domain.RateRule{}, err
	}
	s.ver.Bump()
	if err := s.logAudit(ctx, domain.AuditEntry{Action: domain.AuditCreate, PerformedBy: r.CreatedBy}); err != nil {
		return domain.RateRule{}, err
	}
	return r, nil
}

func (s *RuleService) Update(ctx context.Context, id string, p domain.RulePatch) (domain.RateRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.rules.GetRule(ctx, id)
	if err != nil {
		return domain.RateRule{}, err
	}
	diff := map[string]domain.FieldChange{}
	applyRulePatch(&r, p, diff)
	r.UpdatedAt = time.Now().UTC()
	if err := r.Validate(); err != nil {
		return domain.RateRule{}, err
	}
	if err := s.rules.PutRule(ctx, r); err != nil {
		return domain.RateRule{}, err
	}
	s.ver.Bump()
	if err := s.logAudit(ctx, domain.AuditEntry{Action: domain.AuditUpdate, PerformedBy: r.UpdatedBy, Diff: diff}); err != nil {
		return domain.RateRule{}, err
	}
	return r, nil
}

// Delete removes the rule after detaching its id from every rate that
// references it. Each detach is audited as an update of that rate.
func (s *RuleService) Delete(ctx context.Context, id, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rules.GetRule(ctx, id); err != nil {
		return err
	}
	rates, err := s.rates.ListRates(ctx)
	if err != nil {
		return err
	}
	for _, r := range rates {
		detached := removeID(r.RuleIDs, id)
		if len(detached) == len(r.RuleIDs) {
			continue
		}
		from := strings.Join(r.RuleIDs, "; ")
		r.RuleIDs = detached
		r.UpdatedBy = actor
		r.UpdatedAt = time.Now().UTC()
		if err := s.rates.PutRate(ctx, r); err != nil {
			return err
		}
		if err := s.logAudit(ctx, domain.AuditEntry{
			RateID:      r.ID,
			Action:      domain.AuditUpdate,
			PerformedBy: actor,
			Diff: map[string]domain.FieldChange{
				"ruleIds": {From: from, To: strings.Join(detached, "; ")},
			},
		}); err != nil {
			return err
		}
	}
	if err := s.rules.DeleteRule(ctx, id); err != nil {
		return err
	}
	s.ver.Bump()
	return s.logAudit(ctx, domain.AuditEntry{Action: domain.AuditDelete, PerformedBy: actor})
}

func (s *RuleService) Get(ctx context.Context, id string) (domain.RateRule, error) {
	return s.rules.GetRule(ctx, id)
}

func (s *RuleService) List(ctx context.Context) ([]domain.RateRule, error) {
	return s.rules.ListRules(ctx)
}

// ApplicableRules returns the rules referenced by the rate, sorted ascending
// by priority (the fold order). A missing rate or an empty reference list
// yields an empty sequence, not an error.
func (s *RuleService) ApplicableRules(ctx context.Context, rateID string) ([]domain.RateRule, error) {
	r, err := s.rates.GetRate(ctx, rateID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return applicableRules(ctx, s.rules, r)
}

// applicableRules is shared with the resolver so both read paths agree on
// the ascending fold order. Dangling ids (possible in hand-written seed data)
// are skipped.
func applicableRules(ctx context.Context, rules domain.RuleRepository, r domain.Rate) ([]domain.RateRule, error) {
	out := make([]domain.RateRule, 0, len(r.RuleIDs))
	for _, id := range r.RuleIDs {
		rule, err := rules.GetRule(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, rule)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (s *RuleService) logAudit(ctx context.Context, e domain.AuditEntry) error {
	e.ID = uuid.NewString()
	e.At = time.Now().UTC()
	if e.PerformedBy == "" {
		e.PerformedBy = "anonymous"
	}
	if err := s.audit.AppendAudit(ctx, e); err != nil {
		log.Error().Err(err).Str("action", string(e.Action)).Msg("audit append failed")
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func applyRulePatch(r *domain.RateRule, p domain.RulePatch, diff map[string]domain.FieldChange) {
	set := func(field, from, to string) {
		if diff != nil {
			diff[field] = domain.FieldChange{From: from, To: to}
		}
	}
	if p.Name != nil {
		set("name", r.Name, *p.Name)
		r.Name = *p.Name
	}
	if p.Description != nil {
		set("description", r.Description, *p.Description)
		r.Description = *p.Description
	}
	if p.Operator != nil {
		set("operator", string(r.Operator), string(*p.Operator))
		r.Operator = *p.Operator
	}
	if p.Value != nil {
		set("value", r.Value.String(), p.Value.String())
		r.Value = *p.Value
	}
	if p.ChannelMultipliers != nil {
		set("channelMultipliers", fmtMultipliers(r.ChannelMultipliers), fmtMultipliers(*p.ChannelMultipliers))
		r.ChannelMultipliers = *p.ChannelMultipliers
	}
	if p.Conditions != nil {
		set("conditions", strconv.Itoa(len(r.Conditions))+" conditions", strconv.Itoa(len(*p.Conditions))+" conditions")
		r.Conditions = append([]domain.RuleCondition(nil), (*p.Conditions)...)
	}
	if p.Priority != nil {
		set("priority", strconv.Itoa(r.Priority), strconv.Itoa(*p.Priority))
		r.Priority = *p.Priority
	}
	if p.WeekdayDiffs != nil {
		set("weekdayDiffs", fmtMultipliers(r.WeekdayDiffs), fmtMultipliers(*p.WeekdayDiffs))
		r.WeekdayDiffs = *p.WeekdayDiffs
	}
	if p.UpdatedBy != "" {
		r.UpdatedBy = p.UpdatedBy
	}
}

func fmtMultipliers(m map[string]decimal.Decimal) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k].String())
	}
	return strings.Join(parts, "; ")
}
