package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hotel_rates/internal/domain"
)

// CatalogService owns Rate records. All mutations run under a single mutex
// (single-writer discipline) and append exactly one audit entry, except Clone
// which is audited as a create of the new record. A mutation whose audit
// append fails returns that error: the stored change is never silently
// unaudited. Caches are invalidated before the append so a failure cannot
// leave stale reads behind.
type CatalogService struct {
	mu    sync.Mutex
	rates domain.RateRepository
	audit domain.AuditLog
	cache domain.Cache
	ver   *Version
}

func NewCatalogService(rates domain.RateRepository, audit domain.AuditLog, cache domain.Cache, ver *Version) *CatalogService {
	return &CatalogService{rates: rates, audit: audit, cache: cache, ver: ver}
}

func (s *CatalogService) Create(ctx context.Context, r domain.Rate) (domain.Rate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = domain.RateActive
	}
	r.CreatedAt, r.UpdatedAt = now, now
	if r.UpdatedBy == "" {
		r.UpdatedBy = r.CreatedBy
	}
	if err := r.Validate(); err != nil {
		return domain.Rate{}, err
	}
	if err := s.rates.PutRate(ctx, r); err != nil {
		return domain.Rate{}, err
	}
	s.invalidate(ctx, r.ID)
	if err := s.logAudit(ctx, domain.AuditEntry{
		RateID:      r.ID,
		Action:      domain.AuditCreate,
		PerformedBy: r.CreatedBy,
		Diff:        nil,
	}); err != nil {
		return domain.Rate{}, err
	}
	return r, nil
}

func (s *CatalogService) Update(ctx context.Context, id string, p domain.RatePatch) (domain.Rate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.rates.GetRate(ctx, id)
	if err != nil {
		return domain.Rate{}, err
	}
	diff := map[string]domain.FieldChange{}
	applyRatePatch(&r, p, diff)
	r.UpdatedAt = time.Now().UTC()
	if err := r.Validate(); err != nil {
		return domain.Rate{}, err
	}
	if err := s.rates.PutRate(ctx, r); err != nil {
		return domain.Rate{}, err
	}
	s.invalidate(ctx, r.ID)
	if err := s.logAudit(ctx, domain.AuditEntry{
		RateID:      r.ID,
		Action:      domain.AuditUpdate,
		PerformedBy: r.UpdatedBy,
		Diff:        diff,
	}); err != nil {
		return domain.Rate{}, err
	}
	return r, nil
}

// Delete hard-removes the rate; the audit entry is the only durable trace.
func (s *CatalogService) Delete(ctx context.Context, id, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.rates.GetRate(ctx, id); err != nil {
		return err
	}
	if err := s.rates.DeleteRate(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return s.logAudit(ctx, domain.AuditEntry{
		RateID:      id,
		Action:      domain.AuditDelete,
		PerformedBy: actor,
	})
}

// Clone copies every field from the source, assigns a fresh id and creation
// timestamp, applies the overrides, and logs a create.
func (s *CatalogService) Clone(ctx context.Context, id string, overrides domain.RatePatch) (domain.Rate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, err := s.rates.GetRate(ctx, id)
	if err != nil {
		return domain.Rate{}, err
	}
	cp := src.Clone()
	cp.ID = uuid.NewString()
	now := time.Now().UTC()
	cp.CreatedAt, cp.UpdatedAt = now, now
	applyRatePatch(&cp, overrides, nil)
	if overrides.UpdatedBy != "" {
		cp.CreatedBy = overrides.UpdatedBy
	}
	if err := cp.Validate(); err != nil {
		return domain.Rate{}, err
	}
	if err := s.rates.PutRate(ctx, cp); err != nil {
		return domain.Rate{}, err
	}
	s.invalidate(ctx, cp.ID)
	if err := s.logAudit(ctx, domain.AuditEntry{
		RateID:      cp.ID,
		Action:      domain.AuditCreate,
		PerformedBy: cp.CreatedBy,
	}); err != nil {
		return domain.Rate{}, err
	}
	return cp, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (domain.Rate, error) {
	return s.rates.GetRate(ctx, id)
}

func (s *CatalogService) List(ctx context.Context) ([]domain.Rate, error) {
	return s.rates.ListRates(ctx)
}

func (s *CatalogService) logAudit(ctx context.Context, e domain.AuditEntry) error {
	e.ID = uuid.NewString()
	e.At = time.Now().UTC()
	if e.PerformedBy == "" {
		e.PerformedBy = "anonymous"
	}
	if err := s.audit.AppendAudit(ctx, e); err != nil {
		log.Error().Err(err).Str("rate_id", e.RateID).Str("action", string(e.Action)).
			Msg("audit append failed")
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

func (s *CatalogService) invalidate(ctx context.Context, id string) {
	s.ver.Bump()
	if s.cache != nil {
		_ = s.cache.Del(ctx, rateCacheKey(id))
	}
}

// applyRatePatch copies the supplied fields onto r. When diff is non-nil it
// records a {from, to} pair for every supplied field (and only those).
func applyRatePatch(r *domain.Rate, p domain.RatePatch, diff map[string]domain.FieldChange) {
	set := func(field, from, to string) {
		if diff != nil {
			diff[field] = domain.FieldChange{From: from, To: to}
		}
	}
	if p.Code != nil {
		set("code", r.Code, *p.Code)
		r.Code = *p.Code
	}
	if p.Name != nil {
		set("name", r.Name, *p.Name)
		r.Name = *p.Name
	}
	if p.RoomType != nil {
		set("roomType", r.RoomType, *p.RoomType)
		r.RoomType = *p.RoomType
	}
	if p.RateType != nil {
		set("rateType", r.RateType, *p.RateType)
		r.RateType = *p.RateType
	}
	if p.Channels != nil {
		set("channels", strings.Join(r.Channels, "; "), strings.Join(*p.Channels, "; "))
		r.Channels = append([]string(nil), (*p.Channels)...)
	}
	if p.EffectiveFrom != nil {
		set("effectiveFrom", fmtDate(r.EffectiveFrom), fmtDate(*p.EffectiveFrom))
		r.EffectiveFrom = *p.EffectiveFrom
	}
	if p.EffectiveTo != nil {
		set("effectiveTo", fmtDate(r.EffectiveTo), fmtDate(*p.EffectiveTo))
		r.EffectiveTo = *p.EffectiveTo
	}
	if p.BasePrice != nil {
		set("basePrice", r.BasePrice.String(), p.BasePrice.String())
		r.BasePrice = *p.BasePrice
	}
	if p.Currency != nil {
		set("currency", r.Currency, *p.Currency)
		r.Currency = *p.Currency
	}
	if p.MinStay != nil {
		set("minStay", fmtIntPtr(r.MinStay), strconv.Itoa(*p.MinStay))
		v := *p.MinStay
		r.MinStay = &v
	}
	if p.MaxStay != nil {
		set("maxStay", fmtIntPtr(r.MaxStay), strconv.Itoa(*p.MaxStay))
		v := *p.MaxStay
		r.MaxStay = &v
	}
	if p.Priority != nil {
		set("priority", strconv.Itoa(r.Priority), strconv.Itoa(*p.Priority))
		r.Priority = *p.Priority
	}
	if p.RuleIDs != nil {
		set("ruleIds", strings.Join(r.RuleIDs, "; "), strings.Join(*p.RuleIDs, "; "))
		r.RuleIDs = append([]string(nil), (*p.RuleIDs)...)
	}
	if p.Status != nil {
		set("status", string(r.Status), string(*p.Status))
		r.Status = *p.Status
	}
	if p.Notes != nil {
		set("notes", r.Notes, *p.Notes)
		r.Notes = *p.Notes
	}
	if p.UpdatedBy != "" {
		r.UpdatedBy = p.UpdatedBy
	}
}

func fmtDate(t time.Time) string { return t.UTC().Format("2006-01-02") }

func fmtIntPtr(p *int) string {
	if p == nil {
		return ""
	}
	return strconv.Itoa(*p)
}
