package app

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"time"

	"hotel_rates/internal/domain"
)

// QueryService is the read-only façade over the catalog: predicate filtering
// and the fixed-layout CSV export consumed by the presentation layer.
type QueryService struct {
	rates domain.RateRepository
	cache domain.Cache
	ttl   time.Duration
}

func NewQueryService(rates domain.RateRepository, cache domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{rates: rates, cache: cache, ttl: ttl}
}

// Get is the cached single-rate read path; catalog mutations invalidate the
// per-rate key.
func (s *QueryService) Get(ctx context.Context, id string) (domain.Rate, error) {
	key := rateCacheKey(id)
	if s.cache != nil {
		var cached domain.Rate
		if ok, _ := s.cache.Get(ctx, key, &cached); ok {
			return cached, nil
		}
	}
	r, err := s.rates.GetRate(ctx, id)
	if err != nil {
		return domain.Rate{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, r, s.ttl)
	}
	return r, nil
}

// Filter is a pure AND-composition of the supplied predicates; it never
// mutates the catalog and returns a fresh slice.
func (s *QueryService) Filter(ctx context.Context, f domain.RateFilter) ([]domain.Rate, error) {
	all, err := s.rates.ListRates(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Rate, 0, len(all))
	for _, r := range all {
		if matchesFilter(r, f) {
			out = append(out, r)
		}
	}
	return out, nil
}

func matchesFilter(r domain.Rate, f domain.RateFilter) bool {
	if len(f.RoomTypes) > 0 && !containsString(f.RoomTypes, r.RoomType) {
		return false
	}
	if len(f.RateTypes) > 0 && !containsString(f.RateTypes, r.RateType) {
		return false
	}
	if len(f.Channels) > 0 {
		hit := false
		for _, ch := range f.Channels {
			if r.HasChannel(ch) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	if len(f.Statuses) > 0 {
		hit := false
		for _, st := range f.Statuses {
			if r.Status == st {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	// Date predicates match rates whose validity window overlaps the asked range.
	if f.DateFrom != nil && domain.DateOnly(r.EffectiveTo).Before(domain.DateOnly(*f.DateFrom)) {
		return false
	}
	if f.DateTo != nil && domain.DateOnly(r.EffectiveFrom).After(domain.DateOnly(*f.DateTo)) {
		return false
	}
	if f.PriceFrom != nil && r.BasePrice.LessThan(*f.PriceFrom) {
		return false
	}
	if f.PriceTo != nil && r.BasePrice.GreaterThan(*f.PriceTo) {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(r.Code), q) &&
			!strings.Contains(strings.ToLower(r.Name), q) &&
			!strings.Contains(strings.ToLower(r.RoomType), q) &&
			!strings.Contains(strings.ToLower(r.Notes), q) {
			return false
		}
	}
	return true
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// csvColumns is the fixed export layout; changing the order breaks downstream
// spreadsheet imports.
var csvColumns = []string{
	"id", "code", "name", "room_type", "rate_type", "channels",
	"effective_from", "effective_to", "price", "currency",
	"min_stay", "max_stay", "priority", "status", "notes",
}

// ExportCSV serializes the filtered catalog. Every field is double-quoted
// (embedded quotes doubled), which is why this does not go through
// encoding/csv: that writer quotes conditionally.
func (s *QueryService) ExportCSV(ctx context.Context, f domain.RateFilter) ([]byte, error) {
	rates, err := s.Filter(ctx, f)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	writeCSVRow(&buf, csvColumns)
	for _, r := range rates {
		writeCSVRow(&buf, []string{
			r.ID,
			r.Code,
			r.Name,
			r.RoomType,
			r.RateType,
			strings.Join(r.Channels, "; "),
			fmtDate(r.EffectiveFrom),
			fmtDate(r.EffectiveTo),
			r.BasePrice.StringFixed(2),
			r.Currency,
			fmtIntPtr(r.MinStay),
			fmtIntPtr(r.MaxStay),
			strconv.Itoa(r.Priority),
			string(r.Status),
			r.Notes,
		})
	}
	return buf.Bytes(), nil
}

func writeCSVRow(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(f, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteByte('\n')
}
