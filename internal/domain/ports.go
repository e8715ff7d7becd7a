package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type RateRepository interface {
	// PutRate inserts or replaces; ListRates preserves insertion order, which
	// is the stable tie-break for winner selection.
	PutRate(ctx context.Context, r Rate) error
	GetRate(ctx context.Context, id string) (Rate, error)
	DeleteRate(ctx context.Context, id string) error
	ListRates(ctx context.Context) ([]Rate, error)
}

type RuleRepository interface {
	PutRule(ctx context.Context, r RateRule) error
	GetRule(ctx context.Context, id string) (RateRule, error)
	DeleteRule(ctx context.Context, id string) error
	ListRules(ctx context.Context) ([]RateRule, error)
}

type AdjustmentRepository interface {
	PutAdjustment(ctx context.Context, a PriceAdjustment) error
	GetAdjustment(ctx context.Context, id string) (PriceAdjustment, error)
	ListAdjustments(ctx context.Context) ([]PriceAdjustment, error)
}

// AuditLog is append-only; no port method mutates or removes entries.
type AuditLog interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	// ListAudit returns entries newest-first. Empty rateID lists everything;
	// limit <= 0 means no limit.
	ListAudit(ctx context.Context, rateID string, limit int) ([]AuditEntry, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Defaults for the optional resolve parameters.
const (
	DefaultOccupancyPct = 70
	DefaultLengthOfStay = 1
	DefaultLeadTimeDays = 14
)

// ResolveQuery identifies one price lookup. Nil optional parameters mean
// "not supplied"; WithDefaults fills them in. An explicit 0 is a real value
// (lead time 0 is a same-day booking) and is never rewritten.
type ResolveQuery struct {
	RoomType     string
	Date         time.Time
	Channel      string
	OccupancyPct *int
	LengthOfStay *int
	LeadTimeDays *int
}

// NewResolveQuery fills the optional parameters with their defaults.
func NewResolveQuery(roomType string, date time.Time, channel string) ResolveQuery {
	occ, los, lead := DefaultOccupancyPct, DefaultLengthOfStay, DefaultLeadTimeDays
	return ResolveQuery{
		RoomType:     roomType,
		Date:         date,
		Channel:      channel,
		OccupancyPct: &occ,
		LengthOfStay: &los,
		LeadTimeDays: &lead,
	}
}

// WithDefaults fills absent optional parameters with the defaults; supplied
// values, zero included, are kept.
func (q ResolveQuery) WithDefaults() ResolveQuery {
	if q.OccupancyPct == nil {
		v := DefaultOccupancyPct
		q.OccupancyPct = &v
	}
	if q.LengthOfStay == nil {
		v := DefaultLengthOfStay
		q.LengthOfStay = &v
	}
	if q.LeadTimeDays == nil {
		v := DefaultLeadTimeDays
		q.LeadTimeDays = &v
	}
	return q
}

func valueOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func (q ResolveQuery) Validate() error {
	if q.RoomType == "" {
		return &ValidationError{Field: "roomType", Reason: "must not be empty"}
	}
	if q.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "must be supplied"}
	}
	if q.Channel == "" {
		return &ValidationError{Field: "channel", Reason: "must not be empty"}
	}
	return nil
}

// Quote is the outcome of a successful resolution.
type Quote struct {
	RateID       string          `json:"rateId"`
	RateCode     string          `json:"rateCode"`
	Currency     string          `json:"currency"`
	Price        decimal.Decimal `json:"price"`
	AppliedRules []string        `json:"appliedRules"`
}

// RateFilter is the read-only AND-composition over the catalog. Empty slices
// and nil bounds are wildcards.
type RateFilter struct {
	RoomTypes []string
	RateTypes []string
	Channels  []string
	Statuses  []RateStatus
	DateFrom  *time.Time
	DateTo    *time.Time
	PriceFrom *decimal.Decimal
	PriceTo   *decimal.Decimal
	Query     string
}
