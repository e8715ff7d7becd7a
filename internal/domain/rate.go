package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ChannelAll is the wildcard sales channel; a rate carrying it matches every
// channel at resolution time.
const ChannelAll = "All"

type RateStatus string

const (
	RateActive   RateStatus = "Active"
	RateInactive RateStatus = "Inactive"
	RateExpired  RateStatus = "Expired"
)

// Rate is a priced offer for a room type over a validity window and channel
// set. RuleIDs are non-owning references into the rule library; their order is
// not significant (fold order comes from rule priority).
type Rate struct {
	ID            string
	Code          string
	Name          string
	RoomType      string
	RateType      string // tag: base, seasonal, promotional, ...
	Channels      []string
	EffectiveFrom time.Time
	EffectiveTo   time.Time
	BasePrice     decimal.Decimal
	Currency      string
	MinStay       *int // nights, optional
	MaxStay       *int
	Priority      int // higher wins at winner selection
	RuleIDs       []string
	Status        RateStatus
	Notes         string
	CreatedBy     string
	UpdatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RatePatch is a partial update; nil fields are left untouched. UpdatedBy is
// the acting identity and is always applied.
type RatePatch struct {
	Code          *string
	Name          *string
	RoomType      *string
	RateType      *string
	Channels      *[]string
	EffectiveFrom *time.Time
	EffectiveTo   *time.Time
	BasePrice     *decimal.Decimal
	Currency      *string
	MinStay       *int
	MaxStay       *int
	Priority      *int
	RuleIDs       *[]string
	Status        *RateStatus
	Notes         *string
	UpdatedBy     string
}

// HasChannel reports whether the rate sells on ch, honoring the wildcard.
func (r Rate) HasChannel(ch string) bool {
	for _, c := range r.Channels {
		if c == ch || c == ChannelAll {
			return true
		}
	}
	return false
}

// InWindow reports whether d falls inside the inclusive validity window.
// Comparison is at day precision.
func (r Rate) InWindow(d time.Time) bool {
	day := DateOnly(d)
	return !day.Before(DateOnly(r.EffectiveFrom)) && !day.After(DateOnly(r.EffectiveTo))
}

// Validate enforces the catalog boundary invariants: well-formed window,
// non-negative price, non-empty scope, known status.
func (r Rate) Validate() error {
	if r.RoomType == "" {
		return &ValidationError{Field: "roomType", Reason: "must not be empty"}
	}
	if len(r.Channels) == 0 {
		return &ValidationError{Field: "channels", Reason: "must list at least one channel"}
	}
	if r.EffectiveFrom.IsZero() || r.EffectiveTo.IsZero() {
		return &ValidationError{Field: "effectiveFrom", Reason: "validity window is required"}
	}
	if DateOnly(r.EffectiveFrom).After(DateOnly(r.EffectiveTo)) {
		return &ValidationError{Field: "effectiveFrom", Reason: "effectiveFrom is after effectiveTo"}
	}
	if r.BasePrice.IsNegative() {
		return &ValidationError{Field: "basePrice", Reason: "must not be negative"}
	}
	if r.MinStay != nil && *r.MinStay < 0 {
		return &ValidationError{Field: "minStay", Reason: "must not be negative"}
	}
	if r.MaxStay != nil && *r.MaxStay < 0 {
		return &ValidationError{Field: "maxStay", Reason: "must not be negative"}
	}
	if r.MinStay != nil && r.MaxStay != nil && *r.MinStay > *r.MaxStay {
		return &ValidationError{Field: "minStay", Reason: "minStay exceeds maxStay"}
	}
	switch r.Status {
	case RateActive, RateInactive, RateExpired:
	default:
		return &ValidationError{Field: "status", Reason: "unknown status " + string(r.Status)}
	}
	return nil
}

// Clone returns a deep copy (slices and pointers are not shared).
func (r Rate) Clone() Rate {
	out := r
	if r.Channels != nil {
		out.Channels = append([]string(nil), r.Channels...)
	}
	if r.RuleIDs != nil {
		out.RuleIDs = append([]string(nil), r.RuleIDs...)
	}
	if r.MinStay != nil {
		v := *r.MinStay
		out.MinStay = &v
	}
	if r.MaxStay != nil {
		v := *r.MaxStay
		out.MaxStay = &v
	}
	return out
}

// DateOnly truncates t to midnight UTC so window checks compare calendar days.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses the wire date format (YYYY-MM-DD, UTC).
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: "expected YYYY-MM-DD, got " + s}
	}
	return t, nil
}
