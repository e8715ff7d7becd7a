package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"hotel_rates/internal/domain"
)

// Repo implements every storage port over MySQL. Nested values (channels,
// rule ids, multiplier tables, conditions, audit diffs) live in JSON columns;
// collections stay independent tables keyed by id.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func jsonVal(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func scanDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("scan decimal %q: %w", s, err)
	}
	return d, nil
}

// ---- rates ----

func (r *Repo) PutRate(ctx context.Context, rt domain.Rate) error {
	channels, err := jsonVal(rt.Channels)
	if err != nil {
		return err
	}
	ruleIDs, err := jsonVal(rt.RuleIDs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, upsertRateSQL,
		rt.ID, rt.Code, rt.Name, rt.RoomType, rt.RateType, channels,
		domain.DateOnly(rt.EffectiveFrom), domain.DateOnly(rt.EffectiveTo),
		rt.BasePrice.String(), rt.Currency,
		valInt(rt.MinStay), valInt(rt.MaxStay),
		rt.Priority, ruleIDs, string(rt.Status), rt.Notes,
		rt.CreatedBy, rt.UpdatedBy, rt.CreatedAt.UTC(), rt.UpdatedAt.UTC(),
	)
	return err
}

func (r *Repo) GetRate(ctx context.Context, id string) (domain.Rate, error) {
	return scanRate(r.db.QueryRowContext(ctx, getRateSQL, id))
}

func (r *Repo) DeleteRate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteRateSQL, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) ListRates(ctx context.Context) ([]domain.Rate, error) {
	rows, err := r.db.QueryContext(ctx, listRatesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Rate
	for rows.Next() {
		rt, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dst ...any) error }

func scanRate(row rowScanner) (domain.Rate, error) {
	var rt domain.Rate
	var channels, ruleIDs []byte
	var price string
	var minStay, maxStay sql.NullInt64
	if err := row.Scan(
		&rt.ID, &rt.Code, &rt.Name, &rt.RoomType, &rt.RateType, &channels,
		&rt.EffectiveFrom, &rt.EffectiveTo,
		&price, &rt.Currency, &minStay, &maxStay,
		&rt.Priority, &ruleIDs, &rt.Status, &rt.Notes,
		&rt.CreatedBy, &rt.UpdatedBy, &rt.CreatedAt, &rt.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.Rate{}, domain.ErrNotFound
		}
		return domain.Rate{}, err
	}
	var err error
	if rt.BasePrice, err = scanDecimal(price); err != nil {
		return domain.Rate{}, err
	}
	_ = json.Unmarshal(channels, &rt.Channels)
	_ = json.Unmarshal(ruleIDs, &rt.RuleIDs)
	if minStay.Valid {
		v := int(minStay.Int64)
		rt.MinStay = &v
	}
	if maxStay.Valid {
		v := int(maxStay.Int64)
		rt.MaxStay = &v
	}
	return rt, nil
}

// ---- rules ----

func (r *Repo) PutRule(ctx context.Context, rl domain.RateRule) error {
	multipliers, err := jsonVal(rl.ChannelMultipliers)
	if err != nil {
		return err
	}
	conditions, err := jsonVal(rl.Conditions)
	if err != nil {
		return err
	}
	weekdays, err := jsonVal(rl.WeekdayDiffs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, upsertRuleSQL,
		rl.ID, rl.Name, rl.Description, string(rl.Operator), rl.Value.String(),
		multipliers, conditions, rl.Priority, weekdays,
		rl.CreatedBy, rl.UpdatedBy, rl.CreatedAt.UTC(), rl.UpdatedAt.UTC(),
	)
	return err
}

func (r *Repo) GetRule(ctx context.Context, id string) (domain.RateRule, error) {
	return scanRule(r.db.QueryRowContext(ctx, getRuleSQL, id))
}

func (r *Repo) DeleteRule(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deleteRuleSQL, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repo) ListRules(ctx context.Context) ([]domain.RateRule, error) {
	rows, err := r.db.QueryContext(ctx, listRulesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RateRule
	for rows.Next() {
		rl, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rl)
	}
	return out, rows.Err()
}

func scanRule(row rowScanner) (domain.RateRule, error) {
	var rl domain.RateRule
	var value string
	var multipliers, conditions, weekdays []byte
	if err := row.Scan(
		&rl.ID, &rl.Name, &rl.Description, &rl.Operator, &value,
		&multipliers, &conditions, &rl.Priority, &weekdays,
		&rl.CreatedBy, &rl.UpdatedBy, &rl.CreatedAt, &rl.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.RateRule{}, domain.ErrNotFound
		}
		return domain.RateRule{}, err
	}
	var err error
	if rl.Value, err = scanDecimal(value); err != nil {
		return domain.RateRule{}, err
	}
	_ = json.Unmarshal(multipliers, &rl.ChannelMultipliers)
	_ = json.Unmarshal(conditions, &rl.Conditions)
	_ = json.Unmarshal(weekdays, &rl.WeekdayDiffs)
	return rl, nil
}

// ---- adjustments ----

func (r *Repo) PutAdjustment(ctx context.Context, a domain.PriceAdjustment) error {
	_, err := r.db.ExecContext(ctx, upsertAdjustmentSQL,
		a.ID, a.RateID, a.ProposedPrice.String(), a.Justification,
		string(a.Status), a.ProposedBy, a.ApprovedBy, a.AppliedBy,
		a.CreatedAt.UTC(), valTime(a.ResolvedAt), valTime(a.AppliedAt),
	)
	return err
}

func (r *Repo) GetAdjustment(ctx context.Context, id string) (domain.PriceAdjustment, error) {
	return scanAdjustment(r.db.QueryRowContext(ctx, getAdjustmentSQL, id))
}

func (r *Repo) ListAdjustments(ctx context.Context) ([]domain.PriceAdjustment, error) {
	rows, err := r.db.QueryContext(ctx, listAdjustmentsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.PriceAdjustment
	for rows.Next() {
		a, err := scanAdjustment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAdjustment(row rowScanner) (domain.PriceAdjustment, error) {
	var a domain.PriceAdjustment
	var price string
	var resolved, applied sql.NullTime
	if err := row.Scan(
		&a.ID, &a.RateID, &price, &a.Justification, &a.Status,
		&a.ProposedBy, &a.ApprovedBy, &a.AppliedBy,
		&a.CreatedAt, &resolved, &applied,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.PriceAdjustment{}, domain.ErrNotFound
		}
		return domain.PriceAdjustment{}, err
	}
	var err error
	if a.ProposedPrice, err = scanDecimal(price); err != nil {
		return domain.PriceAdjustment{}, err
	}
	if resolved.Valid {
		t := resolved.Time
		a.ResolvedAt = &t
	}
	if applied.Valid {
		t := applied.Time
		a.AppliedAt = &t
	}
	return a, nil
}

// ---- audit ----

func (r *Repo) AppendAudit(ctx context.Context, e domain.AuditEntry) error {
	diff, err := jsonVal(e.Diff)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, insertAuditSQL,
		e.ID, e.RateID, string(e.Action), e.PerformedBy, e.At.UTC(), diff,
	)
	return err
}

func (r *Repo) ListAudit(ctx context.Context, rateID string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 1_000_000
	}
	rows, err := r.db.QueryContext(ctx, listAuditSQL, rateID, rateID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var diff []byte
		if err := rows.Scan(&e.ID, &e.RateID, &e.Action, &e.PerformedBy, &e.At, &diff); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(diff, &e.Diff)
		out = append(out, e)
	}
	return out, rows.Err()
}
