// Package memory is the in-process store. It preserves insertion order for
// rates, which the resolver relies on as the stable tie-break between equal
// priorities.
package memory

import (
	"context"
	"sync"

	"hotel_rates/internal/domain"
)

type Store struct {
	mu          sync.RWMutex
	rates       map[string]domain.Rate
	rateOrder   []string
	rules       map[string]domain.RateRule
	ruleOrder   []string
	adjustments map[string]domain.PriceAdjustment
	adjOrder    []string
	audit       []domain.AuditEntry
}

func New() *Store {
	return &Store{
		rates:       map[string]domain.Rate{},
		rules:       map[string]domain.RateRule{},
		adjustments: map[string]domain.PriceAdjustment{},
	}
}

// ---- rates ----

func (s *Store) PutRate(_ context.Context, r domain.Rate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rates[r.ID]; !ok {
		s.rateOrder = append(s.rateOrder, r.ID)
	}
	s.rates[r.ID] = r.Clone()
	return nil
}

func (s *Store) GetRate(_ context.Context, id string) (domain.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rates[id]
	if !ok {
		return domain.Rate{}, domain.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *Store) DeleteRate(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rates[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.rates, id)
	s.rateOrder = remove(s.rateOrder, id)
	return nil
}

func (s *Store) ListRates(_ context.Context) ([]domain.Rate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Rate, 0, len(s.rateOrder))
	for _, id := range s.rateOrder {
		out = append(out, s.rates[id].Clone())
	}
	return out, nil
}

// ---- rules ----

func (s *Store) PutRule(_ context.Context, r domain.RateRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[r.ID]; !ok {
		s.ruleOrder = append(s.ruleOrder, r.ID)
	}
	s.rules[r.ID] = r.Clone()
	return nil
}

func (s *Store) GetRule(_ context.Context, id string) (domain.RateRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[id]
	if !ok {
		return domain.RateRule{}, domain.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *Store) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.rules, id)
	s.ruleOrder = remove(s.ruleOrder, id)
	return nil
}

func (s *Store) ListRules(_ context.Context) ([]domain.RateRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RateRule, 0, len(s.ruleOrder))
	for _, id := range s.ruleOrder {
		out = append(out, s.rules[id].Clone())
	}
	return out, nil
}

// ---- adjustments ----

func (s *Store) PutAdjustment(_ context.Context, a domain.PriceAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.adjustments[a.ID]; !ok {
		s.adjOrder = append(s.adjOrder, a.ID)
	}
	s.adjustments[a.ID] = a
	return nil
}

func (s *Store) GetAdjustment(_ context.Context, id string) (domain.PriceAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.adjustments[id]
	if !ok {
		return domain.PriceAdjustment{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListAdjustments(_ context.Context) ([]domain.PriceAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PriceAdjustment, 0, len(s.adjOrder))
	for _, id := range s.adjOrder {
		out = append(out, s.adjustments[id])
	}
	return out, nil
}

// ---- audit ----

func (s *Store) AppendAudit(_ context.Context, e domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, e)
	return nil
}

// ListAudit walks the append-only log backwards: newest-first.
func (s *Store) ListAudit(_ context.Context, rateID string, limit int) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditEntry, 0, len(s.audit))
	for i := len(s.audit) - 1; i >= 0; i-- {
		e := s.audit[i]
		if rateID != "" && e.RateID != rateID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
