package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hotel_rates/internal/domain"
)

// WorkflowService runs the price-adjustment lifecycle:
// Pending -> Approved | Rejected (terminal). Approval authorizes a change but
// does not write it; Apply is the separate step that pushes the approved
// price into the catalog. All four transitions are audited uniformly, each
// carrying the adjustment's rate id.
type WorkflowService struct {
	mu          sync.Mutex
	adjustments domain.AdjustmentRepository
	rates       domain.RateRepository
	audit       domain.AuditLog
	cache       domain.Cache
	ver         *Version
}

func NewWorkflowService(adjustments domain.AdjustmentRepository, rates domain.RateRepository, audit domain.AuditLog, cache domain.Cache, ver *Version) *WorkflowService {
	return &WorkflowService{adjustments: adjustments, rates: rates, audit: audit, cache: cache, ver: ver}
}

func (s *WorkflowService) Propose(ctx context.Context, a domain.PriceAdjustment) (domain.PriceAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := a.Validate(); err != nil {
		return domain.PriceAdjustment{}, err
	}
	if _, err := s.rates.GetRate(ctx, a.RateID); err != nil {
		return domain.PriceAdjustment{}, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Status = domain.AdjustmentPending
	a.CreatedAt = time.Now().UTC()
	a.ApprovedBy, a.AppliedBy = "", ""
	a.ResolvedAt, a.AppliedAt = nil, nil
	if err := s.adjustments.PutAdjustment(ctx, a); err != nil {
		return domain.PriceAdjustment{}, err
	}
	if err := s.logAudit(ctx, a.RateID, domain.AuditPropose, a.ProposedBy, nil); err != nil {
		return domain.PriceAdjustment{}, err
	}
	return a, nil
}

func (s *WorkflowService) Approve(ctx context.Context, id, approver string) (domain.PriceAdjustment, error) {
	return s.resolve(ctx, id, approver, domain.AdjustmentApproved, domain.AuditApprove)
}

func (s *WorkflowService) Reject(ctx context.Context, id, approver string) (domain.PriceAdjustment, error) {
	return s.resolve(ctx, id, approver, domain.AdjustmentRejected, domain.AuditReject)
}

func (s *WorkflowService) resolve(ctx context.Context, id, approver string, to domain.ApprovalStatus, action domain.AuditAction) (domain.PriceAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.adjustments.GetAdjustment(ctx, id)
	if err != nil {
		return domain.PriceAdjustment{}, err
	}
	if a.Status != domain.AdjustmentPending {
		return domain.PriceAdjustment{}, &domain.ApprovalStateError{AdjustmentID: a.ID, Status: a.Status}
	}
	now := time.Now().UTC()
	a.Status = to
	a.ApprovedBy = approver
	a.ResolvedAt = &now
	if err := s.adjustments.PutAdjustment(ctx, a); err != nil {
		return domain.PriceAdjustment{}, err
	}
	if err := s.logAudit(ctx, a.RateID, action, approver, nil); err != nil {
		return domain.PriceAdjustment{}, err
	}
	return a, nil
}

// Apply writes an approved adjustment's proposed price onto its rate. It
// requires status Approved and a not-yet-applied adjustment.
func (s *WorkflowService) Apply(ctx context.Context, id, actor string) (domain.PriceAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.adjustments.GetAdjustment(ctx, id)
	if err != nil {
		return domain.PriceAdjustment{}, err
	}
	if a.Status != domain.AdjustmentApproved || a.AppliedAt != nil {
		return domain.PriceAdjustment{}, &domain.ApprovalStateError{AdjustmentID: a.ID, Status: a.Status}
	}
	r, err := s.rates.GetRate(ctx, a.RateID)
	if err != nil {
		return domain.PriceAdjustment{}, err
	}
	diff := map[string]domain.FieldChange{
		"basePrice": {From: r.BasePrice.String(), To: a.ProposedPrice.String()},
	}
	now := time.Now().UTC()
	r.BasePrice = a.ProposedPrice
	r.UpdatedBy = actor
	r.UpdatedAt = now
	if err := s.rates.PutRate(ctx, r); err != nil {
		return domain.PriceAdjustment{}, err
	}
	a.AppliedBy = actor
	a.AppliedAt = &now
	if err := s.adjustments.PutAdjustment(ctx, a); err != nil {
		return domain.PriceAdjustment{}, err
	}
	s.ver.Bump()
	if s.cache != nil {
		_ = s.cache.Del(ctx, rateCacheKey(r.ID))
	}
	if err := s.logAudit(ctx, a.RateID, domain.AuditApply, actor, diff); err != nil {
		return domain.PriceAdjustment{}, err
	}
	return a, nil
}

func (s *WorkflowService) Get(ctx context.Context, id string) (domain.PriceAdjustment, error) {
	return s.adjustments.GetAdjustment(ctx, id)
}

func (s *WorkflowService) List(ctx context.Context) ([]domain.PriceAdjustment, error) {
	return s.adjustments.ListAdjustments(ctx)
}

func (s *WorkflowService) logAudit(ctx context.Context, rateID string, action domain.AuditAction, actor string, diff map[string]domain.FieldChange) error {
	if actor == "" {
		actor = "anonymous"
	}
	e := domain.AuditEntry{
		ID:          uuid.NewString(),
		RateID:      rateID,
		Action:      action,
		PerformedBy: actor,
		At:          time.Now().UTC(),
		Diff:        diff,
	}
	if err := s.audit.AppendAudit(ctx, e); err != nil {
		log.Error().Err(err).Str("rate_id", rateID).Str("action", string(action)).
			Msg("audit append failed")
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}
