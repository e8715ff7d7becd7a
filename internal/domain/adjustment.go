package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ApprovalStatus string

const (
	AdjustmentPending  ApprovalStatus = "Pending"
	AdjustmentApproved ApprovalStatus = "Approved"
	AdjustmentRejected ApprovalStatus = "Rejected"
)

// PriceAdjustment is a proposed price change awaiting human approval.
// Approval authorizes the change; the separate apply step writes it to the
// catalog (see WorkflowService.Apply).
type PriceAdjustment struct {
	ID            string
	RateID        string
	ProposedPrice decimal.Decimal
	Justification string
	Status        ApprovalStatus
	ProposedBy    string
	ApprovedBy    string
	AppliedBy     string
	CreatedAt     time.Time
	ResolvedAt    *time.Time
	AppliedAt     *time.Time
}

func (a PriceAdjustment) Validate() error {
	if a.RateID == "" {
		return &ValidationError{Field: "rateId", Reason: "must reference a rate"}
	}
	if a.ProposedPrice.IsNegative() {
		return &ValidationError{Field: "proposedPrice", Reason: "must not be negative"}
	}
	return nil
}

// Terminal reports whether the adjustment has left the Pending state.
func (a PriceAdjustment) Terminal() bool {
	return a.Status == AdjustmentApproved || a.Status == AdjustmentRejected
}
