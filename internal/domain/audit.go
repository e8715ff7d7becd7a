package domain

import "time"

type AuditAction string

const (
	AuditCreate  AuditAction = "create"
	AuditUpdate  AuditAction = "update"
	AuditDelete  AuditAction = "delete"
	AuditPropose AuditAction = "propose"
	AuditApprove AuditAction = "approve"
	AuditReject  AuditAction = "reject"
	AuditApply   AuditAction = "apply"
)

// FieldChange records one field's before/after values in an update diff.
type FieldChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// AuditEntry is one append-only record of a mutating action. RateID is empty
// for actions not tied to a specific rate (rule library mutations). Entries
// are never modified or removed once written.
type AuditEntry struct {
	ID          string
	RateID      string
	Action      AuditAction
	PerformedBy string
	At          time.Time
	Diff        map[string]FieldChange
}
