package mysql

const upsertRateSQL = `
INSERT INTO rates
  (id, code, name, room_type, rate_type, channels, effective_from, effective_to,
   base_price, currency, min_stay, max_stay, priority, rule_ids, status, notes,
   created_by, updated_by, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  code           = VALUES(code),
  name           = VALUES(name),
  room_type      = VALUES(room_type),
  rate_type      = VALUES(rate_type),
  channels       = VALUES(channels),
  effective_from = VALUES(effective_from),
  effective_to   = VALUES(effective_to),
  base_price     = VALUES(base_price),
  currency       = VALUES(currency),
  min_stay       = VALUES(min_stay),
  max_stay       = VALUES(max_stay),
  priority       = VALUES(priority),
  rule_ids       = VALUES(rule_ids),
  status         = VALUES(status),
  notes          = VALUES(notes),
  updated_by     = VALUES(updated_by),
  updated_at     = VALUES(updated_at)
`

const selectRateCols = `
  id, code, name, room_type, rate_type, channels, effective_from, effective_to,
  base_price, currency, min_stay, max_stay, priority, rule_ids, status, notes,
  created_by, updated_by, created_at, updated_at
`

const getRateSQL = `SELECT` + selectRateCols + `FROM rates WHERE id = ?`

// seq carries catalog insertion order; the resolver's tie-break depends on it.
const listRatesSQL = `SELECT` + selectRateCols + `FROM rates ORDER BY seq`

const deleteRateSQL = `DELETE FROM rates WHERE id = ?`

const upsertRuleSQL = `
INSERT INTO rate_rules
  (id, name, description, operator, value, channel_multipliers, conditions,
   priority, weekday_diffs, created_by, updated_by, created_at, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  name                = VALUES(name),
  description         = VALUES(description),
  operator            = VALUES(operator),
  value               = VALUES(value),
  channel_multipliers = VALUES(channel_multipliers),
  conditions          = VALUES(conditions),
  priority            = VALUES(priority),
  weekday_diffs       = VALUES(weekday_diffs),
  updated_by          = VALUES(updated_by),
  updated_at          = VALUES(updated_at)
`

const selectRuleCols = `
  id, name, description, operator, value, channel_multipliers, conditions,
  priority, weekday_diffs, created_by, updated_by, created_at, updated_at
`

const getRuleSQL = `SELECT` + selectRuleCols + `FROM rate_rules WHERE id = ?`

const listRulesSQL = `SELECT` + selectRuleCols + `FROM rate_rules ORDER BY seq`

const deleteRuleSQL = `DELETE FROM rate_rules WHERE id = ?`

const upsertAdjustmentSQL = `
INSERT INTO price_adjustments
  (id, rate_id, proposed_price, justification, status, proposed_by,
   approved_by, applied_by, created_at, resolved_at, applied_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  status      = VALUES(status),
  approved_by = VALUES(approved_by),
  applied_by  = VALUES(applied_by),
  resolved_at = VALUES(resolved_at),
  applied_at  = VALUES(applied_at)
`

const selectAdjustmentCols = `
  id, rate_id, proposed_price, justification, status, proposed_by,
  approved_by, applied_by, created_at, resolved_at, applied_at
`

const getAdjustmentSQL = `SELECT` + selectAdjustmentCols + `FROM price_adjustments WHERE id = ?`

const listAdjustmentsSQL = `SELECT` + selectAdjustmentCols + `FROM price_adjustments ORDER BY seq`

// Append-only: there is deliberately no UPDATE or DELETE statement for the
// audit log.
const insertAuditSQL = `
INSERT INTO rate_audit_log (id, rate_id, action, performed_by, at, diff)
VALUES (?, ?, ?, ?, ?, ?)
`

const listAuditSQL = `
SELECT id, rate_id, action, performed_by, at, diff
FROM rate_audit_log
WHERE (? = '' OR rate_id = ?)
ORDER BY seq DESC
LIMIT ?
`
