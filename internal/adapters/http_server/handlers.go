package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"hotel_rates/internal/adapters/observability"
	"hotel_rates/internal/app"
	"hotel_rates/internal/domain"
)

type Handlers struct {
	Catalog  *app.CatalogService
	Rules    *app.RuleService
	Workflow *app.WorkflowService
	Query    *app.QueryService
	Resolver *app.Resolver
	Audit    domain.AuditLog

	// idempotency replay store for mutating routes; nil disables replay
	Cache       domain.Cache
	IdemTTL     time.Duration
	MutationRPS int
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Get("/v1/price", h.resolvePrice)
	s.mux.Get("/v1/rates", h.listRates)
	s.mux.Get("/v1/rates/export", h.exportRates)
	s.mux.Get("/v1/rates/{id}", h.getRate)
	s.mux.Get("/v1/rules", h.listRules)
	s.mux.Get("/v1/rules/{id}", h.getRule)
	s.mux.Get("/v1/adjustments", h.listAdjustments)
	s.mux.Get("/v1/adjustments/{id}", h.getAdjustment)
	s.mux.Get("/v1/audit", h.listAudit)

	s.mux.Group(func(m chi.Router) {
		m.Use(MutationLimit(h.MutationRPS))
		m.Use(Idempotency(h.Cache, h.idemTTL()))

		m.Post("/v1/rates", h.createRate)
		m.Patch("/v1/rates/{id}", h.updateRate)
		m.Delete("/v1/rates/{id}", h.deleteRate)
		m.Post("/v1/rates/{id}/clone", h.cloneRate)

		m.Post("/v1/rules", h.createRule)
		m.Patch("/v1/rules/{id}", h.updateRule)
		m.Delete("/v1/rules/{id}", h.deleteRule)

		m.Post("/v1/adjustments", h.proposeAdjustment)
		m.Post("/v1/adjustments/{id}/approve", h.approveAdjustment)
		m.Post("/v1/adjustments/{id}/reject", h.rejectAdjustment)
		m.Post("/v1/adjustments/{id}/apply", h.applyAdjustment)
	})
}

func (h *Handlers) idemTTL() time.Duration {
	if h.IdemTTL > 0 {
		return h.IdemTTL
	}
	return 24 * time.Hour
}

// actor is the caller identity used verbatim in audit entries; authorization
// is the gateway's concern, not the engine's.
func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor"); a != "" {
		return a
	}
	return "anonymous"
}

/********** problem+json & error mapping **********/

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	var ae *domain.ApprovalStateError
	switch {
	case errors.Is(err, domain.ErrNoApplicableRate):
		writeProblem(w, http.StatusNotFound, "No Applicable Rate", "no active rate covers the query")
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.As(err, &ve):
		writeProblem(w, http.StatusUnprocessableEntity, "Validation Failed", ve.Error())
	case errors.As(err, &ae):
		writeProblem(w, http.StatusConflict, "Approval Conflict", ae.Error())
	default:
		writeProblem(w, http.StatusInternalServerError, "Internal Error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

func writeCachedJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write response body")
	}
}

/********** DTOs **********/

type conditionDTO struct {
	Type      string  `json:"type"`
	Operator  string  `json:"operator"`
	Threshold float64 `json:"threshold"`
}

type rateBody struct {
	Code          *string          `json:"code"`
	Name          *string          `json:"name"`
	RoomType      *string          `json:"roomType"`
	RateType      *string          `json:"rateType"`
	Channels      *[]string        `json:"channels"`
	EffectiveFrom *string          `json:"effectiveFrom"` // YYYY-MM-DD
	EffectiveTo   *string          `json:"effectiveTo"`
	BasePrice     *decimal.Decimal `json:"basePrice"`
	Currency      *string          `json:"currency"`
	MinStay       *int             `json:"minStay"`
	MaxStay       *int             `json:"maxStay"`
	Priority      *int             `json:"priority"`
	RuleIDs       *[]string        `json:"ruleIds"`
	Status        *string          `json:"status"`
	Notes         *string          `json:"notes"`
}

type rateResponse struct {
	ID            string          `json:"id"`
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	RoomType      string          `json:"roomType"`
	RateType      string          `json:"rateType"`
	Channels      []string        `json:"channels"`
	EffectiveFrom string          `json:"effectiveFrom"`
	EffectiveTo   string          `json:"effectiveTo"`
	BasePrice     decimal.Decimal `json:"basePrice"`
	Currency      string          `json:"currency"`
	MinStay       *int            `json:"minStay,omitempty"`
	MaxStay       *int            `json:"maxStay,omitempty"`
	Priority      int             `json:"priority"`
	RuleIDs       []string        `json:"ruleIds"`
	Status        string          `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     string          `json:"createdBy"`
	UpdatedBy     string          `json:"updatedBy"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func toRateResponse(r domain.Rate) rateResponse {
	return rateResponse{
		ID:            r.ID,
		Code:          r.Code,
		Name:          r.Name,
		RoomType:      r.RoomType,
		RateType:      r.RateType,
		Channels:      r.Channels,
		EffectiveFrom: r.EffectiveFrom.UTC().Format("2006-01-02"),
		EffectiveTo:   r.EffectiveTo.UTC().Format("2006-01-02"),
		BasePrice:     r.BasePrice,
		Currency:      r.Currency,
		MinStay:       r.MinStay,
		MaxStay:       r.MaxStay,
		Priority:      r.Priority,
		RuleIDs:       r.RuleIDs,
		Status:        string(r.Status),
		Notes:         r.Notes,
		CreatedBy:     r.CreatedBy,
		UpdatedBy:     r.UpdatedBy,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func parseDate(s string) (time.Time, error) { return domain.ParseDate(s) }

// toRatePatch converts the wire body into a domain patch; date strings become
// times and the acting identity is attached.
func toRatePatch(b rateBody, who string) (domain.RatePatch, error) {
	p := domain.RatePatch{
		Code:      b.Code,
		Name:      b.Name,
		RoomType:  b.RoomType,
		RateType:  b.RateType,
		Channels:  b.Channels,
		BasePrice: b.BasePrice,
		Currency:  b.Currency,
		MinStay:   b.MinStay,
		MaxStay:   b.MaxStay,
		Priority:  b.Priority,
		RuleIDs:   b.RuleIDs,
		Notes:     b.Notes,
		UpdatedBy: who,
	}
	if b.EffectiveFrom != nil {
		t, err := parseDate(*b.EffectiveFrom)
		if err != nil {
			return domain.RatePatch{}, err
		}
		p.EffectiveFrom = &t
	}
	if b.EffectiveTo != nil {
		t, err := parseDate(*b.EffectiveTo)
		if err != nil {
			return domain.RatePatch{}, err
		}
		p.EffectiveTo = &t
	}
	if b.Status != nil {
		st := domain.RateStatus(*b.Status)
		p.Status = &st
	}
	return p, nil
}

type ruleBody struct {
	Name               *string                     `json:"name"`
	Description        *string                     `json:"description"`
	Operator           *string                     `json:"operator"`
	Value              *decimal.Decimal            `json:"value"`
	ChannelMultipliers *map[string]decimal.Decimal `json:"channelMultipliers"`
	Conditions         *[]conditionDTO             `json:"conditions"`
	Priority           *int                        `json:"priority"`
	WeekdayDiffs       *map[string]decimal.Decimal `json:"weekdayDiffs"`
}

type ruleResponse struct {
	ID                 string                     `json:"id"`
	Name               string                     `json:"name"`
	Description        string                     `json:"description,omitempty"`
	Operator           string                     `json:"operator"`
	Value              decimal.Decimal            `json:"value"`
	ChannelMultipliers map[string]decimal.Decimal `json:"channelMultipliers,omitempty"`
	Conditions         []conditionDTO             `json:"conditions"`
	Priority           int                        `json:"priority"`
	WeekdayDiffs       map[string]decimal.Decimal `json:"weekdayDiffs,omitempty"`
	CreatedBy          string                     `json:"createdBy"`
	UpdatedBy          string                     `json:"updatedBy"`
	CreatedAt          time.Time                  `json:"createdAt"`
	UpdatedAt          time.Time                  `json:"updatedAt"`
}

func toConditions(in []conditionDTO) []domain.RuleCondition {
	out := make([]domain.RuleCondition, 0, len(in))
	for _, c := range in {
		out = append(out, domain.RuleCondition{
			Type:      domain.ConditionType(c.Type),
			Operator:  domain.ConditionOperator(c.Operator),
			Threshold: c.Threshold,
		})
	}
	return out
}

func toRuleResponse(r domain.RateRule) ruleResponse {
	conds := make([]conditionDTO, 0, len(r.Conditions))
	for _, c := range r.Conditions {
		conds = append(conds, conditionDTO{Type: string(c.Type), Operator: string(c.Operator), Threshold: c.Threshold})
	}
	return ruleResponse{
		ID:                 r.ID,
		Name:               r.Name,
		Description:        r.Description,
		Operator:           string(r.Operator),
		Value:              r.Value,
		ChannelMultipliers: r.ChannelMultipliers,
		Conditions:         conds,
		Priority:           r.Priority,
		WeekdayDiffs:       r.WeekdayDiffs,
		CreatedBy:          r.CreatedBy,
		UpdatedBy:          r.UpdatedBy,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

type adjustmentBody struct {
	RateID        string          `json:"rateId"`
	ProposedPrice decimal.Decimal `json:"proposedPrice"`
	Justification string          `json:"justification"`
}

type adjustmentResponse struct {
	ID            string          `json:"id"`
	RateID        string          `json:"rateId"`
	ProposedPrice decimal.Decimal `json:"proposedPrice"`
	Justification string          `json:"justification,omitempty"`
	Status        string          `json:"status"`
	ProposedBy    string          `json:"proposedBy"`
	ApprovedBy    string          `json:"approvedBy,omitempty"`
	AppliedBy     string          `json:"appliedBy,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	ResolvedAt    *time.Time      `json:"resolvedAt,omitempty"`
	AppliedAt     *time.Time      `json:"appliedAt,omitempty"`
}

func toAdjustmentResponse(a domain.PriceAdjustment) adjustmentResponse {
	return adjustmentResponse{
		ID:            a.ID,
		RateID:        a.RateID,
		ProposedPrice: a.ProposedPrice,
		Justification: a.Justification,
		Status:        string(a.Status),
		ProposedBy:    a.ProposedBy,
		ApprovedBy:    a.ApprovedBy,
		AppliedBy:     a.AppliedBy,
		CreatedAt:     a.CreatedAt,
		ResolvedAt:    a.ResolvedAt,
		AppliedAt:     a.AppliedAt,
	}
}

type auditResponse struct {
	ID          string                        `json:"id"`
	RateID      string                        `json:"rateId,omitempty"`
	Action      string                        `json:"action"`
	PerformedBy string                        `json:"performedBy"`
	At          time.Time                     `json:"at"`
	Diff        map[string]domain.FieldChange `json:"diff,omitempty"`
}

/********** price resolution **********/

func (h *Handlers) resolvePrice(w http.ResponseWriter, r *http.Request) {
	qs := r.URL.Query()
	q := domain.ResolveQuery{
		RoomType: qs.Get("roomType"),
		Channel:  qs.Get("channel"),
	}
	if ds := qs.Get("date"); ds != "" {
		d, err := parseDate(ds)
		if err != nil {
			observability.ObserveResolution("invalid")
			writeError(w, err)
			return
		}
		q.Date = d
	}
	var err error
	if q.OccupancyPct, err = intParam(qs.Get("occupancy")); err != nil {
		observability.ObserveResolution("invalid")
		writeError(w, &domain.ValidationError{Field: "occupancy", Reason: "must be an integer"})
		return
	}
	if q.LengthOfStay, err = intParam(qs.Get("lengthOfStay")); err != nil {
		observability.ObserveResolution("invalid")
		writeError(w, &domain.ValidationError{Field: "lengthOfStay", Reason: "must be an integer"})
		return
	}
	if q.LeadTimeDays, err = intParam(qs.Get("leadTime")); err != nil {
		observability.ObserveResolution("invalid")
		writeError(w, &domain.ValidationError{Field: "leadTime", Reason: "must be an integer"})
		return
	}

	quote, err := h.Resolver.ResolvePrice(r.Context(), q)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoApplicableRate):
			observability.ObserveResolution("no_rate")
		case isValidation(err):
			observability.ObserveResolution("invalid")
		default:
			observability.ObserveResolution("error")
		}
		writeError(w, err)
		return
	}
	observability.ObserveResolution("priced")
	writeCachedJSON(w, r, quote)
}

func isValidation(err error) bool {
	var ve *domain.ValidationError
	return errors.As(err, &ve)
}

func intParam(s string) (*int, error) {
	if s == "" {
		return nil, nil // absent means "use the default"; an explicit 0 is kept
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

/********** rates **********/

func (h *Handlers) listRates(w http.ResponseWriter, r *http.Request) {
	f, err := parseRateFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	rates, err := h.Query.Filter(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]rateResponse, 0, len(rates))
	for _, rt := range rates {
		out = append(out, toRateResponse(rt))
	}
	writeCachedJSON(w, r, out)
}

func parseRateFilter(r *http.Request) (domain.RateFilter, error) {
	qs := r.URL.Query()
	f := domain.RateFilter{
		RoomTypes: splitParam(qs.Get("roomType")),
		RateTypes: splitParam(qs.Get("rateType")),
		Channels:  splitParam(qs.Get("channel")),
		Query:     qs.Get("q"),
	}
	for _, st := range splitParam(qs.Get("status")) {
		f.Statuses = append(f.Statuses, domain.RateStatus(st))
	}
	if v := qs.Get("dateFrom"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return domain.RateFilter{}, err
		}
		f.DateFrom = &t
	}
	if v := qs.Get("dateTo"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return domain.RateFilter{}, err
		}
		f.DateTo = &t
	}
	if v := qs.Get("priceFrom"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return domain.RateFilter{}, &domain.ValidationError{Field: "priceFrom", Reason: "must be a decimal"}
		}
		f.PriceFrom = &d
	}
	if v := qs.Get("priceTo"); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return domain.RateFilter{}, &domain.ValidationError{Field: "priceTo", Reason: "must be a decimal"}
		}
		f.PriceTo = &d
	}
	return f, nil
}

func splitParam(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (h *Handlers) exportRates(w http.ResponseWriter, r *http.Request) {
	f, err := parseRateFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}
	csv, err := h.Query.ExportCSV(r.Context(), f)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="rates.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(csv); err != nil {
		log.Error().Err(err).Msg("failed to write CSV body")
	}
}

func (h *Handlers) getRate(w http.ResponseWriter, r *http.Request) {
	rt, err := h.Query.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCachedJSON(w, r, toRateResponse(rt))
}

func (h *Handlers) createRate(w http.ResponseWriter, r *http.Request) {
	var b rateBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	who := actor(r)
	p, err := toRatePatch(b, who)
	if err != nil {
		writeError(w, err)
		return
	}
	var rt domain.Rate
	rt.CreatedBy = who
	applyPatchToNewRate(&rt, p)
	created, err := h.Catalog.Create(r.Context(), rt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRateResponse(created))
}

// applyPatchToNewRate seeds a fresh Rate from a full-body patch.
func applyPatchToNewRate(rt *domain.Rate, p domain.RatePatch) {
	if p.Code != nil {
		rt.Code = *p.Code
	}
	if p.Name != nil {
		rt.Name = *p.Name
	}
	if p.RoomType != nil {
		rt.RoomType = *p.RoomType
	}
	if p.RateType != nil {
		rt.RateType = *p.RateType
	}
	if p.Channels != nil {
		rt.Channels = *p.Channels
	}
	if p.EffectiveFrom != nil {
		rt.EffectiveFrom = *p.EffectiveFrom
	}
	if p.EffectiveTo != nil {
		rt.EffectiveTo = *p.EffectiveTo
	}
	if p.BasePrice != nil {
		rt.BasePrice = *p.BasePrice
	}
	if p.Currency != nil {
		rt.Currency = *p.Currency
	}
	rt.MinStay = p.MinStay
	rt.MaxStay = p.MaxStay
	if p.Priority != nil {
		rt.Priority = *p.Priority
	}
	if p.RuleIDs != nil {
		rt.RuleIDs = *p.RuleIDs
	}
	if p.Status != nil {
		rt.Status = *p.Status
	}
	if p.Notes != nil {
		rt.Notes = *p.Notes
	}
}

func (h *Handlers) updateRate(w http.ResponseWriter, r *http.Request) {
	var b rateBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	p, err := toRatePatch(b, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	updated, err := h.Catalog.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRateResponse(updated))
}

func (h *Handlers) deleteRate(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.Delete(r.Context(), chi.URLParam(r, "id"), actor(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) cloneRate(w http.ResponseWriter, r *http.Request) {
	var b rateBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
			return
		}
	}
	p, err := toRatePatch(b, actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	cloned, err := h.Catalog.Clone(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRateResponse(cloned))
}

/********** rules **********/

func (h *Handlers) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Rules.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]ruleResponse, 0, len(rules))
	for _, rl := range rules {
		out = append(out, toRuleResponse(rl))
	}
	writeCachedJSON(w, r, out)
}

func (h *Handlers) getRule(w http.ResponseWriter, r *http.Request) {
	rl, err := h.Rules.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCachedJSON(w, r, toRuleResponse(rl))
}

func (h *Handlers) createRule(w http.ResponseWriter, r *http.Request) {
	var b ruleBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	rl := domain.RateRule{CreatedBy: actor(r)}
	if b.Name != nil {
		rl.Name = *b.Name
	}
	if b.Description != nil {
		rl.Description = *b.Description
	}
	if b.Operator != nil {
		rl.Operator = domain.RuleOperator(*b.Operator)
	}
	if b.Value != nil {
		rl.Value = *b.Value
	}
	if b.ChannelMultipliers != nil {
		rl.ChannelMultipliers = *b.ChannelMultipliers
	}
	if b.Conditions != nil {
		rl.Conditions = toConditions(*b.Conditions)
	}
	if b.Priority != nil {
		rl.Priority = *b.Priority
	}
	if b.WeekdayDiffs != nil {
		rl.WeekdayDiffs = *b.WeekdayDiffs
	}
	created, err := h.Rules.Create(r.Context(), rl)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleResponse(created))
}

func (h *Handlers) updateRule(w http.ResponseWriter, r *http.Request) {
	var b ruleBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	p := domain.RulePatch{
		Name:               b.Name,
		Description:        b.Description,
		Value:              b.Value,
		ChannelMultipliers: b.ChannelMultipliers,
		Priority:           b.Priority,
		WeekdayDiffs:       b.WeekdayDiffs,
		UpdatedBy:          actor(r),
	}
	if b.Operator != nil {
		op := domain.RuleOperator(*b.Operator)
		p.Operator = &op
	}
	if b.Conditions != nil {
		conds := toConditions(*b.Conditions)
		p.Conditions = &conds
	}
	updated, err := h.Rules.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleResponse(updated))
}

func (h *Handlers) deleteRule(w http.ResponseWriter, r *http.Request) {
	if err := h.Rules.Delete(r.Context(), chi.URLParam(r, "id"), actor(r)); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/********** adjustments **********/

func (h *Handlers) listAdjustments(w http.ResponseWriter, r *http.Request) {
	adjs, err := h.Workflow.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]adjustmentResponse, 0, len(adjs))
	for _, a := range adjs {
		out = append(out, toAdjustmentResponse(a))
	}
	writeCachedJSON(w, r, out)
}

func (h *Handlers) getAdjustment(w http.ResponseWriter, r *http.Request) {
	a, err := h.Workflow.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeCachedJSON(w, r, toAdjustmentResponse(a))
}

func (h *Handlers) proposeAdjustment(w http.ResponseWriter, r *http.Request) {
	var b adjustmentBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	a, err := h.Workflow.Propose(r.Context(), domain.PriceAdjustment{
		RateID:        b.RateID,
		ProposedPrice: b.ProposedPrice,
		Justification: b.Justification,
		ProposedBy:    actor(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdjustmentResponse(a))
}

func (h *Handlers) approveAdjustment(w http.ResponseWriter, r *http.Request) {
	a, err := h.Workflow.Approve(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdjustmentResponse(a))
}

func (h *Handlers) rejectAdjustment(w http.ResponseWriter, r *http.Request) {
	a, err := h.Workflow.Reject(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdjustmentResponse(a))
}

func (h *Handlers) applyAdjustment(w http.ResponseWriter, r *http.Request) {
	a, err := h.Workflow.Apply(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdjustmentResponse(a))
}

/********** audit **********/

func (h *Handlers) listAudit(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > 1000 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 1000")
			return
		}
		limit = l
	}
	entries, err := h.Audit.ListAudit(r.Context(), r.URL.Query().Get("rate_id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]auditResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditResponse{
			ID:          e.ID,
			RateID:      e.RateID,
			Action:      string(e.Action),
			PerformedBy: e.PerformedBy,
			At:          e.At,
			Diff:        e.Diff,
		})
	}
	writeCachedJSON(w, r, out)
}
