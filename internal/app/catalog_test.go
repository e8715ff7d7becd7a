package app_test

import (
	"context"
	"errors"
	"testing"

	"hotel_rates/internal/app"
	"hotel_rates/internal/domain"
	"hotel_rates/internal/storage/memory"
)

func TestCatalogCreate_DefaultsAndAudit(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	svc := app.NewCatalogService(st, st, nil, app.NewVersion())

	r := mkRate("", "SUMMER26", 3, "120")
	r.Status = "" // service defaults to Active
	created, err := svc.Create(ctx, r)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected a generated id")
	}
	if created.Status != domain.RateActive {
		t.Fatalf("expected default status Active, got %s", created.Status)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatalf("timestamps must be set")
	}

	entries, err := st.ListAudit(ctx, created.ID, 0)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != domain.AuditCreate || entries[0].PerformedBy != "test" {
		t.Fatalf("unexpected audit trail: %+v", entries)
	}
}

// brokenAudit is a store whose audit append always fails.
type brokenAudit struct {
	*memory.Store
	err error
}

func (b brokenAudit) AppendAudit(context.Context, domain.AuditEntry) error { return b.err }

func TestCatalogMutations_AuditFailureSurfaces(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	boom := errors.New("audit store down")
	svc := app.NewCatalogService(st, brokenAudit{Store: st, err: boom}, nil, app.NewVersion())

	if _, err := svc.Create(ctx, mkRate("r1", "A", 1, "100")); !errors.Is(err, boom) {
		t.Fatalf("create must surface the audit failure, got %v", err)
	}

	// the write itself went through; only the audit append failed
	if _, err := st.GetRate(ctx, "r1"); err != nil {
		t.Fatalf("rate must still be stored: %v", err)
	}

	code := "B"
	if _, err := svc.Update(ctx, "r1", domain.RatePatch{Code: &code}); !errors.Is(err, boom) {
		t.Fatalf("update must surface the audit failure, got %v", err)
	}
	if err := svc.Delete(ctx, "r1", "alice"); !errors.Is(err, boom) {
		t.Fatalf("delete must surface the audit failure, got %v", err)
	}
}

func TestCatalogCreate_RejectsInvalid(t *testing.T) {
	st := memory.New()
	svc := app.NewCatalogService(st, st, nil, app.NewVersion())

	bad := mkRate("", "X", 1, "100")
	bad.Channels = nil
	var ve *domain.ValidationError
	if _, err := svc.Create(context.Background(), bad); !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if entries, _ := st.ListAudit(context.Background(), "", 0); len(entries) != 0 {
		t.Fatalf("failed create must not be audited")
	}
}

func TestCatalogUpdate_DiffRecordsSuppliedFieldsOnly(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	svc := app.NewCatalogService(st, st, nil, app.NewVersion())

	created, err := svc.Create(ctx, mkRate("", "STD", 1, "100"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Update(ctx, created.ID, domain.RatePatch{
		BasePrice: ptr(dec("130")),
		Priority:  ptr(7),
		UpdatedBy: "alice",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.BasePrice.Equal(dec("130")) || updated.Priority != 7 || updated.UpdatedBy != "alice" {
		t.Fatalf("patch not applied: %+v", updated)
	}

	entries, _ := st.ListAudit(ctx, created.ID, 1)
	if len(entries) != 1 {
		t.Fatalf("expected one audit entry for the update")
	}
	e := entries[0]
	if e.Action != domain.AuditUpdate || e.PerformedBy != "alice" {
		t.Fatalf("unexpected audit entry: %+v", e)
	}
	if len(e.Diff) != 2 {
		t.Fatalf("diff must hold exactly the supplied fields, got %v", e.Diff)
	}
	if fc := e.Diff["basePrice"]; fc.From != "100" || fc.To != "130" {
		t.Fatalf("unexpected basePrice diff: %+v", fc)
	}
	if fc := e.Diff["priority"]; fc.From != "1" || fc.To != "7" {
		t.Fatalf("unexpected priority diff: %+v", fc)
	}
}

func TestCatalogUpdate_MissingRate(t *testing.T) {
	st := memory.New()
	svc := app.NewCatalogService(st, st, nil, app.NewVersion())
	if _, err := svc.Update(context.Background(), "nope", domain.RatePatch{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCatalogDelete_RemovesAndAudits(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	svc := app.NewCatalogService(st, st, nil, app.NewVersion())

	created, _ := svc.Create(ctx, mkRate("", "STD", 1, "100"))
	if err := svc.Delete(ctx, created.ID, "bob"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := st.GetRate(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("rate must be gone, got %v", err)
	}

	entries, _ := st.ListAudit(ctx, created.ID, 0)
	if len(entries) != 2 {
		t.Fatalf("expected create+delete entries, got %d", len(entries))
	}
	// newest first
	if entries[0].Action != domain.AuditDelete || entries[0].PerformedBy != "bob" {
		t.Fatalf("unexpected newest entry: %+v", entries[0])
	}
}

func TestCatalogClone_FreshIdentityWithOverrides(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	svc := app.NewCatalogService(st, st, nil, app.NewVersion())

	src, _ := svc.Create(ctx, mkRate("", "JULY", 4, "100"))
	cp, err := svc.Clone(ctx, src.ID, domain.RatePatch{
		Code:          ptr("AUG"),
		EffectiveFrom: ptr(day(2026, 8, 1)),
		EffectiveTo:   ptr(day(2026, 8, 31)),
		UpdatedBy:     "carol",
	})
	if err != nil {
		t.Fatalf("clone: %v", err)
	}
	if cp.ID == src.ID {
		t.Fatalf("clone must get a fresh id")
	}
	if cp.Code != "AUG" || !cp.EffectiveFrom.Equal(day(2026, 8, 1)) {
		t.Fatalf("overrides not applied: %+v", cp)
	}
	if cp.RoomType != src.RoomType || !cp.BasePrice.Equal(src.BasePrice) {
		t.Fatalf("untouched fields must carry over: %+v", cp)
	}
	if cp.CreatedBy != "carol" {
		t.Fatalf("clone creator must be the acting identity, got %s", cp.CreatedBy)
	}

	entries, _ := st.ListAudit(ctx, cp.ID, 0)
	if len(entries) != 1 || entries[0].Action != domain.AuditCreate {
		t.Fatalf("clone must be audited as a create: %+v", entries)
	}

	// mutating the clone's slices must not leak into the source
	cp.Channels[0] = "Corporate"
	orig, _ := st.GetRate(ctx, src.ID)
	if orig.Channels[0] != "OTA" {
		t.Fatalf("clone shares slice memory with source")
	}
}

func TestCatalog_MutationsInvalidateRateCache(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	cache := &fakeCache{store: map[string][]byte{}}
	ver := app.NewVersion()
	svc := app.NewCatalogService(st, st, cache, ver)

	before := ver.Current()
	if _, err := svc.Create(ctx, mkRate("", "STD", 1, "100")); err != nil {
		t.Fatalf("create: %v", err)
	}
	if ver.Current() == before {
		t.Fatalf("create must bump the price-cache generation")
	}
	if cache.dels == 0 {
		t.Fatalf("create must drop the per-rate cache key")
	}
}
