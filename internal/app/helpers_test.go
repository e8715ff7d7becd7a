package app_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"hotel_rates/internal/domain"
)

// ---- shared fakes & builders ----

// fakeCache keeps JSON blobs in memory, close enough to the Redis adapter.
type fakeCache struct {
	store map[string][]byte
	sets  int
	dels  int
}

func (c *fakeCache) Get(_ context.Context, key string, dst any) (bool, error) {
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(_ context.Context, key string, v any, _ time.Duration) error {
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	c.sets++
	return nil
}

func (c *fakeCache) Del(_ context.Context, key string) error {
	delete(c.store, key)
	c.dels++
	return nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ptr[T any](v T) *T { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// mkRate returns an active July-2026 double-room rate; tweak what the test
// cares about.
func mkRate(id, code string, priority int, price string) domain.Rate {
	return domain.Rate{
		ID:            id,
		Code:          code,
		Name:          code,
		RoomType:      "double",
		RateType:      "base",
		Channels:      []string{"OTA"},
		EffectiveFrom: day(2026, 7, 1),
		EffectiveTo:   day(2026, 7, 31),
		BasePrice:     dec(price),
		Currency:      "EUR",
		Priority:      priority,
		Status:        domain.RateActive,
		CreatedBy:     "test",
	}
}

func julyQuery() domain.ResolveQuery {
	return domain.NewResolveQuery("double", day(2026, 7, 10), "OTA")
}
