package app

import (
	"fmt"
	"sync/atomic"
)

// Version is a process-wide generation counter for the price cache. Every
// catalog, rule or apply mutation bumps it, so resolve results cached under an
// older generation simply stop being read (they expire by TTL). The resolve
// key space cannot be enumerated for targeted invalidation.
type Version struct {
	n atomic.Int64
}

func NewVersion() *Version { return &Version{} }

func (v *Version) Bump() {
	if v != nil {
		v.n.Add(1)
	}
}

func (v *Version) Current() int64 {
	if v == nil {
		return 0
	}
	return v.n.Load()
}

func rateCacheKey(id string) string { return "rate:" + id }

func priceCacheKey(gen int64, q string) string { return fmt.Sprintf("price:%d:%s", gen, q) }
