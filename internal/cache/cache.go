// Package cache memoizes query responses keyed by a fingerprint of the
// question, the asking user and the selected document set.
//
// Lookups and stores are not coordinated: two concurrent misses for the same
// fingerprint both compute and the last store wins.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"ragchat/internal/domain"
	"ragchat/internal/kv"
	"ragchat/internal/logger"
)

const keyPrefix = "query:"

// Fingerprint hashes the cacheable inputs of a query. Document order does not
// matter.
func Fingerprint(question, user string, docs []string) string {
	sorted := append([]string(nil), docs...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(question))
	h.Write([]byte{0})
	h.Write([]byte(user))
	for _, d := range sorted {
		h.Write([]byte{0})
		h.Write([]byte(d))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// record is the persisted layout of one cache entry.
type record struct {
	Timestamp string               `json:"timestamp"`
	Response  domain.QueryResponse `json:"response"`
}

type ResponseCache struct {
	store kv.Store
	ttl   time.Duration
	now   func() time.Time
	log   *logger.Logger
}

// New creates a response cache over store. Records older than ttl are misses.
func New(store kv.Store, ttl time.Duration, log *logger.Logger) *ResponseCache {
	return &ResponseCache{
		store: store,
		ttl:   ttl,
		now:   time.Now,
		log:   log.With("service", "ResponseCache"),
	}
}

// WithClock replaces the time source used to stamp and age records.
func (c *ResponseCache) WithClock(now func() time.Time) *ResponseCache {
	c.now = now
	return c
}

// Lookup returns the cached response when a record exists and is younger than
// the TTL. Unreadable or stale records are reported as misses.
func (c *ResponseCache) Lookup(ctx context.Context, question, user string, docs []string) (*domain.QueryResponse, bool) {
	key := keyPrefix + Fingerprint(question, user, docs)
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache read failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		c.log.Warn("malformed cache record", "key", key, "error", err)
		return nil, false
	}
	ts, err := time.Parse(time.RFC3339Nano, rec.Timestamp)
	if err != nil {
		c.log.Warn("malformed cache timestamp", "key", key, "error", err)
		return nil, false
	}
	if c.now().Sub(ts) >= c.ttl {
		return nil, false
	}
	resp := rec.Response
	return &resp, true
}

// Store writes resp under the query fingerprint, replacing any earlier record.
func (c *ResponseCache) Store(ctx context.Context, question, user string, docs []string, resp domain.QueryResponse) error {
	raw, err := json.Marshal(record{
		Timestamp: c.now().UTC().Format(time.RFC3339Nano),
		Response:  resp,
	})
	if err != nil {
		return fmt.Errorf("encode cache record: %w", err)
	}
	key := keyPrefix + Fingerprint(question, user, docs)
	if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
		return fmt.Errorf("write cache record: %w", err)
	}
	return nil
}
