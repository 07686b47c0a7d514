package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/salescast/internal/metrics"
)

// Remote is a shared cache tier (pkg/redis.Cache)
type Remote interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeletePrefix(ctx context.Context, keyPrefix string) (int, error)
}

// Loader produces a value on a miss. Values with cacheable=false are
// returned but never stored, so empty lookups are retried.
type Loader func(ctx context.Context) (value interface{}, cacheable bool, err error)

// Lookup results
const (
	tierLocal  = "local"
	tierRemote = "remote"
	resultHit  = "hit"
	resultMiss = "miss"
)

// Tiered is a read-through cache: in-process LRU first, then the shared
// remote tier, then the loader. Both tiers hold the JSON encoding.
type Tiered struct {
	local   *LRUWithTTL[string, json.RawMessage]
	remote  Remote
	ttl     time.Duration
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewTiered creates a tiered cache. remote and m may be nil.
func NewTiered(size int, ttl time.Duration, remote Remote, m *metrics.Metrics, log zerolog.Logger) (*Tiered, error) {
	local, err := NewLRUWithTTL[string, json.RawMessage](size, ttl)
	if err != nil {
		return nil, fmt.Errorf("create local cache: %w", err)
	}
	return &Tiered{
		local:   local,
		remote:  remote,
		ttl:     ttl,
		metrics: m,
		log:     log.With().Str("component", "cache").Logger(),
	}, nil
}

// Fetch decodes the cached value of key into dest, loading it on a miss.
// Remote failures degrade to the loader and are only logged.
func (t *Tiered) Fetch(ctx context.Context, key string, dest interface{}, load Loader) error {
	if raw, ok := t.local.Get(key); ok {
		t.observe(tierLocal, resultHit)
		return json.Unmarshal(raw, dest)
	}
	t.observe(tierLocal, resultMiss)

	if t.remote != nil {
		var raw json.RawMessage
		found, err := t.remote.Get(ctx, key, &raw)
		switch {
		case err != nil:
			t.log.Warn().Err(err).Str("key", key).Msg("remote cache get failed")
		case found:
			t.observe(tierRemote, resultHit)
			t.local.Set(key, raw)
			return json.Unmarshal(raw, dest)
		default:
			t.observe(tierRemote, resultMiss)
		}
	}

	value, cacheable, err := load(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value: %w", err)
	}

	if cacheable {
		t.local.Set(key, raw)
		if t.remote != nil {
			if err := t.remote.Set(ctx, key, json.RawMessage(raw), t.ttl); err != nil {
				t.log.Warn().Err(err).Str("key", key).Msg("remote cache set failed")
			}
		}
	}
	return json.Unmarshal(raw, dest)
}

// Invalidate drops every key starting with prefix from both tiers
func (t *Tiered) Invalidate(ctx context.Context, prefix string) error {
	n := t.local.DeleteFunc(func(k string) bool { return strings.HasPrefix(k, prefix) })
	if t.remote == nil {
		return nil
	}
	m, err := t.remote.DeletePrefix(ctx, prefix)
	if err != nil {
		return fmt.Errorf("invalidate %q: %w", prefix, err)
	}
	t.log.Debug().Str("prefix", prefix).Int("local", n).Int("remote", m).Msg("cache invalidated")
	return nil
}

// Stats returns the local tier statistics
func (t *Tiered) Stats() Stats {
	return t.local.Stats()
}

func (t *Tiered) observe(tier, result string) {
	if t.metrics != nil {
		t.metrics.CacheLookups.WithLabelValues(tier, result).Inc()
	}
}
