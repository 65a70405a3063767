package cache

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voicehive-hotels/orchestrator/internal/resilience"
)

// SharedConfig controls the remote tier.
type SharedConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // top-level namespace, e.g. "voicehive"

	// CompressionThreshold gzips any encoded value at least this many
	// bytes before it goes to Redis; zero disables compression.
	CompressionThreshold int
}

// SharedCache is the remote tier: every value is stored at
// "prefix:name:key" with a parallel metadata hash at
// "prefix:name:meta:key".
// It also implements resilience.SharedStateStore so the circuit breaker
// fabric can replicate its state across replicas through the same Redis
// deployment.
type SharedCache struct {
	rdb        *redis.Client
	prefix     string
	name       string
	compressAt int
}

func NewSharedCache(cfg SharedConfig, name string) *SharedCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "voicehive"
	}
	return &SharedCache{rdb: rdb, prefix: prefix, name: name, compressAt: cfg.CompressionThreshold}
}

// gzipMarker prefixes compressed payloads. A JSON document can never
// begin with 'g', so the marker is unambiguous against uncompressed
// values.
var gzipMarker = []byte("gz:")

func (s *SharedCache) encode(raw []byte) ([]byte, error) {
	if s.compressAt <= 0 || len(raw) < s.compressAt {
		return raw, nil
	}
	var buf bytes.Buffer
	buf.Write(gzipMarker)
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(raw []byte) ([]byte, error) {
	if !bytes.HasPrefix(raw, gzipMarker) {
		return raw, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw[len(gzipMarker):]))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func (s *SharedCache) makeKey(key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, s.name, key)
}

func (s *SharedCache) makeMetaKey(key string) string {
	return fmt.Sprintf("%s:%s:meta:%s", s.prefix, s.name, key)
}

func (s *SharedCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := s.rdb.Get(ctx, s.makeKey(key)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("shared cache get %s: %w", key, err)
	}
	plain, err := decode(raw)
	if err != nil {
		return false, fmt.Errorf("shared cache decompress %s: %w", key, err)
	}
	if err := json.Unmarshal(plain, dest); err != nil {
		return false, fmt.Errorf("shared cache decode %s: %w", key, err)
	}
	return true, nil
}

func (s *SharedCache) Set(ctx context.Context, key string, value any, ttl time.Duration, meta map[string]string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("shared cache encode %s: %w", key, err)
	}
	raw, err = s.encode(raw)
	if err != nil {
		return fmt.Errorf("shared cache compress %s: %w", key, err)
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.makeKey(key), raw, ttl)
	if len(meta) > 0 {
		pipe.HSet(ctx, s.makeMetaKey(key), toAnyMap(meta))
		pipe.Expire(ctx, s.makeMetaKey(key), ttl)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *SharedCache) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.makeKey(key), s.makeMetaKey(key)).Err()
}

// InvalidatePattern removes every key matching a glob pattern via a
// server-side SCAN, since Redis has no native prefix-delete. The shared
// tier intentionally has no tag index (see MemoryCache.InvalidateByTags);
// pattern invalidation is the shared tier's only bulk-removal tool.
func (s *SharedCache) InvalidatePattern(ctx context.Context, pattern string) (int, error) {
	full := s.makeKey(pattern)
	var cursor uint64
	removed := 0
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, full, 100).Result()
		if err != nil {
			return removed, fmt.Errorf("shared cache scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := s.rdb.Del(ctx, keys...).Err(); err != nil {
				return removed, err
			}
			removed += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return removed, nil
}

func (s *SharedCache) Close() error {
	return s.rdb.Close()
}

// --- resilience.SharedStateStore -------------------------------------

const breakerStateName = "breaker-state"

func (s *SharedCache) PublishBreakerState(ctx context.Context, key string, snap resilience.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, fmt.Sprintf("%s:%s:%s", s.prefix, breakerStateName, key), raw, 5*time.Minute).Err()
}

func (s *SharedCache) FetchBreakerState(ctx context.Context, key string) (resilience.Snapshot, bool, error) {
	raw, err := s.rdb.Get(ctx, fmt.Sprintf("%s:%s:%s", s.prefix, breakerStateName, key)).Bytes()
	if err == redis.Nil {
		return resilience.Snapshot{}, false, nil
	}
	if err != nil {
		return resilience.Snapshot{}, false, err
	}
	var snap resilience.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return resilience.Snapshot{}, false, err
	}
	return snap, true, nil
}
