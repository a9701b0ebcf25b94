package counterstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// scanBatch is the COUNT hint per SCAN page. The store never issues a
	// blocking KEYS call; enumeration cost is spread across cursor pages.
	scanBatch = 500

	dirtySuffix      = ":dirty"
	processingSuffix = ":processing"
)

// RedisStore is the production Store backed by a shared Redis client.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a counter store on an existing Redis client.
// The client is shared with the lock store; the caller owns its lifecycle.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(ns Namespace, entityKey string) string {
	return string(ns) + ":" + entityKey
}

// Increment atomically adds delta via HINCRBY, auto-creating the hash.
func (s *RedisStore) Increment(ctx context.Context, ns Namespace, entityKey string, field Field, delta int64) error {
	if err := s.client.HIncrBy(ctx, redisKey(ns, entityKey), string(field), delta).Err(); err != nil {
		return fmt.Errorf("failed to increment %s on %s: %w", field, redisKey(ns, entityKey), err)
	}
	return nil
}

// SetField overwrites a single hash field.
func (s *RedisStore) SetField(ctx context.Context, ns Namespace, entityKey string, field Field, value string) error {
	if err := s.client.HSet(ctx, redisKey(ns, entityKey), string(field), value).Err(); err != nil {
		return fmt.Errorf("failed to set %s on %s: %w", field, redisKey(ns, entityKey), err)
	}
	return nil
}

// ReadAll fetches the full hash; a missing key yields an empty map, never an error.
func (s *RedisStore) ReadAll(ctx context.Context, ns Namespace, entityKey string) (Fields, error) {
	raw, err := s.client.HGetAll(ctx, redisKey(ns, entityKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", redisKey(ns, entityKey), err)
	}
	fields := make(Fields, len(raw))
	for k, v := range raw {
		fields[Field(k)] = v
	}
	return fields, nil
}

// ReadAllMulti pipelines one HGETALL per key into a single round-trip.
func (s *RedisStore) ReadAllMulti(ctx context.Context, ns Namespace, entityKeys []string) (map[string]Fields, error) {
	result := make(map[string]Fields, len(entityKeys))
	if len(entityKeys) == 0 {
		return result, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(entityKeys))
	for i, key := range entityKeys {
		cmds[i] = pipe.HGetAll(ctx, redisKey(ns, key))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to pipeline reads for %s: %w", ns, err)
	}

	for i, cmd := range cmds {
		raw, err := cmd.Result()
		if err != nil {
			continue
		}
		fields := make(Fields, len(raw))
		for k, v := range raw {
			fields[Field(k)] = v
		}
		result[entityKeys[i]] = fields
	}
	return result, nil
}

// EnsureRetention probes the TTL and only sets one when the key has none.
// A key that already carries a TTL keeps its original expiry point.
func (s *RedisStore) EnsureRetention(ctx context.Context, ns Namespace, entityKey string, window time.Duration) error {
	key := redisKey(ns, entityKey)
	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to probe TTL on %s: %w", key, err)
	}
	// -1 means the key exists without a TTL; -2 means it does not exist yet.
	// Either way the next write creates or keeps it, so set the window.
	if ttl >= 0 {
		return nil
	}
	if err := s.client.Expire(ctx, key, window).Err(); err != nil {
		return fmt.Errorf("failed to set retention on %s: %w", key, err)
	}
	return nil
}

// ScanKeys walks the namespace with a SCAN cursor and strips the prefix.
func (s *RedisStore) ScanKeys(ctx context.Context, ns Namespace) ([]string, error) {
	var (
		keys   []string
		cursor uint64
		prefix = string(ns) + ":"
	)
	for {
		page, next, err := s.client.Scan(ctx, cursor, prefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan namespace %s: %w", ns, err)
		}
		for _, k := range page {
			trimmed := k[len(prefix):]
			// Bookkeeping sets live under the same prefix; skip them.
			if trimmed == "" || k == dirtySetKey(ns) || k == processingSetKey(ns) {
				continue
			}
			keys = append(keys, trimmed)
		}
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// DeleteKey removes a drained record.
func (s *RedisStore) DeleteKey(ctx context.Context, ns Namespace, entityKey string) error {
	if err := s.client.Del(ctx, redisKey(ns, entityKey)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", redisKey(ns, entityKey), err)
	}
	return nil
}

// DeleteFields removes windowed sub-fields during daily/weekly resets.
func (s *RedisStore) DeleteFields(ctx context.Context, ns Namespace, entityKey string, fields ...Field) error {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	if err := s.client.HDel(ctx, redisKey(ns, entityKey), names...).Err(); err != nil {
		return fmt.Errorf("failed to delete fields on %s: %w", redisKey(ns, entityKey), err)
	}
	return nil
}

func dirtySetKey(ns Namespace) string      { return string(ns) + dirtySuffix }
func processingSetKey(ns Namespace) string { return string(ns) + processingSuffix }

// MarkDirty adds the entity key to the namespace's dirty set so the next
// drain is proportional to activity, not total key count.
func (s *RedisStore) MarkDirty(ctx context.Context, ns Namespace, entityKey string) error {
	if err := s.client.SAdd(ctx, dirtySetKey(ns), entityKey).Err(); err != nil {
		return fmt.Errorf("failed to mark %s dirty in %s: %w", entityKey, ns, err)
	}
	return nil
}

// TakeDirty merges the dirty set into the processing set and returns the
// union. A run that dies between TakeDirty and ClearProcessed leaves its
// keys in the processing set for the next run, preserving at-least-once.
func (s *RedisStore) TakeDirty(ctx context.Context, ns Namespace) ([]string, error) {
	dirty, processing := dirtySetKey(ns), processingSetKey(ns)

	pipe := s.client.TxPipeline()
	pipe.SUnionStore(ctx, processing, processing, dirty)
	pipe.Del(ctx, dirty)
	members := pipe.SMembers(ctx, processing)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to take dirty set for %s: %w", ns, err)
	}
	keys, err := members.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read processing set for %s: %w", ns, err)
	}
	return keys, nil
}

// ClearProcessed acknowledges drained keys once the sink write succeeded.
func (s *RedisStore) ClearProcessed(ctx context.Context, ns Namespace, entityKeys ...string) error {
	if len(entityKeys) == 0 {
		return nil
	}
	members := make([]interface{}, len(entityKeys))
	for i, k := range entityKeys {
		members[i] = k
	}
	if err := s.client.SRem(ctx, processingSetKey(ns), members...).Err(); err != nil {
		return fmt.Errorf("failed to clear processed keys for %s: %w", ns, err)
	}
	return nil
}

// ProcessingBacklog reports the size of the namespace's processing set.
func (s *RedisStore) ProcessingBacklog(ctx context.Context, ns Namespace) (int64, error) {
	return s.client.SCard(ctx, processingSetKey(ns)).Result()
}

// Ping probes connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
