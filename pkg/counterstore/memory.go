package counterstore

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in tests. It mirrors the Redis
// semantics the reconcilers rely on: atomic increments, TTL-based expiry
// via an injectable clock, and dirty/processing set bookkeeping.
type MemoryStore struct {
	mu         sync.Mutex
	data       map[string]map[Field]string
	expiry     map[string]time.Time
	dirty      map[Namespace]map[string]struct{}
	processing map[Namespace]map[string]struct{}

	// Now is the clock; tests override it to simulate TTL expiry.
	Now func() time.Time
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]map[Field]string),
		expiry:     make(map[string]time.Time),
		dirty:      make(map[Namespace]map[string]struct{}),
		processing: make(map[Namespace]map[string]struct{}),
		Now:        time.Now,
	}
}

// expireLocked drops the key when its TTL has passed. Callers hold mu.
func (s *MemoryStore) expireLocked(key string) {
	if exp, ok := s.expiry[key]; ok && !s.Now().Before(exp) {
		delete(s.data, key)
		delete(s.expiry, key)
	}
}

func (s *MemoryStore) Increment(_ context.Context, ns Namespace, entityKey string, field Field, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := redisKey(ns, entityKey)
	s.expireLocked(key)
	fields, ok := s.data[key]
	if !ok {
		fields = make(map[Field]string)
		s.data[key] = fields
	}
	cur, _ := strconv.ParseInt(fields[field], 10, 64)
	fields[field] = strconv.FormatInt(cur+delta, 10)
	return nil
}

func (s *MemoryStore) SetField(_ context.Context, ns Namespace, entityKey string, field Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := redisKey(ns, entityKey)
	s.expireLocked(key)
	fields, ok := s.data[key]
	if !ok {
		fields = make(map[Field]string)
		s.data[key] = fields
	}
	fields[field] = value
	return nil
}

func (s *MemoryStore) ReadAll(_ context.Context, ns Namespace, entityKey string) (Fields, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := redisKey(ns, entityKey)
	s.expireLocked(key)
	out := make(Fields, len(s.data[key]))
	for k, v := range s.data[key] {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) ReadAllMulti(ctx context.Context, ns Namespace, entityKeys []string) (map[string]Fields, error) {
	result := make(map[string]Fields, len(entityKeys))
	for _, key := range entityKeys {
		fields, err := s.ReadAll(ctx, ns, key)
		if err != nil {
			return nil, err
		}
		result[key] = fields
	}
	return result, nil
}

func (s *MemoryStore) EnsureRetention(_ context.Context, ns Namespace, entityKey string, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := redisKey(ns, entityKey)
	s.expireLocked(key)
	if _, ok := s.expiry[key]; ok {
		return nil
	}
	s.expiry[key] = s.Now().Add(window)
	return nil
}

func (s *MemoryStore) ScanKeys(_ context.Context, ns Namespace) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := string(ns) + ":"
	var keys []string
	for key := range s.data {
		s.expireLocked(key)
		if _, ok := s.data[key]; !ok {
			continue
		}
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			keys = append(keys, key[len(prefix):])
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) DeleteKey(_ context.Context, ns Namespace, entityKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := redisKey(ns, entityKey)
	delete(s.data, key)
	delete(s.expiry, key)
	return nil
}

func (s *MemoryStore) DeleteFields(_ context.Context, ns Namespace, entityKey string, fields ...Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := redisKey(ns, entityKey)
	s.expireLocked(key)
	for _, f := range fields {
		delete(s.data[key], f)
	}
	return nil
}

func (s *MemoryStore) MarkDirty(_ context.Context, ns Namespace, entityKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.dirty[ns]
	if !ok {
		set = make(map[string]struct{})
		s.dirty[ns] = set
	}
	set[entityKey] = struct{}{}
	return nil
}

func (s *MemoryStore) TakeDirty(_ context.Context, ns Namespace) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	proc, ok := s.processing[ns]
	if !ok {
		proc = make(map[string]struct{})
		s.processing[ns] = proc
	}
	for key := range s.dirty[ns] {
		proc[key] = struct{}{}
	}
	delete(s.dirty, ns)

	keys := make([]string, 0, len(proc))
	for key := range proc {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) ClearProcessed(_ context.Context, ns Namespace, entityKeys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range entityKeys {
		delete(s.processing[ns], key)
	}
	return nil
}

// ProcessingBacklog reports the size of the namespace's processing set.
func (s *MemoryStore) ProcessingBacklog(_ context.Context, ns Namespace) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.processing[ns])), nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// TTL reports the remaining retention window for a key, for test assertions.
func (s *MemoryStore) TTL(ns Namespace, entityKey string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.expiry[redisKey(ns, entityKey)]
	if !ok {
		return 0, false
	}
	return exp.Sub(s.Now()), true
}
