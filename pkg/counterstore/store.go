package counterstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Namespace identifies one counter concern. Every key in the store is
// prefixed with its namespace so reconcilers only ever see their own keys.
type Namespace string

const (
	NamespaceCategory    Namespace = "category-stats"
	NamespaceProduct     Namespace = "product-activity"
	NamespaceLike        Namespace = "product-like"
	NamespaceInteraction Namespace = "category-interaction"
)

// Field is a named counter inside an entity's hash. Using a typed string
// keeps the write path and the reconciler switch on the same fixed set, so
// a typo is a compile error rather than a silently diverging hash field.
type Field string

const (
	FieldView         Field = "view"
	FieldSearch       Field = "search"
	FieldDailyView    Field = "dailyView"
	FieldDailySearch  Field = "dailySearch"
	FieldWeeklyView   Field = "weeklyView"
	FieldWeeklySearch Field = "weeklySearch"

	FieldSent       Field = "sent"
	FieldAccepted   Field = "accepted"
	FieldRejected   Field = "rejected"
	FieldInProgress Field = "in-progress"
	FieldSold       Field = "sold"

	FieldTotal  Field = "total"
	FieldDaily  Field = "daily"
	FieldWeekly Field = "weekly"

	FieldType           Field = "type"
	FieldLastInteracted Field = "lastInteracted"
)

// Values of FieldType for like records
const (
	TypeLike    = "like"
	TypeDislike = "dislike"
)

// Fields is the field map of one counter record as read from the store.
// Values are raw strings; use Int to coerce.
type Fields map[Field]string

// Int returns the named counter coerced to an integer, zero on missing or
// malformed values. Drains never fail on a single bad field.
func (f Fields) Int(field Field) int64 {
	v, ok := f[field]
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Store is the counter store capability set. Request handlers write through
// it on the hot path; reconcilers drain it on a schedule. Production wires
// the Redis implementation; tests substitute the in-memory one.
type Store interface {
	// Increment atomically adds delta to field within the hash at
	// namespace:entityKey, creating the key if absent.
	Increment(ctx context.Context, ns Namespace, entityKey string, field Field, delta int64) error

	// SetField overwrites field with value (timestamps, the like/dislike type).
	SetField(ctx context.Context, ns Namespace, entityKey string, field Field, value string) error

	// ReadAll returns the full field map, empty when the key is absent or expired.
	ReadAll(ctx context.Context, ns Namespace, entityKey string) (Fields, error)

	// ReadAllMulti reads several records in one pipelined round-trip.
	ReadAllMulti(ctx context.Context, ns Namespace, entityKeys []string) (map[string]Fields, error)

	// EnsureRetention sets a TTL on the key only when none is currently set,
	// so repeated increments do not postpone the original expiry window.
	EnsureRetention(ctx context.Context, ns Namespace, entityKey string, window time.Duration) error

	// ScanKeys enumerates entity keys in a namespace with a cursor-based
	// scan. Used by cleanup jobs; the drain path uses dirty sets instead.
	ScanKeys(ctx context.Context, ns Namespace) ([]string, error)

	// DeleteKey removes a drained record.
	DeleteKey(ctx context.Context, ns Namespace, entityKey string) error

	// DeleteFields removes individual fields, used by the daily/weekly resets.
	DeleteFields(ctx context.Context, ns Namespace, entityKey string, fields ...Field) error

	// MarkDirty records that entityKey was touched since the last drain.
	MarkDirty(ctx context.Context, ns Namespace, entityKey string) error

	// TakeDirty moves the namespace's dirty set into its processing set and
	// returns the union. Keys stay in the processing set until
	// ClearProcessed, so a run that dies mid-drain leaves them for the next
	// run rather than losing them.
	TakeDirty(ctx context.Context, ns Namespace) ([]string, error)

	// ClearProcessed removes keys from the processing set after the durable
	// write has been acknowledged.
	ClearProcessed(ctx context.Context, ns Namespace, entityKeys ...string) error

	// Ping probes store connectivity.
	Ping(ctx context.Context) error

	Close() error
}

// Key joins an entity id and optional subject id into an entity key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// SplitKey splits an entity key into its id parts and validates the count.
func SplitKey(entityKey string, want int) ([]string, error) {
	parts := strings.Split(entityKey, ":")
	if len(parts) != want {
		return nil, fmt.Errorf("malformed entity key %q: want %d parts, got %d", entityKey, want, len(parts))
	}
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("malformed entity key %q: empty id part", entityKey)
		}
	}
	return parts, nil
}
