/*
Package counterstore buffers high-frequency, low-value interaction events in
Redis so the request path never touches the durable store.

A counter record is a Redis hash keyed by {namespace}:{entityId} or
{namespace}:{entityId}:{subjectId}, holding named integer counters plus a
lastInteracted timestamp and, for like records, a type field. Records are
created on first increment, mutated by every interaction, and destroyed by
TTL expiry or by a reconciler after a successful drain.

# Retention

EnsureRetention sets a TTL only when the key has none, so repeated
increments never postpone the original expiry window. Windows are 30 to 90
days depending on namespace and come from configuration.

# Dirty sets

MarkDirty/TakeDirty/ClearProcessed maintain per-namespace dirty sets so a
drain visits only keys touched since the last run instead of scanning the
whole namespace. TakeDirty merges the dirty set into a processing set and
returns the union; keys leave the processing set only via ClearProcessed
after the durable write is acknowledged, so a crashed run re-drains its keys
on the next tick (at-least-once). ScanKeys remains for the cleanup jobs that
genuinely need full enumeration and uses a cursor-based SCAN, never KEYS.

# Implementations

RedisStore is the production implementation on a shared go-redis client.
MemoryStore mirrors the same semantics in memory (with an injectable clock
for TTL tests) and is what the reconciler tests run against.
*/
package counterstore
