/*
Package storage provides the durable MongoDB store the reconcilers drain into.

The Store interface is the write contract: typed upserts per collection,
always batched (one bulk write per reconciliation pass, not one round-trip
per entity) and always unordered, so a single malformed document is reported
without blocking the rest of the batch.

Two implementations exist. MongoStore is production: it ensures unique
indexes on every natural key at construction and maps driver errors to
ErrNotFound on point lookups. MemoryStore mirrors the same upsert and
idempotency semantics in memory and backs the reconciler unit tests.

Counter resets use aggregation-pipeline updates so the derived score is
recomputed from the zeroed counters inside the same write; score fields are
never stale relative to the counters in their document.
*/
package storage
