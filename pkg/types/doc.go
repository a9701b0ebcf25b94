/*
Package types defines the durable document schemas the analytics pipeline
writes to MongoDB and the enums shared between the write path and the
reconcilers.

The documents fall into three groups:

  - Aggregate stats (CategoryStats, ProductStats, CategoryInteraction): one
    per entity, upserted on every reconciliation pass, with derived score
    fields recomputed from the counters in the same write.
  - Append-only activity rows (ActivityLog) whose IsProcessed flag is the
    idempotency boundary between the Redis drain and the performance rollups.
  - Time-bucketed performance documents (MonthlyPerformance,
    YearlyPerformance) forming a two-level rollup where each level reads
    only the level below it.

Read-path aggregation pipelines consume these documents; nothing in this
repository reads them back except the rollup and reset jobs.
*/
package types
