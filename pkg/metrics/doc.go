/*
Package metrics provides Prometheus observability for the analytics pipeline.

All collectors are package-level and registered at init, following the
standard client_golang pattern:

  - analytics_job_runs_total{job,result} - runs by outcome; "skipped" means
    the job's lock was held by another run
  - analytics_job_duration_seconds{job} - reconciliation cycle duration
  - analytics_drained_keys_total{job} and analytics_skipped_records_total{job}
  - analytics_bulk_write_docs_total{job} - durable documents written
  - analytics_lock_contention_total{lock}
  - analytics_track_events_total{namespace} and
    analytics_track_errors_total{namespace} for the write path
  - analytics_processing_backlog{namespace} - gauge sampled by Collector

Timer is a small helper for observing durations:

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.JobDuration, jobName)

Server exposes /metrics together with /health, /ready and /live; the daemon
registers its Redis and Mongo components so readiness reflects real
connectivity.
*/
package metrics
