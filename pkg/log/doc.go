/*
Package log provides structured logging for the analytics pipeline using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component- and job-specific child loggers, configurable log levels, and
helper functions for common logging patterns. All logs include timestamps and
support filtering by severity level for production debugging.

# Usage

Initialize once at startup:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Reconcilers and long-running components take a child logger so every line
carries the job or component name:

	logger := log.WithJob("category-stats")
	logger.Info().Int("drained", n).Msg("reconciliation complete")

# Conventions

  - Lock contention is logged at info level (an expected skip, not a failure)
  - Malformed counter records are warnings; the batch continues
  - Store errors are logged at error level with the job and, when known, the
    entity id, and never propagate past the scheduler tick
*/
package log
