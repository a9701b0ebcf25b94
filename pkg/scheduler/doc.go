// Package scheduler drives the reconciliation jobs on their cadences. It is
// deliberately process-local: cross-process coordination is the distributed
// lock's job, so every instance schedules every job and lock contention
// decides who actually runs.
package scheduler
