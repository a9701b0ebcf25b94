// Package reconciler contains the batch jobs that move buffered counter
// state into the durable store. Every job runs under a named distributed
// lock via Runner.RunLocked; dirty-key drains acknowledge their sources only
// after the durable write succeeds, so a failed or interrupted run is
// retried on the next tick rather than losing counts.
package reconciler
