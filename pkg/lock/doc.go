/*
Package lock provides Redis-backed distributed mutual exclusion for batch jobs.

Each reconciler acquires a named lock before draining its namespace so
overlapping scheduler ticks never double-process the same buffer. The state
machine is UNLOCKED -> LOCKED(token, lease) -> UNLOCKED.

Acquire is SET NX EX with a random uuid fencing token and never blocks:
contention means this tick is skipped, which is harmless for periodic work.
Release is a Lua compare-and-delete, so a slow run whose lease silently
expired cannot delete a lock a newer run has since acquired. When the lock
store is unreachable, Acquire fails closed (no token, job skipped) and a
failed Release is logged rather than raised; the lease TTL is the ultimate
safety net against deadlock.

MemoryLocker implements the same contract in memory with an injectable clock
and backs the unit tests.
*/
package lock
