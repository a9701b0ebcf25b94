/*
Package tracker is the in-process write API the request handlers call to
record interaction events: views, searches, like toggles, quotation-status
transitions and category engagement.

Every call is a handful of Redis operations on the request's critical path
and nothing more; the durable store is never touched here. Errors are logged
and counted but never returned, so analytics degradation can not surface as
a request failure - the only user-visible failure mode of this subsystem is
staleness.

On the first write of a record the tracker applies the namespace's retention
window (TTL set only when none exists), and every write marks the key in the
namespace's dirty set so the next reconciler drain finds it without scanning.

LikeState overlays the pending Redis like/dislike state on top of the
durable join row: between a toggle and the next batch run, Redis is the
source of truth for that pair.
*/
package tracker
