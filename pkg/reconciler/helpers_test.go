package reconciler

import (
	"time"

	"github.com/canadian-bazar/buyer-analytics/pkg/counterstore"
	"github.com/canadian-bazar/buyer-analytics/pkg/storage"
	"github.com/canadian-bazar/buyer-analytics/pkg/tracker"
)

// fixture wires the in-memory stores behind a tracker so tests exercise the
// same write path production traffic takes.
type fixture struct {
	counters *counterstore.MemoryStore
	store    *storage.MemoryStore
	tracker  *tracker.Tracker
}

func newFixture() *fixture {
	counters := counterstore.NewMemoryStore()
	store := storage.NewMemoryStore()
	return &fixture{
		counters: counters,
		store:    store,
		tracker: tracker.New(counters, store, tracker.Retention{
			Category:    24 * time.Hour,
			Product:     24 * time.Hour,
			Like:        24 * time.Hour,
			Interaction: 24 * time.Hour,
		}),
	}
}
