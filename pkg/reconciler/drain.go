package reconciler

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/canadian-bazar/buyer-analytics/pkg/counterstore"
	"github.com/canadian-bazar/buyer-analytics/pkg/metrics"
)

// takeDirtyRecords claims the namespace's dirty keys and reads their records
// in one pipelined pass. Claimed keys stay in the processing set until
// ackDrained, so a run that dies here leaves them for the next one.
func takeDirtyRecords(ctx context.Context, counters counterstore.Store, ns counterstore.Namespace) ([]string, map[string]counterstore.Fields, error) {
	keys, err := counters.TakeDirty(ctx, ns)
	if err != nil {
		return nil, nil, err
	}
	if len(keys) == 0 {
		return nil, nil, nil
	}
	records, err := counters.ReadAllMulti(ctx, ns, keys)
	if err != nil {
		return nil, nil, err
	}
	return keys, records, nil
}

// ackDrained removes drained counter keys and releases their processing-set
// claims. Called only after the durable sink acknowledged the batch; on any
// earlier failure the keys survive and the next run re-drains them.
func ackDrained(ctx context.Context, counters counterstore.Store, ns counterstore.Namespace, job string, keys []string) error {
	for _, key := range keys {
		if err := counters.DeleteKey(ctx, ns, key); err != nil {
			return err
		}
	}
	if err := counters.ClearProcessed(ctx, ns, keys...); err != nil {
		return err
	}
	metrics.DrainedKeysTotal.WithLabelValues(job).Add(float64(len(keys)))
	return nil
}

// validObjectID reports whether s is a well-formed document id. Malformed ids
// in counter keys are skipped rather than poisoning the whole batch.
func validObjectID(s string) bool {
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}
