package tracker

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/canadian-bazar/buyer-analytics/pkg/counterstore"
	"github.com/canadian-bazar/buyer-analytics/pkg/log"
	"github.com/canadian-bazar/buyer-analytics/pkg/metrics"
	"github.com/canadian-bazar/buyer-analytics/pkg/storage"
	"github.com/canadian-bazar/buyer-analytics/pkg/types"
)

// Retention holds the per-namespace TTL windows applied on first write.
type Retention struct {
	Category    time.Duration
	Product     time.Duration
	Like        time.Duration
	Interaction time.Duration
}

// Tracker is the in-process write API request handlers call while serving a
// request. Every method is fire-and-forget relative to the response: store
// errors are logged and counted, never returned, so a Redis hiccup can not
// fail a page view.
type Tracker struct {
	counters counterstore.Store
	store    storage.Store
	ret      Retention
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates a tracker over the counter store. The durable store is only
// consulted by LikeState for the read overlay.
func New(counters counterstore.Store, store storage.Store, ret Retention) *Tracker {
	return &Tracker{
		counters: counters,
		store:    store,
		ret:      ret,
		logger:   log.WithComponent("tracker"),
		now:      time.Now,
	}
}

// TrackCategoryView records a category page view.
func (t *Tracker) TrackCategoryView(ctx context.Context, categoryID string) {
	t.bump(ctx, counterstore.NamespaceCategory, categoryID, t.ret.Category,
		counterstore.FieldView, counterstore.FieldDailyView, counterstore.FieldWeeklyView)
}

// TrackCategorySearch records a search hit against a category.
func (t *Tracker) TrackCategorySearch(ctx context.Context, categoryID string) {
	t.bump(ctx, counterstore.NamespaceCategory, categoryID, t.ret.Category,
		counterstore.FieldSearch, counterstore.FieldDailySearch, counterstore.FieldWeeklySearch)
}

// TrackProductView records a product page view.
func (t *Tracker) TrackProductView(ctx context.Context, productID string) {
	t.bump(ctx, counterstore.NamespaceProduct, productID, t.ret.Product,
		counterstore.FieldView)
}

// TrackQuotation records a quotation lifecycle transition for a product.
func (t *Tracker) TrackQuotation(ctx context.Context, productID string, status types.QuotationStatus) {
	field, ok := quotationField(status)
	if !ok {
		t.logger.Warn().Str("status", string(status)).Msg("unknown quotation status, event dropped")
		return
	}
	t.bump(ctx, counterstore.NamespaceProduct, productID, t.ret.Product, field)
}

// TrackLike records a like for (product, buyer). Last write wins on the
// type field: a like followed by a dislike before reconciliation leaves the
// record in the dislike state.
func (t *Tracker) TrackLike(ctx context.Context, productID, buyerID string) {
	t.setLikeState(ctx, productID, buyerID, counterstore.TypeLike)
}

// TrackDislike records a dislike for (product, buyer).
func (t *Tracker) TrackDislike(ctx context.Context, productID, buyerID string) {
	t.setLikeState(ctx, productID, buyerID, counterstore.TypeDislike)
}

// TrackCategoryInteraction records a buyer engaging with a category.
func (t *Tracker) TrackCategoryInteraction(ctx context.Context, categoryID, buyerID string) {
	ns := counterstore.NamespaceInteraction
	key := counterstore.Key(categoryID, buyerID)
	if err := t.ensure(ctx, ns, key, t.ret.Interaction); err != nil {
		t.fail(ns, key, err)
		return
	}
	for _, field := range []counterstore.Field{counterstore.FieldTotal, counterstore.FieldDaily, counterstore.FieldWeekly} {
		if err := t.counters.Increment(ctx, ns, key, field, 1); err != nil {
			t.fail(ns, key, err)
			return
		}
	}
	t.stamp(ctx, ns, key)
	t.done(ctx, ns, key)
}

// LikeState reports whether (product, buyer) reads as liked right now. The
// Redis record is the source of truth between a toggle and the next batch
// run, so it overlays the durable row until reconciliation catches up.
func (t *Tracker) LikeState(ctx context.Context, productID, buyerID string) (bool, error) {
	key := counterstore.Key(productID, buyerID)
	fields, err := t.counters.ReadAll(ctx, counterstore.NamespaceLike, key)
	if err == nil {
		switch fields[counterstore.FieldType] {
		case counterstore.TypeLike:
			return true, nil
		case counterstore.TypeDislike:
			return false, nil
		}
	} else {
		// Fall through to the durable row; a read miss only means staleness.
		t.logger.Warn().Err(err).Str("key", key).Msg("like overlay read failed")
	}
	return t.store.IsLiked(ctx, productID, buyerID)
}

func quotationField(status types.QuotationStatus) (counterstore.Field, bool) {
	switch status {
	case types.QuotationSent:
		return counterstore.FieldSent, true
	case types.QuotationAccepted:
		return counterstore.FieldAccepted, true
	case types.QuotationRejected:
		return counterstore.FieldRejected, true
	case types.QuotationInProgress:
		return counterstore.FieldInProgress, true
	case types.QuotationSold:
		return counterstore.FieldSold, true
	}
	return "", false
}

// bump applies retention, increments the given fields by one, stamps the
// interaction time and marks the key dirty.
func (t *Tracker) bump(ctx context.Context, ns counterstore.Namespace, key string, window time.Duration, fields ...counterstore.Field) {
	if err := t.ensure(ctx, ns, key, window); err != nil {
		t.fail(ns, key, err)
		return
	}
	for _, field := range fields {
		if err := t.counters.Increment(ctx, ns, key, field, 1); err != nil {
			t.fail(ns, key, err)
			return
		}
	}
	t.stamp(ctx, ns, key)
	t.done(ctx, ns, key)
}

func (t *Tracker) setLikeState(ctx context.Context, productID, buyerID, state string) {
	ns := counterstore.NamespaceLike
	key := counterstore.Key(productID, buyerID)
	if err := t.ensure(ctx, ns, key, t.ret.Like); err != nil {
		t.fail(ns, key, err)
		return
	}
	if err := t.counters.SetField(ctx, ns, key, counterstore.FieldType, state); err != nil {
		t.fail(ns, key, err)
		return
	}
	t.stamp(ctx, ns, key)
	t.done(ctx, ns, key)
}

// ensure applies the retention window before the write that might create the key.
func (t *Tracker) ensure(ctx context.Context, ns counterstore.Namespace, key string, window time.Duration) error {
	return t.counters.EnsureRetention(ctx, ns, key, window)
}

func (t *Tracker) stamp(ctx context.Context, ns counterstore.Namespace, key string) {
	ms := strconv.FormatInt(t.now().UnixMilli(), 10)
	if err := t.counters.SetField(ctx, ns, key, counterstore.FieldLastInteracted, ms); err != nil {
		// Losing a timestamp is not worth failing the event for.
		t.logger.Warn().Err(err).Str("key", key).Msg("failed to stamp lastInteracted")
	}
}

func (t *Tracker) done(ctx context.Context, ns counterstore.Namespace, key string) {
	if err := t.counters.MarkDirty(ctx, ns, key); err != nil {
		t.fail(ns, key, err)
		return
	}
	metrics.TrackEventsTotal.WithLabelValues(string(ns)).Inc()
}

func (t *Tracker) fail(ns counterstore.Namespace, key string, err error) {
	metrics.TrackErrorsTotal.WithLabelValues(string(ns)).Inc()
	t.logger.Error().Err(err).Str("namespace", string(ns)).Str("key", key).Msg("interaction event dropped")
}
