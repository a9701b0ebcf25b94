package reconciler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/canadian-bazar/buyer-analytics/pkg/counterstore"
)

// TestLikesDrainCreatesRow tests the like path end to end
func TestLikesDrainCreatesRow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	productID := primitive.NewObjectID().Hex()
	buyerID := primitive.NewObjectID().Hex()

	f.tracker.TrackLike(ctx, productID, buyerID)

	r := NewLikesReconciler(f.counters, f.store)
	require.NoError(t, r.Run(ctx))

	liked, err := f.store.IsLiked(ctx, productID, buyerID)
	require.NoError(t, err)
	assert.True(t, liked)

	// The buffered record is gone either way.
	fields, err := f.counters.ReadAll(ctx, counterstore.NamespaceLike, counterstore.Key(productID, buyerID))
	require.NoError(t, err)
	assert.Empty(t, fields)
}

// TestLikeThenDislikeNetsToNothing verifies a toggle inside one batch window
// leaves no durable row
func TestLikeThenDislikeNetsToNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	productID := primitive.NewObjectID().Hex()
	buyerID := primitive.NewObjectID().Hex()

	f.tracker.TrackLike(ctx, productID, buyerID)
	f.tracker.TrackDislike(ctx, productID, buyerID)

	r := NewLikesReconciler(f.counters, f.store)
	require.NoError(t, r.Run(ctx))

	liked, err := f.store.IsLiked(ctx, productID, buyerID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Zero(t, f.store.LikeCount())
}

// TestDislikeThenLikeWins verifies the opposite toggle order lands liked
func TestDislikeThenLikeWins(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	productID := primitive.NewObjectID().Hex()
	buyerID := primitive.NewObjectID().Hex()

	f.tracker.TrackDislike(ctx, productID, buyerID)
	f.tracker.TrackLike(ctx, productID, buyerID)

	r := NewLikesReconciler(f.counters, f.store)
	require.NoError(t, r.Run(ctx))

	liked, err := f.store.IsLiked(ctx, productID, buyerID)
	require.NoError(t, err)
	assert.True(t, liked)
}

// TestDislikeRemovesDurableRow verifies a dislike deletes a previously
// reconciled like
func TestDislikeRemovesDurableRow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	productID := primitive.NewObjectID().Hex()
	buyerID := primitive.NewObjectID().Hex()

	r := NewLikesReconciler(f.counters, f.store)

	f.tracker.TrackLike(ctx, productID, buyerID)
	require.NoError(t, r.Run(ctx))
	require.Equal(t, 1, f.store.LikeCount())

	f.tracker.TrackDislike(ctx, productID, buyerID)
	require.NoError(t, r.Run(ctx))

	liked, err := f.store.IsLiked(ctx, productID, buyerID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Zero(t, f.store.LikeCount())
}

// TestLikeStateOverlay verifies reads see the buffered state before the
// batch runs and the durable state afterwards
func TestLikeStateOverlay(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	productID := primitive.NewObjectID().Hex()
	buyerID := primitive.NewObjectID().Hex()

	f.tracker.TrackLike(ctx, productID, buyerID)

	liked, err := f.tracker.LikeState(ctx, productID, buyerID)
	require.NoError(t, err)
	assert.True(t, liked, "buffered like must be visible before reconciliation")

	r := NewLikesReconciler(f.counters, f.store)
	require.NoError(t, r.Run(ctx))

	liked, err = f.tracker.LikeState(ctx, productID, buyerID)
	require.NoError(t, err)
	assert.True(t, liked, "durable like must be visible after reconciliation")

	f.tracker.TrackDislike(ctx, productID, buyerID)
	liked, err = f.tracker.LikeState(ctx, productID, buyerID)
	require.NoError(t, err)
	assert.False(t, liked, "buffered dislike must overlay the durable row")
}

// TestLikesDrainSkipsMalformedKeys verifies garbage keys are discarded
// without blocking the batch
func TestLikesDrainSkipsMalformedKeys(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.counters.SetField(ctx, counterstore.NamespaceLike, "garbage", counterstore.FieldType, counterstore.TypeLike))
	require.NoError(t, f.counters.MarkDirty(ctx, counterstore.NamespaceLike, "garbage"))

	r := NewLikesReconciler(f.counters, f.store)
	require.NoError(t, r.Run(ctx))

	assert.Zero(t, f.store.LikeCount())
	fields, err := f.counters.ReadAll(ctx, counterstore.NamespaceLike, "garbage")
	require.NoError(t, err)
	assert.Empty(t, fields)
}
