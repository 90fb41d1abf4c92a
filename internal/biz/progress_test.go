package biz

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProgressTestCase() (*ProgressUseCase, *time.Time) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	uc := NewProgressUseCase(newFakeProgressRepo(), &fakeRentalRepo{}, testLogger())
	uc.now = func() time.Time { return clock }
	return uc, &clock
}

func TestUpsertProgressValidation(t *testing.T) {
	ctx := context.Background()
	actor := UserActor(uuid.New())
	uc, _ := newProgressTestCase()

	_, err := uc.Upsert(ctx, Actor{}, "movie-1", 10, 3600, false)
	assert.ErrorIs(t, err, ErrNoIdentity)

	_, err = uc.Upsert(ctx, actor, "movie-1", -1, 3600, false)
	assert.ErrorIs(t, err, ErrProgressOutOfRange)

	_, err = uc.Upsert(ctx, actor, "movie-1", math.NaN(), 3600, false)
	assert.ErrorIs(t, err, ErrProgressOutOfRange)

	_, err = uc.Upsert(ctx, actor, "movie-1", math.Inf(1), 3600, false)
	assert.ErrorIs(t, err, ErrProgressOutOfRange)

	_, err = uc.Upsert(ctx, actor, "movie-1", 10, math.NaN(), false)
	assert.ErrorIs(t, err, ErrProgressOutOfRange)
}

func TestUpsertProgressClampsToDuration(t *testing.T) {
	ctx := context.Background()
	actor := UserActor(uuid.New())
	uc, _ := newProgressTestCase()

	row, err := uc.Upsert(ctx, actor, "movie-1", 4000, 3600, false)
	require.NoError(t, err)
	assert.Equal(t, float64(3600), row.ProgressSeconds)
	assert.True(t, row.Completed)
}

func TestUpsertProgressAutoCompletesAtNinetyPercent(t *testing.T) {
	ctx := context.Background()
	actor := UserActor(uuid.New())
	uc, _ := newProgressTestCase()

	row, err := uc.Upsert(ctx, actor, "movie-1", 3239, 3600, false)
	require.NoError(t, err)
	assert.False(t, row.Completed)

	row, err = uc.Upsert(ctx, actor, "movie-1", 3240, 3600, false)
	require.NoError(t, err)
	assert.True(t, row.Completed)
	assert.InDelta(t, 90, row.Percent(), 0.01)
}

func TestUpsertProgressNeverRegresses(t *testing.T) {
	ctx := context.Background()
	actor := UserActor(uuid.New())
	uc, _ := newProgressTestCase()

	row, err := uc.Upsert(ctx, actor, "movie-1", 3600, 3600, false)
	require.NoError(t, err)
	assert.True(t, row.Completed)

	// A stale device flushing an earlier position must not move anything
	// backwards: progress keeps the greater value and completed stays set.
	row, err = uc.Upsert(ctx, actor, "movie-1", 3000, 3600, false)
	require.NoError(t, err)
	assert.Equal(t, float64(3600), row.ProgressSeconds)
	assert.True(t, row.Completed)

	// Out-of-order flushes in either direction land on the same row.
	row, err = uc.Upsert(ctx, actor, "movie-1", 100, 3600, false)
	require.NoError(t, err)
	assert.Equal(t, float64(3600), row.ProgressSeconds)
}

func TestContinueWatchingOrderingAndFilter(t *testing.T) {
	ctx := context.Background()
	actor := UserActor(uuid.New())
	uc, clock := newProgressTestCase()

	_, err := uc.Upsert(ctx, actor, "movie-1", 100, 3600, false)
	require.NoError(t, err)
	*clock = clock.Add(time.Minute)
	_, err = uc.Upsert(ctx, actor, "movie-2", 200, 3600, false)
	require.NoError(t, err)
	*clock = clock.Add(time.Minute)
	_, err = uc.Upsert(ctx, actor, "movie-3", 3500, 3600, false) // completed
	require.NoError(t, err)

	list, err := uc.GetContinueWatching(ctx, actor)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "movie-2", list[0].AssetID)
	assert.Equal(t, "movie-1", list[1].AssetID)
}

func TestDeleteProgressIsTheOnlyWayBack(t *testing.T) {
	ctx := context.Background()
	actor := UserActor(uuid.New())
	uc, _ := newProgressTestCase()

	_, err := uc.Upsert(ctx, actor, "movie-1", 500, 3600, false)
	require.NoError(t, err)

	require.NoError(t, uc.Delete(ctx, actor, "movie-1"))
	row, err := uc.Get(ctx, actor, "movie-1")
	require.NoError(t, err)
	assert.Nil(t, row)

	// A fresh write after delete starts from scratch.
	row, err = uc.Upsert(ctx, actor, "movie-1", 10, 3600, false)
	require.NoError(t, err)
	assert.Equal(t, float64(10), row.ProgressSeconds)
}

func TestProgressIsolatedPerOwner(t *testing.T) {
	ctx := context.Background()
	user := UserActor(uuid.New())
	anon := AnonymousActor(uuid.New())
	uc, _ := newProgressTestCase()

	_, err := uc.Upsert(ctx, user, "movie-1", 500, 3600, false)
	require.NoError(t, err)

	row, err := uc.Get(ctx, anon, "movie-1")
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestWatchProgressPercent(t *testing.T) {
	p := &WatchProgress{ProgressSeconds: 900, DurationSeconds: 3600}
	assert.InDelta(t, 25, p.Percent(), 0.01)

	// Unknown duration yields zero rather than dividing by it.
	p = &WatchProgress{ProgressSeconds: 900}
	assert.Zero(t, p.Percent())

	p = &WatchProgress{ProgressSeconds: 4000, DurationSeconds: 3600}
	assert.Equal(t, float64(100), p.Percent())
}
