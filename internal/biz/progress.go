package biz

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

// completionThreshold marks a viewing as finished once progress reaches 90%
// of the asset duration.
const completionThreshold = 0.9

// ProgressUseCase owns the authoritative watch-progress records. Writes are
// merged, never overwritten: progress only moves forward and completion is
// sticky, which makes concurrent full-state upserts from multiple devices
// commutative and idempotent.
type ProgressUseCase struct {
	progress ProgressRepo
	rentals  RentalRepo
	now      func() time.Time
	log      *log.Helper
}

// NewProgressUseCase creates a new ProgressUseCase instance.
func NewProgressUseCase(progress ProgressRepo, rentals RentalRepo, logger log.Logger) *ProgressUseCase {
	return &ProgressUseCase{
		progress: progress,
		rentals:  rentals,
		now:      time.Now,
		log:      log.NewHelper(logger),
	}
}

// Upsert records a playback flush. progressSeconds is clamped to
// [0, durationSeconds]; NaN or negative input is rejected. Completion is
// detected here (>= 90% of duration) in addition to an explicit completed
// flag from the client.
//
// Entitlement is deliberately not enforced on this path: a viewer finishing
// inside the grace window must still be able to save progress. Access
// control lives where playback URLs are issued.
func (uc *ProgressUseCase) Upsert(ctx context.Context, actor Actor, assetID string, progressSeconds, durationSeconds float64, completed bool) (*WatchProgress, error) {
	if actor.IsZero() {
		return nil, ErrNoIdentity
	}
	if math.IsNaN(progressSeconds) || math.IsInf(progressSeconds, 0) || progressSeconds < 0 {
		return nil, ErrProgressOutOfRange
	}
	if math.IsNaN(durationSeconds) || math.IsInf(durationSeconds, 0) || durationSeconds < 0 {
		return nil, ErrProgressOutOfRange
	}
	if durationSeconds > 0 && progressSeconds > durationSeconds {
		progressSeconds = durationSeconds
	}
	if durationSeconds > 0 && progressSeconds >= durationSeconds*completionThreshold {
		completed = true
	}

	if active, err := uc.rentals.FindActiveDirect(ctx, actor, assetID, uc.now()); err == nil && active == nil {
		// Observability for the write-without-validation policy, not a gate.
		uc.log.Debugf("progress write for %s on asset %s without an active direct rental", actor, assetID)
	}

	merged, err := uc.progress.Upsert(ctx, &WatchProgress{
		Owner:           actor,
		AssetID:         assetID,
		ProgressSeconds: progressSeconds,
		DurationSeconds: durationSeconds,
		Completed:       completed,
		LastWatchedAt:   uc.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert watch progress: %w", err)
	}
	return merged, nil
}

// Get returns the progress row for the pair, or nil when nothing was
// recorded yet.
func (uc *ProgressUseCase) Get(ctx context.Context, actor Actor, assetID string) (*WatchProgress, error) {
	if actor.IsZero() {
		return nil, ErrNoIdentity
	}
	return uc.progress.Get(ctx, actor, assetID)
}

// GetContinueWatching returns the actor's unfinished viewings, most recently
// watched first. Paging is left to the transport.
func (uc *ProgressUseCase) GetContinueWatching(ctx context.Context, actor Actor) ([]*WatchProgress, error) {
	if actor.IsZero() {
		return nil, ErrNoIdentity
	}
	return uc.progress.ListContinueWatching(ctx, actor)
}

// Delete removes the progress row for the pair. This is the only way stored
// progress may go backwards.
func (uc *ProgressUseCase) Delete(ctx context.Context, actor Actor, assetID string) error {
	if actor.IsZero() {
		return ErrNoIdentity
	}
	return uc.progress.Delete(ctx, actor, assetID)
}
