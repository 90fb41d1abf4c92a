package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/reelvault/reelvault/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const progressCacheTTL = 15 * time.Minute

type progressRepo struct {
	data *Data
	log  *log.Helper
}

// NewProgressRepo creates a new watch-progress repository
func NewProgressRepo(data *Data, logger log.Logger) biz.ProgressRepo {
	return &progressRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

// Upsert merges the write into the stored row in a single statement:
// progress_seconds takes GREATEST, completed is OR-ed. Because the merge is
// commutative and idempotent, concurrent writers from multiple devices need
// no locking and reordered flushes are harmless.
func (r *progressRepo) Upsert(ctx context.Context, p *biz.WatchProgress) (*biz.WatchProgress, error) {
	ownerType, ownerID := ownerColumns(p.Owner)

	rowID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate progress ID: %w", err)
	}
	dbRow := &WatchProgress{
		ID:              rowID.String(),
		OwnerType:       ownerType,
		OwnerID:         ownerID,
		AssetID:         p.AssetID,
		ProgressSeconds: p.ProgressSeconds,
		DurationSeconds: p.DurationSeconds,
		Completed:       p.Completed,
		LastWatchedAt:   p.LastWatchedAt,
	}

	err = r.data.DB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner_type"}, {Name: "owner_id"}, {Name: "asset_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"progress_seconds": gorm.Expr("GREATEST(watch_progress.progress_seconds, EXCLUDED.progress_seconds)"),
			"completed":        gorm.Expr("watch_progress.completed OR EXCLUDED.completed"),
			"duration_seconds": gorm.Expr("GREATEST(watch_progress.duration_seconds, EXCLUDED.duration_seconds)"),
			"last_watched_at":  gorm.Expr("GREATEST(watch_progress.last_watched_at, EXCLUDED.last_watched_at)"),
			"updated_at":       gorm.Expr("NOW()"),
		}),
	}).Create(dbRow).Error
	if err != nil {
		return nil, fmt.Errorf("failed to upsert watch progress: %w", err)
	}

	// Invalidate the row cache; the merged values live in the database.
	if r.data.rdb != nil {
		r.data.rdb.Del(ctx, progressCacheKey(ownerType, ownerID, p.AssetID))
	}

	// Re-read so the caller sees the merged row, not the proposed write.
	return r.Get(ctx, p.Owner, p.AssetID)
}

func (r *progressRepo) Get(ctx context.Context, owner biz.Actor, assetID string) (*biz.WatchProgress, error) {
	ownerType, ownerID := ownerColumns(owner)

	// Try cache first if Redis is available
	if r.data.rdb != nil {
		cached, err := r.data.rdb.Get(ctx, progressCacheKey(ownerType, ownerID, assetID)).Result()
		if err == nil {
			var p biz.WatchProgress
			if err := json.Unmarshal([]byte(cached), &p); err == nil {
				r.log.Debugf("cache hit for progress %s:%s", owner, assetID)
				return &p, nil
			}
		}
	}

	var dbRow WatchProgress
	err := r.data.DB(ctx).
		Where("owner_type = ? AND owner_id = ? AND asset_id = ?", ownerType, ownerID, assetID).
		First(&dbRow).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query watch progress: %w", err)
	}

	p := modelToProgress(&dbRow)

	// Cache result if Redis is available
	if r.data.rdb != nil {
		if data, err := json.Marshal(p); err == nil {
			r.data.rdb.Set(ctx, progressCacheKey(ownerType, ownerID, assetID), data, progressCacheTTL)
		}
	}

	return p, nil
}

func (r *progressRepo) ListContinueWatching(ctx context.Context, owner biz.Actor) ([]*biz.WatchProgress, error) {
	ownerType, ownerID := ownerColumns(owner)

	var dbRows []WatchProgress
	err := r.data.DB(ctx).
		Where("owner_type = ? AND owner_id = ? AND completed = ? AND progress_seconds > 0", ownerType, ownerID, false).
		Order("last_watched_at DESC").
		Find(&dbRows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query continue watching: %w", err)
	}

	items := make([]*biz.WatchProgress, 0, len(dbRows))
	for i := range dbRows {
		items = append(items, modelToProgress(&dbRows[i]))
	}
	return items, nil
}

func (r *progressRepo) Delete(ctx context.Context, owner biz.Actor, assetID string) error {
	ownerType, ownerID := ownerColumns(owner)

	err := r.data.DB(ctx).
		Where("owner_type = ? AND owner_id = ? AND asset_id = ?", ownerType, ownerID, assetID).
		Delete(&WatchProgress{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete watch progress: %w", err)
	}

	if r.data.rdb != nil {
		r.data.rdb.Del(ctx, progressCacheKey(ownerType, ownerID, assetID))
	}
	return nil
}

// MergeOwner re-points every row of from to to. When to already holds a row
// for the same asset the two are merged (GREATEST seconds, OR completed,
// latest watch time) and the source row is removed, so a viewer who watched
// further while logged in never loses the deeper position.
func (r *progressRepo) MergeOwner(ctx context.Context, from, to biz.Actor) (int64, error) {
	fromType, fromID := ownerColumns(from)
	toType, toID := ownerColumns(to)

	var srcRows []WatchProgress
	if err := r.data.DB(ctx).
		Where("owner_type = ? AND owner_id = ?", fromType, fromID).
		Find(&srcRows).Error; err != nil {
		return 0, fmt.Errorf("failed to list source progress: %w", err)
	}

	var moved int64
	for i := range srcRows {
		src := &srcRows[i]

		var dst WatchProgress
		err := r.data.DB(ctx).
			Where("owner_type = ? AND owner_id = ? AND asset_id = ?", toType, toID, src.AssetID).
			First(&dst).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// No conflict: re-point the row directly.
			result := r.data.DB(ctx).
				Model(&WatchProgress{}).
				Where("id = ?", src.ID).
				Updates(map[string]interface{}{
					"owner_type": toType,
					"owner_id":   toID,
				})
			if result.Error != nil {
				return 0, fmt.Errorf("failed to re-point progress row: %w", result.Error)
			}
		case err != nil:
			return 0, fmt.Errorf("failed to query target progress: %w", err)
		default:
			updates := map[string]interface{}{
				"progress_seconds": maxFloat(dst.ProgressSeconds, src.ProgressSeconds),
				"duration_seconds": maxFloat(dst.DurationSeconds, src.DurationSeconds),
				"completed":        dst.Completed || src.Completed,
			}
			if src.LastWatchedAt.After(dst.LastWatchedAt) {
				updates["last_watched_at"] = src.LastWatchedAt
			}
			if err := r.data.DB(ctx).
				Model(&WatchProgress{}).
				Where("id = ?", dst.ID).
				Updates(updates).Error; err != nil {
				return 0, fmt.Errorf("failed to merge progress row: %w", err)
			}
			if err := r.data.DB(ctx).Delete(&WatchProgress{}, "id = ?", src.ID).Error; err != nil {
				return 0, fmt.Errorf("failed to remove merged source row: %w", err)
			}
		}
		moved++

		if r.data.rdb != nil {
			r.data.rdb.Del(ctx,
				progressCacheKey(fromType, fromID, src.AssetID),
				progressCacheKey(toType, toID, src.AssetID),
			)
		}
	}

	return moved, nil
}

func progressCacheKey(ownerType, ownerID, assetID string) string {
	return fmt.Sprintf("progress:%s:%s:%s", ownerType, ownerID, assetID)
}

func modelToProgress(dbRow *WatchProgress) *biz.WatchProgress {
	return &biz.WatchProgress{
		Owner:           ownerActor(dbRow.OwnerType, dbRow.OwnerID),
		AssetID:         dbRow.AssetID,
		ProgressSeconds: dbRow.ProgressSeconds,
		DurationSeconds: dbRow.DurationSeconds,
		Completed:       dbRow.Completed,
		LastWatchedAt:   dbRow.LastWatchedAt,
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
