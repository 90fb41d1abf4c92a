package service

import (
	"context"
	"time"

	"github.com/reelvault/reelvault/internal/biz"
)

// ProgressService exposes the watch-progress operations.
type ProgressService struct {
	progress *biz.ProgressUseCase
}

// NewProgressService creates a new ProgressService
func NewProgressService(progress *biz.ProgressUseCase) *ProgressService {
	return &ProgressService{progress: progress}
}

// ProgressPayload is the transport shape of a watch-progress record.
type ProgressPayload struct {
	AssetID         string  `json:"assetId"`
	ProgressSeconds float64 `json:"progressSeconds"`
	DurationSeconds float64 `json:"durationSeconds"`
	Percent         float64 `json:"percent"`
	Completed       bool    `json:"completed"`
	LastWatchedAt   string  `json:"lastWatchedAt"`
}

// UpsertProgressRequest is the full-state flush sent by clients. Clients
// always send accumulated totals rather than deltas so reordered or repeated
// flushes are harmless.
type UpsertProgressRequest struct {
	AssetID         string  `json:"assetId"`
	ProgressSeconds float64 `json:"progressSeconds"`
	DurationSeconds float64 `json:"durationSeconds"`
	Completed       bool    `json:"completed"`
}

// Upsert merges a playback flush into the stored record.
func (s *ProgressService) Upsert(ctx context.Context, req *UpsertProgressRequest) (*ProgressPayload, error) {
	actor := biz.ActorFromContext(ctx)
	merged, err := s.progress.Upsert(ctx, actor, req.AssetID, req.ProgressSeconds, req.DurationSeconds, req.Completed)
	if err != nil {
		return nil, toAPIError(err)
	}
	return progressToPayload(merged), nil
}

// GetProgressRequest identifies the asset to read.
type GetProgressRequest struct {
	AssetID string `json:"assetId"`
}

// Get returns the stored record, or an empty record when nothing was saved.
func (s *ProgressService) Get(ctx context.Context, req *GetProgressRequest) (*ProgressPayload, error) {
	actor := biz.ActorFromContext(ctx)
	p, err := s.progress.Get(ctx, actor, req.AssetID)
	if err != nil {
		return nil, toAPIError(err)
	}
	if p == nil {
		return &ProgressPayload{AssetID: req.AssetID}, nil
	}
	return progressToPayload(p), nil
}

// ContinueWatchingReply lists unfinished viewings, most recent first.
type ContinueWatchingReply struct {
	Items []*ProgressPayload `json:"items"`
}

// ContinueWatching lists the actor's unfinished viewings.
func (s *ProgressService) ContinueWatching(ctx context.Context) (*ContinueWatchingReply, error) {
	actor := biz.ActorFromContext(ctx)
	items, err := s.progress.GetContinueWatching(ctx, actor)
	if err != nil {
		return nil, toAPIError(err)
	}
	reply := &ContinueWatchingReply{Items: make([]*ProgressPayload, 0, len(items))}
	for _, p := range items {
		reply.Items = append(reply.Items, progressToPayload(p))
	}
	return reply, nil
}

// DeleteProgressReply acknowledges a deletion.
type DeleteProgressReply struct {
	Deleted bool `json:"deleted"`
}

// Delete removes the stored record for the asset.
func (s *ProgressService) Delete(ctx context.Context, req *GetProgressRequest) (*DeleteProgressReply, error) {
	actor := biz.ActorFromContext(ctx)
	if err := s.progress.Delete(ctx, actor, req.AssetID); err != nil {
		return nil, toAPIError(err)
	}
	return &DeleteProgressReply{Deleted: true}, nil
}

func progressToPayload(p *biz.WatchProgress) *ProgressPayload {
	return &ProgressPayload{
		AssetID:         p.AssetID,
		ProgressSeconds: p.ProgressSeconds,
		DurationSeconds: p.DurationSeconds,
		Percent:         p.Percent(),
		Completed:       p.Completed,
		LastWatchedAt:   p.LastWatchedAt.UTC().Format(time.RFC3339),
	}
}
