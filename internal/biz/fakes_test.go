package biz

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
)

func testLogger() log.Logger {
	return log.NewStdLogger(discard{})
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// fakeRentalRepo is an in-memory RentalRepo sufficient for use case tests.
type fakeRentalRepo struct {
	mu      sync.Mutex
	rentals []*Rental
}

func (f *fakeRentalRepo) CreateRental(_ context.Context, rental *Rental) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rental
	f.rentals = append(f.rentals, &cp)
	return nil
}

func (f *fakeRentalRepo) FindActiveDirect(_ context.Context, owner Actor, assetID string, now time.Time) (*Rental, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *Rental
	for _, r := range f.rentals {
		if r.Owner != owner || r.AssetID == nil || *r.AssetID != assetID {
			continue
		}
		if !now.Before(r.ExpiresAt) {
			continue
		}
		if latest == nil || r.PurchasedAt.After(latest.PurchasedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeRentalRepo) FindActivePacks(_ context.Context, owner Actor, now time.Time) ([]*Rental, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Rental
	for _, r := range f.rentals {
		if r.Owner == owner && r.PackID != nil && now.Before(r.ExpiresAt) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRentalRepo) FindLatestDirect(_ context.Context, owner Actor, assetID string) (*Rental, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *Rental
	for _, r := range f.rentals {
		if r.Owner != owner || r.AssetID == nil || *r.AssetID != assetID {
			continue
		}
		if latest == nil || r.PurchasedAt.After(latest.PurchasedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeRentalRepo) FindLatestPacks(_ context.Context, owner Actor) ([]*Rental, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Rental
	for _, r := range f.rentals {
		if r.Owner == owner && r.PackID != nil {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchasedAt.After(out[j].PurchasedAt) })
	return out, nil
}

func (f *fakeRentalRepo) FindActivePack(_ context.Context, owner Actor, packID string, now time.Time) (*Rental, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rentals {
		if r.Owner == owner && r.PackID != nil && *r.PackID == packID && now.Before(r.ExpiresAt) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRentalRepo) SetCurrentAsset(_ context.Context, rentalID, assetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rentals {
		if r.ID == rentalID {
			id := assetID
			r.CurrentAssetID = &id
			return nil
		}
	}
	return ErrRentalNotFound
}

func (f *fakeRentalRepo) ReassignOwner(_ context.Context, from, to Actor) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var moved int64
	for _, r := range f.rentals {
		if r.Owner == from {
			r.Owner = to
			moved++
		}
	}
	return moved, nil
}

func (f *fakeRentalRepo) snapshot() []*Rental {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Rental, len(f.rentals))
	for i, r := range f.rentals {
		cp := *r
		out[i] = &cp
	}
	return out
}

func (f *fakeRentalRepo) restore(snap []*Rental) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rentals = snap
}

// fakeProgressRepo mirrors the merge semantics of the real store: progress
// takes the greater value, completed is sticky, timestamps take the later.
type fakeProgressRepo struct {
	mu       sync.Mutex
	rows     map[Actor]map[string]*WatchProgress
	mergeErr error
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{rows: make(map[Actor]map[string]*WatchProgress)}
}

func (f *fakeProgressRepo) Upsert(_ context.Context, p *WatchProgress) (*WatchProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byAsset := f.rows[p.Owner]
	if byAsset == nil {
		byAsset = make(map[string]*WatchProgress)
		f.rows[p.Owner] = byAsset
	}
	existing, ok := byAsset[p.AssetID]
	if !ok {
		cp := *p
		byAsset[p.AssetID] = &cp
		merged := cp
		return &merged, nil
	}
	if p.ProgressSeconds > existing.ProgressSeconds {
		existing.ProgressSeconds = p.ProgressSeconds
	}
	existing.Completed = existing.Completed || p.Completed
	existing.DurationSeconds = p.DurationSeconds
	if p.LastWatchedAt.After(existing.LastWatchedAt) {
		existing.LastWatchedAt = p.LastWatchedAt
	}
	merged := *existing
	return &merged, nil
}

func (f *fakeProgressRepo) Get(_ context.Context, owner Actor, assetID string) (*WatchProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if row, ok := f.rows[owner][assetID]; ok {
		cp := *row
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeProgressRepo) ListContinueWatching(_ context.Context, owner Actor) ([]*WatchProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*WatchProgress
	for _, row := range f.rows[owner] {
		if !row.Completed && row.ProgressSeconds > 0 {
			cp := *row
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastWatchedAt.After(out[j].LastWatchedAt) })
	return out, nil
}

func (f *fakeProgressRepo) Delete(_ context.Context, owner Actor, assetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows[owner], assetID)
	return nil
}

func (f *fakeProgressRepo) MergeOwner(_ context.Context, from, to Actor) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mergeErr != nil {
		return 0, f.mergeErr
	}
	var merged int64
	target := f.rows[to]
	if target == nil {
		target = make(map[string]*WatchProgress)
		f.rows[to] = target
	}
	for assetID, src := range f.rows[from] {
		if dst, ok := target[assetID]; ok {
			if src.ProgressSeconds > dst.ProgressSeconds {
				dst.ProgressSeconds = src.ProgressSeconds
			}
			dst.Completed = dst.Completed || src.Completed
			if src.LastWatchedAt.After(dst.LastWatchedAt) {
				dst.LastWatchedAt = src.LastWatchedAt
			}
		} else {
			cp := *src
			cp.Owner = to
			target[assetID] = &cp
		}
		merged++
	}
	delete(f.rows, from)
	return merged, nil
}

// fakeCatalog serves a static asset set and pack membership.
type fakeCatalog struct {
	assets map[string]bool
	packs  map[string][]string
	err    error
}

func (f *fakeCatalog) AssetExists(_ context.Context, assetID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.assets[assetID], nil
}

func (f *fakeCatalog) PackMembers(_ context.Context, packID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.packs[packID], nil
}

// fakeTx runs fn directly. When begin is set it captures a snapshot first and
// rolls it back on error, which lets tests observe transactional atomicity.
type fakeTx struct {
	begin func() (rollback func())
}

func (t *fakeTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	var rollback func()
	if t.begin != nil {
		rollback = t.begin()
	}
	if err := fn(ctx); err != nil {
		if rollback != nil {
			rollback()
		}
		return err
	}
	return nil
}
