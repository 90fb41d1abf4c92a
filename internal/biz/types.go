package biz

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Domain errors surfaced to the service layer.
var (
	ErrDuplicateRental    = errors.New("an active rental already exists for this owner and asset")
	ErrAssetNotFound      = errors.New("asset not found")
	ErrPackNotFound       = errors.New("pack not found or empty")
	ErrRentalNotFound     = errors.New("rental not found")
	ErrProgressOutOfRange = errors.New("progress seconds out of range")
	ErrNoIdentity         = errors.New("no stable identity")
)

// ActorKind discriminates the two owner shapes.
type ActorKind string

const (
	ActorUser      ActorKind = "user"
	ActorAnonymous ActorKind = "anon"
)

// Actor is the canonical identity owning rentals and watch progress: either
// an authenticated user or a signed anonymous identity, never both. The zero
// value means "no stable identity".
type Actor struct {
	Kind ActorKind
	ID   uuid.UUID
}

// UserActor builds an authenticated-user actor.
func UserActor(id uuid.UUID) Actor {
	return Actor{Kind: ActorUser, ID: id}
}

// AnonymousActor builds a signed-anonymous actor.
func AnonymousActor(id uuid.UUID) Actor {
	return Actor{Kind: ActorAnonymous, ID: id}
}

// IsZero reports whether no identity was resolved.
func (a Actor) IsZero() bool {
	return a.Kind == "" || a.ID == uuid.Nil
}

// String renders the owner key, e.g. "user:9f0c…" or "anon:1b2d…".
func (a Actor) String() string {
	if a.IsZero() {
		return "none"
	}
	return string(a.Kind) + ":" + a.ID.String()
}

// RentalState is derived from timestamps at read time; it is never persisted.
type RentalState string

const (
	RentalActive  RentalState = "active"
	RentalExpired RentalState = "expired"
	RentalLapsed  RentalState = "lapsed"
)

// Rental domain model. Exactly one of AssetID/PackID is set: a direct rental
// grants one asset, a pack rental grants every member of a pack.
type Rental struct {
	ID             string
	Owner          Actor
	AssetID        *string
	PackID         *string
	CurrentAssetID *string // resume pointer within a pack, nil for direct rentals
	PurchasedAt    time.Time
	ExpiresAt      time.Time
	TransactionID  string
	Amount         int64
	Currency       string
	PaymentMethod  string
}

// IsPack reports whether the rental grants a pack rather than a single asset.
func (r *Rental) IsPack() bool {
	return r.PackID != nil
}

// State derives the lifecycle phase from the clock.
func (r *Rental) State(now time.Time, grace time.Duration) RentalState {
	switch {
	case now.Before(r.ExpiresAt):
		return RentalActive
	case now.Before(r.ExpiresAt.Add(grace)):
		return RentalExpired
	default:
		return RentalLapsed
	}
}

// AccessType distinguishes how access was granted.
type AccessType string

const (
	AccessDirect AccessType = "direct"
	AccessPack   AccessType = "pack"
)

// AccessResult is the outcome of an entitlement check.
type AccessResult struct {
	HasAccess  bool
	AccessType AccessType
	Rental     *Rental
}

// RentalStatus distinguishes never-rented from rented-but-expired. Rental is
// set only while the rental is still active; an expired rental surfaces only
// through Expired/ExpiredAt.
type RentalStatus struct {
	Rental    *Rental
	Expired   bool
	ExpiredAt *time.Time
}

// PurchaseInput carries the already-verified payment confirmation fields.
// Amount and currency are opaque pass-through values.
type PurchaseInput struct {
	TransactionID string
	Amount        int64
	Currency      string
	PaymentMethod string
}

// WatchProgress is the authoritative per-(owner, asset) playback record.
type WatchProgress struct {
	Owner           Actor
	AssetID         string
	ProgressSeconds float64
	DurationSeconds float64
	Completed       bool
	LastWatchedAt   time.Time
}

// Percent returns the watched share in [0, 100].
func (p *WatchProgress) Percent() float64 {
	if p.DurationSeconds <= 0 {
		return 0
	}
	pct := p.ProgressSeconds / p.DurationSeconds * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// MigrationResult reports how many records changed hands.
type MigrationResult struct {
	MigratedRentals  int64
	MigratedProgress int64
}

// RentalRepo defines the repository interface for rentals.
type RentalRepo interface {
	// CreateRental persists a new rental. The active-slot check and the
	// insert must share one transaction; an overlapping active rental for
	// the same (owner, asset/pack) fails with ErrDuplicateRental.
	CreateRental(ctx context.Context, rental *Rental) error
	// FindActiveDirect returns the active direct rental for the pair, or
	// nil when none exists.
	FindActiveDirect(ctx context.Context, owner Actor, assetID string, now time.Time) (*Rental, error)
	// FindActivePacks returns all active pack rentals owned by the actor.
	FindActivePacks(ctx context.Context, owner Actor, now time.Time) ([]*Rental, error)
	// FindLatestDirect returns the most recent direct rental for the pair
	// regardless of expiry, or nil when the pair was never rented.
	FindLatestDirect(ctx context.Context, owner Actor, assetID string) (*Rental, error)
	// FindLatestPacks returns all pack rentals owned by the actor, newest
	// first, regardless of expiry.
	FindLatestPacks(ctx context.Context, owner Actor) ([]*Rental, error)
	// FindActivePack returns the active pack rental for (owner, packID), or
	// nil when none exists.
	FindActivePack(ctx context.Context, owner Actor, packID string, now time.Time) (*Rental, error)
	// SetCurrentAsset updates the resume pointer of a pack rental.
	SetCurrentAsset(ctx context.Context, rentalID, assetID string) error
	// ReassignOwner re-points every rental owned by from to to, returning
	// the number of rows moved.
	ReassignOwner(ctx context.Context, from, to Actor) (int64, error)
}

// ProgressRepo defines the repository interface for watch progress.
type ProgressRepo interface {
	// Upsert merges the write into the stored row: progress takes the
	// greater value, completed is sticky. Returns the merged row.
	Upsert(ctx context.Context, p *WatchProgress) (*WatchProgress, error)
	// Get returns the row for the pair, or nil when absent.
	Get(ctx context.Context, owner Actor, assetID string) (*WatchProgress, error)
	// ListContinueWatching returns incomplete rows with progress, most
	// recently watched first.
	ListContinueWatching(ctx context.Context, owner Actor) ([]*WatchProgress, error)
	// Delete removes the row for the pair.
	Delete(ctx context.Context, owner Actor, assetID string) error
	// MergeOwner re-points every row owned by from to to, merging into any
	// row to already holds for the same asset. Returns rows moved or merged.
	MergeOwner(ctx context.Context, from, to Actor) (int64, error)
}

// CatalogClient defines the interface to the external catalog collaborator.
type CatalogClient interface {
	AssetExists(ctx context.Context, assetID string) (bool, error)
	PackMembers(ctx context.Context, packID string) ([]string, error)
}

// Transaction runs fn inside a single storage transaction; repository calls
// made with the derived context join it.
type Transaction interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
