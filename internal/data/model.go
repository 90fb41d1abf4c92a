package data

import (
	"time"

	"github.com/google/uuid"

	"github.com/reelvault/reelvault/internal/biz"
)

// Rental represents the rentals table. The owner is stored as a tagged pair
// (owner_type, owner_id); the check constraints keep the union honest at the
// storage layer: a row is owned by exactly one identity shape and grants
// exactly one of asset/pack. At-most-one-active-rental per (owner, asset) is
// not expressible as a static index, so it is enforced by check-then-insert
// inside a transaction (see rentalRepo.CreateRental).
type Rental struct {
	ID             string  `gorm:"primaryKey;size:36"`
	OwnerType      string  `gorm:"not null;size:10;index:idx_rentals_owner,priority:1;check:chk_rentals_owner_type,owner_type IN ('user','anon')"`
	OwnerID        string  `gorm:"not null;size:36;index:idx_rentals_owner,priority:2"`
	AssetID        *string `gorm:"size:64;index:idx_rentals_asset;check:chk_rentals_grant,(asset_id IS NULL) <> (pack_id IS NULL)"`
	PackID         *string `gorm:"size:64;index:idx_rentals_pack"`
	CurrentAssetID *string `gorm:"size:64"`
	PurchasedAt    time.Time
	ExpiresAt      time.Time `gorm:"not null;index:idx_rentals_expires;check:chk_rentals_window,expires_at > purchased_at"`
	TransactionID  string    `gorm:"not null;uniqueIndex:uq_rentals_transaction;size:128"`
	Amount         int64     `gorm:"not null"`
	Currency       string    `gorm:"not null;size:10"`
	PaymentMethod  string    `gorm:"size:50"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the table name
func (Rental) TableName() string {
	return "rentals"
}

// WatchProgress represents the watch_progress table, one row per
// (owner, asset). Rows are re-owned by migration, never duplicated.
type WatchProgress struct {
	ID              string  `gorm:"primaryKey;size:36"`
	OwnerType       string  `gorm:"not null;size:10;uniqueIndex:uq_progress_owner_asset,priority:1;check:chk_progress_owner_type,owner_type IN ('user','anon')"`
	OwnerID         string  `gorm:"not null;size:36;uniqueIndex:uq_progress_owner_asset,priority:2"`
	AssetID         string  `gorm:"not null;size:64;uniqueIndex:uq_progress_owner_asset,priority:3"`
	ProgressSeconds float64 `gorm:"not null;default:0;check:chk_progress_seconds,progress_seconds >= 0"`
	DurationSeconds float64 `gorm:"not null;default:0"`
	Completed       bool    `gorm:"not null;default:false"`
	LastWatchedAt   time.Time `gorm:"not null;index:idx_progress_last_watched"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the table name
func (WatchProgress) TableName() string {
	return "watch_progress"
}

// ownerColumns splits an actor into its storage representation.
func ownerColumns(actor biz.Actor) (string, string) {
	return string(actor.Kind), actor.ID.String()
}

// ownerActor rebuilds the actor from its storage representation. Unparseable
// rows yield the zero actor rather than a panic.
func ownerActor(ownerType, ownerID string) biz.Actor {
	id, err := uuid.Parse(ownerID)
	if err != nil {
		return biz.Actor{}
	}
	return biz.Actor{Kind: biz.ActorKind(ownerType), ID: id}
}
