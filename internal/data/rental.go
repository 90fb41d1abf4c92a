package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reelvault/reelvault/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

type rentalRepo struct {
	data *Data
	log  *log.Helper
}

// NewRentalRepo creates a new rental repository
func NewRentalRepo(data *Data, logger log.Logger) biz.RentalRepo {
	return &rentalRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (r *rentalRepo) CreateRental(ctx context.Context, rental *biz.Rental) error {
	dbRental := r.bizToModel(rental)

	if err := r.data.DB(ctx).Create(dbRental).Error; err != nil {
		// The partial-unique "one active rental per pair" cannot be a static
		// index; the transaction_id unique still catches payment replays.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return biz.ErrDuplicateRental
		}
		return fmt.Errorf("failed to create rental: %w", err)
	}
	return nil
}

func (r *rentalRepo) FindActiveDirect(ctx context.Context, owner biz.Actor, assetID string, now time.Time) (*biz.Rental, error) {
	ownerType, ownerID := ownerColumns(owner)

	var dbRental Rental
	err := r.data.DB(ctx).
		Where("owner_type = ? AND owner_id = ? AND asset_id = ? AND expires_at > ?", ownerType, ownerID, assetID, now).
		Order("expires_at DESC").
		First(&dbRental).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active rental: %w", err)
	}
	return r.modelToBiz(&dbRental), nil
}

func (r *rentalRepo) FindActivePacks(ctx context.Context, owner biz.Actor, now time.Time) ([]*biz.Rental, error) {
	ownerType, ownerID := ownerColumns(owner)

	var dbRentals []Rental
	err := r.data.DB(ctx).
		Where("owner_type = ? AND owner_id = ? AND pack_id IS NOT NULL AND expires_at > ?", ownerType, ownerID, now).
		Order("expires_at DESC").
		Find(&dbRentals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query active pack rentals: %w", err)
	}
	return r.modelsToBiz(dbRentals), nil
}

func (r *rentalRepo) FindLatestDirect(ctx context.Context, owner biz.Actor, assetID string) (*biz.Rental, error) {
	ownerType, ownerID := ownerColumns(owner)

	var dbRental Rental
	err := r.data.DB(ctx).
		Where("owner_type = ? AND owner_id = ? AND asset_id = ?", ownerType, ownerID, assetID).
		Order("expires_at DESC").
		First(&dbRental).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query rental history: %w", err)
	}
	return r.modelToBiz(&dbRental), nil
}

func (r *rentalRepo) FindLatestPacks(ctx context.Context, owner biz.Actor) ([]*biz.Rental, error) {
	ownerType, ownerID := ownerColumns(owner)

	var dbRentals []Rental
	err := r.data.DB(ctx).
		Where("owner_type = ? AND owner_id = ? AND pack_id IS NOT NULL", ownerType, ownerID).
		Order("expires_at DESC").
		Find(&dbRentals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query pack rental history: %w", err)
	}
	return r.modelsToBiz(dbRentals), nil
}

func (r *rentalRepo) FindActivePack(ctx context.Context, owner biz.Actor, packID string, now time.Time) (*biz.Rental, error) {
	ownerType, ownerID := ownerColumns(owner)

	var dbRental Rental
	err := r.data.DB(ctx).
		Where("owner_type = ? AND owner_id = ? AND pack_id = ? AND expires_at > ?", ownerType, ownerID, packID, now).
		Order("expires_at DESC").
		First(&dbRental).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active pack rental: %w", err)
	}
	return r.modelToBiz(&dbRental), nil
}

func (r *rentalRepo) SetCurrentAsset(ctx context.Context, rentalID, assetID string) error {
	result := r.data.DB(ctx).
		Model(&Rental{}).
		Where("id = ? AND pack_id IS NOT NULL", rentalID).
		Update("current_asset_id", assetID)
	if result.Error != nil {
		return fmt.Errorf("failed to update resume pointer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return biz.ErrRentalNotFound
	}
	return nil
}

func (r *rentalRepo) ReassignOwner(ctx context.Context, from, to biz.Actor) (int64, error) {
	fromType, fromID := ownerColumns(from)
	toType, toID := ownerColumns(to)

	result := r.data.DB(ctx).
		Model(&Rental{}).
		Where("owner_type = ? AND owner_id = ?", fromType, fromID).
		Updates(map[string]interface{}{
			"owner_type": toType,
			"owner_id":   toID,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to reassign rentals: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *rentalRepo) bizToModel(rental *biz.Rental) *Rental {
	ownerType, ownerID := ownerColumns(rental.Owner)
	return &Rental{
		ID:             rental.ID,
		OwnerType:      ownerType,
		OwnerID:        ownerID,
		AssetID:        rental.AssetID,
		PackID:         rental.PackID,
		CurrentAssetID: rental.CurrentAssetID,
		PurchasedAt:    rental.PurchasedAt,
		ExpiresAt:      rental.ExpiresAt,
		TransactionID:  rental.TransactionID,
		Amount:         rental.Amount,
		Currency:       rental.Currency,
		PaymentMethod:  rental.PaymentMethod,
	}
}

func (r *rentalRepo) modelToBiz(dbRental *Rental) *biz.Rental {
	return &biz.Rental{
		ID:             dbRental.ID,
		Owner:          ownerActor(dbRental.OwnerType, dbRental.OwnerID),
		AssetID:        dbRental.AssetID,
		PackID:         dbRental.PackID,
		CurrentAssetID: dbRental.CurrentAssetID,
		PurchasedAt:    dbRental.PurchasedAt,
		ExpiresAt:      dbRental.ExpiresAt,
		TransactionID:  dbRental.TransactionID,
		Amount:         dbRental.Amount,
		Currency:       dbRental.Currency,
		PaymentMethod:  dbRental.PaymentMethod,
	}
}

func (r *rentalRepo) modelsToBiz(dbRentals []Rental) []*biz.Rental {
	rentals := make([]*biz.Rental, 0, len(dbRentals))
	for i := range dbRentals {
		rentals = append(rentals, r.modelToBiz(&dbRentals[i]))
	}
	return rentals
}
