package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"

	"github.com/reelvault/reelvault/internal/conf"
)

// Fallback windows used when the config omits them.
const (
	defaultRentalDuration = 24 * time.Hour
	defaultGracePeriod    = 2 * time.Hour
)

// EntitlementUseCase answers "may this actor watch this asset right now" and
// records purchases. Rental state (active/expired/lapsed) is always derived
// from expires_at against the clock, never stored.
type EntitlementUseCase struct {
	rentals        RentalRepo
	catalog        CatalogClient
	tx             Transaction
	rentalDuration time.Duration
	gracePeriod    time.Duration
	now            func() time.Time
	log            *log.Helper
}

// NewEntitlementUseCase creates a new EntitlementUseCase instance.
func NewEntitlementUseCase(rentals RentalRepo, catalog CatalogClient, tx Transaction, c *conf.Entitlement, logger log.Logger) *EntitlementUseCase {
	rentalDuration := defaultRentalDuration
	gracePeriod := defaultGracePeriod
	if c != nil {
		if d := c.RentalDuration.AsDuration(); d > 0 {
			rentalDuration = d
		}
		if d := c.GracePeriod.AsDuration(); d > 0 {
			gracePeriod = d
		}
	}
	return &EntitlementUseCase{
		rentals:        rentals,
		catalog:        catalog,
		tx:             tx,
		rentalDuration: rentalDuration,
		gracePeriod:    gracePeriod,
		now:            time.Now,
		log:            log.NewHelper(logger),
	}
}

// GracePeriod exposes the configured post-expiry window.
func (uc *EntitlementUseCase) GracePeriod() time.Duration {
	return uc.gracePeriod
}

// CheckAccess resolves whether actor may watch assetID now. Direct rentals
// win over pack coverage when both exist.
func (uc *EntitlementUseCase) CheckAccess(ctx context.Context, actor Actor, assetID string) (*AccessResult, error) {
	if actor.IsZero() {
		return &AccessResult{}, nil
	}
	now := uc.now()

	direct, err := uc.rentals.FindActiveDirect(ctx, actor, assetID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to look up direct rental: %w", err)
	}
	if direct != nil {
		return &AccessResult{HasAccess: true, AccessType: AccessDirect, Rental: direct}, nil
	}

	packs, err := uc.rentals.FindActivePacks(ctx, actor, now)
	if err != nil {
		return nil, fmt.Errorf("failed to look up pack rentals: %w", err)
	}
	for _, pack := range packs {
		members, err := uc.catalog.PackMembers(ctx, *pack.PackID)
		if err != nil {
			// A catalog hiccup on one pack must not mask coverage by another.
			uc.log.Warnf("failed to resolve members of pack %s: %v", *pack.PackID, err)
			continue
		}
		for _, member := range members {
			if member == assetID {
				return &AccessResult{HasAccess: true, AccessType: AccessPack, Rental: pack}, nil
			}
		}
	}

	return &AccessResult{}, nil
}

// GetStatus returns the most recent rental covering the pair even if expired,
// distinguishing "never rented" from "rented but expired".
func (uc *EntitlementUseCase) GetStatus(ctx context.Context, actor Actor, assetID string) (*RentalStatus, error) {
	latest, err := uc.latestCovering(ctx, actor, assetID)
	if err != nil {
		return nil, err
	}
	if latest == nil {
		return &RentalStatus{}, nil
	}
	now := uc.now()
	if now.Before(latest.ExpiresAt) {
		return &RentalStatus{Rental: latest}, nil
	}
	expiredAt := latest.ExpiresAt
	return &RentalStatus{Expired: true, ExpiredAt: &expiredAt}, nil
}

// IsWithinGrace reports whether an expired rental for the pair is still
// inside the configured grace window. Boundary-exact at both ends:
// expiresAt <= now < expiresAt+grace.
func (uc *EntitlementUseCase) IsWithinGrace(ctx context.Context, actor Actor, assetID string) (bool, error) {
	latest, err := uc.latestCovering(ctx, actor, assetID)
	if err != nil {
		return false, err
	}
	if latest == nil {
		return false, nil
	}
	now := uc.now()
	return !now.Before(latest.ExpiresAt) && now.Before(latest.ExpiresAt.Add(uc.gracePeriod)), nil
}

// CreateRental records a confirmed direct purchase. The duplicate-active
// check and the insert run in one transaction so two concurrent purchases
// for the same pair cannot both succeed.
func (uc *EntitlementUseCase) CreateRental(ctx context.Context, actor Actor, assetID string, purchase PurchaseInput) (*Rental, error) {
	exists, err := uc.catalog.AssetExists(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify asset: %w", err)
	}
	if !exists {
		return nil, ErrAssetNotFound
	}

	rental, err := uc.newRental(actor, purchase)
	if err != nil {
		return nil, err
	}
	rental.AssetID = &assetID

	err = uc.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := uc.rentals.FindActiveDirect(ctx, actor, assetID, rental.PurchasedAt)
		if err != nil {
			return fmt.Errorf("failed to check active rental: %w", err)
		}
		if existing != nil {
			return ErrDuplicateRental
		}
		return uc.rentals.CreateRental(ctx, rental)
	})
	if err != nil {
		return nil, err
	}

	uc.log.Infof("rental %s created for %s asset %s, expires %s", rental.ID, actor, assetID, rental.ExpiresAt.Format(time.RFC3339))
	return rental, nil
}

// CreatePackRental records a confirmed pack purchase. The resume pointer
// starts at the first pack member.
func (uc *EntitlementUseCase) CreatePackRental(ctx context.Context, actor Actor, packID string, purchase PurchaseInput) (*Rental, error) {
	members, err := uc.catalog.PackMembers(ctx, packID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve pack: %w", err)
	}
	if len(members) == 0 {
		return nil, ErrPackNotFound
	}

	rental, err := uc.newRental(actor, purchase)
	if err != nil {
		return nil, err
	}
	rental.PackID = &packID
	first := members[0]
	rental.CurrentAssetID = &first

	err = uc.tx.InTx(ctx, func(ctx context.Context) error {
		existing, err := uc.rentals.FindActivePack(ctx, actor, packID, rental.PurchasedAt)
		if err != nil {
			return fmt.Errorf("failed to check active pack rental: %w", err)
		}
		if existing != nil {
			return ErrDuplicateRental
		}
		return uc.rentals.CreateRental(ctx, rental)
	})
	if err != nil {
		return nil, err
	}

	uc.log.Infof("pack rental %s created for %s pack %s, expires %s", rental.ID, actor, packID, rental.ExpiresAt.Format(time.RFC3339))
	return rental, nil
}

// SetPackResume moves the resume pointer of the actor's active pack rental
// to assetID, which must be a member of the pack.
func (uc *EntitlementUseCase) SetPackResume(ctx context.Context, actor Actor, packID, assetID string) error {
	rental, err := uc.rentals.FindActivePack(ctx, actor, packID, uc.now())
	if err != nil {
		return fmt.Errorf("failed to look up pack rental: %w", err)
	}
	if rental == nil {
		return ErrRentalNotFound
	}

	members, err := uc.catalog.PackMembers(ctx, packID)
	if err != nil {
		return fmt.Errorf("failed to resolve pack: %w", err)
	}
	found := false
	for _, member := range members {
		if member == assetID {
			found = true
			break
		}
	}
	if !found {
		return ErrAssetNotFound
	}

	return uc.rentals.SetCurrentAsset(ctx, rental.ID, assetID)
}

// latestCovering finds the most recent rental for the pair: direct rentals
// first, then pack rentals whose membership includes the asset.
func (uc *EntitlementUseCase) latestCovering(ctx context.Context, actor Actor, assetID string) (*Rental, error) {
	if actor.IsZero() {
		return nil, nil
	}
	direct, err := uc.rentals.FindLatestDirect(ctx, actor, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up rental history: %w", err)
	}
	if direct != nil {
		return direct, nil
	}

	packs, err := uc.rentals.FindLatestPacks(ctx, actor)
	if err != nil {
		return nil, fmt.Errorf("failed to look up pack history: %w", err)
	}
	for _, pack := range packs {
		members, err := uc.catalog.PackMembers(ctx, *pack.PackID)
		if err != nil {
			uc.log.Warnf("failed to resolve members of pack %s: %v", *pack.PackID, err)
			continue
		}
		for _, member := range members {
			if member == assetID {
				return pack, nil
			}
		}
	}
	return nil, nil
}

// newRental builds the common rental fields for both purchase shapes.
func (uc *EntitlementUseCase) newRental(actor Actor, purchase PurchaseInput) (*Rental, error) {
	if actor.IsZero() {
		return nil, ErrNoIdentity
	}
	// UUID v7: time-ordered, distributed-friendly.
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate rental ID: %w", err)
	}
	purchasedAt := uc.now()
	return &Rental{
		ID:            id.String(),
		Owner:         actor,
		PurchasedAt:   purchasedAt,
		ExpiresAt:     purchasedAt.Add(uc.rentalDuration),
		TransactionID: purchase.TransactionID,
		Amount:        purchase.Amount,
		Currency:      purchase.Currency,
		PaymentMethod: purchase.PaymentMethod,
	}, nil
}
