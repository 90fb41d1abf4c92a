package biz

import (
	"context"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// MigrationUseCase re-owns all records of a transient anonymous identity to a
// durable authenticated one. Both halves run in one transaction: a partial
// migration would silently lose a paid rental or reset watch progress, so
// neither half may land without the other.
type MigrationUseCase struct {
	rentals  RentalRepo
	progress ProgressRepo
	tx       Transaction
	log      *log.Helper
}

// NewMigrationUseCase creates a new MigrationUseCase instance.
func NewMigrationUseCase(rentals RentalRepo, progress ProgressRepo, tx Transaction, logger log.Logger) *MigrationUseCase {
	return &MigrationUseCase{
		rentals:  rentals,
		progress: progress,
		tx:       tx,
		log:      log.NewHelper(logger),
	}
}

// Migrate moves every rental and progress record from Anonymous(sourceAnon)
// to User(targetUser). Idempotent: once the anonymous identity is empty a
// repeat call moves nothing and reports zero counts, so a concurrent second
// trigger (e.g. two tabs after one login) is harmless.
func (uc *MigrationUseCase) Migrate(ctx context.Context, sourceAnon, targetUser uuid.UUID) (*MigrationResult, error) {
	if sourceAnon == uuid.Nil || targetUser == uuid.Nil {
		return nil, ErrNoIdentity
	}
	from := AnonymousActor(sourceAnon)
	to := UserActor(targetUser)

	var result MigrationResult
	err := uc.tx.InTx(ctx, func(ctx context.Context) error {
		moved, err := uc.rentals.ReassignOwner(ctx, from, to)
		if err != nil {
			return fmt.Errorf("failed to reassign rentals: %w", err)
		}
		merged, err := uc.progress.MergeOwner(ctx, from, to)
		if err != nil {
			return fmt.Errorf("failed to merge watch progress: %w", err)
		}
		result.MigratedRentals = moved
		result.MigratedProgress = merged
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.MigratedRentals > 0 || result.MigratedProgress > 0 {
		uc.log.Infof("migrated %d rentals and %d progress records from %s to %s",
			result.MigratedRentals, result.MigratedProgress, from, to)
	}
	return &result, nil
}
