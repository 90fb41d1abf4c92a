// Package service maps transport DTOs onto the biz usecases and translates
// domain errors into kratos error codes.
package service

import (
	"errors"

	kerrors "github.com/go-kratos/kratos/v2/errors"

	"github.com/reelvault/reelvault/internal/biz"

	"github.com/google/wire"
)

// ProviderSet is service providers.
var ProviderSet = wire.NewSet(
	NewEntitlementService,
	NewProgressService,
	NewIdentityService,
)

// toAPIError maps domain errors onto transport status codes. Unknown errors
// pass through untouched and surface as 500s.
func toAPIError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, biz.ErrDuplicateRental):
		return kerrors.Conflict("DUPLICATE_RENTAL", "an active rental already exists for this asset")
	case errors.Is(err, biz.ErrAssetNotFound):
		return kerrors.NotFound("ASSET_NOT_FOUND", "asset does not exist in the catalog")
	case errors.Is(err, biz.ErrPackNotFound):
		return kerrors.NotFound("PACK_NOT_FOUND", "pack does not exist or has no members")
	case errors.Is(err, biz.ErrRentalNotFound):
		return kerrors.NotFound("RENTAL_NOT_FOUND", "no rental found")
	case errors.Is(err, biz.ErrProgressOutOfRange):
		return kerrors.New(422, "PROGRESS_OUT_OF_RANGE", "progress seconds must be a finite non-negative number")
	case errors.Is(err, biz.ErrNoIdentity):
		return kerrors.Unauthorized("NO_IDENTITY", "no stable identity resolved for this request")
	default:
		return err
	}
}
