package biz

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEntitlementTestCase(repo *fakeRentalRepo, catalog *fakeCatalog) (*EntitlementUseCase, *time.Time) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	uc := NewEntitlementUseCase(repo, catalog, &fakeTx{}, nil, testLogger())
	uc.now = func() time.Time { return clock }
	return uc, &clock
}

func TestCreateRental(t *testing.T) {
	ctx := context.Background()
	actor := UserActor(uuid.New())
	repo := &fakeRentalRepo{}
	catalog := &fakeCatalog{assets: map[string]bool{"movie-1": true}}
	uc, clock := newEntitlementTestCase(repo, catalog)

	rental, err := uc.CreateRental(ctx, actor, "movie-1", PurchaseInput{TransactionID: "tx-1", Amount: 499, Currency: "USD", PaymentMethod: "card"})
	require.NoError(t, err)
	require.NotNil(t, rental)
	assert.Equal(t, actor, rental.Owner)
	assert.Equal(t, "movie-1", *rental.AssetID)
	assert.Nil(t, rental.PackID)
	assert.Equal(t, clock.Add(24*time.Hour), rental.ExpiresAt)
	assert.Equal(t, "tx-1", rental.TransactionID)
}

func TestCreateRentalUnknownAsset(t *testing.T) {
	ctx := context.Background()
	uc, _ := newEntitlementTestCase(&fakeRentalRepo{}, &fakeCatalog{assets: map[string]bool{}})

	_, err := uc.CreateRental(ctx, UserActor(uuid.New()), "nope", PurchaseInput{TransactionID: "tx-1"})
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestCreateRentalNoIdentity(t *testing.T) {
	ctx := context.Background()
	uc, _ := newEntitlementTestCase(&fakeRentalRepo{}, &fakeCatalog{assets: map[string]bool{"movie-1": true}})

	_, err := uc.CreateRental(ctx, Actor{}, "movie-1", PurchaseInput{TransactionID: "tx-1"})
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestCreateRentalRejectsOverlappingActive(t *testing.T) {
	ctx := context.Background()
	actor := UserActor(uuid.New())
	repo := &fakeRentalRepo{}
	catalog := &fakeCatalog{assets: map[string]bool{"movie-1": true}}
	uc, clock := newEntitlementTestCase(repo, catalog)

	_, err := uc.CreateRental(ctx, actor, "movie-1", PurchaseInput{TransactionID: "tx-1"})
	require.NoError(t, err)

	_, err = uc.CreateRental(ctx, actor, "movie-1", PurchaseInput{TransactionID: "tx-2"})
	assert.ErrorIs(t, err, ErrDuplicateRental)

	// Same asset, different owner: allowed.
	_, err = uc.CreateRental(ctx, AnonymousActor(uuid.New()), "movie-1", PurchaseInput{TransactionID: "tx-3"})
	assert.NoError(t, err)

	// After expiry the slot frees up again.
	*clock = clock.Add(24*time.Hour + time.Second)
	rental, err := uc.CreateRental(ctx, actor, "movie-1", PurchaseInput{TransactionID: "tx-4"})
	require.NoError(t, err)
	assert.Equal(t, clock.Add(24*time.Hour), rental.ExpiresAt)
}

func TestCreatePackRentalStartsResumeAtFirstMember(t *testing.T) {
	ctx := context.Background()
	actor := UserActor(uuid.New())
	catalog := &fakeCatalog{packs: map[string][]string{"pack-1": {"ep-1", "ep-2", "ep-3"}}}
	uc, _ := newEntitlementTestCase(&fakeRentalRepo{}, catalog)

	rental, err := uc.CreatePackRental(ctx, actor, "pack-1", PurchaseInput{TransactionID: "tx-1"})
	require.NoError(t, err)
	assert.Equal(t, "pack-1", *rental.PackID)
	require.NotNil(t, rental.CurrentAssetID)
	assert.Equal(t, "ep-1", *rental.CurrentAssetID)

	_, err = uc.CreatePackRental(ctx, actor, "pack-1", PurchaseInput{TransactionID: "tx-2"})
	assert.ErrorIs(t, err, ErrDuplicateRental)
}

func TestCreatePackRentalUnknownPack(t *testing.T) {
	ctx := context.Background()
	uc, _ := newEntitlementTestCase(&fakeRentalRepo{}, &fakeCatalog{packs: map[string][]string{}})

	_, err := uc.CreatePackRental(ctx, UserActor(uuid.New()), "pack-x", PurchaseInput{TransactionID: "tx-1"})
	assert.ErrorIs(t, err, ErrPackNotFound)
}

func TestCheckAccessDirectWinsOverPack(t *testing.T) {
	ctx := context.Background()
	actor := UserActor(uuid.New())
	repo := &fakeRentalRepo{}
	catalog := &fakeCatalog{
		assets: map[string]bool{"ep-1": true},
		packs:  map[string][]string{"pack-1": {"ep-1", "ep-2"}},
	}
	uc, _ := newEntitlementTestCase(repo, catalog)

	_, err := uc.CreatePackRental(ctx, actor, "pack-1", PurchaseInput{TransactionID: "tx-1"})
	require.NoError(t, err)
	direct, err := uc.CreateRental(ctx, actor, "ep-1", PurchaseInput{TransactionID: "tx-2"})
	require.NoError(t, err)

	res, err := uc.CheckAccess(ctx, actor, "ep-1")
	require.NoError(t, err)
	assert.True(t, res.HasAccess)
	assert.Equal(t, AccessDirect, res.AccessType)
	assert.Equal(t, direct.ID, res.Rental.ID)

	// ep-2 is only covered through the pack.
	res, err = uc.CheckAccess(ctx, actor, "ep-2")
	require.NoError(t, err)
	assert.True(t, res.HasAccess)
	assert.Equal(t, AccessPack, res.AccessType)
}

func TestCheckAccessDeniedCases(t *testing.T) {
	ctx := context.Background()
	actor := UserActor(uuid.New())
	repo := &fakeRentalRepo{}
	catalog := &fakeCatalog{assets: map[string]bool{"movie-1": true}}
	uc, clock := newEntitlementTestCase(repo, catalog)

	// No identity at all.
	res, err := uc.CheckAccess(ctx, Actor{}, "movie-1")
	require.NoError(t, err)
	assert.False(t, res.HasAccess)

	// Never rented.
	res, err = uc.CheckAccess(ctx, actor, "movie-1")
	require.NoError(t, err)
	assert.False(t, res.HasAccess)

	// Rented but expired. Expiry is boundary-exact: at expires_at access is gone.
	_, err = uc.CreateRental(ctx, actor, "movie-1", PurchaseInput{TransactionID: "tx-1"})
	require.NoError(t, err)
	*clock = clock.Add(24 * time.Hour)
	res, err = uc.CheckAccess(ctx, actor, "movie-1")
	require.NoError(t, err)
	assert.False(t, res.HasAccess)
}

func TestGetStatusDistinguishesNeverRentedFromExpired(t *testing.T) {
	ctx := context.Background()
	actor := UserActor(uuid.New())
	repo := &fakeRentalRepo{}
	catalog := &fakeCatalog{assets: map[string]bool{"movie-1": true}}
	uc, clock := newEntitlementTestCase(repo, catalog)

	status, err := uc.GetStatus(ctx, actor, "movie-1")
	require.NoError(t, err)
	assert.Nil(t, status.Rental)
	assert.False(t, status.Expired)
	assert.Nil(t, status.ExpiredAt)

	rental, err := uc.CreateRental(ctx, actor, "movie-1", PurchaseInput{TransactionID: "tx-1"})
	require.NoError(t, err)

	status, err = uc.GetStatus(ctx, actor, "movie-1")
	require.NoError(t, err)
	require.NotNil(t, status.Rental)
	assert.Equal(t, rental.ID, status.Rental.ID)

	*clock = clock.Add(25 * time.Hour)
	status, err = uc.GetStatus(ctx, actor, "movie-1")
	require.NoError(t, err)
	assert.Nil(t, status.Rental)
	assert.True(t, status.Expired)
	require.NotNil(t, status.ExpiredAt)
	assert.Equal(t, rental.ExpiresAt, *status.ExpiredAt)
}

func TestIsWithinGraceBoundaries(t *testing.T) {
	ctx := context.Background()
	actor := UserActor(uuid.New())
	repo := &fakeRentalRepo{}
	catalog := &fakeCatalog{assets: map[string]bool{"movie-1": true}}
	uc, clock := newEntitlementTestCase(repo, catalog)

	rental, err := uc.CreateRental(ctx, actor, "movie-1", PurchaseInput{TransactionID: "tx-1"})
	require.NoError(t, err)

	// Still active: not in grace.
	within, err := uc.IsWithinGrace(ctx, actor, "movie-1")
	require.NoError(t, err)
	assert.False(t, within)

	// Exactly at expiry: grace begins.
	*clock = rental.ExpiresAt
	within, err = uc.IsWithinGrace(ctx, actor, "movie-1")
	require.NoError(t, err)
	assert.True(t, within)

	// One instant before the grace window closes.
	*clock = rental.ExpiresAt.Add(2*time.Hour - time.Nanosecond)
	within, err = uc.IsWithinGrace(ctx, actor, "movie-1")
	require.NoError(t, err)
	assert.True(t, within)

	// Exactly at expiry+grace: over.
	*clock = rental.ExpiresAt.Add(2 * time.Hour)
	within, err = uc.IsWithinGrace(ctx, actor, "movie-1")
	require.NoError(t, err)
	assert.False(t, within)
}

func TestSetPackResume(t *testing.T) {
	ctx := context.Background()
	actor := UserActor(uuid.New())
	repo := &fakeRentalRepo{}
	catalog := &fakeCatalog{packs: map[string][]string{"pack-1": {"ep-1", "ep-2"}}}
	uc, _ := newEntitlementTestCase(repo, catalog)

	rental, err := uc.CreatePackRental(ctx, actor, "pack-1", PurchaseInput{TransactionID: "tx-1"})
	require.NoError(t, err)

	require.NoError(t, uc.SetPackResume(ctx, actor, "pack-1", "ep-2"))
	stored, err := repo.FindActivePack(ctx, actor, "pack-1", rental.PurchasedAt)
	require.NoError(t, err)
	assert.Equal(t, "ep-2", *stored.CurrentAssetID)

	// Not a member of the pack.
	assert.ErrorIs(t, uc.SetPackResume(ctx, actor, "pack-1", "ep-99"), ErrAssetNotFound)

	// No active rental for the pack.
	assert.ErrorIs(t, uc.SetPackResume(ctx, actor, "pack-9", "ep-1"), ErrRentalNotFound)
}

func TestRentalStateDerivation(t *testing.T) {
	expires := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	r := &Rental{ExpiresAt: expires}
	grace := 2 * time.Hour

	assert.Equal(t, RentalActive, r.State(expires.Add(-time.Second), grace))
	assert.Equal(t, RentalExpired, r.State(expires, grace))
	assert.Equal(t, RentalExpired, r.State(expires.Add(grace-time.Second), grace))
	assert.Equal(t, RentalLapsed, r.State(expires.Add(grace), grace))
}
