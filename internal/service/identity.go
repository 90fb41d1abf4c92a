package service

import (
	"context"

	"github.com/reelvault/reelvault/internal/biz"
)

// IdentityService exposes anonymous-identity bootstrap and migration.
type IdentityService struct {
	identity  *biz.IdentityUseCase
	migration *biz.MigrationUseCase
}

// NewIdentityService creates a new IdentityService
func NewIdentityService(identity *biz.IdentityUseCase, migration *biz.MigrationUseCase) *IdentityService {
	return &IdentityService{identity: identity, migration: migration}
}

// AnonymousIdentityReply carries a freshly minted anonymous identity. The
// token is the only accepted proof of this identity; the embedded UUID alone
// is never trusted.
type AnonymousIdentityReply struct {
	AnonToken string `json:"anonToken"`
	AnonID    string `json:"anonId"`
}

// MintAnonymous issues a signed anonymous identity for a client that has
// none yet.
func (s *IdentityService) MintAnonymous(ctx context.Context) (*AnonymousIdentityReply, error) {
	token, anonID, err := s.identity.MintAnonToken(ctx)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &AnonymousIdentityReply{AnonToken: token, AnonID: anonID.String()}, nil
}

// MigrateRequest carries the anonymous token whose records should move to
// the authenticated user making the request.
type MigrateRequest struct {
	AnonToken string `json:"anonToken"`
}

// MigrateReply reports how many records changed hands. Zero counts on a
// repeat call are expected, not an error.
type MigrateReply struct {
	MigratedRentals  int64 `json:"migratedRentals"`
	MigratedProgress int64 `json:"migratedProgress"`
}

// Migrate re-owns all records of the presented anonymous identity to the
// authenticated actor. Requires a valid session; the anonymous identity must
// prove itself with its signed token.
func (s *IdentityService) Migrate(ctx context.Context, req *MigrateRequest) (*MigrateReply, error) {
	actor := biz.ActorFromContext(ctx)
	if actor.Kind != biz.ActorUser {
		return nil, toAPIError(biz.ErrNoIdentity)
	}
	anon, err := s.identity.Resolve(ctx, "", req.AnonToken)
	if err != nil || anon.Kind != biz.ActorAnonymous {
		return nil, toAPIError(biz.ErrNoIdentity)
	}

	result, err := s.migration.Migrate(ctx, anon.ID, actor.ID)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &MigrateReply{
		MigratedRentals:  result.MigratedRentals,
		MigratedProgress: result.MigratedProgress,
	}, nil
}
