package service

import (
	"context"
	"time"

	"github.com/reelvault/reelvault/internal/biz"
)

// EntitlementService exposes the entitlement operations.
type EntitlementService struct {
	entitlement *biz.EntitlementUseCase
}

// NewEntitlementService creates a new EntitlementService
func NewEntitlementService(entitlement *biz.EntitlementUseCase) *EntitlementService {
	return &EntitlementService{entitlement: entitlement}
}

// RentalPayload is the transport shape of a rental.
type RentalPayload struct {
	ID             string  `json:"id"`
	AssetID        *string `json:"assetId,omitempty"`
	PackID         *string `json:"packId,omitempty"`
	CurrentAssetID *string `json:"currentAssetId,omitempty"`
	PurchasedAt    string  `json:"purchasedAt"`
	ExpiresAt      string  `json:"expiresAt"`
	State          string  `json:"state"`
}

// CheckAccessRequest carries the asset to check.
type CheckAccessRequest struct {
	AssetID string `json:"assetId"`
}

// CheckAccessReply is the outcome of an access check.
type CheckAccessReply struct {
	HasAccess  bool           `json:"hasAccess"`
	AccessType string         `json:"accessType,omitempty"`
	Rental     *RentalPayload `json:"rental,omitempty"`
}

// CheckAccess resolves whether the request's actor may watch the asset now.
func (s *EntitlementService) CheckAccess(ctx context.Context, req *CheckAccessRequest) (*CheckAccessReply, error) {
	actor := biz.ActorFromContext(ctx)
	if actor.IsZero() {
		return nil, toAPIError(biz.ErrNoIdentity)
	}
	result, err := s.entitlement.CheckAccess(ctx, actor, req.AssetID)
	if err != nil {
		return nil, toAPIError(err)
	}
	reply := &CheckAccessReply{HasAccess: result.HasAccess}
	if result.HasAccess {
		reply.AccessType = string(result.AccessType)
		reply.Rental = s.rentalToPayload(result.Rental)
	}
	return reply, nil
}

// GetStatusRequest carries the asset to inspect.
type GetStatusRequest struct {
	AssetID string `json:"assetId"`
}

// RentalStatusReply distinguishes never-rented (both fields empty) from
// rented-but-expired (expired true, expiredAt set).
type RentalStatusReply struct {
	Rental    *RentalPayload `json:"rental,omitempty"`
	Expired   bool           `json:"expired,omitempty"`
	ExpiredAt *string        `json:"expiredAt,omitempty"`
}

// GetStatus returns rental status for the pair including expired history.
func (s *EntitlementService) GetStatus(ctx context.Context, req *GetStatusRequest) (*RentalStatusReply, error) {
	actor := biz.ActorFromContext(ctx)
	if actor.IsZero() {
		return nil, toAPIError(biz.ErrNoIdentity)
	}
	status, err := s.entitlement.GetStatus(ctx, actor, req.AssetID)
	if err != nil {
		return nil, toAPIError(err)
	}
	reply := &RentalStatusReply{Expired: status.Expired}
	if status.Rental != nil {
		reply.Rental = s.rentalToPayload(status.Rental)
	}
	if status.ExpiredAt != nil {
		v := status.ExpiredAt.UTC().Format(time.RFC3339)
		reply.ExpiredAt = &v
	}
	return reply, nil
}

// GraceReply reports whether the grace window still applies.
type GraceReply struct {
	WithinGrace bool `json:"withinGrace"`
}

// GetGrace reports whether an expired rental is still inside the grace
// window. The caller decides what the window permits.
func (s *EntitlementService) GetGrace(ctx context.Context, req *GetStatusRequest) (*GraceReply, error) {
	actor := biz.ActorFromContext(ctx)
	if actor.IsZero() {
		return nil, toAPIError(biz.ErrNoIdentity)
	}
	within, err := s.entitlement.IsWithinGrace(ctx, actor, req.AssetID)
	if err != nil {
		return nil, toAPIError(err)
	}
	return &GraceReply{WithinGrace: within}, nil
}

// CreateRentalRequest carries a confirmed direct purchase.
type CreateRentalRequest struct {
	AssetID       string `json:"assetId"`
	TransactionID string `json:"transactionId"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"paymentMethod"`
}

// CreateRental records a direct purchase for the request's actor.
func (s *EntitlementService) CreateRental(ctx context.Context, req *CreateRentalRequest) (*RentalPayload, error) {
	actor := biz.ActorFromContext(ctx)
	rental, err := s.entitlement.CreateRental(ctx, actor, req.AssetID, biz.PurchaseInput{
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return nil, toAPIError(err)
	}
	return s.rentalToPayload(rental), nil
}

// CreatePackRentalRequest carries a confirmed pack purchase.
type CreatePackRentalRequest struct {
	PackID        string `json:"packId"`
	TransactionID string `json:"transactionId"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"paymentMethod"`
}

// CreatePackRental records a pack purchase for the request's actor.
func (s *EntitlementService) CreatePackRental(ctx context.Context, req *CreatePackRentalRequest) (*RentalPayload, error) {
	actor := biz.ActorFromContext(ctx)
	rental, err := s.entitlement.CreatePackRental(ctx, actor, req.PackID, biz.PurchaseInput{
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		return nil, toAPIError(err)
	}
	return s.rentalToPayload(rental), nil
}

// SetPackResumeRequest moves the pack resume pointer.
type SetPackResumeRequest struct {
	PackID  string `json:"packId"`
	AssetID string `json:"assetId"`
}

// SetPackResumeReply acknowledges the pointer move.
type SetPackResumeReply struct {
	CurrentAssetID string `json:"currentAssetId"`
}

// SetPackResume updates which pack member playback should resume at.
func (s *EntitlementService) SetPackResume(ctx context.Context, req *SetPackResumeRequest) (*SetPackResumeReply, error) {
	actor := biz.ActorFromContext(ctx)
	if actor.IsZero() {
		return nil, toAPIError(biz.ErrNoIdentity)
	}
	if err := s.entitlement.SetPackResume(ctx, actor, req.PackID, req.AssetID); err != nil {
		return nil, toAPIError(err)
	}
	return &SetPackResumeReply{CurrentAssetID: req.AssetID}, nil
}

func (s *EntitlementService) rentalToPayload(rental *biz.Rental) *RentalPayload {
	if rental == nil {
		return nil
	}
	return &RentalPayload{
		ID:             rental.ID,
		AssetID:        rental.AssetID,
		PackID:         rental.PackID,
		CurrentAssetID: rental.CurrentAssetID,
		PurchasedAt:    rental.PurchasedAt.UTC().Format(time.RFC3339),
		ExpiresAt:      rental.ExpiresAt.UTC().Format(time.RFC3339),
		State:          string(rental.State(time.Now(), s.entitlement.GracePeriod())),
	}
}
