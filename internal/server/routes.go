package server

import (
	"context"
	"net/http"

	khttp "github.com/go-kratos/kratos/v2/transport/http"

	"github.com/reelvault/reelvault/internal/service"
)

// Operation names let middleware reason about raw routes the way they would
// about generated handlers.
const (
	OperationMintAnonymous    = "/reelvault.v1.IdentityService/MintAnonymous"
	OperationMigrate          = "/reelvault.v1.IdentityService/Migrate"
	OperationCheckAccess      = "/reelvault.v1.EntitlementService/CheckAccess"
	OperationGetStatus        = "/reelvault.v1.EntitlementService/GetStatus"
	OperationGetGrace         = "/reelvault.v1.EntitlementService/GetGrace"
	OperationCreateRental     = "/reelvault.v1.EntitlementService/CreateRental"
	OperationCreatePackRental = "/reelvault.v1.EntitlementService/CreatePackRental"
	OperationSetPackResume    = "/reelvault.v1.EntitlementService/SetPackResume"
	OperationUpsertProgress   = "/reelvault.v1.ProgressService/Upsert"
	OperationGetProgress      = "/reelvault.v1.ProgressService/Get"
	OperationDeleteProgress   = "/reelvault.v1.ProgressService/Delete"
	OperationContinueWatching = "/reelvault.v1.ProgressService/ContinueWatching"
)

// registerRoutes wires the raw HTTP routes. Handlers run through the server
// middleware chain so identity resolution applies uniformly.
func registerRoutes(srv *khttp.Server, entitlement *service.EntitlementService, progress *service.ProgressService, identity *service.IdentityService) {
	r := srv.Route("/v1")

	r.POST("/identity/anonymous", func(ctx khttp.Context) error {
		khttp.SetOperation(ctx, OperationMintAnonymous)
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return identity.MintAnonymous(c)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusCreated, out)
	})

	r.POST("/identity/migrate", func(ctx khttp.Context) error {
		var in service.MigrateRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		khttp.SetOperation(ctx, OperationMigrate)
		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			return identity.Migrate(c, req.(*service.MigrateRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	r.GET("/assets/{id}/access", func(ctx khttp.Context) error {
		in := service.CheckAccessRequest{AssetID: ctx.Vars().Get("id")}
		khttp.SetOperation(ctx, OperationCheckAccess)
		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			return entitlement.CheckAccess(c, req.(*service.CheckAccessRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	r.GET("/assets/{id}/status", func(ctx khttp.Context) error {
		in := service.GetStatusRequest{AssetID: ctx.Vars().Get("id")}
		khttp.SetOperation(ctx, OperationGetStatus)
		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			return entitlement.GetStatus(c, req.(*service.GetStatusRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	r.GET("/assets/{id}/grace", func(ctx khttp.Context) error {
		in := service.GetStatusRequest{AssetID: ctx.Vars().Get("id")}
		khttp.SetOperation(ctx, OperationGetGrace)
		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			return entitlement.GetGrace(c, req.(*service.GetStatusRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	r.POST("/rentals", func(ctx khttp.Context) error {
		var in service.CreateRentalRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		khttp.SetOperation(ctx, OperationCreateRental)
		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			return entitlement.CreateRental(c, req.(*service.CreateRentalRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusCreated, out)
	})

	r.POST("/packs/rentals", func(ctx khttp.Context) error {
		var in service.CreatePackRentalRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		khttp.SetOperation(ctx, OperationCreatePackRental)
		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			return entitlement.CreatePackRental(c, req.(*service.CreatePackRentalRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusCreated, out)
	})

	r.PUT("/packs/{id}/resume", func(ctx khttp.Context) error {
		var in service.SetPackResumeRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		in.PackID = ctx.Vars().Get("id")
		khttp.SetOperation(ctx, OperationSetPackResume)
		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			return entitlement.SetPackResume(c, req.(*service.SetPackResumeRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	r.PUT("/progress/{assetId}", func(ctx khttp.Context) error {
		var in service.UpsertProgressRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		in.AssetID = ctx.Vars().Get("assetId")
		khttp.SetOperation(ctx, OperationUpsertProgress)
		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			return progress.Upsert(c, req.(*service.UpsertProgressRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	r.GET("/progress/{assetId}", func(ctx khttp.Context) error {
		in := service.GetProgressRequest{AssetID: ctx.Vars().Get("assetId")}
		khttp.SetOperation(ctx, OperationGetProgress)
		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			return progress.Get(c, req.(*service.GetProgressRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	r.DELETE("/progress/{assetId}", func(ctx khttp.Context) error {
		in := service.GetProgressRequest{AssetID: ctx.Vars().Get("assetId")}
		khttp.SetOperation(ctx, OperationDeleteProgress)
		h := ctx.Middleware(func(c context.Context, req interface{}) (interface{}, error) {
			return progress.Delete(c, req.(*service.GetProgressRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})

	r.GET("/progress", func(ctx khttp.Context) error {
		khttp.SetOperation(ctx, OperationContinueWatching)
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return progress.ContinueWatching(c)
		})
		out, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(http.StatusOK, out)
	})
}
