package server

import (
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/wire"

	"github.com/reelvault/reelvault/internal/biz"
	"github.com/reelvault/reelvault/internal/conf"
	"github.com/reelvault/reelvault/internal/service"
)

// ProviderSet is server providers.
var ProviderSet = wire.NewSet(NewHTTPServer)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(
	c *conf.Server,
	identity *biz.IdentityUseCase,
	entitlementSvc *service.EntitlementService,
	progressSvc *service.ProgressService,
	identitySvc *service.IdentityService,
	logger log.Logger,
) *khttp.Server {
	var opts = []khttp.ServerOption{
		khttp.Middleware(
			recovery.Recovery(),
			IdentityMiddleware(identity, logger),
		),
	}
	if c.Http.Network != "" {
		opts = append(opts, khttp.Network(c.Http.Network))
	}
	if c.Http.Addr != "" {
		opts = append(opts, khttp.Address(c.Http.Addr))
	}
	if c.Http.Timeout != "" {
		opts = append(opts, khttp.Timeout(c.Http.Timeout.AsDuration()))
	}
	srv := khttp.NewServer(opts...)
	registerRoutes(srv, entitlementSvc, progressSvc, identitySvc)
	return srv
}
