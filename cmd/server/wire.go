//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"github.com/reelvault/reelvault/internal/biz"
	"github.com/reelvault/reelvault/internal/conf"
	"github.com/reelvault/reelvault/internal/data"
	"github.com/reelvault/reelvault/internal/server"
	"github.com/reelvault/reelvault/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Data, *conf.Auth, *conf.Catalog, *conf.Entitlement, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(server.ProviderSet, data.ProviderSet, biz.ProviderSet, service.ProviderSet, newApp))
}
