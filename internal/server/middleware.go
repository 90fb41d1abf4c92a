package server

import (
	"context"
	"strings"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"

	"github.com/reelvault/reelvault/internal/biz"
)

// anonTokenHeader carries the signed anonymous identity. Raw UUIDs are never
// accepted: only a token whose signature verifies establishes an identity.
const anonTokenHeader = "X-Anon-Token"

// IdentityMiddleware resolves the request's credentials into the canonical
// actor. A valid session token wins over an anonymous token; invalid
// signatures silently degrade to "no identity". When no stable identity
// exists a fresh anonymous identity is minted and returned to the client via
// the X-Anon-Token response header.
func IdentityMiddleware(identity *biz.IdentityUseCase, logger log.Logger) middleware.Middleware {
	l := log.NewHelper(logger)
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			tr, ok := transport.FromServerContext(ctx)
			if !ok {
				return handler(ctx, req)
			}

			var sessionToken string
			if authHeader := tr.RequestHeader().Get("Authorization"); authHeader != "" {
				parts := strings.SplitN(authHeader, " ", 2)
				if len(parts) == 2 && parts[0] == "Bearer" {
					sessionToken = parts[1]
				}
			}
			anonToken := tr.RequestHeader().Get(anonTokenHeader)

			actor, err := identity.Resolve(ctx, sessionToken, anonToken)
			if err != nil {
				return nil, err
			}
			if actor.IsZero() {
				token, anonID, err := identity.MintAnonToken(ctx)
				if err != nil {
					l.Errorf("failed to mint anonymous identity: %v", err)
				} else {
					tr.ReplyHeader().Set(anonTokenHeader, token)
					actor = biz.AnonymousActor(anonID)
				}
			}

			ctx = biz.NewActorContext(ctx, actor)
			return handler(ctx, req)
		}
	}
}
