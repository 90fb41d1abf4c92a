package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/reelvault/reelvault/internal/conf"
)

const (
	tokenKindSession   = "session"
	tokenKindAnonymous = "anonymous"

	defaultSessionTokenTTL = 7 * 24 * time.Hour
	defaultAnonTokenTTL    = 365 * 24 * time.Hour
)

// identityClaims are the signed claims carried by both token kinds. The
// embedded subject is the user/anonymous UUID; Kind tells them apart so a
// signed anonymous token can never be replayed as a session token.
type identityClaims struct {
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// IdentityUseCase resolves request credentials into a canonical Actor and
// mints the signed tokens that carry those identities. It holds no state of
// its own; trust comes from HMAC signature verification alone. A raw UUID is
// never accepted as an anonymous identity.
type IdentityUseCase struct {
	secret     []byte
	sessionTTL time.Duration
	anonTTL    time.Duration
	now        func() time.Time
	log        *log.Helper
}

// NewIdentityUseCase creates a new IdentityUseCase instance.
func NewIdentityUseCase(c *conf.Auth, logger log.Logger) *IdentityUseCase {
	sessionTTL := defaultSessionTokenTTL
	anonTTL := defaultAnonTokenTTL
	var secret string
	if c != nil {
		secret = c.TokenSecret
		if d := c.SessionTokenTTL.AsDuration(); d > 0 {
			sessionTTL = d
		}
		if d := c.AnonTokenTTL.AsDuration(); d > 0 {
			anonTTL = d
		}
	}
	return &IdentityUseCase{
		secret:     []byte(secret),
		sessionTTL: sessionTTL,
		anonTTL:    anonTTL,
		now:        time.Now,
		log:        log.NewHelper(logger),
	}
}

// Resolve produces the canonical Actor for a request. A valid session token
// always wins over any anonymous token in the same request. Tokens that fail
// verification degrade silently to "no identity": the zero Actor is returned
// with a nil error and the caller decides whether to mint a fresh anonymous
// token.
func (uc *IdentityUseCase) Resolve(ctx context.Context, sessionToken, anonToken string) (Actor, error) {
	if sessionToken != "" {
		if id, err := uc.verify(sessionToken, tokenKindSession); err == nil {
			return UserActor(id), nil
		} else {
			uc.log.WithContext(ctx).Debugf("session token rejected: %v", err)
		}
	}
	if anonToken != "" {
		if id, err := uc.verify(anonToken, tokenKindAnonymous); err == nil {
			return AnonymousActor(id), nil
		} else {
			uc.log.WithContext(ctx).Debugf("anonymous token rejected: %v", err)
		}
	}
	return Actor{}, nil
}

// MintAnonToken issues a fresh signed anonymous identity.
func (uc *IdentityUseCase) MintAnonToken(ctx context.Context) (string, uuid.UUID, error) {
	anonID := uuid.New()
	token, err := uc.sign(anonID, tokenKindAnonymous, uc.anonTTL)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("failed to sign anonymous token: %w", err)
	}
	uc.log.WithContext(ctx).Debugf("minted anonymous identity %s", anonID)
	return token, anonID, nil
}

// MintSessionToken issues a signed session token for an authenticated user.
// Authentication itself (password, OAuth, …) is a collaborator concern; this
// only wraps its outcome.
func (uc *IdentityUseCase) MintSessionToken(ctx context.Context, userID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", ErrNoIdentity
	}
	token, err := uc.sign(userID, tokenKindSession, uc.sessionTTL)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, nil
}

func (uc *IdentityUseCase) sign(subject uuid.UUID, kind string, ttl time.Duration) (string, error) {
	now := uc.now()
	claims := identityClaims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(uc.secret)
}

func (uc *IdentityUseCase) verify(tokenString, wantKind string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &identityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return uc.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return uc.now() }))
	if err != nil {
		return uuid.Nil, err
	}
	claims, ok := token.Claims.(*identityClaims)
	if !ok || !token.Valid {
		return uuid.Nil, fmt.Errorf("invalid token")
	}
	if claims.Kind != wantKind {
		return uuid.Nil, fmt.Errorf("token kind %q, want %q", claims.Kind, wantKind)
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed subject: %w", err)
	}
	return id, nil
}
