// Package auth supplies the bearer credential used to open the realtime
// connection. Providers are queried just-in-time on every connection
// attempt, so a rotated credential is picked up on the next handshake.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenExpired is returned when a JWT credential is already past its
// expiry and attempting a handshake with it would be pointless.
var ErrTokenExpired = errors.New("auth token expired")

// TokenProvider supplies the current bearer token. An empty token with a nil
// error means no credential is available.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to the TokenProvider interface.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) { return f(ctx) }

// Static returns a provider that always yields the same token.
func Static(token string) TokenProvider {
	return TokenFunc(func(context.Context) (string, error) { return token, nil })
}

// jwtProvider wraps another provider and refuses tokens whose exp claim has
// already passed. The claims are not signature-verified; the client never
// holds the signing secret, it only avoids a handshake doomed to a 401.
type jwtProvider struct {
	source TokenProvider
	now    func() time.Time
}

// JWT wraps source with an expiry check on the token's registered claims.
func JWT(source TokenProvider) TokenProvider {
	return &jwtProvider{source: source, now: time.Now}
}

func (p *jwtProvider) Token(ctx context.Context) (string, error) {
	token, err := p.source.Token(ctx)
	if err != nil || token == "" {
		return token, err
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse auth token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return "", fmt.Errorf("read token expiry: %w", err)
	}
	if exp != nil && !exp.After(p.now()) {
		return "", ErrTokenExpired
	}
	return token, nil
}
