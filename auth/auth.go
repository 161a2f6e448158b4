// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package auth supplies bearer-token credentials to a [pva.Strategy],
// refreshing them between turns as their expiration approaches.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrExpired is wrapped into the error returned by a [TokenProvider] when
// the credential function produced a token that was already expired.
var ErrExpired = errors.New("auth: token expired")

// CredentialFunc obtains a fresh bearer token from whatever external
// credential source the caller configures (a managed identity, a client
// credentials exchange, a static token for tests). It has no opinion on how
// the token was obtained.
type CredentialFunc func(ctx context.Context) (string, error)

// TokenProvider turns a [CredentialFunc] into an [oauth2.TokenSource] that
// inspects the `exp` claim of the JWTs it receives. Token itself calls the
// credential function on every call; wrapped by [TokenProvider.ReuseTokenSource],
// the credential function is only called again once a token is close to
// expiring, rather than on every turn.
type TokenProvider struct {
	fn     CredentialFunc
	leeway time.Duration
}

// NewTokenProvider returns a TokenProvider. leeway controls how far before
// the token's `exp` claim [TokenProvider.ReuseTokenSource] triggers a
// refresh; zero selects the oauth2 package's default early-expiry window.
func NewTokenProvider(fn CredentialFunc, leeway time.Duration) *TokenProvider {
	return &TokenProvider{fn: fn, leeway: leeway}
}

// Token implements oauth2.TokenSource.
func (p *TokenProvider) Token() (*oauth2.Token, error) {
	raw, err := p.fn(context.Background())
	if err != nil {
		return nil, fmt.Errorf("auth: credential function failed: %w", err)
	}
	expiry, err := expiryOf(raw)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: raw,
		TokenType:   "Bearer",
		Expiry:      expiry,
	}, nil
}

// ReuseTokenSource wraps p in an [oauth2.ReuseTokenSource] so a cached token
// is reused across turns until it is within p's leeway of expiring (spec
// §4.6's "credentials are refreshed only as needed").
func (p *TokenProvider) ReuseTokenSource() oauth2.TokenSource {
	return oauth2.ReuseTokenSourceWithExpiry(nil, p, p.leeway)
}

func expiryOf(raw string) (time.Time, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		// Not a JWT, or unparsable: treat as a long-lived opaque token with
		// no expiration the provider can reason about.
		return time.Now().Add(100 * 365 * 24 * time.Hour), nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Now().Add(100 * 365 * 24 * time.Hour), nil
	}
	if exp.Before(time.Now()) {
		return time.Time{}, fmt.Errorf("%w at %s", ErrExpired, exp.Time)
	}
	return exp.Time, nil
}
