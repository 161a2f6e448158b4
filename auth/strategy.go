// Copyright 2025 The Power Virtual Agents SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"context"
	"fmt"

	"github.com/microsoft/power-virtual-agents-sdk/pva"
	"golang.org/x/oauth2"
)

// AuthorizingStrategy wraps a base [pva.Strategy] and injects a bearer
// Authorization header into every request it prepares, sourced from a
// token source (normally a [TokenProvider.ReuseTokenSource]).
type AuthorizingStrategy struct {
	Base   pva.Strategy
	Tokens oauth2.TokenSource
}

func (s *AuthorizingStrategy) PrepareStartNewConversation(ctx context.Context) (pva.RequestPrep, error) {
	prep, err := s.Base.PrepareStartNewConversation(ctx)
	if err != nil {
		return pva.RequestPrep{}, err
	}
	return s.authorize(prep)
}

func (s *AuthorizingStrategy) PrepareExecuteTurn(ctx context.Context) (pva.RequestPrep, error) {
	prep, err := s.Base.PrepareExecuteTurn(ctx)
	if err != nil {
		return pva.RequestPrep{}, err
	}
	return s.authorize(prep)
}

func (s *AuthorizingStrategy) authorize(prep pva.RequestPrep) (pva.RequestPrep, error) {
	tok, err := s.Tokens.Token()
	if err != nil {
		return pva.RequestPrep{}, fmt.Errorf("auth: failed to obtain token: %w", err)
	}
	headers := make(map[string]string, len(prep.Headers)+1)
	for k, v := range prep.Headers {
		headers[k] = v
	}
	headers["Authorization"] = tok.Type() + " " + tok.AccessToken
	prep.Headers = headers
	return prep, nil
}
