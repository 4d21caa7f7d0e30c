// Copyright 2026 The BloodLink Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/bloodlink/bloodlink/internal/identity"
)

// Claims is the access token payload. The token encodes the effective
// context at issue time; every context switch re-issues it so clients
// never hold a token describing a stale identity.
type Claims struct {
	jwt.RegisteredClaims
	SessionID       string            `json:"sid"`
	UserType        identity.UserType `json:"user_type"`
	OrgID           *string           `json:"org_id,omitempty"`
	ActingUserType  identity.UserType `json:"acting_user_type"`
	IsImpersonating bool              `json:"impersonating"`
}

// TokenIssuer signs and parses access tokens with a symmetric key.
type TokenIssuer struct {
	key    []byte
	issuer string
}

// NewTokenIssuer creates a token issuer from the configured signing key.
func NewTokenIssuer(signingKey, issuer string) *TokenIssuer {
	return &TokenIssuer{key: []byte(signingKey), issuer: issuer}
}

// Issue mints an access token bound to the session and its current
// effective context. The token expires with the session.
func (t *TokenIssuer) Issue(s *Session, p *identity.Principal) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
		SessionID:       s.ID,
		UserType:        p.UserType,
		OrgID:           s.OrgID,
		ActingUserType:  s.ActingUserType,
		IsImpersonating: s.IsImpersonating,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// Parse validates a signed access token and returns its claims.
func (t *TokenIssuer) Parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.key, nil
	}, jwt.WithIssuer(t.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
