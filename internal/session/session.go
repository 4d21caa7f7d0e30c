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
	"context"
	"errors"
	"time"

	"github.com/bloodlink/bloodlink/internal/identity"
)

// Domain errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrInvalidToken    = errors.New("invalid access token")
	ErrNotEntitled     = errors.New("user type cannot switch context")
	ErrInvalidActing   = errors.New("acting user type is not assumable")
)

// EffectiveContext is the identity a session currently acts under. At
// login it equals the principal's home context; a switch replaces it
// wholesale, an exit restores the home context. There is never a stack
// of nested contexts.
//
// OrgID nil with IsImpersonating false is the global context: the
// platform-wide scope of a system admin with no home organization.
type EffectiveContext struct {
	OrgID           *string           `json:"org_id,omitempty"`
	OrgName         string            `json:"org_name,omitempty"`
	ActingUserType  identity.UserType `json:"acting_user_type"`
	IsImpersonating bool              `json:"is_impersonating"`
}

// IsGlobal reports whether this is the global (platform-wide) context.
func (c EffectiveContext) IsGlobal() bool {
	return c.OrgID == nil && !c.IsImpersonating
}

// Session is one authenticated console session. The effective context
// lives on the session row, so a switch in one tab is visible to every
// request carrying the same session.
type Session struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id"`
	OrgID           *string           `json:"org_id,omitempty"`
	OrgName         string            `json:"org_name,omitempty"`
	ActingUserType  identity.UserType `json:"acting_user_type"`
	IsImpersonating bool              `json:"is_impersonating"`
	IPAddress       string            `json:"-"`
	UserAgent       string            `json:"-"`
	CreatedAt       time.Time         `json:"created_at"`
	LastSeenAt      time.Time         `json:"last_seen_at"`
	ExpiresAt       time.Time         `json:"expires_at"`
}

// Context returns the session's effective context.
func (s *Session) Context() EffectiveContext {
	return EffectiveContext{
		OrgID:           s.OrgID,
		OrgName:         s.OrgName,
		ActingUserType:  s.ActingUserType,
		IsImpersonating: s.IsImpersonating,
	}
}

// IsExpired reports whether the session has passed its absolute expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Repository defines the interface for session persistence
type Repository interface {
	// Create persists a new session
	Create(ctx context.Context, s *Session) error

	// GetByID retrieves a session by ID
	GetByID(ctx context.Context, id string) (*Session, error)

	// ReplaceContext atomically replaces the effective context and
	// returns the updated session. Partial updates never land: the
	// whole context changes in one statement or not at all.
	ReplaceContext(ctx context.Context, sessionID string, ec EffectiveContext) (*Session, error)

	// Touch advances last_seen_at
	Touch(ctx context.Context, sessionID string, at time.Time) error

	// Delete removes a session
	Delete(ctx context.Context, sessionID string) error

	// DeleteByUserID removes all sessions belonging to a user
	DeleteByUserID(ctx context.Context, userID string) (int64, error)

	// DeleteExpired removes sessions past their expiry and returns the
	// count removed
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
