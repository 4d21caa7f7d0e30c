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

package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bloodlink/bloodlink/internal/audit"
	"github.com/bloodlink/bloodlink/internal/id"
)

// Service provides identity-related business logic
type Service struct {
	repo               Repository
	hasher             *PasswordHasher
	auditLogger        audit.Logger
	lockoutMaxAttempts int
	lockoutDuration    time.Duration
}

// NewService creates a new identity service
func NewService(
	repo Repository,
	hasher *PasswordHasher,
	auditLogger audit.Logger,
	lockoutMaxAttempts int,
	lockoutDuration time.Duration,
) *Service {
	return &Service{
		repo:               repo,
		hasher:             hasher,
		auditLogger:        auditLogger,
		lockoutMaxAttempts: lockoutMaxAttempts,
		lockoutDuration:    lockoutDuration,
	}
}

// CreateParams holds the attributes for provisioning a new principal
type CreateParams struct {
	FullName     string
	Email        string
	UserType     UserType
	RoleID       string
	OrgID        *string
	Password     string
}

// Create provisions a new principal with credentials
func (s *Service) Create(ctx context.Context, params CreateParams) (*Principal, error) {
	if !isValidEmail(params.Email) {
		return nil, ErrInvalidEmail
	}
	if !isStrongPassword(params.Password) {
		return nil, ErrWeakPassword
	}

	if existing, err := s.repo.GetByEmail(ctx, params.Email); err == nil && existing != nil {
		return nil, ErrPrincipalExists
	}

	passwordHash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	p := &Principal{
		ID:       id.NewUUIDv7(),
		FullName: params.FullName,
		Email:    strings.ToLower(params.Email),
		UserType: params.UserType,
		RoleID:   params.RoleID,
		OrgID:    params.OrgID,
		IsActive: true,
	}

	if err := s.repo.Create(ctx, p, &Credentials{UserID: p.ID, PasswordHash: passwordHash}); err != nil {
		return nil, fmt.Errorf("failed to create principal: %w", err)
	}

	return p, nil
}

// Authenticate authenticates a principal with email and password
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Principal, error) {
	p, err := s.repo.GetByEmail(ctx, strings.ToLower(email))
	if err != nil {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			Resource: email,
			Metadata: map[string]any{audit.AttrReason: "user_not_found"},
		})
		return nil, ErrInvalidCredentials
	}

	if !p.IsActive {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  p.ID,
			Resource: "login",
			Metadata: map[string]any{audit.AttrReason: "deactivated"},
		})
		return nil, ErrPrincipalInactive
	}

	if p.LockedUntil != nil && p.LockedUntil.After(time.Now()) {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  p.ID,
			Resource: "login",
			Metadata: map[string]any{audit.AttrReason: "locked_out"},
		})
		return nil, ErrAccountLocked
	}

	credentials, err := s.repo.GetCredentials(ctx, p.ID)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	valid, err := s.hasher.Verify(password, credentials.PasswordHash)
	if err != nil || !valid {
		newAttempts := p.FailedLoginAttempts + 1
		var newLockedUntil *time.Time

		if newAttempts >= s.lockoutMaxAttempts {
			until := time.Now().Add(s.lockoutDuration)
			newLockedUntil = &until
			s.auditLogger.Log(ctx, audit.Event{
				Type:     audit.TypeUserLocked,
				ActorID:  p.ID,
				Resource: "login",
				Metadata: map[string]any{audit.AttrAttempts: newAttempts},
			})
		}

		_ = s.repo.UpdateLockout(ctx, p.ID, newAttempts, newLockedUntil)

		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeLoginFailed,
			ActorID:  p.ID,
			Resource: "login",
			Metadata: map[string]any{
				audit.AttrReason:   "invalid_password",
				audit.AttrAttempts: newAttempts,
			},
		})

		return nil, ErrInvalidCredentials
	}

	if p.FailedLoginAttempts > 0 || p.LockedUntil != nil {
		_ = s.repo.UpdateLockout(ctx, p.ID, 0, nil)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeLoginSuccess,
		ActorID:  p.ID,
		Resource: "login",
	})

	return p, nil
}

// VerifyPassword checks a password against a principal's stored credentials
// without mutating lockout state. The step-up gate uses this; login attempt
// caps stay a login concern.
func (s *Service) VerifyPassword(ctx context.Context, userID, password string) (bool, error) {
	credentials, err := s.repo.GetCredentials(ctx, userID)
	if err != nil {
		return false, ErrPrincipalNotFound
	}
	return s.hasher.Verify(password, credentials.PasswordHash)
}

// GetPrincipal retrieves a principal by ID
func (s *Service) GetPrincipal(ctx context.Context, userID string) (*Principal, error) {
	p, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, ErrPrincipalNotFound
	}
	return p, nil
}

// ListPrincipals retrieves principals, optionally scoped to an organization
func (s *Service) ListPrincipals(ctx context.Context, orgID *string) ([]*Principal, error) {
	return s.repo.List(ctx, orgID)
}

// UpdateProfile updates mutable principal attributes
func (s *Service) UpdateProfile(ctx context.Context, userID, fullName string) error {
	p, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return ErrPrincipalNotFound
	}
	p.FullName = fullName
	return s.repo.Update(ctx, p)
}

// Deactivate marks a principal inactive. Principals are never hard-deleted.
func (s *Service) Deactivate(ctx context.Context, actorID, userID, ipAddr string) error {
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return ErrPrincipalNotFound
	}
	if err := s.repo.Deactivate(ctx, userID); err != nil {
		return fmt.Errorf("failed to deactivate principal: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeUserDeactivated,
		ActorID:   actorID,
		Resource:  userID,
		IPAddress: ipAddr,
	})
	return nil
}

// SetPermissionOverride sets or clears a principal's custom role override.
// When set, the custom role's permission set fully replaces the base role.
func (s *Service) SetPermissionOverride(ctx context.Context, actorID, userID string, customRoleID *string) error {
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return ErrPrincipalNotFound
	}
	if err := s.repo.SetCustomRole(ctx, userID, customRoleID); err != nil {
		return fmt.Errorf("failed to set permission override: %w", err)
	}

	meta := map[string]any{"custom_role_id": ""}
	if customRoleID != nil {
		meta["custom_role_id"] = *customRoleID
	}
	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserUpdated,
		ActorID:  actorID,
		Resource: userID,
		Metadata: meta,
	})
	return nil
}

// ChangePassword changes a principal's password
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	credentials, err := s.repo.GetCredentials(ctx, userID)
	if err != nil {
		return ErrPrincipalNotFound
	}

	valid, err := s.hasher.Verify(oldPassword, credentials.PasswordHash)
	if err != nil || !valid {
		return ErrInvalidCredentials
	}

	if !isStrongPassword(newPassword) {
		return ErrWeakPassword
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.repo.UpdatePassword(ctx, userID, newHash)
}

// Helper functions
func isValidEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && len(email) < 255
}

func isStrongPassword(password string) bool {
	return len(password) >= 8
}
