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
	"errors"
	"time"
)

// Domain errors
var (
	ErrPrincipalNotFound  = errors.New("principal not found")
	ErrPrincipalExists    = errors.New("principal already exists")
	ErrPrincipalInactive  = errors.New("principal is deactivated")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrWeakPassword       = errors.New("password does not meet security requirements")
	ErrAccountLocked      = errors.New("account is locked")
)

// UserType classifies a principal's platform standing.
type UserType string

const (
	UserTypeSystemAdmin UserType = "system_admin"
	UserTypeSuperAdmin  UserType = "super_admin"
	UserTypeTenantAdmin UserType = "tenant_admin"
	UserTypeStaff       UserType = "staff"
)

// CanImpersonate reports whether this user type may act as another
// organization or branch.
func (t UserType) CanImpersonate() bool {
	return t == UserTypeSystemAdmin || t == UserTypeSuperAdmin
}

// IsAdminClass reports whether operations targeting a principal of this
// type require step-up verification.
func (t UserType) IsAdminClass() bool {
	return t == UserTypeSystemAdmin || t == UserTypeSuperAdmin || t == UserTypeTenantAdmin
}

// Principal represents an authenticated identity.
//
// OrgID is the home organization; nil means platform/global scope.
// CustomRoleID, when set and active, fully replaces the base role's
// permission set. Principals are never hard-deleted, only deactivated.
type Principal struct {
	ID                  string    `json:"id"`
	FullName            string    `json:"full_name"`
	Email               string    `json:"email"`
	UserType            UserType  `json:"user_type"`
	RoleID              string    `json:"role,omitempty"`
	OrgID               *string   `json:"org_id,omitempty"`
	CustomRoleID        *string   `json:"custom_role_id,omitempty"`
	IsActive            bool      `json:"is_active"`
	FailedLoginAttempts int       `json:"-"`
	LockedUntil         *time.Time `json:"-"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Credentials represents a principal's authentication credentials
type Credentials struct {
	UserID       string
	PasswordHash string
	UpdatedAt    time.Time
}

// Repository defines the interface for principal persistence
type Repository interface {
	// Create persists a principal and its credentials in one
	// transaction. A failure leaves neither row behind.
	Create(ctx context.Context, p *Principal, c *Credentials) error

	// GetByID retrieves a principal by ID
	GetByID(ctx context.Context, id string) (*Principal, error)

	// GetByEmail retrieves a principal by email
	GetByEmail(ctx context.Context, email string) (*Principal, error)

	// List retrieves principals, optionally filtered by home organization
	List(ctx context.Context, orgID *string) ([]*Principal, error)

	// Update updates principal information
	Update(ctx context.Context, p *Principal) error

	// UpdateLockout updates lockout status
	UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error

	// SetCustomRole sets or clears the custom role override
	SetCustomRole(ctx context.Context, userID string, customRoleID *string) error

	// Deactivate marks a principal inactive
	Deactivate(ctx context.Context, userID string) error

	// GetCredentials retrieves principal credentials
	GetCredentials(ctx context.Context, userID string) (*Credentials, error)

	// UpdatePassword updates the password hash
	UpdatePassword(ctx context.Context, userID string, passwordHash string) error
}
