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

package role

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrRoleNotFound   = errors.New("role not found")
	ErrRoleExists     = errors.New("role already exists in this scope")
	ErrRoleInUse      = errors.New("role is assigned to users and cannot be deleted")
	ErrRoleImmutable  = errors.New("system roles cannot be modified or deleted")
	ErrEmptyRoleName  = errors.New("role name is required")
)

// System-defined role IDs seeded by the initial schema migration.
// These UUIDs must remain stable across deployments.
const (
	// RoleIDAdmin carries the wildcard grant: every action on every
	// module. The only wildcard role in the system.
	RoleIDAdmin = "20000000-0000-0000-0000-000000000001"

	// RoleIDTenantAdmin is the acting role assumed when impersonating
	// an organization as its administrator.
	RoleIDTenantAdmin = "20000000-0000-0000-0000-000000000002"

	// RoleIDRegistration covers donor intake desks.
	RoleIDRegistration = "20000000-0000-0000-0000-000000000003"

	// RoleIDStaff is the default operational role.
	RoleIDStaff = "20000000-0000-0000-0000-000000000004"
)

// System role names
const (
	RoleNameAdmin        = "admin"
	RoleNameTenantAdmin  = "tenant_admin"
	RoleNameRegistration = "registration"
	RoleNameStaff        = "staff"
)

// Role is either a system role (fixed name, immutable permissions,
// never deletable) or a custom role (admin-defined, optionally scoped
// to one organization, deletable only while unreferenced).
type Role struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description,omitempty"`
	OrgID        *string       `json:"org_id,omitempty"`
	IsSystemRole bool          `json:"is_system_role"`
	Permissions  PermissionSet `json:"permissions"`
	UsersCount   int           `json:"users_count"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Has reports whether the role grants action on module.
func (r *Role) Has(m Module, a Action) bool {
	return r.Permissions.Has(m, a)
}

// Repository defines the interface for role persistence
type Repository interface {
	// Create creates a new custom role
	Create(ctx context.Context, r *Role) error

	// GetByID retrieves a role by ID, with its users_count populated
	GetByID(ctx context.Context, id string) (*Role, error)

	// GetByName retrieves a role by name within a scope (nil orgID =
	// platform scope)
	GetByName(ctx context.Context, name string, orgID *string) (*Role, error)

	// List retrieves all roles with users_count populated
	List(ctx context.Context) ([]*Role, error)

	// Update updates a custom role
	Update(ctx context.Context, r *Role) error

	// Delete deletes a custom role. Must fail with ErrRoleInUse while
	// any principal references the role, regardless of what the caller
	// already checked.
	Delete(ctx context.Context, id string) error

	// AvailableModules returns the module→actions vocabulary
	AvailableModules(ctx context.Context) (map[Module][]Action, error)
}
