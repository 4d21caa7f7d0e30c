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
	"fmt"

	"github.com/bloodlink/bloodlink/internal/audit"
	"github.com/bloodlink/bloodlink/internal/id"
	"github.com/bloodlink/bloodlink/internal/identity"
)

// Service provides the role and permission registry
type Service struct {
	repo        Repository
	auditLogger audit.Logger
}

// NewService creates a new role service
func NewService(repo Repository, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
	}
}

// RoleList partitions roles by origin for the management screens.
type RoleList struct {
	SystemRoles []*Role `json:"system_roles"`
	CustomRoles []*Role `json:"custom_roles"`
}

// ListRoles returns all roles partitioned into system and custom.
func (s *Service) ListRoles(ctx context.Context) (*RoleList, error) {
	roles, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}

	list := &RoleList{SystemRoles: []*Role{}, CustomRoles: []*Role{}}
	for _, r := range roles {
		if r.IsSystemRole {
			list.SystemRoles = append(list.SystemRoles, r)
		} else {
			list.CustomRoles = append(list.CustomRoles, r)
		}
	}
	return list, nil
}

// GetRole retrieves a role by ID
func (s *Service) GetRole(ctx context.Context, roleID string) (*Role, error) {
	return s.repo.GetByID(ctx, roleID)
}

// CreateParams holds the attributes for a new custom role
type CreateParams struct {
	Name        string
	Description string
	OrgID       *string
	Permissions PermissionSet
}

// CreateCustomRole creates an admin-defined role. The name must be
// non-empty and unique within its scope. An empty permission set is
// legal; the console warns but the registry accepts it.
func (s *Service) CreateCustomRole(ctx context.Context, actorID string, params CreateParams) (*Role, error) {
	if params.Name == "" {
		return nil, ErrEmptyRoleName
	}
	if params.Permissions.IsWildcard() {
		return nil, fmt.Errorf("custom roles cannot carry the wildcard grant")
	}

	if existing, err := s.repo.GetByName(ctx, params.Name, params.OrgID); err == nil && existing != nil {
		return nil, ErrRoleExists
	}

	r := &Role{
		ID:           id.NewUUIDv7(),
		Name:         params.Name,
		Description:  params.Description,
		OrgID:        params.OrgID,
		IsSystemRole: false,
		Permissions:  params.Permissions,
	}

	if err := s.repo.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleCreated,
		ActorID:  actorID,
		Resource: r.ID,
		Metadata: map[string]any{"name": r.Name},
	})

	return r, nil
}

// UpdateParams holds the mutable attributes of a custom role. Nil
// fields are left unchanged.
type UpdateParams struct {
	Name        *string
	Description *string
	Permissions *PermissionSet
}

// UpdateCustomRole patches a custom role. Permission mutations take
// effect on the next permission check, never retroactively.
func (s *Service) UpdateCustomRole(ctx context.Context, actorID, roleID string, patch UpdateParams) (*Role, error) {
	r, err := s.repo.GetByID(ctx, roleID)
	if err != nil {
		return nil, ErrRoleNotFound
	}
	if r.IsSystemRole {
		return nil, ErrRoleImmutable
	}

	if patch.Name != nil {
		if *patch.Name == "" {
			return nil, ErrEmptyRoleName
		}
		if existing, err := s.repo.GetByName(ctx, *patch.Name, r.OrgID); err == nil && existing != nil && existing.ID != r.ID {
			return nil, ErrRoleExists
		}
		r.Name = *patch.Name
	}
	if patch.Description != nil {
		r.Description = *patch.Description
	}
	if patch.Permissions != nil {
		if patch.Permissions.IsWildcard() {
			return nil, fmt.Errorf("custom roles cannot carry the wildcard grant")
		}
		r.Permissions = *patch.Permissions
	}

	if err := s.repo.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleUpdated,
		ActorID:  actorID,
		Resource: r.ID,
		Metadata: map[string]any{"name": r.Name},
	})

	return r, nil
}

// DeleteCustomRole deletes a custom role. Fails with ErrRoleInUse
// while any principal references it; the repository enforces the same
// guard so a bypassed client check cannot slip through.
func (s *Service) DeleteCustomRole(ctx context.Context, actorID, roleID string) error {
	r, err := s.repo.GetByID(ctx, roleID)
	if err != nil {
		return ErrRoleNotFound
	}
	if r.IsSystemRole {
		return ErrRoleImmutable
	}
	if r.UsersCount > 0 {
		return ErrRoleInUse
	}

	if err := s.repo.Delete(ctx, roleID); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleDeleted,
		ActorID:  actorID,
		Resource: roleID,
		Metadata: map[string]any{"name": r.Name},
	})

	return nil
}

// DuplicateRole deep-copies a role's name and permission set into a
// new custom role. users_count is never copied. The copy gets a
// disambiguating suffix; collisions append a counter.
func (s *Service) DuplicateRole(ctx context.Context, actorID, roleID string) (*Role, error) {
	src, err := s.repo.GetByID(ctx, roleID)
	if err != nil {
		return nil, ErrRoleNotFound
	}
	if src.Permissions.IsWildcard() {
		return nil, fmt.Errorf("the wildcard role cannot be duplicated")
	}

	name := src.Name + " (copy)"
	for n := 2; ; n++ {
		existing, err := s.repo.GetByName(ctx, name, src.OrgID)
		if err != nil || existing == nil {
			break
		}
		name = fmt.Sprintf("%s (copy %d)", src.Name, n)
	}

	dup := &Role{
		ID:           id.NewUUIDv7(),
		Name:         name,
		Description:  src.Description,
		OrgID:        src.OrgID,
		IsSystemRole: false,
		Permissions:  src.Permissions.Clone(),
	}

	if err := s.repo.Create(ctx, dup); err != nil {
		return nil, fmt.Errorf("failed to duplicate role: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeRoleDuplicated,
		ActorID:  actorID,
		Resource: dup.ID,
		Metadata: map[string]any{"source_role_id": src.ID},
	})

	return dup, nil
}

// AvailableModules returns the module→actions vocabulary from the
// store, keeping client and server capability lists in lockstep.
func (s *Service) AvailableModules(ctx context.Context) (map[Module][]Action, error) {
	return s.repo.AvailableModules(ctx)
}

// EffectiveRole resolves the role whose permission set governs a
// principal acting as actingUserType. A custom role override, when set
// and still existing, fully replaces the base role: no merging. Partial
// merges would broaden or narrow access in ways that cannot be audited.
func (s *Service) EffectiveRole(ctx context.Context, p *identity.Principal, actingUserType identity.UserType) (*Role, error) {
	if p.CustomRoleID != nil {
		if r, err := s.repo.GetByID(ctx, *p.CustomRoleID); err == nil && r != nil {
			return r, nil
		}
		// Deleted override falls back to the base role on the next
		// check, per registry semantics.
	}

	if p.UserType == identity.UserTypeStaff && p.RoleID != "" {
		return s.repo.GetByID(ctx, p.RoleID)
	}

	r, err := s.repo.GetByName(ctx, baseRoleName(actingUserType), nil)
	if err != nil {
		return nil, ErrRoleNotFound
	}
	return r, nil
}

// baseRoleName maps an acting user type to its system role. Platform
// admin types resolve to the wildcard admin role.
func baseRoleName(t identity.UserType) string {
	switch t {
	case identity.UserTypeSystemAdmin, identity.UserTypeSuperAdmin:
		return RoleNameAdmin
	case identity.UserTypeTenantAdmin:
		return RoleNameTenantAdmin
	default:
		return RoleNameStaff
	}
}

// HasPermission is the single authorization predicate. Pure with
// respect to its inputs: same role, module, and action always yield
// the same answer until a role mutation lands in the store.
func (s *Service) HasPermission(effective *Role, m Module, a Action) bool {
	if effective == nil {
		return false
	}
	return effective.Has(m, a)
}
