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

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bloodlink/bloodlink/internal/role"
)

// RoleRepository implements role.Repository
type RoleRepository struct {
	db *DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// users_count covers both base assignments and custom role overrides.
const roleQuery = `
	SELECT r.id, r.name, r.description, r.org_id, r.is_system_role, r.permissions,
		(SELECT count(*) FROM users u WHERE u.role_id = r.id OR u.custom_role_id = r.id),
		r.created_at, r.updated_at
	FROM roles r`

func scanRole(row pgx.Row) (*role.Role, error) {
	var r role.Role
	var permissions []byte
	err := row.Scan(
		&r.ID, &r.Name, &r.Description, &r.OrgID, &r.IsSystemRole, &permissions,
		&r.UsersCount, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, role.ErrRoleNotFound
		}
		return nil, fmt.Errorf("failed to scan role: %w", err)
	}
	if err := json.Unmarshal(permissions, &r.Permissions); err != nil {
		return nil, fmt.Errorf("failed to decode permissions: %w", err)
	}
	return &r, nil
}

// Create creates a new custom role
func (r *RoleRepository) Create(ctx context.Context, rl *role.Role) error {
	permissions, err := json.Marshal(rl.Permissions)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}

	now := time.Now()
	_, err = r.db.pool.Exec(ctx, `
		INSERT INTO roles (id, name, description, org_id, is_system_role, permissions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rl.ID, rl.Name, rl.Description, rl.OrgID, rl.IsSystemRole, permissions, now, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return role.ErrRoleExists
		}
		return fmt.Errorf("failed to insert role: %w", err)
	}

	rl.CreatedAt = now
	rl.UpdatedAt = now
	return nil
}

// GetByID retrieves a role by ID with users_count populated
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*role.Role, error) {
	row := r.db.pool.QueryRow(ctx, roleQuery+` WHERE r.id = $1`, id)
	return scanRole(row)
}

// GetByName retrieves a role by name within a scope
func (r *RoleRepository) GetByName(ctx context.Context, name string, orgID *string) (*role.Role, error) {
	row := r.db.pool.QueryRow(ctx, roleQuery+` WHERE r.name = $1 AND r.org_id IS NOT DISTINCT FROM $2`, name, orgID)
	return scanRole(row)
}

// List retrieves all roles with users_count populated
func (r *RoleRepository) List(ctx context.Context) ([]*role.Role, error) {
	rows, err := r.db.pool.Query(ctx, roleQuery+` ORDER BY r.is_system_role DESC, r.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []*role.Role
	for rows.Next() {
		rl, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, rl)
	}
	return roles, rows.Err()
}

// Update updates a custom role
func (r *RoleRepository) Update(ctx context.Context, rl *role.Role) error {
	permissions, err := json.Marshal(rl.Permissions)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}

	tag, err := r.db.pool.Exec(ctx, `
		UPDATE roles
		SET name = $2, description = $3, permissions = $4, updated_at = now()
		WHERE id = $1 AND is_system_role = FALSE
	`, rl.ID, rl.Name, rl.Description, permissions)
	if err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return role.ErrRoleNotFound
	}
	return nil
}

// Delete deletes a custom role. The in-use guard runs in the same
// statement, so a caller racing a role assignment cannot delete a role
// that just gained a user; the RESTRICT foreign key backs it up.
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.pool.Exec(ctx, `
		DELETE FROM roles
		WHERE id = $1 AND is_system_role = FALSE
			AND NOT EXISTS (
				SELECT 1 FROM users u WHERE u.role_id = $1 OR u.custom_role_id = $1
			)
	`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return role.ErrRoleInUse
		}
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing role from one that is still referenced.
		var inUse bool
		err := r.db.pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM users u WHERE u.role_id = $1 OR u.custom_role_id = $1)
		`, id).Scan(&inUse)
		if err != nil {
			return fmt.Errorf("failed to check role references: %w", err)
		}
		if inUse {
			return role.ErrRoleInUse
		}
		return role.ErrRoleNotFound
	}
	return nil
}

// AvailableModules returns the module vocabulary
func (r *RoleRepository) AvailableModules(ctx context.Context) (map[role.Module][]role.Action, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT module, actions FROM permission_modules ORDER BY sort_order
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query module vocabulary: %w", err)
	}
	defer rows.Close()

	vocabulary := make(map[role.Module][]role.Action)
	for rows.Next() {
		var module string
		var actions []string
		if err := rows.Scan(&module, &actions); err != nil {
			return nil, fmt.Errorf("failed to scan module vocabulary: %w", err)
		}
		list := make([]role.Action, 0, len(actions))
		for _, a := range actions {
			list = append(list, role.Action(a))
		}
		vocabulary[role.Module(module)] = list
	}
	return vocabulary, rows.Err()
}
