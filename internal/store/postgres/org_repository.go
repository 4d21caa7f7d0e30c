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
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bloodlink/bloodlink/internal/org"
)

// OrgRepository implements org.Repository
type OrgRepository struct {
	db *DB
}

// NewOrgRepository creates a new organization repository
func NewOrgRepository(db *DB) *OrgRepository {
	return &OrgRepository{db: db}
}

const orgColumns = `
	id, name, is_parent, parent_org_id, city, address, latitude, longitude,
	is_active, created_at, updated_at`

func scanOrg(row pgx.Row) (*org.Organization, error) {
	var o org.Organization
	err := row.Scan(
		&o.ID, &o.Name, &o.IsParent, &o.ParentOrgID, &o.City, &o.Address,
		&o.Latitude, &o.Longitude, &o.IsActive, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, org.ErrOrgNotFound
		}
		return nil, fmt.Errorf("failed to scan organization: %w", err)
	}
	return &o, nil
}

// Create creates a new organization
func (r *OrgRepository) Create(ctx context.Context, o *org.Organization) error {
	now := time.Now()
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO organizations (
			id, name, is_parent, parent_org_id, city, address, latitude, longitude,
			is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		o.ID, o.Name, o.IsParent, o.ParentOrgID, o.City, o.Address,
		o.Latitude, o.Longitude, o.IsActive, now, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return org.ErrOrgAlreadyExists
		}
		return fmt.Errorf("failed to insert organization: %w", err)
	}

	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

// GetByID retrieves an organization by ID
func (r *OrgRepository) GetByID(ctx context.Context, id string) (*org.Organization, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id)
	return scanOrg(row)
}

// GetByName retrieves an organization by name
func (r *OrgRepository) GetByName(ctx context.Context, name string) (*org.Organization, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE name = $1`, name)
	return scanOrg(row)
}

// Update updates mutable organization attributes
func (r *OrgRepository) Update(ctx context.Context, o *org.Organization) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE organizations
		SET name = $2, city = $3, address = $4, latitude = $5, longitude = $6,
			is_active = $7, updated_at = now()
		WHERE id = $1
	`, o.ID, o.Name, o.City, o.Address, o.Latitude, o.Longitude, o.IsActive)
	if err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return org.ErrOrgNotFound
	}
	return nil
}

// Deactivate marks an organization inactive
func (r *OrgRepository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE organizations SET is_active = FALSE, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return org.ErrOrgNotFound
	}
	return nil
}

// ListActive retrieves all active organizations, roots before branches
func (r *OrgRepository) ListActive(ctx context.Context) ([]*org.Organization, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+orgColumns+` FROM organizations
		WHERE is_active = TRUE
		ORDER BY is_parent DESC, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*org.Organization
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}
