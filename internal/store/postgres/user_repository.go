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

	"github.com/bloodlink/bloodlink/internal/identity"
)

// UserRepository implements identity.Repository
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create persists a principal and its credentials in one transaction.
// A failed credentials insert rolls back the user row, so no active,
// credential-less principal can ever claim an email.
func (r *UserRepository) Create(ctx context.Context, p *identity.Principal, c *identity.Credentials) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	_, err = tx.Exec(ctx, `
		INSERT INTO users (
			id, full_name, email, user_type, role_id, org_id, custom_role_id,
			is_active, failed_login_attempts, locked_until, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		p.ID, p.FullName, p.Email, p.UserType, p.RoleID, p.OrgID, p.CustomRoleID,
		p.IsActive, p.FailedLoginAttempts, p.LockedUntil, now, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return identity.ErrPrincipalExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO credentials (user_id, password_hash, updated_at)
		VALUES ($1, $2, $3)
	`, c.UserID, c.PasswordHash, now)
	if err != nil {
		return fmt.Errorf("failed to insert credentials: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit user creation: %w", err)
	}

	p.CreatedAt = now
	p.UpdatedAt = now
	c.UpdatedAt = now
	return nil
}

const userColumns = `
	id, full_name, email, user_type, role_id, org_id, custom_role_id,
	is_active, failed_login_attempts, locked_until, created_at, updated_at`

func scanUser(row pgx.Row) (*identity.Principal, error) {
	var p identity.Principal
	err := row.Scan(
		&p.ID, &p.FullName, &p.Email, &p.UserType, &p.RoleID, &p.OrgID, &p.CustomRoleID,
		&p.IsActive, &p.FailedLoginAttempts, &p.LockedUntil, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &p, nil
}

// GetByID retrieves a principal by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*identity.Principal, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetByEmail retrieves a principal by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*identity.Principal, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// List retrieves principals, optionally filtered by home organization
func (r *UserRepository) List(ctx context.Context, orgID *string) ([]*identity.Principal, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at`
	args := []any{}
	if orgID != nil {
		query = `SELECT ` + userColumns + ` FROM users WHERE org_id = $1 ORDER BY created_at`
		args = append(args, *orgID)
	}

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var principals []*identity.Principal
	for rows.Next() {
		p, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		principals = append(principals, p)
	}
	return principals, rows.Err()
}

// Update updates principal information
func (r *UserRepository) Update(ctx context.Context, p *identity.Principal) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE users
		SET full_name = $2, email = $3, user_type = $4, role_id = $5,
			org_id = $6, is_active = $7, updated_at = now()
		WHERE id = $1
	`, p.ID, p.FullName, p.Email, p.UserType, p.RoleID, p.OrgID, p.IsActive)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrPrincipalNotFound
	}
	return nil
}

// UpdateLockout updates lockout status
func (r *UserRepository) UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = $2, locked_until = $3, updated_at = now()
		WHERE id = $1
	`, userID, failedAttempts, lockedUntil)
	if err != nil {
		return fmt.Errorf("failed to update lockout: %w", err)
	}
	return nil
}

// SetCustomRole sets or clears the custom role override
func (r *UserRepository) SetCustomRole(ctx context.Context, userID string, customRoleID *string) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE users SET custom_role_id = $2, updated_at = now() WHERE id = $1
	`, userID, customRoleID)
	if err != nil {
		return fmt.Errorf("failed to set custom role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrPrincipalNotFound
	}
	return nil
}

// Deactivate marks a principal inactive
func (r *UserRepository) Deactivate(ctx context.Context, userID string) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE users SET is_active = FALSE, updated_at = now() WHERE id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrPrincipalNotFound
	}
	return nil
}

// GetCredentials retrieves principal credentials
func (r *UserRepository) GetCredentials(ctx context.Context, userID string) (*identity.Credentials, error) {
	var c identity.Credentials
	err := r.db.pool.QueryRow(ctx, `
		SELECT user_id, password_hash, updated_at FROM credentials WHERE user_id = $1
	`, userID).Scan(&c.UserID, &c.PasswordHash, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	return &c, nil
}

// UpdatePassword updates the password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE credentials SET password_hash = $2, updated_at = now() WHERE user_id = $1
	`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return identity.ErrPrincipalNotFound
	}
	return nil
}
