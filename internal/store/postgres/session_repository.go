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

	"github.com/bloodlink/bloodlink/internal/session"
)

// SessionRepository implements session.Repository
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `
	id, user_id, org_id, org_name, acting_user_type, is_impersonating,
	ip_address, user_agent, created_at, last_seen_at, expires_at`

func scanSession(row pgx.Row) (*session.Session, error) {
	var s session.Session
	err := row.Scan(
		&s.ID, &s.UserID, &s.OrgID, &s.OrgName, &s.ActingUserType, &s.IsImpersonating,
		&s.IPAddress, &s.UserAgent, &s.CreatedAt, &s.LastSeenAt, &s.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return &s, nil
}

// Create persists a new session
func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO sessions (
			id, user_id, org_id, org_name, acting_user_type, is_impersonating,
			ip_address, user_agent, created_at, last_seen_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		s.ID, s.UserID, s.OrgID, s.OrgName, s.ActingUserType, s.IsImpersonating,
		s.IPAddress, s.UserAgent, s.CreatedAt, s.LastSeenAt, s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by ID
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*session.Session, error) {
	row := r.db.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

// ReplaceContext atomically replaces the effective context. The single
// UPDATE .. RETURNING means concurrent switches serialize on the row
// and no request ever observes a half-replaced context.
func (r *SessionRepository) ReplaceContext(ctx context.Context, sessionID string, ec session.EffectiveContext) (*session.Session, error) {
	row := r.db.pool.QueryRow(ctx, `
		UPDATE sessions
		SET org_id = $2, org_name = $3, acting_user_type = $4, is_impersonating = $5
		WHERE id = $1
		RETURNING `+sessionColumns,
		sessionID, ec.OrgID, ec.OrgName, ec.ActingUserType, ec.IsImpersonating,
	)
	return scanSession(row)
}

// Touch advances last_seen_at
func (r *SessionRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE sessions SET last_seen_at = $2 WHERE id = $1
	`, sessionID, at)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// Delete removes a session
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	_, err := r.db.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID removes all sessions belonging to a user
func (r *SessionRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes sessions past their expiry
func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
