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

	"github.com/bloodlink/bloodlink/internal/stepup"
)

// StepUpRepository implements stepup.Repository
type StepUpRepository struct {
	db *DB
}

// NewStepUpRepository creates a new step-up verification repository
func NewStepUpRepository(db *DB) *StepUpRepository {
	return &StepUpRepository{db: db}
}

// Create persists a verification, superseding any pending one for the
// same scope so only the latest code can verify.
func (r *StepUpRepository) Create(ctx context.Context, v *stepup.Verification) error {
	tx, err := r.db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM stepup_verifications
		WHERE user_id = $1 AND action_type = $2 AND target_id = $3
			AND verified_at IS NULL AND consumed_at IS NULL
	`, v.UserID, v.ActionType, v.TargetID)
	if err != nil {
		return fmt.Errorf("failed to supersede pending verification: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO stepup_verifications (
			id, user_id, action_type, target_id, method, code_hash,
			attempts, expires_at, verified_at, consumed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		v.ID, v.UserID, v.ActionType, v.TargetID, v.Method, v.CodeHash,
		v.Attempts, v.ExpiresAt, v.VerifiedAt, v.ConsumedAt, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert verification: %w", err)
	}

	return tx.Commit(ctx)
}

// GetPending retrieves the unverified verification for the scope
func (r *StepUpRepository) GetPending(ctx context.Context, userID, actionType, targetID string) (*stepup.Verification, error) {
	var v stepup.Verification
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, user_id, action_type, target_id, method, code_hash,
			attempts, expires_at, verified_at, consumed_at, created_at
		FROM stepup_verifications
		WHERE user_id = $1 AND action_type = $2 AND target_id = $3
			AND verified_at IS NULL AND consumed_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, actionType, targetID).Scan(
		&v.ID, &v.UserID, &v.ActionType, &v.TargetID, &v.Method, &v.CodeHash,
		&v.Attempts, &v.ExpiresAt, &v.VerifiedAt, &v.ConsumedAt, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stepup.ErrVerificationNotFound
		}
		return nil, fmt.Errorf("failed to query verification: %w", err)
	}
	return &v, nil
}

// IncrementAttempts records a failed code entry
func (r *StepUpRepository) IncrementAttempts(ctx context.Context, id string) error {
	_, err := r.db.pool.Exec(ctx, `
		UPDATE stepup_verifications SET attempts = attempts + 1 WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// MarkVerified records a successful code entry
func (r *StepUpRepository) MarkVerified(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE stepup_verifications SET verified_at = $2
		WHERE id = $1 AND verified_at IS NULL
	`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return stepup.ErrVerificationNotFound
	}
	return nil
}

// Consume spends a verified verification. The consumed_at guard in the
// WHERE clause makes the token single-use even under concurrent
// requests: exactly one UPDATE wins.
func (r *StepUpRepository) Consume(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE stepup_verifications SET consumed_at = $2
		WHERE id = $1 AND verified_at IS NOT NULL AND consumed_at IS NULL
	`, id, at)
	if err != nil {
		return fmt.Errorf("failed to consume verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.pool.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM stepup_verifications WHERE id = $1)
		`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check verification: %w", err)
		}
		if exists {
			return stepup.ErrTokenConsumed
		}
		return stepup.ErrVerificationNotFound
	}
	return nil
}

// DeleteExpired removes verifications past their expiry
func (r *StepUpRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM stepup_verifications WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired verifications: %w", err)
	}
	return tag.RowsAffected(), nil
}
