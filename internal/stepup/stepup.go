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

package stepup

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrVerificationNotFound = errors.New("no pending verification")
	ErrVerificationExpired  = errors.New("verification expired")
	ErrCodeMismatch         = errors.New("verification code does not match")
	ErrInvalidCode          = errors.New("verification code must be numeric")
	ErrTokenConsumed        = errors.New("verification token already used")
	ErrInvalidToken         = errors.New("invalid verification token")
	ErrScopeMismatch        = errors.New("verification token does not cover this action")
)

// Method is how the caller proved their identity for the step-up.
type Method string

const (
	MethodPassword Method = "password"
	MethodOTP      Method = "otp"
)

// Verification is one step-up challenge, scoped to a single
// (action type, target) pair. A password verification is born
// verified; an OTP verification stays pending until the code matches.
// Consumption is recorded on the same row, making the issued token
// single-use.
type Verification struct {
	ID         string
	UserID     string
	ActionType string
	TargetID   string
	Method     Method
	CodeHash   string
	Attempts   int
	ExpiresAt  time.Time
	VerifiedAt *time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// IsExpired reports whether the verification window has closed.
func (v *Verification) IsExpired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

// CodeSender delivers one-time codes to a principal. Production wires
// an email or SMS gateway; development logs the code.
type CodeSender interface {
	SendCode(ctx context.Context, email, code string) error
}

// Repository defines the interface for verification persistence
type Repository interface {
	// Create persists a new verification, superseding any pending
	// verification for the same (user, action type, target)
	Create(ctx context.Context, v *Verification) error

	// GetPending retrieves the unverified, unconsumed verification for
	// the scope
	GetPending(ctx context.Context, userID, actionType, targetID string) (*Verification, error)

	// IncrementAttempts records a failed code entry
	IncrementAttempts(ctx context.Context, id string) error

	// MarkVerified records a successful code entry
	MarkVerified(ctx context.Context, id string, at time.Time) error

	// Consume marks a verified verification as used. Must fail with
	// ErrTokenConsumed when already consumed, in a single atomic
	// statement so two racing requests cannot both spend the token.
	Consume(ctx context.Context, id string, at time.Time) error

	// DeleteExpired removes verifications past their expiry and returns
	// the count removed
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
