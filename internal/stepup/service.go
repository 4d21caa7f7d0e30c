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
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bloodlink/bloodlink/internal/audit"
	"github.com/bloodlink/bloodlink/internal/id"
	"github.com/bloodlink/bloodlink/internal/identity"
	"github.com/bloodlink/bloodlink/internal/observability/metrics"
)

// PasswordVerifier checks a live password against stored credentials.
// Satisfied by the identity service.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, userID, password string) (bool, error)
}

// Service is the step-up authentication gate. Sensitive actions must
// present a verification token obtained here; the token is scoped to
// one (action type, target) pair and spent on first use.
type Service struct {
	repo            Repository
	verifier        PasswordVerifier
	sender          CodeSender
	issuer          *TokenIssuer
	auditLogger     audit.Logger
	meter           *metrics.Meter
	verificationTTL time.Duration
	otpLength       int
}

// NewService creates a new step-up service.
func NewService(repo Repository, verifier PasswordVerifier, sender CodeSender, issuer *TokenIssuer, auditLogger audit.Logger, meter *metrics.Meter, verificationTTL time.Duration, otpLength int) *Service {
	return &Service{
		repo:            repo,
		verifier:        verifier,
		sender:          sender,
		issuer:          issuer,
		auditLogger:     auditLogger,
		meter:           meter,
		verificationTTL: verificationTTL,
		otpLength:       otpLength,
	}
}

// VerifyPassword proves the caller's identity with their live password
// and, on success, returns a verification token for the scope. Failed
// attempts never feed the login lockout counter.
func (s *Service) VerifyPassword(ctx context.Context, p *identity.Principal, password, actionType, targetID string) (string, error) {
	ok, err := s.verifier.VerifyPassword(ctx, p.ID, password)
	if err != nil {
		return "", fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		s.recordFailure(ctx, p.ID, actionType, targetID, "password_mismatch")
		return "", identity.ErrInvalidCredentials
	}

	now := time.Now()
	v := &Verification{
		ID:         id.NewULID(),
		UserID:     p.ID,
		ActionType: actionType,
		TargetID:   targetID,
		Method:     MethodPassword,
		ExpiresAt:  now.Add(s.verificationTTL),
		VerifiedAt: &now,
		CreatedAt:  now,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return "", fmt.Errorf("failed to record verification: %w", err)
	}

	return s.issueToken(ctx, v)
}

// RequestOTP generates a one-time code for the scope and delivers it
// to the principal. A repeated request supersedes the previous pending
// code; only the latest code can verify.
func (s *Service) RequestOTP(ctx context.Context, p *identity.Principal, actionType, targetID string) (*Verification, error) {
	code, err := id.NewCode(s.otpLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate verification code: %w", err)
	}

	now := time.Now()
	v := &Verification{
		ID:         id.NewULID(),
		UserID:     p.ID,
		ActionType: actionType,
		TargetID:   targetID,
		Method:     MethodOTP,
		CodeHash:   hashCode(code),
		ExpiresAt:  now.Add(s.verificationTTL),
		CreatedAt:  now,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("failed to record verification: %w", err)
	}

	if err := s.sender.SendCode(ctx, p.Email, code); err != nil {
		return nil, fmt.Errorf("failed to deliver verification code: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:    audit.TypeStepUpRequested,
		ActorID: p.ID,
		Metadata: map[string]any{
			"action_type": actionType,
			"target_id":   targetID,
			"method":      string(MethodOTP),
		},
	})

	return v, nil
}

// VerifyOTP checks a submitted code against the pending verification
// for the scope. A malformed code is rejected before the store is
// touched; a mismatch counts an attempt and leaves the code pending.
func (s *Service) VerifyOTP(ctx context.Context, p *identity.Principal, code, actionType, targetID string) (string, error) {
	if !isValidCode(code, s.otpLength) {
		return "", ErrInvalidCode
	}

	v, err := s.repo.GetPending(ctx, p.ID, actionType, targetID)
	if err != nil {
		return "", ErrVerificationNotFound
	}
	if v.IsExpired(time.Now()) {
		return "", ErrVerificationExpired
	}

	if subtle.ConstantTimeCompare([]byte(hashCode(code)), []byte(v.CodeHash)) != 1 {
		if err := s.repo.IncrementAttempts(ctx, v.ID); err != nil {
			slog.WarnContext(ctx, "failed to record verification attempt", "verification_id", v.ID, "error", err)
		}
		s.recordFailure(ctx, p.ID, actionType, targetID, "code_mismatch")
		return "", ErrCodeMismatch
	}

	now := time.Now()
	if err := s.repo.MarkVerified(ctx, v.ID, now); err != nil {
		return "", fmt.Errorf("failed to mark verification: %w", err)
	}
	v.VerifiedAt = &now

	return s.issueToken(ctx, v)
}

// Consume spends a verification token for one sensitive action. The
// token must cover exactly the (action type, target) being performed,
// belong to the caller, and be unspent. Succeeds at most once per
// token even under concurrent use.
func (s *Service) Consume(ctx context.Context, tokenString, userID, actionType, targetID string) error {
	claims, err := s.issuer.Parse(tokenString)
	if err != nil {
		return err
	}
	if claims.Subject != userID || claims.ActionType != actionType || claims.TargetID != targetID {
		return ErrScopeMismatch
	}

	if err := s.repo.Consume(ctx, claims.ID, time.Now()); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeStepUpConsumed,
		ActorID:  userID,
		Resource: claims.ID,
		Metadata: map[string]any{
			"action_type": actionType,
			"target_id":   targetID,
		},
	})
	return nil
}

// CleanupExpired removes verifications past their expiry.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up verifications: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "removed expired verifications", "count", n)
	}
	return n, nil
}

func (s *Service) issueToken(ctx context.Context, v *Verification) (string, error) {
	token, err := s.issuer.Issue(v)
	if err != nil {
		return "", err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeStepUpVerified,
		ActorID:  v.UserID,
		Resource: v.ID,
		Metadata: map[string]any{
			"action_type": v.ActionType,
			"target_id":   v.TargetID,
			"method":      string(v.Method),
		},
	})
	if s.meter != nil {
		s.meter.StepUpVerified.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", string(v.Method)),
		))
	}
	return token, nil
}

func (s *Service) recordFailure(ctx context.Context, userID, actionType, targetID, reason string) {
	s.auditLogger.Log(ctx, audit.Event{
		Type:    audit.TypeStepUpFailed,
		ActorID: userID,
		Metadata: map[string]any{
			audit.AttrReason: reason,
			"action_type":    actionType,
			"target_id":      targetID,
		},
	})
	if s.meter != nil {
		s.meter.StepUpFailed.Add(ctx, 1, metric.WithAttributes(
			attribute.String("reason", reason),
		))
	}
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func isValidCode(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
