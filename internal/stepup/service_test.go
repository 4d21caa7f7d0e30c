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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bloodlink/bloodlink/internal/audit"
	"github.com/bloodlink/bloodlink/internal/identity"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, v *Verification) error {
	args := m.Called(ctx, v)
	return args.Error(0)
}

func (m *mockRepo) GetPending(ctx context.Context, userID, actionType, targetID string) (*Verification, error) {
	args := m.Called(ctx, userID, actionType, targetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Verification), args.Error(1)
}

func (m *mockRepo) IncrementAttempts(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRepo) MarkVerified(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockRepo) Consume(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *mockRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockVerifier struct {
	mock.Mock
}

func (m *mockVerifier) VerifyPassword(ctx context.Context, userID, password string) (bool, error) {
	args := m.Called(ctx, userID, password)
	return args.Get(0).(bool), args.Error(1)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendCode(ctx context.Context, email, code string) error {
	args := m.Called(ctx, email, code)
	return args.Error(0)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) Log(ctx context.Context, event audit.Event) {
	m.Called(ctx, event)
}

func newTestService(repo *mockRepo, verifier *mockVerifier, sender *mockSender) *Service {
	auditLogger := new(mockAudit)
	auditLogger.On("Log", mock.Anything, mock.Anything).Maybe()
	issuer := NewTokenIssuer("test-signing-key-at-least-32-bytes!", "bloodlink-test", 5*time.Minute)
	return NewService(repo, verifier, sender, issuer, auditLogger, nil, 10*time.Minute, 6)
}

func testPrincipal() *identity.Principal {
	return &identity.Principal{
		ID:       "admin-1",
		Email:    "admin@bloodlink.org",
		UserType: identity.UserTypeSystemAdmin,
	}
}

// TestPurpose: Validates the password path of the step-up gate.
// Scope: Unit Test
// Expected: A correct password yields a verification token whose claims carry the exact
// scope; a wrong password yields ErrInvalidCredentials and no token.
// Test Case ID: STP-01
func TestVerifyPassword(t *testing.T) {
	repo := new(mockRepo)
	verifier := new(mockVerifier)
	svc := newTestService(repo, verifier, new(mockSender))

	verifier.On("VerifyPassword", mock.Anything, "admin-1", "correct").Return(true, nil)
	verifier.On("VerifyPassword", mock.Anything, "admin-1", "wrong").Return(false, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	token, err := svc.VerifyPassword(context.Background(), testPrincipal(), "correct", "delete_user", "target-1")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	_, err = svc.VerifyPassword(context.Background(), testPrincipal(), "wrong", "delete_user", "target-1")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

// TestPurpose: Validates that a malformed code is rejected before any store access.
// Scope: Unit Test
// Security: Code format validation must not leak whether a verification is pending.
// Expected: Non-numeric or wrong-length codes fail with ErrInvalidCode; GetPending is
// never called.
// Test Case ID: STP-02
func TestVerifyOTP_FormatValidation(t *testing.T) {
	repo := new(mockRepo)
	svc := newTestService(repo, new(mockVerifier), new(mockSender))

	for _, code := range []string{"", "12345", "1234567", "12a456", "......"} {
		_, err := svc.VerifyOTP(context.Background(), testPrincipal(), code, "delete_user", "target-1")
		assert.ErrorIs(t, err, ErrInvalidCode, "code %q", code)
	}
	repo.AssertNotCalled(t, "GetPending", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestPurpose: Validates the OTP happy path end to end against the pending verification.
// Scope: Unit Test
// Expected: The matching code marks the verification and yields a token scoped to the
// verification's action and target.
// Test Case ID: STP-03
func TestVerifyOTP_Match(t *testing.T) {
	repo := new(mockRepo)
	svc := newTestService(repo, new(mockVerifier), new(mockSender))

	pending := &Verification{
		ID:         "01TESTULID",
		UserID:     "admin-1",
		ActionType: "delete_user",
		TargetID:   "target-1",
		Method:     MethodOTP,
		CodeHash:   hashCode("482019"),
		ExpiresAt:  time.Now().Add(5 * time.Minute),
	}
	repo.On("GetPending", mock.Anything, "admin-1", "delete_user", "target-1").Return(pending, nil)
	repo.On("MarkVerified", mock.Anything, "01TESTULID", mock.Anything).Return(nil)

	token, err := svc.VerifyOTP(context.Background(), testPrincipal(), "482019", "delete_user", "target-1")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)
}

// TestPurpose: Validates that a mismatched code counts an attempt and keeps the code pending.
// Scope: Unit Test
// Expected: ErrCodeMismatch; attempts incremented; the verification is never marked verified.
// Test Case ID: STP-04
func TestVerifyOTP_MismatchKeepsPending(t *testing.T) {
	repo := new(mockRepo)
	svc := newTestService(repo, new(mockVerifier), new(mockSender))

	pending := &Verification{
		ID:         "01TESTULID",
		UserID:     "admin-1",
		ActionType: "delete_user",
		TargetID:   "target-1",
		Method:     MethodOTP,
		CodeHash:   hashCode("482019"),
		ExpiresAt:  time.Now().Add(5 * time.Minute),
	}
	repo.On("GetPending", mock.Anything, "admin-1", "delete_user", "target-1").Return(pending, nil)
	repo.On("IncrementAttempts", mock.Anything, "01TESTULID").Return(nil)

	_, err := svc.VerifyOTP(context.Background(), testPrincipal(), "000000", "delete_user", "target-1")
	assert.ErrorIs(t, err, ErrCodeMismatch)
	repo.AssertCalled(t, "IncrementAttempts", mock.Anything, "01TESTULID")
	repo.AssertNotCalled(t, "MarkVerified", mock.Anything, mock.Anything, mock.Anything)
}

// TestPurpose: Validates expiry of the verification window.
// Scope: Unit Test
// Expected: A correct code against an expired verification fails with ErrVerificationExpired.
// Test Case ID: STP-05
func TestVerifyOTP_Expired(t *testing.T) {
	repo := new(mockRepo)
	svc := newTestService(repo, new(mockVerifier), new(mockSender))

	expired := &Verification{
		ID:        "01TESTULID",
		UserID:    "admin-1",
		CodeHash:  hashCode("482019"),
		ExpiresAt: time.Now().Add(-time.Minute),
	}
	repo.On("GetPending", mock.Anything, "admin-1", "delete_user", "target-1").Return(expired, nil)

	_, err := svc.VerifyOTP(context.Background(), testPrincipal(), "482019", "delete_user", "target-1")
	assert.ErrorIs(t, err, ErrVerificationExpired)
}

// TestPurpose: Validates that the verification token binds to exactly one action scope.
// Scope: Unit Test
// Security: A token obtained for deleting user A must not authorize deleting user B,
// a different action type, or a different caller.
// Expected: Consume fails with ErrScopeMismatch for every out-of-scope use; the
// verification is never spent.
// Test Case ID: STP-06
func TestConsume_ScopeMismatch(t *testing.T) {
	repo := new(mockRepo)
	verifier := new(mockVerifier)
	svc := newTestService(repo, verifier, new(mockSender))

	verifier.On("VerifyPassword", mock.Anything, "admin-1", "correct").Return(true, nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	token, err := svc.VerifyPassword(context.Background(), testPrincipal(), "correct", "delete_user", "target-1")
	assert.NoError(t, err)

	err = svc.Consume(context.Background(), token, "admin-1", "delete_user", "target-2")
	assert.ErrorIs(t, err, ErrScopeMismatch)

	err = svc.Consume(context.Background(), token, "admin-1", "update_user", "target-1")
	assert.ErrorIs(t, err, ErrScopeMismatch)

	err = svc.Consume(context.Background(), token, "someone-else", "delete_user", "target-1")
	assert.ErrorIs(t, err, ErrScopeMismatch)

	repo.AssertNotCalled(t, "Consume", mock.Anything, mock.Anything, mock.Anything)
}

// TestPurpose: Validates single-use token consumption.
// Scope: Unit Test
// Security: Replaying a spent verification token must fail.
// Expected: The first Consume succeeds; the second fails with ErrTokenConsumed.
// Test Case ID: STP-07
func TestConsume_SingleUse(t *testing.T) {
	repo := new(mockRepo)
	verifier := new(mockVerifier)
	svc := newTestService(repo, verifier, new(mockSender))

	verifier.On("VerifyPassword", mock.Anything, "admin-1", "correct").Return(true, nil)

	var verificationID string
	repo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		verificationID = args.Get(1).(*Verification).ID
	}).Return(nil)

	token, err := svc.VerifyPassword(context.Background(), testPrincipal(), "correct", "delete_user", "target-1")
	assert.NoError(t, err)

	repo.On("Consume", mock.Anything, mock.MatchedBy(func(id string) bool {
		return id == verificationID
	}), mock.Anything).Return(nil).Once()
	repo.On("Consume", mock.Anything, mock.Anything, mock.Anything).Return(ErrTokenConsumed)

	assert.NoError(t, svc.Consume(context.Background(), token, "admin-1", "delete_user", "target-1"))
	assert.ErrorIs(t, svc.Consume(context.Background(), token, "admin-1", "delete_user", "target-1"), ErrTokenConsumed)
}

// TestPurpose: Validates OTP issuance and delivery.
// Scope: Unit Test
// Expected: The verification stores a hash (never the code), expires in the future, and
// the sender receives a numeric code of the configured length.
// Test Case ID: STP-08
func TestRequestOTP(t *testing.T) {
	repo := new(mockRepo)
	sender := new(mockSender)
	svc := newTestService(repo, new(mockVerifier), sender)

	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	var sentCode string
	sender.On("SendCode", mock.Anything, "admin@bloodlink.org", mock.Anything).
		Run(func(args mock.Arguments) { sentCode = args.Get(2).(string) }).Return(nil)

	v, err := svc.RequestOTP(context.Background(), testPrincipal(), "delete_user", "target-1")
	assert.NoError(t, err)
	assert.Len(t, sentCode, 6)
	assert.Equal(t, hashCode(sentCode), v.CodeHash)
	assert.NotEqual(t, sentCode, v.CodeHash)
	assert.True(t, v.ExpiresAt.After(time.Now()))
}
