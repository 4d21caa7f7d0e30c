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

package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bloodlink/bloodlink/internal/audit"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, p *Principal, c *Credentials) error {
	args := m.Called(ctx, p, c)
	return args.Error(0)
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (*Principal, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Principal), args.Error(1)
}

func (m *mockRepo) GetByEmail(ctx context.Context, email string) (*Principal, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Principal), args.Error(1)
}

func (m *mockRepo) List(ctx context.Context, orgID *string) ([]*Principal, error) {
	args := m.Called(ctx, orgID)
	return args.Get(0).([]*Principal), args.Error(1)
}

func (m *mockRepo) Update(ctx context.Context, p *Principal) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockRepo) UpdateLockout(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	args := m.Called(ctx, userID, failedAttempts, lockedUntil)
	return args.Error(0)
}

func (m *mockRepo) SetCustomRole(ctx context.Context, userID string, customRoleID *string) error {
	args := m.Called(ctx, userID, customRoleID)
	return args.Error(0)
}

func (m *mockRepo) Deactivate(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockRepo) GetCredentials(ctx context.Context, userID string) (*Credentials, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Credentials), args.Error(1)
}

func (m *mockRepo) UpdatePassword(ctx context.Context, userID string, passwordHash string) error {
	args := m.Called(ctx, userID, passwordHash)
	return args.Error(0)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) Log(ctx context.Context, event audit.Event) {
	m.Called(ctx, event)
}

// Low-cost Argon2id parameters. Unit tests exercise the verification
// path, not hash strength.
func testHasher() *PasswordHasher {
	return NewPasswordHasher(1024, 1, 1, 16, 32)
}

func newTestService(repo *mockRepo) *Service {
	auditLogger := new(mockAudit)
	auditLogger.On("Log", mock.Anything, mock.Anything).Maybe()
	return NewService(repo, testHasher(), auditLogger, 5, 30*time.Minute)
}

func activePrincipal() *Principal {
	return &Principal{
		ID:       "user-1",
		FullName: "Sara Al-Amri",
		Email:    "sara@bloodlink.org",
		UserType: UserTypeStaff,
		IsActive: true,
	}
}

func storedCredentials(t *testing.T, password string) *Credentials {
	t.Helper()
	hash, err := testHasher().Hash(password)
	assert.NoError(t, err)
	return &Credentials{UserID: "user-1", PasswordHash: hash}
}

// TestPurpose: Validates the authentication happy path.
// Scope: Unit Test
// Expected: A correct email and password return the principal; a prior failed-attempt
// count is reset.
// Test Case ID: IDN-01
func TestAuthenticate_Success(t *testing.T) {
	repo := new(mockRepo)
	svc := newTestService(repo)

	p := activePrincipal()
	p.FailedLoginAttempts = 2
	repo.On("GetByEmail", mock.Anything, "sara@bloodlink.org").Return(p, nil)
	repo.On("GetCredentials", mock.Anything, "user-1").Return(storedCredentials(t, "correct-horse-1"), nil)
	repo.On("UpdateLockout", mock.Anything, "user-1", 0, (*time.Time)(nil)).Return(nil)

	got, err := svc.Authenticate(context.Background(), "Sara@BloodLink.org", "correct-horse-1")
	assert.NoError(t, err)
	assert.Equal(t, "user-1", got.ID)
	repo.AssertCalled(t, "UpdateLockout", mock.Anything, "user-1", 0, (*time.Time)(nil))
}

// TestPurpose: Validates lockout after the configured number of failed attempts.
// Scope: Unit Test
// Security: Unlimited password guessing must not be possible.
// Expected: The failing attempt that reaches the cap records a lockout deadline; a
// login during the lockout window fails with ErrAccountLocked before credentials
// are consulted.
// Test Case ID: IDN-02
func TestAuthenticate_Lockout(t *testing.T) {
	repo := new(mockRepo)
	svc := newTestService(repo)

	p := activePrincipal()
	p.FailedLoginAttempts = 4
	repo.On("GetByEmail", mock.Anything, "sara@bloodlink.org").Return(p, nil)
	repo.On("GetCredentials", mock.Anything, "user-1").Return(storedCredentials(t, "correct-horse-1"), nil)
	repo.On("UpdateLockout", mock.Anything, "user-1", 5, mock.MatchedBy(func(until *time.Time) bool {
		return until != nil && until.After(time.Now())
	})).Return(nil)

	_, err := svc.Authenticate(context.Background(), "sara@bloodlink.org", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	repo.AssertExpectations(t)

	locked := activePrincipal()
	until := time.Now().Add(10 * time.Minute)
	locked.FailedLoginAttempts = 5
	locked.LockedUntil = &until

	repo2 := new(mockRepo)
	svc2 := newTestService(repo2)
	repo2.On("GetByEmail", mock.Anything, "sara@bloodlink.org").Return(locked, nil)

	_, err = svc2.Authenticate(context.Background(), "sara@bloodlink.org", "correct-horse-1")
	assert.ErrorIs(t, err, ErrAccountLocked)
	repo2.AssertNotCalled(t, "GetCredentials", mock.Anything, mock.Anything)
}

// TestPurpose: Validates that a deactivated principal cannot authenticate.
// Scope: Unit Test
// Expected: ErrPrincipalInactive even with the correct password.
// Test Case ID: IDN-03
func TestAuthenticate_Inactive(t *testing.T) {
	repo := new(mockRepo)
	svc := newTestService(repo)

	p := activePrincipal()
	p.IsActive = false
	repo.On("GetByEmail", mock.Anything, "sara@bloodlink.org").Return(p, nil)

	_, err := svc.Authenticate(context.Background(), "sara@bloodlink.org", "correct-horse-1")
	assert.ErrorIs(t, err, ErrPrincipalInactive)
}

// TestPurpose: Validates that an unknown email maps to the generic credential error.
// Scope: Unit Test
// Security: The error must not reveal whether the account exists.
// Expected: ErrInvalidCredentials, same as a wrong password.
// Test Case ID: IDN-04
func TestAuthenticate_UnknownEmail(t *testing.T) {
	repo := new(mockRepo)
	svc := newTestService(repo)

	repo.On("GetByEmail", mock.Anything, "nobody@bloodlink.org").Return(nil, ErrPrincipalNotFound)

	_, err := svc.Authenticate(context.Background(), "nobody@bloodlink.org", "whatever1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// TestPurpose: Validates that step-up password checks leave lockout state untouched.
// Scope: Unit Test
// Security: The step-up gate must not let an attacker with a stolen session lock the
// victim out, nor bypass login lockout accounting.
// Expected: VerifyPassword returns the comparison result and never writes lockout state.
// Test Case ID: IDN-05
func TestVerifyPassword_NoLockoutMutation(t *testing.T) {
	repo := new(mockRepo)
	svc := newTestService(repo)

	repo.On("GetCredentials", mock.Anything, "user-1").Return(storedCredentials(t, "correct-horse-1"), nil)

	ok, err := svc.VerifyPassword(context.Background(), "user-1", "correct-horse-1")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.VerifyPassword(context.Background(), "user-1", "wrong-password")
	assert.NoError(t, err)
	assert.False(t, ok)

	repo.AssertNotCalled(t, "UpdateLockout", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestPurpose: Validates provisioning checks on principal creation.
// Scope: Unit Test
// Expected: Malformed emails and short passwords are rejected; a duplicate email fails
// with ErrPrincipalExists; a valid request lowercases the email and stores credentials.
// Test Case ID: IDN-06
func TestCreate(t *testing.T) {
	repo := new(mockRepo)
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateParams{Email: "not-an-email", Password: "long-enough-1"})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, err = svc.Create(context.Background(), CreateParams{Email: "new@bloodlink.org", Password: "short"})
	assert.ErrorIs(t, err, ErrWeakPassword)

	repo.On("GetByEmail", mock.Anything, "taken@bloodlink.org").Return(activePrincipal(), nil)
	_, err = svc.Create(context.Background(), CreateParams{Email: "taken@bloodlink.org", Password: "long-enough-1"})
	assert.ErrorIs(t, err, ErrPrincipalExists)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)

	repo.On("GetByEmail", mock.Anything, "New@bloodlink.org").Return(nil, ErrPrincipalNotFound)
	repo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(c *Credentials) bool {
		// The hash is produced before the store is touched and is never
		// the raw password.
		return c.PasswordHash != "" && c.PasswordHash != "long-enough-1"
	})).Return(nil)

	p, err := svc.Create(context.Background(), CreateParams{
		FullName: "New Staffer",
		Email:    "New@bloodlink.org",
		UserType: UserTypeStaff,
		Password: "long-enough-1",
	})
	assert.NoError(t, err)
	assert.Equal(t, "new@bloodlink.org", p.Email)
	assert.True(t, p.IsActive)
	assert.NotEmpty(t, p.ID)
}

// TestPurpose: Validates that a failed creation leaves no principal behind.
// Scope: Unit Test
// Expected: When the store rejects the combined insert, the caller gets the error and
// a retry with the same email is not blocked by a half-created row.
// Test Case ID: IDN-08
func TestCreate_FailureLeavesNothing(t *testing.T) {
	repo := new(mockRepo)
	svc := newTestService(repo)

	repo.On("GetByEmail", mock.Anything, "new@bloodlink.org").Return(nil, ErrPrincipalNotFound)
	repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError).Once()

	_, err := svc.Create(context.Background(), CreateParams{
		Email: "new@bloodlink.org", UserType: UserTypeStaff, Password: "long-enough-1",
	})
	assert.ErrorIs(t, err, assert.AnError)

	// The atomic store contract means the email is free again.
	repo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	p, err := svc.Create(context.Background(), CreateParams{
		Email: "new@bloodlink.org", UserType: UserTypeStaff, Password: "long-enough-1",
	})
	assert.NoError(t, err)
	assert.Equal(t, "new@bloodlink.org", p.Email)
}

// TestPurpose: Validates password change semantics.
// Scope: Unit Test
// Expected: The old password must verify and the new one must meet strength rules
// before the stored hash is replaced.
// Test Case ID: IDN-07
func TestChangePassword(t *testing.T) {
	repo := new(mockRepo)
	svc := newTestService(repo)

	repo.On("GetCredentials", mock.Anything, "user-1").Return(storedCredentials(t, "correct-horse-1"), nil)

	err := svc.ChangePassword(context.Background(), "user-1", "wrong", "next-password-1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = svc.ChangePassword(context.Background(), "user-1", "correct-horse-1", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	repo.On("UpdatePassword", mock.Anything, "user-1", mock.AnythingOfType("string")).Return(nil)
	err = svc.ChangePassword(context.Background(), "user-1", "correct-horse-1", "next-password-1")
	assert.NoError(t, err)
}
