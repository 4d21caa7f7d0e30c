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

package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/bloodlink/bloodlink/internal/audit"
	"github.com/bloodlink/bloodlink/internal/identity"
	"github.com/bloodlink/bloodlink/internal/org"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, s *Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (*Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *mockRepo) ReplaceContext(ctx context.Context, sessionID string, ec EffectiveContext) (*Session, error) {
	args := m.Called(ctx, sessionID, ec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Session), args.Error(1)
}

func (m *mockRepo) Touch(ctx context.Context, sessionID string, at time.Time) error {
	args := m.Called(ctx, sessionID, at)
	return args.Error(0)
}

func (m *mockRepo) Delete(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *mockRepo) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

type mockOrgDir struct {
	mock.Mock
}

func (m *mockOrgDir) Get(ctx context.Context, orgID string) (*org.Organization, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*org.Organization), args.Error(1)
}

func (m *mockOrgDir) ListActive(ctx context.Context) ([]*org.Organization, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*org.Organization), args.Error(1)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) Log(ctx context.Context, event audit.Event) {
	m.Called(ctx, event)
}

func newTestService(repo *mockRepo, orgs *mockOrgDir) *Service {
	auditLogger := new(mockAudit)
	auditLogger.On("Log", mock.Anything, mock.Anything).Maybe()
	issuer := NewTokenIssuer("test-signing-key-at-least-32-bytes!", "bloodlink-test")
	return NewService(repo, orgs, issuer, auditLogger, nil, 24*time.Hour, 30*time.Minute)
}

func adminPrincipal() *identity.Principal {
	return &identity.Principal{
		ID:       "admin-1",
		Email:    "admin@bloodlink.org",
		UserType: identity.UserTypeSystemAdmin,
		IsActive: true,
	}
}

func adminSession() *Session {
	now := time.Now()
	return &Session{
		ID:             "sess-1",
		UserID:         "admin-1",
		ActingUserType: identity.UserTypeSystemAdmin,
		CreatedAt:      now,
		LastSeenAt:     now,
		ExpiresAt:      now.Add(24 * time.Hour),
	}
}

// TestPurpose: Validates that only admin user types may switch context.
// Scope: Unit Test
// Security: Context switching is the impersonation entry point; staff and tenant admins
// must be locked out regardless of request shape.
// Expected: SwitchContext fails with ErrNotEntitled and never touches the store.
// Test Case ID: SES-01
func TestSwitchContext_NonAdminDenied(t *testing.T) {
	repo := new(mockRepo)
	orgs := new(mockOrgDir)
	svc := newTestService(repo, orgs)

	for _, userType := range []identity.UserType{identity.UserTypeStaff, identity.UserTypeTenantAdmin} {
		p := &identity.Principal{ID: "user-1", UserType: userType}
		sess := &Session{ID: "sess-1", UserID: "user-1", ActingUserType: userType}

		_, _, err := svc.SwitchContext(context.Background(), sess, p, "org-1", identity.UserTypeTenantAdmin)
		assert.ErrorIs(t, err, ErrNotEntitled)
	}
	repo.AssertNotCalled(t, "ReplaceContext", mock.Anything, mock.Anything, mock.Anything)
}

// TestPurpose: Validates that the acting user type must be an assumable system role.
// Scope: Unit Test
// Security: Assuming the wildcard admin type through a switch would escalate scope.
// Expected: system_admin as acting type fails with ErrInvalidActing.
// Test Case ID: SES-02
func TestSwitchContext_InvalidActingType(t *testing.T) {
	repo := new(mockRepo)
	orgs := new(mockOrgDir)
	svc := newTestService(repo, orgs)

	_, _, err := svc.SwitchContext(context.Background(), adminSession(), adminPrincipal(), "org-1", identity.UserTypeSystemAdmin)
	assert.ErrorIs(t, err, ErrInvalidActing)
}

// TestPurpose: Validates a successful switch replaces the context and re-issues the token.
// Scope: Unit Test
// Expected: The session carries the target org with is_impersonating set, and the new
// token's claims describe the switched context.
// Test Case ID: SES-03
func TestSwitchContext_ReplacesContextAndToken(t *testing.T) {
	repo := new(mockRepo)
	orgs := new(mockOrgDir)
	svc := newTestService(repo, orgs)

	orgs.On("Get", mock.Anything, "org-1").Return(&org.Organization{
		ID: "org-1", Name: "Lagos Central", IsActive: true,
	}, nil)

	orgID := "org-1"
	switched := &Session{
		ID:              "sess-1",
		UserID:          "admin-1",
		OrgID:           &orgID,
		OrgName:         "Lagos Central",
		ActingUserType:  identity.UserTypeTenantAdmin,
		IsImpersonating: true,
		ExpiresAt:       time.Now().Add(time.Hour),
	}
	repo.On("ReplaceContext", mock.Anything, "sess-1", mock.MatchedBy(func(ec EffectiveContext) bool {
		return ec.OrgID != nil && *ec.OrgID == "org-1" &&
			ec.ActingUserType == identity.UserTypeTenantAdmin && ec.IsImpersonating
	})).Return(switched, nil)

	updated, token, err := svc.SwitchContext(context.Background(), adminSession(), adminPrincipal(), "org-1", identity.UserTypeTenantAdmin)
	assert.NoError(t, err)
	assert.True(t, updated.IsImpersonating)

	claims, err := svc.ParseToken(token)
	assert.NoError(t, err)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, identity.UserTypeTenantAdmin, claims.ActingUserType)
	assert.True(t, claims.IsImpersonating)
	assert.Equal(t, "org-1", *claims.OrgID)
}

// TestPurpose: Validates that switching into an inactive organization fails and leaves
// the current context intact.
// Scope: Unit Test
// Expected: ErrOrgInactive; ReplaceContext is never called.
// Test Case ID: SES-04
func TestSwitchContext_InactiveOrgRejected(t *testing.T) {
	repo := new(mockRepo)
	orgs := new(mockOrgDir)
	svc := newTestService(repo, orgs)

	orgs.On("Get", mock.Anything, "org-1").Return(&org.Organization{
		ID: "org-1", Name: "Closed Branch", IsActive: false,
	}, nil)

	_, _, err := svc.SwitchContext(context.Background(), adminSession(), adminPrincipal(), "org-1", identity.UserTypeTenantAdmin)
	assert.ErrorIs(t, err, org.ErrOrgInactive)
	repo.AssertNotCalled(t, "ReplaceContext", mock.Anything, mock.Anything, mock.Anything)
}

// TestPurpose: Validates that exiting an impersonated context restores exactly the home context.
// Scope: Unit Test
// Security: A stale acting role after exit would grant permissions the principal no longer holds.
// Expected: The replacement context equals the principal's home org and user type with
// impersonation off.
// Test Case ID: SES-05
func TestExitContext_RestoresHome(t *testing.T) {
	repo := new(mockRepo)
	orgs := new(mockOrgDir)
	svc := newTestService(repo, orgs)

	orgID := "org-1"
	impersonating := &Session{
		ID:              "sess-1",
		UserID:          "admin-1",
		OrgID:           &orgID,
		OrgName:         "Lagos Central",
		ActingUserType:  identity.UserTypeTenantAdmin,
		IsImpersonating: true,
		ExpiresAt:       time.Now().Add(time.Hour),
	}

	home := adminSession()
	repo.On("ReplaceContext", mock.Anything, "sess-1", mock.MatchedBy(func(ec EffectiveContext) bool {
		return ec.OrgID == nil && ec.ActingUserType == identity.UserTypeSystemAdmin && !ec.IsImpersonating
	})).Return(home, nil)

	updated, token, err := svc.ExitContext(context.Background(), impersonating, adminPrincipal())
	assert.NoError(t, err)
	assert.False(t, updated.IsImpersonating)
	assert.Nil(t, updated.OrgID)

	claims, err := svc.ParseToken(token)
	assert.NoError(t, err)
	assert.False(t, claims.IsImpersonating)
}

// TestPurpose: Validates that exiting while not impersonating is an idempotent no-op.
// Scope: Unit Test
// Expected: The same session comes back with a fresh valid token; no store write happens.
// Test Case ID: SES-06
func TestExitContext_Idempotent(t *testing.T) {
	repo := new(mockRepo)
	orgs := new(mockOrgDir)
	svc := newTestService(repo, orgs)

	sess := adminSession()
	updated, token, err := svc.ExitContext(context.Background(), sess, adminPrincipal())
	assert.NoError(t, err)
	assert.Equal(t, sess, updated)
	assert.NotEmpty(t, token)
	repo.AssertNotCalled(t, "ReplaceContext", mock.Anything, mock.Anything, mock.Anything)
}

// TestPurpose: Validates the global context predicate.
// Scope: Unit Test
// Expected: Nil org without impersonation is global; any org or impersonation is not.
// Test Case ID: SES-07
func TestEffectiveContext_IsGlobal(t *testing.T) {
	assert.True(t, adminSession().Context().IsGlobal())

	orgID := "org-1"
	assert.False(t, EffectiveContext{OrgID: &orgID, ActingUserType: identity.UserTypeTenantAdmin}.IsGlobal())
	assert.False(t, EffectiveContext{ActingUserType: identity.UserTypeTenantAdmin, IsImpersonating: true}.IsGlobal())
}

// TestPurpose: Validates session expiry enforcement on load.
// Scope: Unit Test
// Security: Expired sessions must be unusable and removed.
// Expected: Get fails with ErrSessionExpired and deletes the row.
// Test Case ID: SES-08
func TestGet_ExpiredSession(t *testing.T) {
	repo := new(mockRepo)
	orgs := new(mockOrgDir)
	svc := newTestService(repo, orgs)

	expired := adminSession()
	expired.ExpiresAt = time.Now().Add(-time.Minute)
	repo.On("GetByID", mock.Anything, "sess-1").Return(expired, nil)
	repo.On("Delete", mock.Anything, "sess-1").Return(nil)

	_, err := svc.Get(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrSessionExpired)
	repo.AssertCalled(t, "Delete", mock.Anything, "sess-1")
}

// TestPurpose: Validates idle timeout enforcement on load.
// Scope: Unit Test
// Expected: A session last seen beyond the idle window fails with ErrSessionExpired.
// Test Case ID: SES-09
func TestGet_IdleTimeout(t *testing.T) {
	repo := new(mockRepo)
	orgs := new(mockOrgDir)
	svc := newTestService(repo, orgs)

	idle := adminSession()
	idle.LastSeenAt = time.Now().Add(-time.Hour)
	repo.On("GetByID", mock.Anything, "sess-1").Return(idle, nil)
	repo.On("Delete", mock.Anything, "sess-1").Return(nil)

	_, err := svc.Get(context.Background(), "sess-1")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

// TestPurpose: Validates the switchable context listing for entitled and unentitled callers.
// Scope: Unit Test
// Expected: Admins get the active org tree annotated with assumable types; staff get
// ErrNotEntitled.
// Test Case ID: SES-10
func TestGetSwitchableContexts(t *testing.T) {
	repo := new(mockRepo)
	orgs := new(mockOrgDir)
	svc := newTestService(repo, orgs)

	parentID := "org-1"
	orgs.On("ListActive", mock.Anything).Return([]*org.Organization{
		{ID: parentID, Name: "Lagos Central", IsParent: true, IsActive: true},
		{ID: "org-2", Name: "Ikeja Branch", ParentOrgID: &parentID, IsActive: true},
	}, nil)

	tree, err := svc.GetSwitchableContexts(context.Background(), adminPrincipal(), adminSession(), "")
	assert.NoError(t, err)
	assert.Equal(t, 1, tree.TotalOrgs)
	assert.Equal(t, 1, tree.TotalBranches)
	assert.Equal(t, []string{"tenant_admin", "staff"}, tree.Organizations[0].SwitchAs)

	staff := &identity.Principal{ID: "user-1", UserType: identity.UserTypeStaff}
	_, err = svc.GetSwitchableContexts(context.Background(), staff, adminSession(), "")
	assert.ErrorIs(t, err, ErrNotEntitled)
}

// TestPurpose: Validates that an impersonating session cannot switch again without
// exiting first.
// Scope: Unit Test
// Security: Contexts never nest; chaining switches would make the restore target
// ambiguous and hide the impersonation trail.
// Expected: CanSwitchContext is false while impersonating, SwitchContext fails with
// ErrNotEntitled without touching the store, and the predicate turns true again for
// a non-impersonating session.
// Test Case ID: SES-12
func TestSwitchContext_DeniedWhileImpersonating(t *testing.T) {
	repo := new(mockRepo)
	orgs := new(mockOrgDir)
	svc := newTestService(repo, orgs)

	orgID := "org-1"
	impersonating := &Session{
		ID:              "sess-1",
		UserID:          "admin-1",
		OrgID:           &orgID,
		OrgName:         "Lagos Central",
		ActingUserType:  identity.UserTypeTenantAdmin,
		IsImpersonating: true,
		ExpiresAt:       time.Now().Add(time.Hour),
	}

	assert.False(t, svc.CanSwitchContext(adminPrincipal(), impersonating))
	assert.True(t, svc.CanSwitchContext(adminPrincipal(), adminSession()))

	_, _, err := svc.SwitchContext(context.Background(), impersonating, adminPrincipal(), "org-2", identity.UserTypeTenantAdmin)
	assert.ErrorIs(t, err, ErrNotEntitled)
	repo.AssertNotCalled(t, "ReplaceContext", mock.Anything, mock.Anything, mock.Anything)

	_, err = svc.GetSwitchableContexts(context.Background(), adminPrincipal(), impersonating, "")
	assert.ErrorIs(t, err, ErrNotEntitled)
}

// TestPurpose: Validates access token parse failures.
// Scope: Unit Test
// Security: Tokens signed with a different key or garbage strings must be rejected.
// Expected: ParseToken returns ErrInvalidToken.
// Test Case ID: SES-11
func TestParseToken_Invalid(t *testing.T) {
	repo := new(mockRepo)
	orgs := new(mockOrgDir)
	svc := newTestService(repo, orgs)

	_, err := svc.ParseToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewTokenIssuer("a-completely-different-signing-key!", "bloodlink-test")
	foreign, err := other.Issue(adminSession(), adminPrincipal())
	assert.NoError(t, err)

	_, err = svc.ParseToken(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
