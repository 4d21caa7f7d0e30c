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
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bloodlink/bloodlink/internal/audit"
	"github.com/bloodlink/bloodlink/internal/id"
	"github.com/bloodlink/bloodlink/internal/identity"
	"github.com/bloodlink/bloodlink/internal/observability/metrics"
	"github.com/bloodlink/bloodlink/internal/org"
)

// OrgDirectory is the slice of the organization store the context
// engine consults when validating switch targets.
type OrgDirectory interface {
	Get(ctx context.Context, orgID string) (*org.Organization, error)
	ListActive(ctx context.Context) ([]*org.Organization, error)
}

// Service is the session and context engine. It owns session lifecycle,
// access token issuance, and the impersonation state machine.
type Service struct {
	repo        Repository
	orgs        OrgDirectory
	issuer      *TokenIssuer
	auditLogger audit.Logger
	meter       *metrics.Meter
	lifetime    time.Duration
	idleTimeout time.Duration
}

// NewService creates a new session service.
func NewService(repo Repository, orgs OrgDirectory, issuer *TokenIssuer, auditLogger audit.Logger, meter *metrics.Meter, lifetime, idleTimeout time.Duration) *Service {
	return &Service{
		repo:        repo,
		orgs:        orgs,
		issuer:      issuer,
		auditLogger: auditLogger,
		meter:       meter,
		lifetime:    lifetime,
		idleTimeout: idleTimeout,
	}
}

// Create opens a session for an authenticated principal in its home
// context and issues the first access token.
func (s *Service) Create(ctx context.Context, p *identity.Principal, ipAddress, userAgent string) (*Session, string, error) {
	now := time.Now()
	sess := &Session{
		ID:             id.NewUUIDv7(),
		UserID:         p.ID,
		OrgID:          p.OrgID,
		ActingUserType: p.UserType,
		IPAddress:      ipAddress,
		UserAgent:      userAgent,
		CreatedAt:      now,
		LastSeenAt:     now,
		ExpiresAt:      now.Add(s.lifetime),
	}

	if p.OrgID != nil {
		o, err := s.orgs.Get(ctx, *p.OrgID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to resolve home organization: %w", err)
		}
		sess.OrgName = o.Name
	}

	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	token, err := s.issuer.Issue(sess, p)
	if err != nil {
		return nil, "", err
	}

	if s.meter != nil {
		s.meter.ActiveSessionCount.Add(ctx, 1)
	}

	return sess, token, nil
}

// Get loads a session, enforcing absolute expiry and idle timeout, and
// advances last_seen_at on success.
func (s *Service) Get(ctx context.Context, sessionID string) (*Session, error) {
	sess, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	now := time.Now()
	if sess.IsExpired(now) || now.Sub(sess.LastSeenAt) > s.idleTimeout {
		_ = s.repo.Delete(ctx, sessionID)
		return nil, ErrSessionExpired
	}

	if err := s.repo.Touch(ctx, sessionID, now); err != nil {
		slog.WarnContext(ctx, "failed to touch session", "session_id", sessionID, "error", err)
	}
	sess.LastSeenAt = now
	return sess, nil
}

// ParseToken validates an access token and returns its claims.
func (s *Service) ParseToken(tokenString string) (*Claims, error) {
	return s.issuer.Parse(tokenString)
}

// Destroy ends a session. Destroying an already-gone session is not an
// error.
func (s *Service) Destroy(ctx context.Context, sessionID, userID, ipAddress string) error {
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeLogout,
		ActorID:   userID,
		Resource:  sessionID,
		IPAddress: ipAddress,
	})

	if s.meter != nil {
		s.meter.ActiveSessionCount.Add(ctx, -1)
	}
	return nil
}

// DestroyAllForUser ends every session belonging to a user. Used when a
// principal is deactivated or its permissions are overridden.
func (s *Service) DestroyAllForUser(ctx context.Context, userID string) error {
	n, err := s.repo.DeleteByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	if s.meter != nil && n > 0 {
		s.meter.ActiveSessionCount.Add(ctx, -n)
	}
	return nil
}

// CanSwitchContext reports whether the principal, in this session, may
// switch into an organization context. Pure: entitled user type and not
// already impersonating. A switch while impersonating requires an exit
// first; there is never a stack of nested contexts.
func (s *Service) CanSwitchContext(p *identity.Principal, sess *Session) bool {
	return p.UserType.CanImpersonate() && !sess.IsImpersonating
}

// AssumableUserTypes lists the acting user types an entitled principal
// may assume when switching into an organization. Only system roles
// are assumable; the wildcard admin type never is.
func (s *Service) AssumableUserTypes(p *identity.Principal) []identity.UserType {
	if !p.UserType.CanImpersonate() {
		return nil
	}
	return []identity.UserType{identity.UserTypeTenantAdmin, identity.UserTypeStaff}
}

// SwitchContext replaces the session's effective context with
// (orgID, actingUserType) and re-issues the access token. On any
// failure the previous context remains intact and usable.
func (s *Service) SwitchContext(ctx context.Context, sess *Session, p *identity.Principal, orgID string, actingUserType identity.UserType) (*Session, string, error) {
	deny := func(reason string) {
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeContextDenied,
			OrgID:    orgID,
			ActorID:  p.ID,
			Metadata: map[string]any{audit.AttrReason: reason},
		})
	}

	if !s.CanSwitchContext(p, sess) {
		if sess.IsImpersonating {
			deny("already_impersonating")
		} else {
			deny("not_entitled")
		}
		return nil, "", ErrNotEntitled
	}

	valid := false
	for _, t := range s.AssumableUserTypes(p) {
		if t == actingUserType {
			valid = true
			break
		}
	}
	if !valid {
		deny("invalid_acting_user_type")
		return nil, "", ErrInvalidActing
	}

	o, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		deny("org_not_found")
		return nil, "", org.ErrOrgNotFound
	}
	if !o.IsActive {
		deny("org_inactive")
		return nil, "", org.ErrOrgInactive
	}

	updated, err := s.repo.ReplaceContext(ctx, sess.ID, EffectiveContext{
		OrgID:           &o.ID,
		OrgName:         o.Name,
		ActingUserType:  actingUserType,
		IsImpersonating: true,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to switch context: %w", err)
	}

	token, err := s.issuer.Issue(updated, p)
	if err != nil {
		return nil, "", err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeContextSwitched,
		OrgID:    o.ID,
		ActorID:  p.ID,
		Resource: sess.ID,
		Metadata: map[string]any{"acting_user_type": string(actingUserType)},
	})
	if s.meter != nil {
		s.meter.ContextSwitches.Add(ctx, 1, metric.WithAttributes(
			attribute.String("acting_user_type", string(actingUserType)),
		))
	}

	return updated, token, nil
}

// ExitContext restores the session to the principal's home context and
// re-issues the token. Exiting while not impersonating is a no-op that
// still returns a valid session and token.
func (s *Service) ExitContext(ctx context.Context, sess *Session, p *identity.Principal) (*Session, string, error) {
	if !sess.IsImpersonating {
		token, err := s.issuer.Issue(sess, p)
		if err != nil {
			return nil, "", err
		}
		return sess, token, nil
	}

	home := EffectiveContext{
		OrgID:          p.OrgID,
		ActingUserType: p.UserType,
	}
	if p.OrgID != nil {
		o, err := s.orgs.Get(ctx, *p.OrgID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to resolve home organization: %w", err)
		}
		home.OrgName = o.Name
	}

	updated, err := s.repo.ReplaceContext(ctx, sess.ID, home)
	if err != nil {
		return nil, "", fmt.Errorf("failed to exit context: %w", err)
	}

	token, err := s.issuer.Issue(updated, p)
	if err != nil {
		return nil, "", err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeContextExited,
		ActorID:  p.ID,
		Resource: sess.ID,
	})

	return updated, token, nil
}

// GetSwitchableContexts returns the org tree annotated with the acting
// user types the principal may assume. Recomputed from the store on
// every call so deactivated organizations drop out immediately.
func (s *Service) GetSwitchableContexts(ctx context.Context, p *identity.Principal, sess *Session, search string) (*org.Tree, error) {
	if !s.CanSwitchContext(p, sess) {
		return nil, ErrNotEntitled
	}

	orgs, err := s.orgs.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load switchable contexts: %w", err)
	}

	switchAs := make([]string, 0, 2)
	for _, t := range s.AssumableUserTypes(p) {
		switchAs = append(switchAs, string(t))
	}

	return org.BuildTree(orgs, search, sess.OrgID, switchAs), nil
}

// CleanupExpired removes sessions past their absolute expiry.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired sessions: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "removed expired sessions", "count", n)
		if s.meter != nil {
			s.meter.ActiveSessionCount.Add(ctx, -n)
		}
	}
	return n, nil
}
