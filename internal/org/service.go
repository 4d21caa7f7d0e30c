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

package org

import (
	"context"
	"fmt"

	"github.com/bloodlink/bloodlink/internal/audit"
	"github.com/bloodlink/bloodlink/internal/id"
)

// Service provides organization hierarchy business logic
type Service struct {
	repo        Repository
	auditLogger audit.Logger
}

// NewService creates a new organization service
func NewService(repo Repository, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
	}
}

// CreateParams holds the attributes for a new organization or branch
type CreateParams struct {
	Name        string
	ParentOrgID *string // nil for a root organization
	City        string
	Address     string
	Latitude    float64
	Longitude   float64
}

// Create creates a root organization or a branch. A branch's parent
// must be an active root; depth never exceeds two.
func (s *Service) Create(ctx context.Context, actorID string, params CreateParams) (*Organization, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("organization name is required")
	}

	if existing, err := s.repo.GetByName(ctx, params.Name); err == nil && existing != nil {
		return nil, ErrOrgAlreadyExists
	}

	if params.ParentOrgID != nil {
		parent, err := s.repo.GetByID(ctx, *params.ParentOrgID)
		if err != nil {
			return nil, ErrOrgNotFound
		}
		if !parent.IsParent || !parent.IsActive {
			return nil, ErrParentNotRoot
		}
	}

	o := &Organization{
		ID:          id.NewUUIDv7(),
		Name:        params.Name,
		IsParent:    params.ParentOrgID == nil,
		ParentOrgID: params.ParentOrgID,
		City:        params.City,
		Address:     params.Address,
		Latitude:    params.Latitude,
		Longitude:   params.Longitude,
		IsActive:    true,
	}

	if err := s.repo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeOrgCreated,
		OrgID:    o.ID,
		ActorID:  actorID,
		Resource: o.Name,
	})

	return o, nil
}

// Get retrieves an organization by ID
func (s *Service) Get(ctx context.Context, orgID string) (*Organization, error) {
	return s.repo.GetByID(ctx, orgID)
}

// Update updates mutable organization attributes
func (s *Service) Update(ctx context.Context, actorID string, o *Organization) error {
	if _, err := s.repo.GetByID(ctx, o.ID); err != nil {
		return ErrOrgNotFound
	}
	if err := s.repo.Update(ctx, o); err != nil {
		return fmt.Errorf("failed to update organization: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeOrgUpdated,
		OrgID:    o.ID,
		ActorID:  actorID,
		Resource: o.Name,
	})
	return nil
}

// Deactivate marks an organization inactive
func (s *Service) Deactivate(ctx context.Context, actorID, orgID string) error {
	if _, err := s.repo.GetByID(ctx, orgID); err != nil {
		return ErrOrgNotFound
	}
	if err := s.repo.Deactivate(ctx, orgID); err != nil {
		return fmt.Errorf("failed to deactivate organization: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:    audit.TypeOrgDeactivated,
		OrgID:   orgID,
		ActorID: actorID,
	})
	return nil
}

// ListActive returns all active organizations, roots and branches.
func (s *Service) ListActive(ctx context.Context) ([]*Organization, error) {
	return s.repo.ListActive(ctx)
}

// FetchTree returns the two-level tree projection for the switch
// picker. currentOrgID annotates the caller's effective context;
// switchAs lists the acting user types the caller may assume.
func (s *Service) FetchTree(ctx context.Context, search string, currentOrgID *string, switchAs []string) (*Tree, error) {
	orgs, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization tree: %w", err)
	}
	return BuildTree(orgs, search, currentOrgID, switchAs), nil
}
