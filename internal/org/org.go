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
	"errors"
	"time"
)

// Domain errors
var (
	ErrOrgNotFound      = errors.New("organization not found")
	ErrOrgInactive      = errors.New("organization is inactive")
	ErrOrgAlreadyExists = errors.New("organization already exists")
	ErrParentNotRoot    = errors.New("parent must be an active root organization")
)

// Organization is a node in the two-level network tree: parent
// organizations at the root, branches directly beneath them. Depth is
// fixed at two; a branch can never itself be a parent.
type Organization struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	IsParent    bool      `json:"is_parent"`
	ParentOrgID *string   `json:"parent_org_id,omitempty"`
	City        string    `json:"city"`
	Address     string    `json:"address,omitempty"`
	Latitude    float64   `json:"latitude,omitempty"`
	Longitude   float64   `json:"longitude,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Repository defines the interface for organization persistence
type Repository interface {
	// Create creates a new organization
	Create(ctx context.Context, o *Organization) error

	// GetByID retrieves an organization by ID
	GetByID(ctx context.Context, id string) (*Organization, error)

	// GetByName retrieves an organization by name
	GetByName(ctx context.Context, name string) (*Organization, error)

	// Update updates organization information
	Update(ctx context.Context, o *Organization) error

	// Deactivate marks an organization inactive
	Deactivate(ctx context.Context, id string) error

	// ListActive retrieves all active organizations, roots and branches
	ListActive(ctx context.Context) ([]*Organization, error)
}
