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

package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bloodlink/bloodlink/internal/org"
)

// CreateOrgRequest represents organization creation data
type CreateOrgRequest struct {
	Name        string  `json:"name" validate:"required" example:"Lagos Central Blood Bank"`
	ParentOrgID *string `json:"parent_org_id,omitempty"`
	City        string  `json:"city" example:"Lagos"`
	Address     string  `json:"address"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// CreateOrganization creates a root organization or branch
// @Summary Create organization
// @Tags Organizations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateOrgRequest true "Organization Data"
// @Success 201 {object} org.Organization
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /organizations [post]
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req CreateOrgRequest
	if err := h.decodeValid(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := GetPrincipal(r.Context())
	o, err := h.orgService.Create(r.Context(), p.ID, org.CreateParams{
		Name:        req.Name,
		ParentOrgID: req.ParentOrgID,
		City:        req.City,
		Address:     req.Address,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		switch {
		case errors.Is(err, org.ErrOrgAlreadyExists):
			respondError(w, http.StatusConflict, "organization already exists")
		case errors.Is(err, org.ErrParentNotRoot):
			respondError(w, http.StatusBadRequest, "parent must be an active root organization")
		case errors.Is(err, org.ErrOrgNotFound):
			respondError(w, http.StatusBadRequest, "parent organization not found")
		default:
			respondError(w, http.StatusInternalServerError, "failed to create organization")
		}
		return
	}

	respondJSON(w, http.StatusCreated, o)
}

// ListOrganizations returns the active organization tree
// @Summary List organizations
// @Tags Organizations
// @Produce json
// @Security BearerAuth
// @Param search query string false "Filter by name or city"
// @Success 200 {object} org.Tree
// @Router /organizations [get]
func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	sess := GetSession(r.Context())
	tree, err := h.orgService.FetchTree(r.Context(), r.URL.Query().Get("search"), sess.OrgID, nil)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list organizations")
		return
	}
	respondJSON(w, http.StatusOK, tree)
}

// GetOrganization returns one organization
// @Summary Get organization
// @Tags Organizations
// @Produce json
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Success 200 {object} org.Organization
// @Failure 404 {object} map[string]string
// @Router /organizations/{orgID} [get]
func (h *Handler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	o, err := h.orgService.Get(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		respondError(w, http.StatusNotFound, "organization not found")
		return
	}
	respondJSON(w, http.StatusOK, o)
}

// UpdateOrgRequest represents mutable organization attributes
type UpdateOrgRequest struct {
	Name      string  `json:"name" validate:"required"`
	City      string  `json:"city"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// UpdateOrganization updates an organization
// @Summary Update organization
// @Tags Organizations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Param request body UpdateOrgRequest true "Organization Data"
// @Success 200 {object} org.Organization
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /organizations/{orgID} [put]
func (h *Handler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrgRequest
	if err := h.decodeValid(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orgService.Get(r.Context(), chi.URLParam(r, "orgID"))
	if err != nil {
		respondError(w, http.StatusNotFound, "organization not found")
		return
	}

	o.Name = req.Name
	o.City = req.City
	o.Address = req.Address
	o.Latitude = req.Latitude
	o.Longitude = req.Longitude

	p := GetPrincipal(r.Context())
	if err := h.orgService.Update(r.Context(), p.ID, o); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update organization")
		return
	}

	respondJSON(w, http.StatusOK, o)
}

// DeactivateOrganization marks an organization inactive
// @Summary Deactivate organization
// @Tags Organizations
// @Produce json
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /organizations/{orgID} [delete]
func (h *Handler) DeactivateOrganization(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())
	if err := h.orgService.Deactivate(r.Context(), p.ID, chi.URLParam(r, "orgID")); err != nil {
		if errors.Is(err, org.ErrOrgNotFound) {
			respondError(w, http.StatusNotFound, "organization not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to deactivate organization")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
