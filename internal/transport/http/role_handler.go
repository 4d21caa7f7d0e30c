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

	"github.com/bloodlink/bloodlink/internal/role"
)

// ListRoles returns all roles partitioned into system and custom
// @Summary List roles
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Success 200 {object} role.RoleList
// @Failure 403 {object} map[string]string
// @Router /roles [get]
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	list, err := h.roleService.ListRoles(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list roles")
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// GetRole returns one role
// @Summary Get role
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Param roleID path string true "Role ID"
// @Success 200 {object} role.Role
// @Failure 404 {object} map[string]string
// @Router /roles/{roleID} [get]
func (h *Handler) GetRole(w http.ResponseWriter, r *http.Request) {
	rl, err := h.roleService.GetRole(r.Context(), chi.URLParam(r, "roleID"))
	if err != nil {
		respondError(w, http.StatusNotFound, "role not found")
		return
	}
	respondJSON(w, http.StatusOK, rl)
}

// CreateRoleRequest represents custom role creation data
type CreateRoleRequest struct {
	Name        string                         `json:"name" validate:"required" example:"Lab Supervisor"`
	Description string                         `json:"description" example:"Screening and inventory oversight"`
	OrgID       *string                        `json:"org_id,omitempty"`
	Permissions map[role.Module][]role.Action  `json:"permissions"`
}

// CreateRole creates a custom role
// @Summary Create role
// @Tags Roles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateRoleRequest true "Role Data"
// @Success 201 {object} role.Role
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /roles [post]
func (h *Handler) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if err := h.decodeValid(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := GetPrincipal(r.Context())
	rl, err := h.roleService.CreateCustomRole(r.Context(), p.ID, role.CreateParams{
		Name:        req.Name,
		Description: req.Description,
		OrgID:       req.OrgID,
		Permissions: role.NewPermissionSet(req.Permissions),
	})
	if err != nil {
		switch {
		case errors.Is(err, role.ErrEmptyRoleName):
			respondError(w, http.StatusBadRequest, "role name is required")
		case errors.Is(err, role.ErrRoleExists):
			respondError(w, http.StatusConflict, "role already exists")
		default:
			respondError(w, http.StatusInternalServerError, "failed to create role")
		}
		return
	}

	respondJSON(w, http.StatusCreated, rl)
}

// UpdateRoleRequest represents a custom role patch. Nil fields are
// left unchanged.
type UpdateRoleRequest struct {
	Name        *string                        `json:"name,omitempty"`
	Description *string                        `json:"description,omitempty"`
	Permissions *map[role.Module][]role.Action `json:"permissions,omitempty"`
}

// UpdateRole patches a custom role
// @Summary Update role
// @Tags Roles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param roleID path string true "Role ID"
// @Param request body UpdateRoleRequest true "Role Patch"
// @Success 200 {object} role.Role
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /roles/{roleID} [put]
func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req UpdateRoleRequest
	if err := h.decodeValid(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := role.UpdateParams{Name: req.Name, Description: req.Description}
	if req.Permissions != nil {
		ps := role.NewPermissionSet(*req.Permissions)
		patch.Permissions = &ps
	}

	p := GetPrincipal(r.Context())
	rl, err := h.roleService.UpdateCustomRole(r.Context(), p.ID, chi.URLParam(r, "roleID"), patch)
	if err != nil {
		switch {
		case errors.Is(err, role.ErrRoleNotFound):
			respondError(w, http.StatusNotFound, "role not found")
		case errors.Is(err, role.ErrRoleImmutable):
			respondError(w, http.StatusForbidden, "system roles cannot be modified")
		case errors.Is(err, role.ErrEmptyRoleName):
			respondError(w, http.StatusBadRequest, "role name is required")
		case errors.Is(err, role.ErrRoleExists):
			respondError(w, http.StatusConflict, "role already exists")
		default:
			respondError(w, http.StatusInternalServerError, "failed to update role")
		}
		return
	}

	respondJSON(w, http.StatusOK, rl)
}

// DeleteRole deletes an unreferenced custom role
// @Summary Delete role
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Param roleID path string true "Role ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /roles/{roleID} [delete]
func (h *Handler) DeleteRole(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())
	err := h.roleService.DeleteCustomRole(r.Context(), p.ID, chi.URLParam(r, "roleID"))
	if err != nil {
		switch {
		case errors.Is(err, role.ErrRoleNotFound):
			respondError(w, http.StatusNotFound, "role not found")
		case errors.Is(err, role.ErrRoleImmutable):
			respondError(w, http.StatusForbidden, "system roles cannot be deleted")
		case errors.Is(err, role.ErrRoleInUse):
			respondError(w, http.StatusConflict, "role is assigned to users")
		default:
			respondError(w, http.StatusInternalServerError, "failed to delete role")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// DuplicateRole copies a role into a new custom role
// @Summary Duplicate role
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Param roleID path string true "Role ID"
// @Success 201 {object} role.Role
// @Failure 404 {object} map[string]string
// @Router /roles/{roleID}/duplicate [post]
func (h *Handler) DuplicateRole(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())
	rl, err := h.roleService.DuplicateRole(r.Context(), p.ID, chi.URLParam(r, "roleID"))
	if err != nil {
		if errors.Is(err, role.ErrRoleNotFound) {
			respondError(w, http.StatusNotFound, "role not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to duplicate role")
		return
	}

	respondJSON(w, http.StatusCreated, rl)
}

// AvailableModules returns the module vocabulary
// @Summary Available modules
// @Description Module and action vocabulary for the role editor
// @Tags Roles
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string][]string
// @Router /roles/available-modules [get]
func (h *Handler) AvailableModules(w http.ResponseWriter, r *http.Request) {
	vocabulary, err := h.roleService.AvailableModules(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load modules")
		return
	}
	respondJSON(w, http.StatusOK, vocabulary)
}
