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

	"github.com/bloodlink/bloodlink/internal/identity"
	"github.com/bloodlink/bloodlink/internal/role"
)

// Sensitive action types gated by step-up verification when the target
// is an admin-class account.
const (
	ActionUpdateUser        = "update_user"
	ActionDeleteUser        = "delete_user"
	ActionChangePermissions = "change_permissions"
)

// CreateUserRequest represents user creation data
type CreateUserRequest struct {
	FullName string  `json:"full_name" validate:"required" example:"Amara Okafor"`
	Email    string  `json:"email" validate:"required,email" example:"amara@bloodlink.org"`
	UserType string  `json:"user_type" validate:"required,oneof=system_admin super_admin tenant_admin staff"`
	RoleID   string  `json:"role_id" validate:"required,uuid"`
	OrgID    *string `json:"org_id,omitempty"`
	Password string  `json:"password" validate:"required"`
}

// CreateUser creates a principal
// @Summary Create user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "User Data"
// @Success 201 {object} identity.Principal
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /users [post]
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := h.decodeValid(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.identityService.Create(r.Context(), identity.CreateParams{
		FullName: req.FullName,
		Email:    req.Email,
		UserType: identity.UserType(req.UserType),
		RoleID:   req.RoleID,
		OrgID:    req.OrgID,
		Password: req.Password,
	})
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrPrincipalExists):
			respondError(w, http.StatusConflict, "user already exists")
		case errors.Is(err, identity.ErrInvalidEmail):
			respondError(w, http.StatusBadRequest, "invalid email address")
		case errors.Is(err, identity.ErrWeakPassword):
			respondError(w, http.StatusBadRequest, "password does not meet security requirements")
		default:
			respondError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	respondJSON(w, http.StatusCreated, p)
}

// ListUsers returns principals, optionally scoped to an organization
// @Summary List users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param org_id query string false "Filter by home organization"
// @Success 200 {array} identity.Principal
// @Router /users [get]
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	var orgID *string
	if v := r.URL.Query().Get("org_id"); v != "" {
		orgID = &v
	} else if sess := GetSession(r.Context()); sess.OrgID != nil {
		// An organization context only sees its own users.
		orgID = sess.OrgID
	}

	users, err := h.identityService.ListPrincipals(r.Context(), orgID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// GetUser returns one principal
// @Summary Get user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Success 200 {object} identity.Principal
// @Failure 404 {object} map[string]string
// @Router /users/{userID} [get]
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	p, err := h.identityService.GetPrincipal(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// UpdateUserRequest represents profile updates
type UpdateUserRequest struct {
	FullName string `json:"full_name" validate:"required"`
}

// UpdateUser updates a principal's profile. Admin-class targets
// require step-up verification.
// @Summary Update user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Param X-Verification-Token header string false "Step-up verification token"
// @Param request body UpdateUserRequest true "Profile Data"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /users/{userID} [put]
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	target, err := h.identityService.GetPrincipal(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	if target.UserType.IsAdminClass() && !h.requireVerification(w, r, ActionUpdateUser, userID) {
		return
	}

	var req UpdateUserRequest
	if err := h.decodeValid(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.identityService.UpdateProfile(r.Context(), userID, req.FullName); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update user")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// DeactivateUser deactivates a principal. Admin-class targets require
// step-up verification.
// @Summary Deactivate user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Param X-Verification-Token header string false "Step-up verification token"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /users/{userID} [delete]
func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	target, err := h.identityService.GetPrincipal(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	if target.UserType.IsAdminClass() && !h.requireVerification(w, r, ActionDeleteUser, userID) {
		return
	}

	actor := GetPrincipal(r.Context())
	if err := h.identityService.Deactivate(r.Context(), actor.ID, userID, getIPAddress(r)); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to deactivate user")
		return
	}

	// A deactivated account must not keep working sessions.
	if err := h.sessionService.DestroyAllForUser(r.Context(), userID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to revoke sessions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// SetUserPermissionsRequest sets or clears the custom role override
type SetUserPermissionsRequest struct {
	CustomRoleID *string `json:"custom_role_id"`
}

// SetUserPermissions sets or clears a principal's custom role
// override. Admin-class targets require step-up verification.
// @Summary Set user permissions
// @Description Assign a custom role that fully replaces the base role, or clear it
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Param X-Verification-Token header string false "Step-up verification token"
// @Param request body SetUserPermissionsRequest true "Override"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /users/{userID}/permissions [put]
func (h *Handler) SetUserPermissions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	target, err := h.identityService.GetPrincipal(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}

	if target.UserType.IsAdminClass() && !h.requireVerification(w, r, ActionChangePermissions, userID) {
		return
	}

	var req SetUserPermissionsRequest
	if err := h.decodeValid(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CustomRoleID != nil {
		if _, err := h.roleService.GetRole(r.Context(), *req.CustomRoleID); err != nil {
			if errors.Is(err, role.ErrRoleNotFound) {
				respondError(w, http.StatusBadRequest, "custom role does not exist")
				return
			}
			respondError(w, http.StatusInternalServerError, "failed to resolve role")
			return
		}
	}

	actor := GetPrincipal(r.Context())
	if err := h.identityService.SetPermissionOverride(r.Context(), actor.ID, userID, req.CustomRoleID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to set permissions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "permissions_updated"})
}
