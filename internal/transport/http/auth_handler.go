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
	"log/slog"
	"net/http"

	"github.com/bloodlink/bloodlink/internal/identity"
	"github.com/bloodlink/bloodlink/internal/nav"
	"github.com/bloodlink/bloodlink/internal/observability/logger"
)

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"admin@bloodlink.org"`
	Password string `json:"password" validate:"required" example:"secret123"`
}

// Login handles user login
// @Summary Login
// @Description Authenticate user and open a session in the home context
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := h.decodeValid(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.identityService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrAccountLocked):
			respondError(w, http.StatusUnauthorized, "account is temporarily locked")
		default:
			respondError(w, http.StatusUnauthorized, "invalid credentials")
		}
		return
	}

	sess, token, err := h.sessionService.Create(r.Context(), p, getIPAddress(r), r.UserAgent())
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create session",
			logger.Error(err),
			logger.UserID(p.ID),
		)
		respondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"user":         p,
		"context":      sess.Context(),
	})
}

// Logout handles user logout
// @Summary Logout
// @Description End the current session
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())
	sess := GetSession(r.Context())

	if err := h.sessionService.Destroy(r.Context(), sess.ID, p.ID, getIPAddress(r)); err != nil {
		slog.ErrorContext(r.Context(), "failed to destroy session",
			logger.Error(err),
			logger.SessionID(sess.ID),
		)
		respondError(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// GetCurrentUser returns the caller's identity, effective context, and
// visible navigation
// @Summary Current user
// @Description Returns the authenticated principal with its effective context and navigation
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /auth/me [get]
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())
	sess := GetSession(r.Context())

	effective, err := h.roleService.EffectiveRole(r.Context(), p, sess.ActingUserType)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to resolve effective role",
			logger.Error(err),
			logger.UserID(p.ID),
		)
		respondError(w, http.StatusInternalServerError, "failed to resolve permissions")
		return
	}

	vocabulary, err := h.roleService.AvailableModules(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load modules")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"user":       p,
		"context":    sess.Context(),
		"role":       effective,
		"navigation": nav.VisibleModules(sess.Context(), effective, vocabulary),
	})
}

// ChangePasswordRequest represents a password change
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// ChangePassword changes the caller's password
// @Summary Change password
// @Tags Auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ChangePasswordRequest true "Passwords"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /auth/change-password [post]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if err := h.decodeValid(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := GetPrincipal(r.Context())
	if err := h.identityService.ChangePassword(r.Context(), p.ID, req.OldPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			respondError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, identity.ErrWeakPassword):
			respondError(w, http.StatusBadRequest, "password does not meet security requirements")
		default:
			respondError(w, http.StatusInternalServerError, "failed to change password")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}
