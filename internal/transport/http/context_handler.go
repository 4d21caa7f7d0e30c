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
	"github.com/bloodlink/bloodlink/internal/observability/logger"
	"github.com/bloodlink/bloodlink/internal/org"
	"github.com/bloodlink/bloodlink/internal/session"
)

// ContextTree returns the organization tree for the switch picker
// @Summary Context tree
// @Description Organization hierarchy annotated for context switching
// @Tags Context
// @Produce json
// @Security BearerAuth
// @Param search query string false "Filter by name or city"
// @Success 200 {object} org.Tree
// @Failure 401 {object} map[string]string
// @Router /context-tree [get]
func (h *Handler) ContextTree(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())
	sess := GetSession(r.Context())

	switchAs := make([]string, 0, 2)
	for _, t := range h.sessionService.AssumableUserTypes(p) {
		switchAs = append(switchAs, string(t))
	}

	tree, err := h.orgService.FetchTree(r.Context(), r.URL.Query().Get("search"), sess.OrgID, switchAs)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to build context tree", logger.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load organizations")
		return
	}

	respondJSON(w, http.StatusOK, tree)
}

// SwitchableContexts returns the contexts the caller may switch into
// @Summary Switchable contexts
// @Tags Context
// @Produce json
// @Security BearerAuth
// @Param search query string false "Filter by name or city"
// @Success 200 {object} org.Tree
// @Failure 403 {object} map[string]string
// @Router /context/switchable [get]
func (h *Handler) SwitchableContexts(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())
	sess := GetSession(r.Context())

	tree, err := h.sessionService.GetSwitchableContexts(r.Context(), p, sess, r.URL.Query().Get("search"))
	if err != nil {
		if errors.Is(err, session.ErrNotEntitled) {
			respondError(w, http.StatusForbidden, "context switching is not available")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to load contexts")
		return
	}

	respondJSON(w, http.StatusOK, tree)
}

// SwitchContextRequest selects the organization and acting role
type SwitchContextRequest struct {
	OrgID          string `json:"org_id" validate:"required,uuid" example:"11111111-2222-3333-4444-555555555555"`
	ActingUserType string `json:"acting_user_type" validate:"required" example:"tenant_admin"`
}

// SwitchContext switches the session into an organization context
// @Summary Switch context
// @Description Replace the effective context and re-issue the access token
// @Tags Context
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SwitchContextRequest true "Target context"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /context/switch [post]
func (h *Handler) SwitchContext(w http.ResponseWriter, r *http.Request) {
	var req SwitchContextRequest
	if err := h.decodeValid(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := GetPrincipal(r.Context())
	sess := GetSession(r.Context())

	updated, token, err := h.sessionService.SwitchContext(r.Context(), sess, p, req.OrgID, identity.UserType(req.ActingUserType))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrNotEntitled):
			respondError(w, http.StatusForbidden, "context switching is not available")
		case errors.Is(err, session.ErrInvalidActing):
			respondError(w, http.StatusBadRequest, "acting user type is not assumable")
		case errors.Is(err, org.ErrOrgNotFound):
			respondError(w, http.StatusNotFound, "organization not found")
		case errors.Is(err, org.ErrOrgInactive):
			respondError(w, http.StatusConflict, "organization is not active")
		default:
			slog.ErrorContext(r.Context(), "failed to switch context",
				logger.Error(err),
				logger.SessionID(sess.ID),
			)
			respondError(w, http.StatusInternalServerError, "failed to switch context")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"context":      updated.Context(),
	})
}

// ExitContext restores the session to the home context
// @Summary Exit context
// @Description Leave the impersonated context; a no-op when not impersonating
// @Tags Context
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]any
// @Failure 401 {object} map[string]string
// @Router /context/exit [post]
func (h *Handler) ExitContext(w http.ResponseWriter, r *http.Request) {
	p := GetPrincipal(r.Context())
	sess := GetSession(r.Context())

	updated, token, err := h.sessionService.ExitContext(r.Context(), sess, p)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to exit context",
			logger.Error(err),
			logger.SessionID(sess.ID),
		)
		respondError(w, http.StatusInternalServerError, "failed to exit context")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"context":      updated.Context(),
	})
}
