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

	"github.com/bloodlink/bloodlink/internal/identity"
	"github.com/bloodlink/bloodlink/internal/stepup"
)

// StepUpPasswordRequest proves identity with the live password
type StepUpPasswordRequest struct {
	Password   string `json:"password" validate:"required"`
	ActionType string `json:"action_type" validate:"required" example:"delete_user"`
	TargetID   string `json:"target_id" validate:"required"`
}

// StepUpVerifyPassword verifies the caller's password for a sensitive action
// @Summary Verify password
// @Description Prove identity with the live password; returns a scoped verification token
// @Tags SensitiveActions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body StepUpPasswordRequest true "Password and scope"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /sensitive-actions/verify-password [post]
func (h *Handler) StepUpVerifyPassword(w http.ResponseWriter, r *http.Request) {
	var req StepUpPasswordRequest
	if err := h.decodeValid(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := GetPrincipal(r.Context())
	token, err := h.stepupService.VerifyPassword(r.Context(), p, req.Password, req.ActionType, req.TargetID)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		respondError(w, http.StatusInternalServerError, "verification failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"verification_token": token})
}

// StepUpOTPRequest requests a one-time code for a sensitive action
type StepUpOTPRequest struct {
	ActionType string `json:"action_type" validate:"required" example:"delete_user"`
	TargetID   string `json:"target_id" validate:"required"`
}

// StepUpRequestOTP issues a one-time code for a sensitive action
// @Summary Request OTP
// @Description Deliver a one-time code; a repeated request supersedes the previous code
// @Tags SensitiveActions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body StepUpOTPRequest true "Scope"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /sensitive-actions/request-otp [post]
func (h *Handler) StepUpRequestOTP(w http.ResponseWriter, r *http.Request) {
	var req StepUpOTPRequest
	if err := h.decodeValid(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := GetPrincipal(r.Context())
	v, err := h.stepupService.RequestOTP(r.Context(), p, req.ActionType, req.TargetID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to send verification code")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"verification_id": v.ID,
		"expires_at":      v.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// StepUpVerifyOTPRequest submits a one-time code
type StepUpVerifyOTPRequest struct {
	Code       string `json:"code" validate:"required" example:"482019"`
	ActionType string `json:"action_type" validate:"required" example:"delete_user"`
	TargetID   string `json:"target_id" validate:"required"`
}

// StepUpVerifyOTP checks a one-time code for a sensitive action
// @Summary Verify OTP
// @Description Check the submitted code; returns a scoped verification token
// @Tags SensitiveActions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body StepUpVerifyOTPRequest true "Code and scope"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 410 {object} map[string]string
// @Router /sensitive-actions/verify-otp [post]
func (h *Handler) StepUpVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req StepUpVerifyOTPRequest
	if err := h.decodeValid(r.Body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p := GetPrincipal(r.Context())
	token, err := h.stepupService.VerifyOTP(r.Context(), p, req.Code, req.ActionType, req.TargetID)
	if err != nil {
		switch {
		case errors.Is(err, stepup.ErrInvalidCode):
			respondError(w, http.StatusBadRequest, "verification code must be numeric")
		case errors.Is(err, stepup.ErrCodeMismatch):
			respondError(w, http.StatusUnauthorized, "verification code does not match")
		case errors.Is(err, stepup.ErrVerificationNotFound):
			respondError(w, http.StatusNotFound, "no pending verification")
		case errors.Is(err, stepup.ErrVerificationExpired):
			respondError(w, http.StatusGone, "verification expired")
		default:
			respondError(w, http.StatusInternalServerError, "verification failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"verification_token": token})
}

// requireVerification consumes the step-up token for a sensitive
// mutation. Returns false after writing the error response when the
// caller presented no token or one that does not cover the action.
func (h *Handler) requireVerification(w http.ResponseWriter, r *http.Request, actionType, targetID string) bool {
	token := r.Header.Get(VerificationTokenHeader)
	if token == "" {
		respondError(w, http.StatusForbidden, "verification required")
		return false
	}

	p := GetPrincipal(r.Context())
	if err := h.stepupService.Consume(r.Context(), token, p.ID, actionType, targetID); err != nil {
		switch {
		case errors.Is(err, stepup.ErrScopeMismatch):
			respondError(w, http.StatusForbidden, "verification token does not cover this action")
		case errors.Is(err, stepup.ErrTokenConsumed):
			respondError(w, http.StatusForbidden, "verification token already used")
		default:
			respondError(w, http.StatusForbidden, "verification required")
		}
		return false
	}
	return true
}
