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

// @title BloodLink API
// @version 1.0.0
// @description Multi-tenant blood bank operations console
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/bloodlink/bloodlink/internal/audit"
	"github.com/bloodlink/bloodlink/internal/identity"
	"github.com/bloodlink/bloodlink/internal/observability/logger"
	"github.com/bloodlink/bloodlink/internal/observability/metrics"
	"github.com/bloodlink/bloodlink/internal/org"
	"github.com/bloodlink/bloodlink/internal/role"
	"github.com/bloodlink/bloodlink/internal/session"
	"github.com/bloodlink/bloodlink/internal/stepup"
)

// VerificationTokenHeader carries the step-up proof for sensitive
// mutations.
const VerificationTokenHeader = "X-Verification-Token"

// Handler holds HTTP handlers and dependencies
type Handler struct {
	identityService *identity.Service
	sessionService  *session.Service
	orgService      *org.Service
	roleService     *role.Service
	stepupService   *stepup.Service
	auditLogger     audit.Logger
	meter           *metrics.Meter
	validate        *validator.Validate
}

// NewHandler creates a new HTTP handler
func NewHandler(
	identityService *identity.Service,
	sessionService *session.Service,
	orgService *org.Service,
	roleService *role.Service,
	stepupService *stepup.Service,
	auditLogger audit.Logger,
	meter *metrics.Meter,
) *Handler {
	return &Handler{
		identityService: identityService,
		sessionService:  sessionService,
		orgService:      orgService,
		roleService:     roleService,
		stepupService:   stepupService,
		auditLogger:     auditLogger,
		meter:           meter,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
	}
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, rateLimiter *RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", h.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Post("/auth/logout", h.Logout)
			r.Get("/auth/me", h.GetCurrentUser)
			r.Post("/auth/change-password", h.ChangePassword)

			// Context switching
			r.Get("/context-tree", h.ContextTree)
			r.Get("/context/switchable", h.SwitchableContexts)
			r.Post("/context/switch", h.SwitchContext)
			r.Post("/context/exit", h.ExitContext)

			// Step-up verification
			r.Route("/sensitive-actions", func(r chi.Router) {
				r.Post("/verify-password", h.StepUpVerifyPassword)
				r.Post("/request-otp", h.StepUpRequestOTP)
				r.Post("/verify-otp", h.StepUpVerifyOTP)
			})

			// Role registry
			r.Route("/roles", func(r chi.Router) {
				r.Use(h.RequireAdminClass)

				r.Get("/", h.ListRoles)
				r.Post("/", h.CreateRole)
				r.Get("/available-modules", h.AvailableModules)
				r.Route("/{roleID}", func(r chi.Router) {
					r.Get("/", h.GetRole)
					r.Put("/", h.UpdateRole)
					r.Delete("/", h.DeleteRole)
					r.Post("/duplicate", h.DuplicateRole)
				})
			})

			// User management
			r.Route("/users", func(r chi.Router) {
				r.Use(h.RequireAdminClass)

				r.Get("/", h.ListUsers)
				r.Post("/", h.CreateUser)
				r.Route("/{userID}", func(r chi.Router) {
					r.Get("/", h.GetUser)
					r.Put("/", h.UpdateUser)
					r.Delete("/", h.DeactivateUser)
					r.Put("/permissions", h.SetUserPermissions)
				})
			})

			// Organization hierarchy
			r.Route("/organizations", func(r chi.Router) {
				r.Use(h.RequirePermission("organizations", "view"))

				r.Get("/", h.ListOrganizations)
				r.With(h.RequirePermission("organizations", "create")).Post("/", h.CreateOrganization)
				r.Route("/{orgID}", func(r chi.Router) {
					r.Get("/", h.GetOrganization)
					r.With(h.RequirePermission("organizations", "edit")).Put("/", h.UpdateOrganization)
					r.With(h.RequirePermission("organizations", "delete")).Delete("/", h.DeactivateOrganization)
				})
			})
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "bloodlink",
	})
}

// decodeValid decodes a JSON body and runs struct validation.
func (h *Handler) decodeValid(body io.Reader, dst any) error {
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return err
	}
	return h.validate.Struct(dst)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

func getIPAddress(r *http.Request) string {
	// Check X-Forwarded-For header first
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}

func (h *Handler) denyPermission(r *http.Request, p *identity.Principal, m role.Module, a role.Action) {
	slog.WarnContext(r.Context(), "permission denied",
		logger.UserID(p.ID),
		logger.Module(string(m)),
		logger.Action(string(a)),
		logger.Path(r.URL.Path),
	)
	if h.meter != nil {
		h.meter.PermissionDenials.Add(r.Context(), 1, metric.WithAttributes(
			attribute.String("module", string(m)),
			attribute.String("action", string(a)),
		))
	}
}
