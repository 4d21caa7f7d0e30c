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
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/bloodlink/bloodlink/internal/observability/logger"
	"github.com/bloodlink/bloodlink/internal/role"
)

// Authorization principles:
// 1. The effective context lives on the session row, never in a header
// 2. Permission checks always run against the effective role, not the
//    home role
// 3. Hiding navigation is convenience; the permission predicate is the
//    enforcement point

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.InfoContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.RemoteAddr(r.RemoteAddr),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// AuthMiddleware validates the bearer access token, loads the live
// session row, and stores principal and session in the request
// context. The session row wins over token claims: a switch in one tab
// is honored by requests from every tab.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}

		claims, err := h.sessionService.ParseToken(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		sess, err := h.sessionService.Get(r.Context(), claims.SessionID)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		p, err := h.identityService.GetPrincipal(r.Context(), sess.UserID)
		if err != nil || !p.IsActive {
			respondError(w, http.StatusUnauthorized, "account is not active")
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, p)
		ctx = context.WithValue(ctx, sessionKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission gates a route on (module, action) against the
// caller's effective role. Fails closed: resolution errors deny.
func (h *Handler) RequirePermission(m role.Module, a role.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			sess := GetSession(r.Context())
			if p == nil || sess == nil {
				respondError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			effective, err := h.roleService.EffectiveRole(r.Context(), p, sess.ActingUserType)
			if err != nil || !h.roleService.HasPermission(effective, m, a) {
				h.denyPermission(r, p, m, a)
				respondError(w, http.StatusForbidden, "permission denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdminClass gates a route on the caller's acting user type.
func (h *Handler) RequireAdminClass(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := GetSession(r.Context())
		if sess == nil {
			respondError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		if !sess.ActingUserType.IsAdminClass() {
			respondError(w, http.StatusForbidden, "permission denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimPrefix(auth, prefix)
}
