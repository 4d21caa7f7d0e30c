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

	"github.com/bloodlink/bloodlink/internal/identity"
	"github.com/bloodlink/bloodlink/internal/session"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	sessionKey   contextKey = "session"
)

// GetPrincipal retrieves the authenticated principal from context.
func GetPrincipal(ctx context.Context) *identity.Principal {
	if val, ok := ctx.Value(principalKey).(*identity.Principal); ok {
		return val
	}
	return nil
}

// GetSession retrieves the active session from context.
func GetSession(ctx context.Context) *session.Session {
	if val, ok := ctx.Value(sessionKey).(*session.Session); ok {
		return val
	}
	return nil
}
