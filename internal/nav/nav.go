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

// Package nav derives the navigation surface from the effective
// context and permission set. Pure computation: hiding an entry here
// is convenience, not enforcement, so the same permission predicate
// still guards the underlying operations.
package nav

import (
	"sort"

	"github.com/bloodlink/bloodlink/internal/role"
	"github.com/bloodlink/bloodlink/internal/session"
)

// Platform modules shown in the global context.
const (
	ModuleNetwork       role.Module = "network"
	ModuleOrganizations role.Module = "organizations"
	ModuleAuditLogs     role.Module = "audit-logs"
	ModuleUsers         role.Module = "users"
	ModuleSecurity      role.Module = "security"
)

// platformModules is the fixed navigation of the global context, in
// display order.
var platformModules = []role.Module{
	ModuleNetwork,
	ModuleOrganizations,
	ModuleAuditLogs,
	ModuleUsers,
	ModuleSecurity,
}

// Item is one visible navigation entry with the actions the caller may
// take inside it.
type Item struct {
	Module  role.Module   `json:"module"`
	Actions []role.Action `json:"actions,omitempty"`
}

// VisibleModules computes the navigation for a context. The global
// context always shows the platform module set. An organization
// context shows the modules the effective role grants at least one
// action on; a wildcard role sees the whole vocabulary.
func VisibleModules(ec session.EffectiveContext, effective *role.Role, vocabulary map[role.Module][]role.Action) []Item {
	if ec.IsGlobal() {
		items := make([]Item, 0, len(platformModules))
		for _, m := range platformModules {
			items = append(items, Item{Module: m})
		}
		return items
	}

	if effective == nil {
		return []Item{}
	}

	if effective.Permissions.IsWildcard() {
		modules := make([]role.Module, 0, len(vocabulary))
		for m := range vocabulary {
			modules = append(modules, m)
		}
		sort.Slice(modules, func(i, j int) bool { return modules[i] < modules[j] })

		items := make([]Item, 0, len(modules))
		for _, m := range modules {
			items = append(items, Item{Module: m, Actions: vocabulary[m]})
		}
		return items
	}

	items := make([]Item, 0)
	for _, m := range effective.Permissions.Modules() {
		actions := effective.Permissions.Actions(m)
		if len(actions) == 0 {
			continue
		}
		items = append(items, Item{Module: m, Actions: actions})
	}
	return items
}
