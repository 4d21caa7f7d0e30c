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

package role

import (
	"encoding/json"
	"sort"
)

// Module identifies a console module. The vocabulary is open: it lives
// in the store and is served by AvailableModules, never hard-coded in
// clients.
type Module string

// Action identifies an operation within a module (view, create, edit,
// delete, approve, ...). Open vocabulary, same as Module.
type Action string

// PermissionSet is a tagged grant set: either the wildcard (every
// action on every module, reserved for the system admin role) or an
// explicit module→actions mapping. The wildcard is a distinct variant
// rather than a magic role-name comparison so the exception stays
// auditable.
type PermissionSet struct {
	wildcard bool
	grants   map[Module]map[Action]struct{}
}

// Wildcard returns the permission set that allows everything.
func Wildcard() PermissionSet {
	return PermissionSet{wildcard: true}
}

// NewPermissionSet builds an explicit permission set. An empty grant
// map is legal: a role with no grants allows nothing.
func NewPermissionSet(grants map[Module][]Action) PermissionSet {
	ps := PermissionSet{grants: make(map[Module]map[Action]struct{}, len(grants))}
	for m, actions := range grants {
		set := make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			set[a] = struct{}{}
		}
		ps.grants[m] = set
	}
	return ps
}

// IsWildcard reports whether this set is the wildcard variant.
func (ps PermissionSet) IsWildcard() bool {
	return ps.wildcard
}

// Has reports whether the set grants action on module. Pure: no I/O,
// no mutation, safe to call from render paths.
func (ps PermissionSet) Has(m Module, a Action) bool {
	if ps.wildcard {
		return true
	}
	actions, ok := ps.grants[m]
	if !ok {
		return false
	}
	_, ok = actions[a]
	return ok
}

// Modules returns the granted modules in sorted order. Wildcard sets
// return nil; callers must check IsWildcard first.
func (ps PermissionSet) Modules() []Module {
	if ps.wildcard {
		return nil
	}
	modules := make([]Module, 0, len(ps.grants))
	for m := range ps.grants {
		modules = append(modules, m)
	}
	sort.Slice(modules, func(i, j int) bool { return modules[i] < modules[j] })
	return modules
}

// Actions returns the granted actions for a module in sorted order.
func (ps PermissionSet) Actions(m Module) []Action {
	set, ok := ps.grants[m]
	if !ok {
		return nil
	}
	actions := make([]Action, 0, len(set))
	for a := range set {
		actions = append(actions, a)
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// IsEmpty reports whether the set grants nothing at all.
func (ps PermissionSet) IsEmpty() bool {
	return !ps.wildcard && len(ps.grants) == 0
}

// Clone returns a deep copy. Used by role duplication so the copy
// never aliases the source's grant maps.
func (ps PermissionSet) Clone() PermissionSet {
	if ps.wildcard {
		return Wildcard()
	}
	clone := PermissionSet{grants: make(map[Module]map[Action]struct{}, len(ps.grants))}
	for m, actions := range ps.grants {
		set := make(map[Action]struct{}, len(actions))
		for a := range actions {
			set[a] = struct{}{}
		}
		clone.grants[m] = set
	}
	return clone
}

// wildcardKey is the wire encoding of the wildcard variant.
const wildcardKey = "*"

// MarshalJSON encodes the set as a plain module→actions object; the
// wildcard variant encodes as {"*": ["*"]}.
func (ps PermissionSet) MarshalJSON() ([]byte, error) {
	if ps.wildcard {
		return json.Marshal(map[string][]string{wildcardKey: {wildcardKey}})
	}
	out := make(map[Module][]Action, len(ps.grants))
	for _, m := range ps.Modules() {
		out[m] = ps.Actions(m)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (ps *PermissionSet) UnmarshalJSON(data []byte) error {
	var raw map[Module][]Action
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if _, ok := raw[wildcardKey]; ok {
		*ps = Wildcard()
		return nil
	}
	*ps = NewPermissionSet(raw)
	return nil
}
