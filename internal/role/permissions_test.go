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
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPurpose: Validates that the wildcard permission set grants every action on every module.
// Scope: Unit Test
// Security: The wildcard is reserved for the system admin role; its semantics must be total.
// Expected: Has returns true for arbitrary module/action pairs, including unknown ones.
// Test Case ID: ROL-01
func TestPermissionSet_Wildcard_GrantsEverything(t *testing.T) {
	ps := Wildcard()

	assert.True(t, ps.IsWildcard())
	assert.True(t, ps.Has("donors", "view"))
	assert.True(t, ps.Has("not-a-module", "not-an-action"))
	assert.False(t, ps.IsEmpty())
}

// TestPurpose: Validates that an explicit permission set grants exactly what it was built with.
// Scope: Unit Test
// Security: Permission checks must fail closed for ungranted module/action pairs.
// Expected: Granted pairs return true; everything else returns false.
// Test Case ID: ROL-02
func TestPermissionSet_Explicit_ChecksExactGrants(t *testing.T) {
	ps := NewPermissionSet(map[Module][]Action{
		"donors":    {"view", "create"},
		"donations": {"view"},
	})

	assert.False(t, ps.IsWildcard())
	assert.True(t, ps.Has("donors", "view"))
	assert.True(t, ps.Has("donors", "create"))
	assert.False(t, ps.Has("donors", "delete"))
	assert.False(t, ps.Has("donations", "create"))
	assert.False(t, ps.Has("requests", "view"))
}

// TestPurpose: Validates that an empty permission set is legal and grants nothing.
// Scope: Unit Test
// Expected: IsEmpty is true and every check fails.
// Test Case ID: ROL-03
func TestPermissionSet_Empty_GrantsNothing(t *testing.T) {
	ps := NewPermissionSet(nil)

	assert.True(t, ps.IsEmpty())
	assert.False(t, ps.Has("donors", "view"))
}

// TestPurpose: Validates the JSON wire format for both variants of the permission set.
// Scope: Unit Test
// Expected: The wildcard encodes as {"*":["*"]} and decodes back to the wildcard variant;
// an explicit set round-trips to equal grants.
// Test Case ID: ROL-04
func TestPermissionSet_JSON(t *testing.T) {
	wire, err := json.Marshal(Wildcard())
	assert.NoError(t, err)
	assert.JSONEq(t, `{"*":["*"]}`, string(wire))

	var decoded PermissionSet
	assert.NoError(t, json.Unmarshal(wire, &decoded))
	assert.True(t, decoded.IsWildcard())

	src := NewPermissionSet(map[Module][]Action{"donors": {"view", "edit"}})
	wire, err = json.Marshal(src)
	assert.NoError(t, err)

	var roundTrip PermissionSet
	assert.NoError(t, json.Unmarshal(wire, &roundTrip))
	assert.True(t, roundTrip.Has("donors", "view"))
	assert.True(t, roundTrip.Has("donors", "edit"))
	assert.False(t, roundTrip.Has("donors", "delete"))
}

// TestPurpose: Validates that Clone produces an independent deep copy.
// Scope: Unit Test
// Security: Role duplication must not alias grant maps between source and copy.
// Expected: Mutating the source's grants never changes the clone.
// Test Case ID: ROL-05
func TestPermissionSet_Clone_Independent(t *testing.T) {
	src := NewPermissionSet(map[Module][]Action{"donors": {"view"}})
	clone := src.Clone()

	src.grants["donors"]["delete"] = struct{}{}

	assert.True(t, src.Has("donors", "delete"))
	assert.False(t, clone.Has("donors", "delete"))
}

// TestPurpose: Validates sorted, deterministic module and action listings.
// Scope: Unit Test
// Expected: Modules and Actions return sorted slices.
// Test Case ID: ROL-06
func TestPermissionSet_SortedListings(t *testing.T) {
	ps := NewPermissionSet(map[Module][]Action{
		"requests": {"view", "approve", "create"},
		"donors":   {"view"},
	})

	assert.Equal(t, []Module{"donors", "requests"}, ps.Modules())
	assert.Equal(t, []Action{"approve", "create", "view"}, ps.Actions("requests"))
	assert.Nil(t, ps.Actions("unknown"))
}
