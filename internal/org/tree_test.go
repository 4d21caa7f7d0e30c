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

package org

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testNetwork() []*Organization {
	parent := func(id, name, city string) *Organization {
		return &Organization{ID: id, Name: name, City: city, IsParent: true, IsActive: true}
	}
	branch := func(id, name, city, parentID string) *Organization {
		return &Organization{ID: id, Name: name, City: city, ParentOrgID: &parentID, IsActive: true}
	}
	return []*Organization{
		parent("org-1", "Central Blood Bank", "Riyadh"),
		branch("br-1", "Central North Branch", "Riyadh", "org-1"),
		branch("br-2", "Central Airport Branch", "Jeddah", "org-1"),
		parent("org-2", "Eastern Blood Services", "Dammam"),
		branch("br-3", "Eastern Coastal Branch", "Khobar", "org-2"),
	}
}

// TestPurpose: Validates the full tree projection with no search filter.
// Scope: Unit Test
// Expected: Every root appears with all of its branches; totals count roots and
// branches separately.
// Test Case ID: ORG-01
func TestBuildTree_Full(t *testing.T) {
	tree := BuildTree(testNetwork(), "", nil, nil)

	assert.Equal(t, 2, tree.TotalOrgs)
	assert.Equal(t, 3, tree.TotalBranches)
	assert.Len(t, tree.Organizations, 2)
	assert.Equal(t, "Central Blood Bank", tree.Organizations[0].Name)
	assert.Equal(t, 2, tree.Organizations[0].BranchCount)
	assert.Equal(t, 1, tree.Organizations[1].BranchCount)
}

// TestPurpose: Validates that a branch-only search hit pulls its parent into the result.
// Scope: Unit Test
// Expected: Searching "khobar" keeps Eastern Blood Services with exactly the matching
// branch and drops the other root entirely.
// Test Case ID: ORG-02
func TestBuildTree_BranchMatchPullsInParent(t *testing.T) {
	tree := BuildTree(testNetwork(), "khobar", nil, nil)

	assert.Len(t, tree.Organizations, 1)
	assert.Equal(t, "org-2", tree.Organizations[0].ID)
	assert.Len(t, tree.Organizations[0].Branches, 1)
	assert.Equal(t, "br-3", tree.Organizations[0].Branches[0].ID)
}

// TestPurpose: Validates that a root match keeps all of that root's branches.
// Scope: Unit Test
// Expected: Searching "central" returns the Central root with both branches, even
// though "Central Airport Branch" is the only branch whose city does not match.
// Test Case ID: ORG-03
func TestBuildTree_RootMatchKeepsAllBranches(t *testing.T) {
	tree := BuildTree(testNetwork(), "central", nil, nil)

	assert.Len(t, tree.Organizations, 1)
	assert.Equal(t, "org-1", tree.Organizations[0].ID)
	assert.Len(t, tree.Organizations[0].Branches, 2)
}

// TestPurpose: Validates case-insensitive matching against both name and city.
// Scope: Unit Test
// Expected: "JEDDAH" (city of a branch) and "eastern" (name of a root) both match.
// Test Case ID: ORG-04
func TestBuildTree_CaseInsensitiveNameAndCity(t *testing.T) {
	tree := BuildTree(testNetwork(), "JEDDAH", nil, nil)
	assert.Len(t, tree.Organizations, 1)
	assert.Equal(t, "br-2", tree.Organizations[0].Branches[0].ID)

	tree = BuildTree(testNetwork(), "eastern", nil, nil)
	assert.Len(t, tree.Organizations, 1)
	assert.Equal(t, "org-2", tree.Organizations[0].ID)
}

// TestPurpose: Validates the current-context annotation on tree nodes.
// Scope: Unit Test
// Expected: Exactly the node matching the session's organization is flagged IsCurrent.
// Test Case ID: ORG-05
func TestBuildTree_CurrentAnnotation(t *testing.T) {
	current := "br-2"
	tree := BuildTree(testNetwork(), "", &current, []string{"tenant_admin", "staff"})

	assert.False(t, tree.Organizations[0].IsCurrent)
	assert.False(t, tree.Organizations[0].Branches[0].IsCurrent)
	assert.True(t, tree.Organizations[0].Branches[1].IsCurrent)
	assert.Equal(t, []string{"tenant_admin", "staff"}, tree.Organizations[0].SwitchAs)
}

// TestPurpose: Validates behavior on a search with no hits.
// Scope: Unit Test
// Expected: An empty but non-nil organizations slice and zero totals.
// Test Case ID: ORG-06
func TestBuildTree_NoMatches(t *testing.T) {
	tree := BuildTree(testNetwork(), "no-such-place", nil, nil)

	assert.NotNil(t, tree.Organizations)
	assert.Empty(t, tree.Organizations)
	assert.Equal(t, 0, tree.TotalOrgs)
	assert.Equal(t, 0, tree.TotalBranches)
}
