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

import "strings"

// Tree is the read projection consumed by the context switch picker.
// It carries no authorization logic of its own.
type Tree struct {
	Organizations []*TreeNode `json:"organizations"`
	TotalOrgs     int         `json:"total_orgs"`
	TotalBranches int         `json:"total_branches"`
}

// TreeNode is one parent organization with its branches.
type TreeNode struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	City        string        `json:"city"`
	Branches    []*BranchNode `json:"branches"`
	BranchCount int           `json:"branch_count"`
	IsCurrent   bool          `json:"is_current"`
	SwitchAs    []string      `json:"switch_as,omitempty"`
}

// BranchNode is one branch beneath a parent organization.
type BranchNode struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	City      string   `json:"city"`
	IsCurrent bool     `json:"is_current"`
	SwitchAs  []string `json:"switch_as,omitempty"`
}

// BuildTree assembles the two-level projection from a flat active-org
// list. Matching is a case-insensitive substring test against name and
// city; a branch hit pulls in its parent even when the parent itself
// does not match. Empty search returns the full tree.
func BuildTree(orgs []*Organization, search string, currentOrgID *string, switchAs []string) *Tree {
	search = strings.ToLower(strings.TrimSpace(search))

	byParent := make(map[string][]*Organization)
	var roots []*Organization
	for _, o := range orgs {
		if o.IsParent {
			roots = append(roots, o)
		} else if o.ParentOrgID != nil {
			byParent[*o.ParentOrgID] = append(byParent[*o.ParentOrgID], o)
		}
	}

	matches := func(o *Organization) bool {
		if search == "" {
			return true
		}
		return strings.Contains(strings.ToLower(o.Name), search) ||
			strings.Contains(strings.ToLower(o.City), search)
	}
	isCurrent := func(o *Organization) bool {
		return currentOrgID != nil && o.ID == *currentOrgID
	}

	tree := &Tree{Organizations: []*TreeNode{}}
	for _, root := range roots {
		rootMatches := matches(root)

		var branches []*BranchNode
		for _, b := range byParent[root.ID] {
			// When the root matches, every branch rides along; otherwise
			// only matching branches are kept.
			if !rootMatches && !matches(b) {
				continue
			}
			branches = append(branches, &BranchNode{
				ID:        b.ID,
				Name:      b.Name,
				City:      b.City,
				IsCurrent: isCurrent(b),
				SwitchAs:  switchAs,
			})
		}

		if !rootMatches && len(branches) == 0 {
			continue
		}

		tree.Organizations = append(tree.Organizations, &TreeNode{
			ID:          root.ID,
			Name:        root.Name,
			City:        root.City,
			Branches:    branches,
			BranchCount: len(branches),
			IsCurrent:   isCurrent(root),
			SwitchAs:    switchAs,
		})
		tree.TotalOrgs++
		tree.TotalBranches += len(branches)
	}

	return tree
}
