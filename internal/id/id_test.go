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

package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPurpose: Validates one-time code generation.
// Scope: Unit Test
// Security: Codes must be exactly n decimal digits with each digit drawn uniformly;
// rejection sampling must always terminate with a full-length code.
// Expected: Every generated code has the requested length and only decimal digits,
// and across a large sample every digit value occurs.
// Test Case ID: ID-01
func TestNewCode(t *testing.T) {
	seen := make(map[byte]int)
	for i := 0; i < 2000; i++ {
		code, err := NewCode(6)
		assert.NoError(t, err)
		assert.Len(t, code, 6)
		for j := 0; j < len(code); j++ {
			c := code[j]
			assert.True(t, c >= '0' && c <= '9', "code %q", code)
			seen[c]++
		}
	}
	// 12000 digits over 10 values; a missing value means broken sampling.
	for c := byte('0'); c <= '9'; c++ {
		assert.Positive(t, seen[c], "digit %c never generated", c)
	}
}

// TestPurpose: Validates identifier generators used for primary keys and
// verification IDs.
// Scope: Unit Test
// Expected: UUIDv7 is 36 chars and unique per call; ULID is 26 chars.
// Test Case ID: ID-02
func TestIdentifiers(t *testing.T) {
	a, b := NewUUIDv7(), NewUUIDv7()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)

	assert.Len(t, NewULID(), 26)
}
