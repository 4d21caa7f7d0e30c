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
	"crypto/rand"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewUUIDv7 generates a time-ordered UUID for entity primary keys.
// Falls back to UUIDv4 if the monotonic source fails.
func NewUUIDv7() string {
	u, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return u.String()
}

// NewULID generates a lexicographically sortable identifier for
// externally visible correlation IDs (step-up verifications).
func NewULID() string {
	return ulid.Make().String()
}

// NewCode generates an n-digit numeric one-time code with uniform
// digits. Bytes >= 250 are rejected: 250 is the largest multiple of 10
// that fits a byte, so taking them mod 10 would skew low digits.
func NewCode(n int) (string, error) {
	const digits = "0123456789"
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			out = append(out, digits[int(b)%len(digits)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}
