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

package stepup

import (
	"context"
	"log/slog"
)

// DevSender writes codes to the log instead of delivering them. Local
// development only; never wire it in production.
type DevSender struct{}

// NewDevSender creates a log-backed code sender.
func NewDevSender() *DevSender {
	return &DevSender{}
}

// SendCode logs the code for the developer to copy.
func (s *DevSender) SendCode(ctx context.Context, email, code string) error {
	slog.InfoContext(ctx, "verification code issued (dev sender)", "email", email, "code", code)
	return nil
}
