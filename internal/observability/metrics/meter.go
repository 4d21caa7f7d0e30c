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

package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps the OpenTelemetry meter plus the console's domain instruments.
type Meter struct {
	meter metric.Meter

	ContextSwitches    metric.Int64Counter
	StepUpVerified     metric.Int64Counter
	StepUpFailed       metric.Int64Counter
	PermissionDenials  metric.Int64Counter
	ActiveSessionCount metric.Int64UpDownCounter
}

// New creates a new meter instance and registers the domain instruments
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	var meter metric.Meter
	if !cfg.Enabled {
		meter = otel.Meter("noop")
	} else {
		meter = otel.Meter(serviceName)
	}

	m := &Meter{meter: meter}

	var err error
	if m.ContextSwitches, err = meter.Int64Counter(
		"context_switches_total",
		metric.WithDescription("Effective context switch operations, by outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.StepUpVerified, err = meter.Int64Counter(
		"stepup_verifications_total",
		metric.WithDescription("Successful step-up verifications, by method"),
	); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.StepUpFailed, err = meter.Int64Counter(
		"stepup_failures_total",
		metric.WithDescription("Failed step-up verification attempts, by method"),
	); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.PermissionDenials, err = meter.Int64Counter(
		"permission_denials_total",
		metric.WithDescription("Denied permission checks, by module"),
	); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.ActiveSessionCount, err = meter.Int64UpDownCounter(
		"active_sessions",
		metric.WithDescription("Sessions currently alive"),
	); err != nil {
		return nil, fmt.Errorf("failed to create up/down counter: %w", err)
	}

	return m, nil
}

// GetMeter returns the underlying meter
func (m *Meter) GetMeter() metric.Meter {
	return m.meter
}
