/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package heartbeat

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const heartbeatMeterName = "github.com/carverauto/forceplate/pkg/heartbeat"

//nolint:gochecknoglobals // metric observers are shared singletons
var (
	heartbeatMetricsOnce         sync.Once
	heartbeatMetricsData         = &heartbeatMetricsObservatory{}
	heartbeatMetricsRegistration metric.Registration //nolint:unused // keeps the callback registered
)

type heartbeatMetricsObservatory struct {
	sent          atomic.Int64
	failed        atomic.Int64
	updateChecks  atomic.Int64
	updateRejects atomic.Int64
}

func initHeartbeatMetrics() {
	meter := otel.Meter(heartbeatMeterName)

	type counterDef struct {
		name  string
		desc  string
		value *atomic.Int64
	}

	defs := []counterDef{
		{"forceplate_heartbeats_sent", "Heartbeats accepted by the server", &heartbeatMetricsData.sent},
		{"forceplate_heartbeats_failed", "Heartbeats that failed to send", &heartbeatMetricsData.failed},
		{"forceplate_update_checks", "Version checks performed", &heartbeatMetricsData.updateChecks},
		{"forceplate_update_rejected", "Downloaded updates that failed verification or install", &heartbeatMetricsData.updateRejects},
	}

	counters := make([]metric.Int64ObservableCounter, 0, len(defs))
	observables := make([]metric.Observable, 0, len(defs))

	for _, def := range defs {
		c, err := meter.Int64ObservableCounter(def.name, metric.WithDescription(def.desc))
		if err != nil {
			otel.Handle(err)
			return
		}

		counters = append(counters, c)
		observables = append(observables, c)
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for i, def := range defs {
			o.ObserveInt64(counters[i], def.value.Load())
		}

		return nil
	}, observables...)
	if err != nil {
		otel.Handle(err)
		return
	}

	heartbeatMetricsRegistration = reg
}

func ensureHeartbeatMetrics() {
	heartbeatMetricsOnce.Do(initHeartbeatMetrics)
}
