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

package link

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	linkMeterName = "github.com/carverauto/forceplate/pkg/link"

	metricStateName          = "forceplate_link_state"
	metricLinesReceivedName  = "forceplate_link_lines_received"
	metricLinesDiscardedName = "forceplate_link_lines_discarded"
	metricLinkLostName       = "forceplate_link_lost"
	metricReconnectsName     = "forceplate_link_reconnects"
	metricWriteErrorsName    = "forceplate_link_write_errors"
)

//nolint:gochecknoglobals // metric observers are shared singletons
var (
	linkMetricsOnce         sync.Once
	linkMetricsData         = &linkMetricsObservatory{}
	linkMetricsRegistration metric.Registration //nolint:unused // keeps the callback registered
)

type linkMetricsObservatory struct {
	state          atomic.Int64
	linesReceived  atomic.Int64
	linesDiscarded atomic.Int64
	linkLost       atomic.Int64
	reconnects     atomic.Int64
	writeErrors    atomic.Int64
}

func initLinkMetrics() {
	meter := otel.Meter(linkMeterName)

	type gaugeDef struct {
		name  string
		desc  string
		value *atomic.Int64
	}

	defs := []gaugeDef{
		{metricStateName, "Current link state (0 disconnected, 1 probing, 2 connected)", &linkMetricsData.state},
		{metricLinesReceivedName, "Device lines read since start", &linkMetricsData.linesReceived},
		{metricLinesDiscardedName, "Device lines discarded as unparsable", &linkMetricsData.linesDiscarded},
		{metricLinkLostName, "Established links torn down by I/O errors", &linkMetricsData.linkLost},
		{metricReconnectsName, "Links reopened after being lost", &linkMetricsData.reconnects},
		{metricWriteErrorsName, "Command writes that failed", &linkMetricsData.writeErrors},
	}

	gauges := make([]metric.Int64ObservableGauge, 0, len(defs))
	observables := make([]metric.Observable, 0, len(defs))

	for _, def := range defs {
		g, err := meter.Int64ObservableGauge(def.name, metric.WithDescription(def.desc))
		if err != nil {
			otel.Handle(err)
			return
		}

		gauges = append(gauges, g)
		observables = append(observables, g)
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for i, def := range defs {
			o.ObserveInt64(gauges[i], def.value.Load())
		}

		return nil
	}, observables...)
	if err != nil {
		otel.Handle(err)
		return
	}

	linkMetricsRegistration = reg
}

func ensureLinkMetrics() {
	linkMetricsOnce.Do(initLinkMetrics)
}
