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

package recorder

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	recorderMeterName = "github.com/carverauto/forceplate/pkg/recorder"

	metricActiveName          = "forceplate_recorder_active"
	metricSamplesRecordedName = "forceplate_recorder_samples_recorded"
	metricSamplesPersisted    = "forceplate_recorder_samples_persisted"
	metricSamplesDropped      = "forceplate_recorder_samples_dropped"
	metricFlushFailures       = "forceplate_recorder_flush_failures"
)

//nolint:gochecknoglobals // metric observers are shared singletons
var (
	recorderMetricsOnce         sync.Once
	recorderMetricsData         = &recorderMetricsObservatory{}
	recorderMetricsRegistration metric.Registration //nolint:unused // keeps the callback registered
)

type recorderMetricsObservatory struct {
	active          atomic.Int64
	samplesRecorded atomic.Int64
	samplesPersist  atomic.Int64
	samplesDropped  atomic.Int64
	flushFailures   atomic.Int64
}

func initRecorderMetrics() {
	meter := otel.Meter(recorderMeterName)

	activeGauge, err := meter.Int64ObservableGauge(
		metricActiveName,
		metric.WithDescription("1 while a session is being recorded"),
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	recorded, err := meter.Int64ObservableCounter(
		metricSamplesRecordedName,
		metric.WithDescription("Samples appended to a session buffer"),
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	persisted, err := meter.Int64ObservableCounter(
		metricSamplesPersisted,
		metric.WithDescription("Samples written to storage"),
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	dropped, err := meter.Int64ObservableCounter(
		metricSamplesDropped,
		metric.WithDescription("Samples discarded after a failed flush"),
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	failures, err := meter.Int64ObservableCounter(
		metricFlushFailures,
		metric.WithDescription("Flushes that failed to persist"),
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(activeGauge, recorderMetricsData.active.Load())
		o.ObserveInt64(recorded, recorderMetricsData.samplesRecorded.Load())
		o.ObserveInt64(persisted, recorderMetricsData.samplesPersist.Load())
		o.ObserveInt64(dropped, recorderMetricsData.samplesDropped.Load())
		o.ObserveInt64(failures, recorderMetricsData.flushFailures.Load())

		return nil
	}, activeGauge, recorded, persisted, dropped, failures)
	if err != nil {
		otel.Handle(err)
		return
	}

	recorderMetricsRegistration = reg
}

func ensureRecorderMetrics() {
	recorderMetricsOnce.Do(initRecorderMetrics)
}
