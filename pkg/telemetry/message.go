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

// Package telemetry decodes controller messages and maintains the current
// sample, its center of mass and the sampling frequency.
package telemetry

import (
	"encoding/json"
	"fmt"

	"github.com/carverauto/forceplate/pkg/models"
)

const (
	statusTareOK      = "tare_ok"
	statusCalOK       = "cal_ok"
	statusCalError    = "cal_error"
	statusCalibValues = "calib_values"

	SensorCount = 4
)

// Message is one decoded device line. The concrete type is one of
// Telemetry, TareAck, CalibrationResult, CalibrationError or CalibrationSnapshot.
type Message interface {
	message()
}

// Telemetry carries the four load readings, already clipped to zero.
type Telemetry struct {
	Loads models.Loads
}

// TareAck confirms a tare command.
type TareAck struct{}

// CalibrationResult reports a successful single-sensor calibration.
// Sensor is 1-based as on the wire.
type CalibrationResult struct {
	Sensor int
	Scale  float64
	Offset int64
}

// CalibrationError carries the device's calibration failure text.
type CalibrationError struct {
	Msg string
}

// SensorCalibration is one sensor's offset and scale.
type SensorCalibration struct {
	Offset int64   `json:"offset"`
	Scale  float64 `json:"scale"`
}

// CalibrationTable holds the calibration of all four sensors.
type CalibrationTable [SensorCount]SensorCalibration

// CalibrationSnapshot is the device's answer to get_calib.
type CalibrationSnapshot struct {
	Table CalibrationTable
}

func (Telemetry) message()           {}
func (TareAck) message()             {}
func (CalibrationResult) message()   {}
func (CalibrationError) message()    {}
func (CalibrationSnapshot) message() {}

// wireMessage mirrors every key the controller may send.
type wireMessage struct {
	Weight1 *float64 `json:"weight1"`
	Weight2 *float64 `json:"weight2"`
	Weight3 *float64 `json:"weight3"`
	Weight4 *float64 `json:"weight4"`

	Status *string `json:"status"`

	Sensor *int     `json:"sensor"`
	Scale  *float64 `json:"scale"`
	Offset *float64 `json:"offset"`
	Msg    string   `json:"msg"`

	Off1 float64 `json:"off1"`
	Off2 float64 `json:"off2"`
	Off3 float64 `json:"off3"`
	Off4 float64 `json:"off4"`
	Sc1  float64 `json:"sc1"`
	Sc2  float64 `json:"sc2"`
	Sc3  float64 `json:"sc3"`
	Sc4  float64 `json:"sc4"`
}

// Decode parses one line from the controller. Any line that is not a
// complete telemetry or known status message returns an error wrapping
// ErrProtocol.
func Decode(line []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, protocolError(ErrMalformedJSON, err.Error())
	}

	switch {
	case w.Weight1 != nil:
		return decodeTelemetry(&w)
	case w.Status != nil:
		return decodeStatus(&w)
	default:
		return nil, protocolError(ErrUnknownMessage, "")
	}
}

func decodeTelemetry(w *wireMessage) (Message, error) {
	raw := [SensorCount]*float64{w.Weight1, w.Weight2, w.Weight3, w.Weight4}

	var t Telemetry

	for i, v := range raw {
		if v == nil {
			return nil, protocolError(ErrMissingField, fmt.Sprintf("weight%d", i+1))
		}

		t.Loads[i] = max(0, *v)
	}

	return t, nil
}

func decodeStatus(w *wireMessage) (Message, error) {
	switch *w.Status {
	case statusTareOK:
		return TareAck{}, nil
	case statusCalOK:
		if w.Sensor == nil || w.Scale == nil || w.Offset == nil {
			return nil, protocolError(ErrMissingField, "cal_ok needs sensor, scale and offset")
		}

		if *w.Sensor < 1 || *w.Sensor > SensorCount {
			return nil, protocolError(ErrInvalidSensor, fmt.Sprintf("sensor %d", *w.Sensor))
		}

		return CalibrationResult{Sensor: *w.Sensor, Scale: *w.Scale, Offset: int64(*w.Offset)}, nil
	case statusCalError:
		msg := w.Msg
		if msg == "" {
			msg = "calibration error"
		}

		return CalibrationError{Msg: msg}, nil
	case statusCalibValues:
		return CalibrationSnapshot{Table: CalibrationTable{
			{Offset: int64(w.Off1), Scale: w.Sc1},
			{Offset: int64(w.Off2), Scale: w.Sc2},
			{Offset: int64(w.Off3), Scale: w.Sc3},
			{Offset: int64(w.Off4), Scale: w.Sc4},
		}}, nil
	default:
		return nil, protocolError(ErrUnknownStatus, *w.Status)
	}
}
