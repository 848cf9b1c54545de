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

package telemetry

import "fmt"

// Command is a request written to the controller as one JSON line.
type Command struct {
	Cmd    string  `json:"cmd"`
	Sensor int     `json:"sensor,omitempty"`
	Weight float64 `json:"weight,omitempty"`
}

// TareCommand zeroes all four sensors.
func TareCommand() Command {
	return Command{Cmd: "tare"}
}

// CalibrateCommand calibrates one sensor (1..4) against a known weight in grams.
func CalibrateCommand(sensor int, weightGrams float64) (Command, error) {
	if sensor < 1 || sensor > SensorCount {
		return Command{}, fmt.Errorf("%w: %d", ErrInvalidSensor, sensor)
	}

	if weightGrams <= 0 {
		return Command{}, fmt.Errorf("%w: %g", ErrInvalidWeight, weightGrams)
	}

	return Command{Cmd: "cal", Sensor: sensor, Weight: weightGrams}, nil
}

// GetCalibrationCommand asks the controller for its calibration table.
func GetCalibrationCommand() Command {
	return Command{Cmd: "get_calib"}
}
