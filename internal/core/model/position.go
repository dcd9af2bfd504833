// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package model defines the core data structures for the application.
// This file contains the spatial position types and the coordinate-system
// conversions between them.
//
// A Position carries three co-derived representations that must stay
// mutually consistent:
//
//   - PositionPi: angles expressed in multiples of pi. This is the bounded,
//     model-friendly form used on the prediction wire: azimuth in [0,2),
//     elevation in [0,1], distance in [0.25, 3.0].
//   - PositionRad: the same angles in radians, for the renderer's
//     trigonometry: azimuth = azimuthPi*pi, elevation = elevationPi*pi.
//   - PositionXYZ: Cartesian coordinates derived from the spherical radian
//     form with elevation measured from the polar axis.
//
// The invariant is one-directional: XYZ is always a pure function of the
// radian form, which is always a pure function of the pi form. NewPosition is
// the only constructor and enforces normalization, so a Position built here
// can never hold inconsistent representations.
package model

import "math"

// PositionPrecision is the number of decimal places all position and angle
// values are rounded to, for reproducibility across runs and predictors.
const PositionPrecision = 4

// PositionPi holds spherical coordinates with angles in multiples of pi.
type PositionPi struct {
	AzimuthPi   float64 `json:"azimuth_pi"`   // Horizontal angle / pi, wrapped into [0, 2).
	ElevationPi float64 `json:"elevation_pi"` // Polar angle / pi, clamped into [0, 1].
	Distance    float64 `json:"distance"`     // Radial distance, clamped into [0.25, 3.0].
}

// PositionRad holds the same spherical coordinates in radians.
type PositionRad struct {
	Azimuth   float64 `json:"azimuth"`
	Elevation float64 `json:"elevation"`
	Distance  float64 `json:"distance"`
}

// PositionXYZ holds the Cartesian projection of a spherical position.
type PositionXYZ struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Position bundles the three co-derived coordinate representations.
type Position struct {
	Pi  PositionPi  `json:"position_pi"`
	Rad PositionRad `json:"position_rad"`
	Xyz PositionXYZ `json:"position_xyz"`
}

// NewPosition builds a fully derived Position from raw pi-unit inputs.
// The inputs may come from an external predictor and are not trusted: the
// azimuth is wrapped into [0,2), the elevation is clamped into [0,1], the
// distance is clamped into [0.25, 3.0], and every derived value is rounded
// to PositionPrecision decimals.
func NewPosition(azimuthPi, elevationPi, distance float64) Position {
	// Wrap once more after rounding: a value like 1.99997 rounds to 2.0,
	// which is outside the half-open [0,2) interval.
	pi := PositionPi{
		AzimuthPi:   WrapAzimuthPi(Round(WrapAzimuthPi(azimuthPi))),
		ElevationPi: Round(Clamp(elevationPi, 0.0, 1.0)),
		Distance:    Round(Clamp(distance, 0.25, 3.0)),
	}
	rad := pi.ToRadians()
	return Position{Pi: pi, Rad: rad, Xyz: rad.ToCartesian()}
}

// ToRadians converts the pi-unit form to radians. The distance carries over
// unchanged.
func (p PositionPi) ToRadians() PositionRad {
	return PositionRad{
		Azimuth:   Round(p.AzimuthPi * math.Pi),
		Elevation: Round(p.ElevationPi * math.Pi),
		Distance:  p.Distance,
	}
}

// ToCartesian projects the spherical radian form onto Cartesian axes.
// Elevation is measured from the polar (Y) axis, so the horizontal radius is
// distance*sin(elevation) and the height is distance*cos(elevation).
func (p PositionRad) ToCartesian() PositionXYZ {
	horizontal := p.Distance * math.Sin(p.Elevation)
	return PositionXYZ{
		X: Round(horizontal * math.Cos(p.Azimuth)),
		Y: Round(p.Distance * math.Cos(p.Elevation)),
		Z: Round(horizontal * math.Sin(p.Azimuth)),
	}
}

// WrapAzimuthPi wraps an azimuth expressed in pi-units into [0, 2). Negative
// and out-of-range predictor values land on the equivalent angle.
func WrapAzimuthPi(v float64) float64 {
	wrapped := math.Mod(v, 2.0)
	if wrapped < 0 {
		wrapped += 2.0
	}
	return wrapped
}

// Clamp bounds v into [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Round rounds v to PositionPrecision decimal places.
func Round(v float64) float64 {
	shift := math.Pow(10, PositionPrecision)
	return math.Round(v*shift) / shift
}
