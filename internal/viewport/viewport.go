/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package viewport holds the interactive view settings of an editor: zoom,
// grid visibility and snap-to-grid. It maps screen deltas into document units
// and never touches document content.
package viewport

import (
	"math"

	"certstudio/internal/vector"
)

const (
	MinZoom = 0.1
	MaxZoom = 2.0
	// GridSize is the grid pitch in document units.
	GridSize = 20.0
	// WheelFactor converts wheel deltaY into a zoom change.
	WheelFactor = 0.001
)

// Viewport is the zoom/grid/snap state plus a pan offset in screen pixels.
type Viewport struct {
	Zoom       float64
	ShowGrid   bool
	SnapToGrid bool
	// SmartGuides aligns dragged elements with the canvas centre lines. Grid
	// snapping takes precedence, so guides only act while SnapToGrid is off.
	SmartGuides bool
	// OffsetX/OffsetY position the document origin on screen.
	OffsetX, OffsetY float64
}

// New returns a viewport at zoom, clamped into range.
func New(zoom float64) *Viewport {
	return &Viewport{Zoom: clampZoom(zoom)}
}

// OnWheel applies zoom' = clamp(zoom - deltaY*WheelFactor).
func (v *Viewport) OnWheel(deltaY float64) {
	v.Zoom = clampZoom(v.Zoom - deltaY*WheelFactor)
}

// SetZoom sets the zoom, clamped into range.
func (v *Viewport) SetZoom(z float64) { v.Zoom = clampZoom(z) }

// MapPointerDelta converts a screen delta into document units.
func (v *Viewport) MapPointerDelta(dx, dy float64) (float64, float64) {
	z := v.zoom()
	return dx / z, dy / z
}

// Snap rounds x and y to the nearest grid multiple when snapping is on.
func (v *Viewport) Snap(x, y float64) (float64, float64) {
	if !v.SnapToGrid {
		return x, y
	}
	return snap1(x), snap1(y)
}

// GuidesActive reports whether drags should follow smart guides.
func (v *Viewport) GuidesActive() bool { return v.SmartGuides && !v.SnapToGrid }

// ToDoc maps a screen position into document coordinates.
func (v *Viewport) ToDoc(sx, sy float64) vector.Pt {
	z := v.zoom()
	return vector.Pt{X: (sx - v.OffsetX) / z, Y: (sy - v.OffsetY) / z}
}

// ToScreen maps a document point onto the screen.
func (v *Viewport) ToScreen(p vector.Pt) (float64, float64) {
	z := v.zoom()
	return p.X*z + v.OffsetX, p.Y*z + v.OffsetY
}

// Pan shifts the document origin by a screen delta.
func (v *Viewport) Pan(dx, dy float64) {
	v.OffsetX += dx
	v.OffsetY += dy
}

// GridLines returns the grid positions (document units) covering a w x h canvas.
func (v *Viewport) GridLines(w, h float64) (xs, ys []float64) {
	if !v.ShowGrid {
		return nil, nil
	}
	for x := GridSize; x < w; x += GridSize {
		xs = append(xs, x)
	}
	for y := GridSize; y < h; y += GridSize {
		ys = append(ys, y)
	}
	return xs, ys
}

func (v *Viewport) zoom() float64 {
	if v.Zoom <= 0 {
		return 1
	}
	return v.Zoom
}

func snap1(f float64) float64 { return math.Round(f/GridSize) * GridSize }

func clampZoom(z float64) float64 {
	if math.IsNaN(z) {
		return 1
	}
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}
