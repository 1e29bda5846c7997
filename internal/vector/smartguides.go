/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Smart guides and snapping helpers for dragging elements. UI-agnostic and
// deterministic.

import "math"

// SnapOptions controls which guide candidates are considered and the threshold.
type SnapOptions struct {
	// Threshold is the maximum distance (in the same units as Rect) at which
	// snapping occurs.
	Threshold float64
	// Snap to edges (left, right, top, bottom)
	SnapToEdges bool
	// Snap to centers (cx, cy)
	SnapToCenters bool
}

// Anchor represents a static reference rect (e.g. the canvas centre or another element).
// Weight can be used to bias selection when distances tie (higher = preferred).
// When uncertain, set Weight to 1.
type Anchor struct {
	Rect   Rect
	Weight float64
}

// GuideLine describes a visual guide generated during a snap alignment.
// Orientation is "vertical" or "horizontal".
// Kind indicates which features aligned: "edge" or "center".
// From and To denote the guide extents for rendering.
// Position is the x (vertical) or y (horizontal) coordinate of the guide.
// For deterministic behavior, values are rounded to 3 decimal places.
type GuideLine struct {
	Orientation string
	Kind        string
	Position    float64
	From        Pt
	To          Pt
}

// ComputeSmartGuides snaps a moving rect onto the nearest anchor features
// within the threshold and returns the guides that caused the snap. X and Y
// are resolved independently; an anchor with a higher Weight wins ties.
func ComputeSmartGuides(moving Rect, anchors []Anchor, opts SnapOptions) (Rect, []GuideLine) {
	if opts.Threshold <= 0 {
		opts.Threshold = 6
	}
	bx := axisBest{dist: math.Inf(1)}
	by := axisBest{dist: math.Inf(1)}
	mx := spanOf(moving.X, moving.W)
	my := spanOf(moving.Y, moving.H)

	for _, a := range anchors {
		ax := spanOf(a.Rect.X, a.Rect.W)
		ay := spanOf(a.Rect.Y, a.Rect.H)
		for _, c := range candidates(mx, ax, opts) {
			if bx.offer(c, opts.Threshold, a.Weight) {
				bx.guide = guideForVertical(c.at, moving, a.Rect)
				bx.guide.Kind = c.kind
			}
		}
		for _, c := range candidates(my, ay, opts) {
			if by.offer(c, opts.Threshold, a.Weight) {
				by.guide = guideForHorizontal(c.at, moving, a.Rect)
				by.guide.Kind = c.kind
			}
		}
	}

	snapped := moving
	var guides []GuideLine
	if bx.found {
		snapped.X = FloatRound(moving.X-bx.delta, 3)
		guides = append(guides, bx.guide)
	}
	if by.found {
		snapped.Y = FloatRound(moving.Y-by.delta, 3)
		guides = append(guides, by.guide)
	}
	return snapped, guides
}

// span is one axis of a rect: low edge, centre and high edge.
type span struct{ lo, mid, hi float64 }

func spanOf(pos, size float64) span {
	return span{lo: pos, mid: pos + size/2, hi: pos + size}
}

// candidate is one possible alignment: moving by -delta puts a feature of
// the moving rect on the anchor coordinate at.
type candidate struct {
	delta float64
	at    float64
	kind  string
}

// candidates lists alignments in a fixed order so ties resolve the same way
// every time: matching edges, abutting edges, then centres.
func candidates(m, a span, opts SnapOptions) []candidate {
	var out []candidate
	if opts.SnapToEdges {
		out = append(out,
			candidate{m.lo - a.lo, a.lo, "edge"},
			candidate{m.hi - a.hi, a.hi, "edge"},
			candidate{m.lo - a.hi, a.hi, "edge"},
			candidate{m.hi - a.lo, a.lo, "edge"},
		)
	}
	if opts.SnapToCenters {
		out = append(out, candidate{m.mid - a.mid, a.mid, "center"})
	}
	return out
}

type axisBest struct {
	found bool
	dist  float64
	delta float64
	guide GuideLine
}

// offer records c when it beats the current best and reports whether it did.
func (b *axisBest) offer(c candidate, threshold, weight float64) bool {
	dist := math.Abs(c.delta)
	if dist > threshold || dist/math.Max(1, weight) >= b.dist {
		return false
	}
	b.found, b.dist, b.delta = true, dist, c.delta
	return true
}

// guideForVertical spans the union of both rects along Y at x.
func guideForVertical(x float64, a, b Rect) GuideLine {
	x = FloatRound(x, 3)
	return GuideLine{Orientation: "vertical", Position: x,
		From: Pt{x, min(a.Y, b.Y)}, To: Pt{x, max(a.Y+a.H, b.Y+b.H)}}
}

func guideForHorizontal(y float64, a, b Rect) GuideLine {
	y = FloatRound(y, 3)
	return GuideLine{Orientation: "horizontal", Position: y,
		From: Pt{min(a.X, b.X), y}, To: Pt{max(a.X+a.W, b.X+b.W), y}}
}

// CanvasCentre returns a zero-size anchor at the centre of a w x h canvas.
// With edges and centres enabled, a moving rect snaps its sides and its
// centre onto the canvas centre lines.
func CanvasCentre(w, h float64) Anchor {
	return Anchor{Rect: Rect{X: w / 2, Y: h / 2}, Weight: 1}
}

// ExtendGuides stretches guide lines across a w x h canvas for drawing.
func ExtendGuides(gs []GuideLine, w, h float64) []GuideLine {
	out := make([]GuideLine, len(gs))
	for i, g := range gs {
		if g.Orientation == "vertical" {
			g.From, g.To = Pt{g.Position, 0}, Pt{g.Position, h}
		} else {
			g.From, g.To = Pt{0, g.Position}, Pt{w, g.Position}
		}
		out[i] = g
	}
	return out
}
