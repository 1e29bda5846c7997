/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package vector

// Rotated element boxes and the transform handles drawn around them.

import "math"

// Box is a rectangle of size W x H whose top-left corner sits at (X, Y) and
// which is rotated clockwise by Rotation degrees about that corner.
type Box struct {
	X, Y, W, H float64
	Rotation   float64
}

// Transform maps box-local coordinates to document coordinates.
func (b Box) Transform() Affine2D {
	return Translate(b.X, b.Y).Mul(Rotate(Deg2Rad(b.Rotation)))
}

// ToLocal maps a document point into the box's local frame.
func (b Box) ToLocal(p Pt) Pt { return b.Transform().Invert().Apply(p) }

// Contains reports whether p lies inside the rotated box.
func (b Box) Contains(p Pt) bool {
	l := b.ToLocal(p)
	const eps = 1e-9
	return l.X >= -eps && l.Y >= -eps && l.X <= b.W+eps && l.Y <= b.H+eps
}

// Corners returns NW, NE, SE, SW in document coordinates.
func (b Box) Corners() [4]Pt {
	m := b.Transform()
	return [4]Pt{m.Apply(Pt{0, 0}), m.Apply(Pt{b.W, 0}), m.Apply(Pt{b.W, b.H}), m.Apply(Pt{0, b.H})}
}

// Center returns the box centre in document coordinates.
func (b Box) Center() Pt { return b.Transform().Apply(Pt{b.W / 2, b.H / 2}) }

// AABB returns the axis-aligned bounds of the rotated box.
func (b Box) AABB() Rect {
	c := b.Corners()
	return BoundsOf(c[:]...)
}

// RotateTo returns the box rotated to deg about its centre.
func (b Box) RotateTo(deg float64) Box {
	c := b.Center()
	half := Rotate(Deg2Rad(deg)).Apply(Pt{b.W / 2, b.H / 2})
	return Box{X: c.X - half.X, Y: c.Y - half.Y, W: b.W, H: b.H, Rotation: deg}
}

// Handle identifies a transform handle.
type Handle int

const (
	HandleNone Handle = iota
	HandleNW
	HandleNE
	HandleSW
	HandleSE
	HandleRotate
)

func (h Handle) String() string {
	switch h {
	case HandleNW:
		return "nw"
	case HandleNE:
		return "ne"
	case HandleSW:
		return "sw"
	case HandleSE:
		return "se"
	case HandleRotate:
		return "rotate"
	}
	return "none"
}

// Corner handles in hit-test priority order.
var cornerHandles = [...]Handle{HandleNW, HandleNE, HandleSW, HandleSE}

// HandlePoint returns the document position of h. knob is the distance of
// the rotation knob above the top edge.
func (b Box) HandlePoint(h Handle, knob float64) Pt {
	var l Pt
	switch h {
	case HandleNW:
		l = Pt{0, 0}
	case HandleNE:
		l = Pt{b.W, 0}
	case HandleSW:
		l = Pt{0, b.H}
	case HandleSE:
		l = Pt{b.W, b.H}
	case HandleRotate:
		l = Pt{b.W / 2, -knob}
	default:
		return Pt{math.NaN(), math.NaN()}
	}
	return b.Transform().Apply(l)
}

// HitHandle returns the handle within radius of p, preferring the rotation knob.
func (b Box) HitHandle(p Pt, radius, knob float64) Handle {
	if dist(p, b.HandlePoint(HandleRotate, knob)) <= radius {
		return HandleRotate
	}
	for _, h := range cornerHandles {
		if dist(p, b.HandlePoint(h, knob)) <= radius {
			return h
		}
	}
	return HandleNone
}

// Resize drags corner h of b to the document point p while the opposite
// corner stays fixed. Rotation is preserved. The result may have negative or
// tiny dimensions; callers enforce their own minimum.
func (b Box) Resize(h Handle, p Pt) Box {
	l := b.ToLocal(p)
	var ox, oy, w, hgt float64
	switch h {
	case HandleSE:
		ox, oy, w, hgt = 0, 0, l.X, l.Y
	case HandleNW:
		ox, oy, w, hgt = l.X, l.Y, b.W-l.X, b.H-l.Y
	case HandleNE:
		ox, oy, w, hgt = 0, l.Y, l.X, b.H-l.Y
	case HandleSW:
		ox, oy, w, hgt = l.X, 0, b.W-l.X, l.Y
	default:
		return b
	}
	o := b.Transform().Apply(Pt{ox, oy})
	return Box{X: o.X, Y: o.Y, W: w, H: hgt, Rotation: b.Rotation}
}

// AngleFrom returns the rotation in degrees that points the rotation knob of a
// box centred at c towards p.
func AngleFrom(c, p Pt) float64 {
	return Rad2Deg(math.Atan2(p.X-c.X, -(p.Y - c.Y)))
}

// SnapAngle rounds deg to the nearest multiple of step.
func SnapAngle(deg, step float64) float64 {
	if step <= 0 {
		return deg
	}
	return NormalizeDeg(math.Round(deg/step) * step)
}

func dist(a, b Pt) float64 { return math.Hypot(a.X-b.X, a.Y-b.Y) }
