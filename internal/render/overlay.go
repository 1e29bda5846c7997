/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package render

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"

	"certstudio/internal/vector"
)

// Overlay is the editor chrome drawn above a rendered scene. Coordinates are
// in document units; Scale maps them to pixels.
type Overlay struct {
	Scale      float64
	GridXs     []float64
	GridYs     []float64
	Selection  *vector.Box
	Knob       float64 // rotation knob distance in document units
	HandleSize float64 // pixels
	Guides     []vector.GuideLine
	Editing    bool // inline text edit active
	// OriginX/OriginY place the document origin in dst pixels.
	OriginX, OriginY float64
}

var (
	gridColor      = color.NRGBA{0, 0, 0, 24}
	selectionColor = color.NRGBA{37, 99, 235, 255}
	editColor      = color.NRGBA{234, 88, 12, 255}
	guideColor     = color.NRGBA{236, 72, 153, 220}
)

// DrawOverlay paints ov onto dst.
func DrawOverlay(dst *image.RGBA, ov Overlay) {
	s := ov.Scale
	if s <= 0 {
		s = 1
	}
	dc := gg.NewContextForRGBA(dst)
	dc.Translate(ov.OriginX, ov.OriginY)
	w, h := float64(dst.Bounds().Dx())-ov.OriginX, float64(dst.Bounds().Dy())-ov.OriginY

	if len(ov.GridXs)+len(ov.GridYs) > 0 {
		dc.SetColor(gridColor)
		dc.SetLineWidth(1)
		for _, x := range ov.GridXs {
			dc.DrawLine(x*s, 0, x*s, h)
		}
		for _, y := range ov.GridYs {
			dc.DrawLine(0, y*s, w, y*s)
		}
		dc.Stroke()
	}

	for _, g := range ov.Guides {
		dc.SetColor(guideColor)
		dc.SetLineWidth(1)
		dc.SetDash(4, 3)
		dc.DrawLine(g.From.X*s, g.From.Y*s, g.To.X*s, g.To.Y*s)
		dc.Stroke()
	}
	dc.SetDash()

	if ov.Selection == nil {
		return
	}
	b := *ov.Selection
	c := b.Corners()
	col := selectionColor
	if ov.Editing {
		col = editColor
	}
	dc.SetColor(col)
	dc.SetLineWidth(1.5)
	dc.MoveTo(c[0].X*s, c[0].Y*s)
	for _, p := range c[1:] {
		dc.LineTo(p.X*s, p.Y*s)
	}
	dc.ClosePath()
	dc.Stroke()
	if ov.Editing {
		return
	}

	hs := ov.HandleSize
	if hs <= 0 {
		hs = 8
	}
	top := b.HandlePoint(vector.HandleNE, 0)
	knob := b.HandlePoint(vector.HandleRotate, ov.Knob)
	mid := vector.Pt{X: (c[0].X + top.X) / 2, Y: (c[0].Y + top.Y) / 2}
	dc.DrawLine(mid.X*s, mid.Y*s, knob.X*s, knob.Y*s)
	dc.Stroke()
	for _, hd := range []vector.Handle{vector.HandleNW, vector.HandleNE, vector.HandleSW, vector.HandleSE} {
		p := b.HandlePoint(hd, 0)
		dc.DrawRectangle(p.X*s-hs/2, p.Y*s-hs/2, hs, hs)
		dc.SetColor(color.White)
		dc.FillPreserve()
		dc.SetColor(col)
		dc.Stroke()
	}
	dc.DrawCircle(knob.X*s, knob.Y*s, hs/2)
	dc.SetColor(color.White)
	dc.FillPreserve()
	dc.SetColor(col)
	dc.Stroke()
}
