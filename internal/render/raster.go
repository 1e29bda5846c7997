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
	"math"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
)

// blurLayers is how many alpha rings approximate a shadow blur.
const blurLayers = 4

// Rasterize paints a scene into a new RGBA image of the scene's size.
func (r *Renderer) Rasterize(sc Scene) *image.RGBA {
	w, h := max(sc.Width, 1), max(sc.Height, 1)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	r.RasterizeInto(dst, sc)
	return dst
}

// RasterizeInto paints a scene onto dst starting at its origin.
func (r *Renderer) RasterizeInto(dst *image.RGBA, sc Scene) {
	dc := gg.NewContextForRGBA(dst)
	for _, op := range sc.Ops {
		dc.Push()
		dc.Translate(op.X, op.Y)
		if op.Rotation != 0 {
			dc.Rotate(gg.Radians(op.Rotation))
		}
		r.paint(dc, op)
		dc.Pop()
	}
}

func (r *Renderer) paint(dc *gg.Context, op Op) {
	switch op.Kind {
	case OpFill:
		dc.SetColor(op.Fill)
		dc.DrawRectangle(0, 0, op.W, op.H)
		dc.Fill()
	case OpRect, OpEllipse:
		if op.Shadow && op.Blur > 0 {
			blurred(op.Fill, op.Blur, func(grow float64, c color.NRGBA) {
				shapePath(dc, op, grow)
				dc.SetColor(c)
				dc.Fill()
			})
			return
		}
		if op.Fill.A > 0 {
			shapePath(dc, op, 0)
			dc.SetColor(op.Fill)
			dc.Fill()
		}
		if op.StrokeWidth > 0 && op.Stroke.A > 0 {
			shapePath(dc, op, 0)
			dc.SetLineWidth(op.StrokeWidth)
			dc.SetColor(op.Stroke)
			dc.Stroke()
		}
	case OpImage:
		drawImage(dc, op)
	case OpText:
		r.drawText(dc, op)
	}
}

func shapePath(dc *gg.Context, op Op, grow float64) {
	x, y, w, h := -grow, -grow, op.W+2*grow, op.H+2*grow
	switch {
	case op.Kind == OpEllipse:
		dc.DrawEllipse(x+w/2, y+h/2, w/2, h/2)
	case op.Radius > 0:
		dc.DrawRoundedRectangle(x, y, w, h, op.Radius+grow)
	default:
		dc.DrawRectangle(x, y, w, h)
	}
}

// blurred calls paint for each ring from the widest inwards, splitting the
// shadow alpha across the rings.
func blurred(c color.NRGBA, blur float64, paint func(grow float64, c color.NRGBA)) {
	layer := c
	layer.A = uint8(math.Round(float64(c.A) / (blurLayers + 1)))
	for i := blurLayers; i >= 0; i-- {
		paint(blur*float64(i)/blurLayers/2, layer)
	}
}

func drawImage(dc *gg.Context, op Op) {
	if op.Image == nil {
		return
	}
	tw, th := int(math.Round(op.W)), int(math.Round(op.H))
	if tw < 1 || th < 1 {
		return
	}
	scaled := image.NewRGBA(image.Rect(0, 0, tw, th))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), op.Image, op.Image.Bounds(), xdraw.Src, nil)
	if op.Opacity < 1 {
		faded := image.NewRGBA(scaled.Bounds())
		a := uint8(math.Round(math.Max(0, op.Opacity) * 255))
		xdraw.DrawMask(faded, faded.Bounds(), scaled, image.Point{}, image.NewUniform(color.Alpha{A: a}), image.Point{}, xdraw.Over)
		scaled = faded
	}
	dc.Scale(op.W/float64(tw), op.H/float64(th))
	dc.DrawImage(scaled, 0, 0)
}

func (r *Renderer) drawText(dc *gg.Context, op Op) {
	t := op.Text
	if t == nil || t.Size <= 0 {
		return
	}
	face, err := r.fonts.Face(t.Family, t.Bold, t.Italic, t.Size)
	if err != nil {
		return
	}
	defer face.Close()
	dc.SetFontFace(face)
	draw := func(dx, dy float64, c color.NRGBA) {
		dc.SetColor(c)
		for _, ln := range t.Lines {
			for _, g := range ln.Glyphs {
				dc.DrawString(string(g.R), ln.X+g.X+dx, ln.Baseline+dy)
			}
		}
	}
	if op.Shadow && op.Blur > 0 {
		blurred(op.Fill, op.Blur, func(grow float64, c color.NRGBA) {
			if grow == 0 {
				draw(0, 0, c)
				return
			}
			for k := 0; k < 8; k++ {
				a := float64(k) * math.Pi / 4
				c8 := c
				c8.A = uint8(math.Max(1, math.Round(float64(c.A)/4)))
				draw(grow*math.Cos(a), grow*math.Sin(a), c8)
			}
		})
		return
	}
	draw(0, 0, op.Fill)
}
