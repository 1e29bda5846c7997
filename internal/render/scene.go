/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package render turns a document into a Scene, a flat display list in output
// pixels, and paints scenes into images. One Render implementation backs the
// editor canvas, gallery thumbnails, the auto-fit preview and every export.
package render

import (
	"image"
	"image/color"
	"math"

	"certstudio/internal/document"
	"certstudio/internal/placeholder"
	"certstudio/internal/textlayout"
	"certstudio/internal/vector"
)

// OpKind tags a display-list entry.
type OpKind string

const (
	OpFill    OpKind = "fill" // full-canvas solid fill
	OpImage   OpKind = "image"
	OpRect    OpKind = "rect"
	OpEllipse OpKind = "ellipse"
	OpText    OpKind = "text"
)

// Op is one paint operation. Geometry is in output pixels: the box of size
// W x H has its top-left at (X, Y) and is rotated by Rotation degrees about
// that corner. Colours already carry the element opacity.
type Op struct {
	Kind        OpKind
	ID          string // element id; empty for the background
	Shadow      bool
	X, Y        float64
	W, H        float64
	Rotation    float64
	Fill        color.NRGBA
	Stroke      color.NRGBA
	StrokeWidth float64
	Radius      float64
	Blur        float64
	Opacity     float64 // images only
	Src         string
	Image       image.Image
	Text        *TextOp
}

// TextOp is a laid out text block scaled to output pixels.
type TextOp struct {
	Family string
	Bold   bool
	Italic bool
	Size   float64
	Lines  []textlayout.Line
}

// Scene is the output of Render.
type Scene struct {
	Width, Height int
	Scale         float64
	Ops           []Op
}

// ImageSource resolves decoded images. A source that is still decoding or
// failed to decode reports false.
type ImageSource interface {
	Get(src string) (image.Image, bool)
}

// Options configure a Renderer.
type Options struct {
	Fonts     *textlayout.FontLibrary
	Images    ImageSource
	Fallbacks placeholder.Fallbacks
}

// Renderer holds the read-only collaborators of Render. It keeps no per-call
// state and is safe for concurrent use when its ImageSource is.
type Renderer struct {
	fonts     *textlayout.FontLibrary
	images    ImageSource
	fallbacks placeholder.Fallbacks
}

// New returns a renderer. Nil fonts use the shared embedded library.
func New(opts Options) *Renderer {
	if opts.Fonts == nil {
		opts.Fonts = textlayout.Default()
	}
	return &Renderer{fonts: opts.Fonts, images: opts.Images, fallbacks: opts.Fallbacks.WithDefaults()}
}

// Fonts returns the font library used for layout and painting.
func (r *Renderer) Fonts() *textlayout.FontLibrary { return r.fonts }

var white = color.NRGBA{255, 255, 255, 255}

// Render builds the display list for doc at scale. The background (or a white
// fill) comes first, then every element in list order. Images that are not
// decoded yet are left out.
func (r *Renderer) Render(doc *document.Document, ctx placeholder.Context, scale float64) Scene {
	if scale <= 0 || math.IsNaN(scale) {
		scale = 1
	}
	sc := Scene{
		Width:  pixels(doc.Width * scale),
		Height: pixels(doc.Height * scale),
		Scale:  scale,
	}
	cw, ch := doc.Width*scale, doc.Height*scale

	fill := white
	bg, hasBG := doc.Background()
	if hasBG && bg.Fill != "" {
		fill = document.ColorOr(bg.Fill, white)
	}
	sc.Ops = append(sc.Ops, Op{Kind: OpFill, W: cw, H: ch, Fill: fill})
	if hasBG && bg.IsImage() {
		if img, ok := r.image(bg.Src); ok {
			sc.Ops = append(sc.Ops, Op{Kind: OpImage, W: cw, H: ch, Opacity: 1, Src: bg.Src, Image: img})
		}
	}

	for _, el := range doc.Elements() {
		switch e := el.(type) {
		case *document.Text:
			sc.Ops = r.appendText(sc.Ops, e, ctx, scale)
		case *document.Image:
			sc.Ops = r.appendImage(sc.Ops, e, scale)
		case *document.Shape:
			sc.Ops = appendShape(sc.Ops, e, scale)
		}
	}
	return sc
}

func (r *Renderer) image(src string) (image.Image, bool) {
	if r.images == nil || src == "" {
		return nil, false
	}
	return r.images.Get(src)
}

// ResolvedText returns the text an element displays for ctx.
func (r *Renderer) ResolvedText(t *document.Text, ctx placeholder.Context) string {
	return placeholder.Resolve(t.Text, ctx, r.fallbacks)
}

// TextLayout lays out a text element in document units.
func (r *Renderer) TextLayout(t *document.Text, ctx placeholder.Context) textlayout.Box {
	box, err := r.fonts.Layout(r.ResolvedText(t, ctx), textStyle(t))
	if err != nil {
		return textlayout.Box{Width: t.Width}
	}
	return box
}

func textStyle(t *document.Text) textlayout.Style {
	return textlayout.Style{
		Family:        t.FontFamily,
		Size:          t.FontSize,
		Bold:          t.Bold(),
		Italic:        t.Italic(),
		Align:         t.Align,
		LetterSpacing: t.LetterSpacing,
		LineHeight:    t.LineHeight,
		Width:         t.Width,
	}
}

// Box returns the rotated box of el in document units. Text height comes
// from layout with the given context.
func (r *Renderer) Box(el document.Element, ctx placeholder.Context) vector.Box {
	b := el.Common()
	w, h := el.Size()
	if t, ok := el.(*document.Text); ok {
		lb := r.TextLayout(t, ctx)
		w, h = lb.Width, lb.Height
	}
	return vector.Box{X: b.X, Y: b.Y, W: w, H: h, Rotation: b.Rotation}
}

func (r *Renderer) appendText(ops []Op, t *document.Text, ctx placeholder.Context, s float64) []Op {
	lb := r.TextLayout(t, ctx)
	scaled := &TextOp{Family: t.FontFamily, Bold: t.Bold(), Italic: t.Italic(), Size: t.FontSize * s, Lines: scaleLines(lb.Lines, s)}
	base := Op{Kind: OpText, ID: t.ID, X: t.X * s, Y: t.Y * s, W: lb.Width * s, H: lb.Height * s, Rotation: t.Rotation, Text: scaled}
	if sh := t.Shadow; sh != nil {
		so := base
		so.Shadow = true
		so.X, so.Y = shadowOrigin(t.X, t.Y, sh, s)
		so.Fill = withOpacity(document.ColorOr(sh.Color, color.NRGBA{A: 128}), t.Opacity)
		so.Blur = sh.Blur * s
		ops = append(ops, so)
	}
	base.Fill = withOpacity(document.ColorOr(t.Fill, color.NRGBA{A: 255}), t.Opacity)
	return append(ops, base)
}

func (r *Renderer) appendImage(ops []Op, im *document.Image, s float64) []Op {
	img, ok := r.image(im.Src)
	if !ok {
		return ops
	}
	base := Op{ID: im.ID, X: im.X * s, Y: im.Y * s, W: im.Width * s, H: im.Height * s, Rotation: im.Rotation}
	if sh := im.Shadow; sh != nil {
		so := base
		so.Kind, so.Shadow = OpRect, true
		so.X, so.Y = shadowOrigin(im.X, im.Y, sh, s)
		so.Fill = withOpacity(document.ColorOr(sh.Color, color.NRGBA{A: 128}), im.Opacity)
		so.Blur = sh.Blur * s
		ops = append(ops, so)
	}
	pic := base
	pic.Kind, pic.Src, pic.Image, pic.Opacity = OpImage, im.Src, img, im.Opacity
	ops = append(ops, pic)
	if bd := im.Border; bd != nil && bd.Width > 0 {
		bo := base
		bo.Kind = OpRect
		bo.Stroke = withOpacity(document.ColorOr(bd.Color, color.NRGBA{A: 255}), im.Opacity)
		bo.StrokeWidth = bd.Width * s
		ops = append(ops, bo)
	}
	return ops
}

func appendShape(ops []Op, sh *document.Shape, s float64) []Op {
	op := Op{
		Kind:     OpRect,
		ID:       sh.ID,
		X:        sh.X * s,
		Y:        sh.Y * s,
		W:        sh.Width * s,
		H:        sh.Height * s,
		Rotation: sh.Rotation,
		Fill:     withOpacity(document.ColorOr(sh.Fill, color.NRGBA{A: 255}), sh.Opacity),
	}
	if sh.ShapeType == document.ShapeCircle {
		op.Kind = OpEllipse
	} else {
		op.Radius = math.Min(sh.CornerRadius, math.Min(sh.Width, sh.Height)/2) * s
	}
	return append(ops, op)
}

// shadowOrigin offsets the element origin by the shadow offset. The offset
// is in page space, unaffected by rotation.
func shadowOrigin(x, y float64, sh *document.Shadow, s float64) (float64, float64) {
	return (x + sh.OffsetX) * s, (y + sh.OffsetY) * s
}

func scaleLines(lines []textlayout.Line, s float64) []textlayout.Line {
	out := make([]textlayout.Line, len(lines))
	for i, ln := range lines {
		g := make([]textlayout.Glyph, len(ln.Glyphs))
		for j, gl := range ln.Glyphs {
			g[j] = textlayout.Glyph{R: gl.R, X: gl.X * s}
		}
		out[i] = textlayout.Line{Text: ln.Text, X: ln.X * s, Baseline: ln.Baseline * s, Width: ln.Width * s, Glyphs: g}
	}
	return out
}

func withOpacity(c color.NRGBA, o float64) color.NRGBA {
	o = math.Max(0, math.Min(1, o))
	c.A = uint8(math.Round(float64(c.A) * o))
	return c
}

// pixels rounds a scaled length up to whole pixels, ignoring float noise.
func pixels(v float64) int { return int(math.Ceil(v - 1e-6)) }
