/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package document holds the in-memory certificate template: a flat, ordered
// element list addressed by id plus an optional background. List order is paint
// order; later elements are drawn on top.
package document

import "math"

// Kind tags an element variant.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindShape Kind = "shape"
)

// Shape types.
const (
	ShapeRect   = "rect"
	ShapeCircle = "circle"
)

// Text alignment values.
const (
	AlignLeft   = "left"
	AlignCenter = "center"
	AlignRight  = "right"
)

// MinSize is the smallest width or height an element may be resized to.
const MinSize = 20.0

// Base carries the fields shared by every element variant.
type Base struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Opacity  float64 `json:"opacity"`
	Rotation float64 `json:"rotation"` // degrees, clockwise, about (X,Y)
	Locked   bool    `json:"locked,omitempty"`
}

// Common returns the shared fields. Callers may read them; mutation goes through
// Document.UpdateElement.
func (b *Base) Common() *Base { return b }

// Shadow is a soft drop shadow painted beneath an element.
type Shadow struct {
	Color   string  `json:"color"`
	Blur    float64 `json:"blur"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

// Border strokes the outline of an image.
type Border struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
}

// Element is the tagged union of Text, Image and Shape. Background is kept
// apart from the list, see Document.Background.
type Element interface {
	Common() *Base
	Kind() Kind
	// Size reports the element's box. Text height depends on layout and is
	// reported as zero here.
	Size() (w, h float64)
	Clone() Element
	apply(p Patch)
}

// Text is a wrapped text block. Text may embed {name}, {course} and {date} tokens.
type Text struct {
	Base
	Text          string  `json:"text"`
	FontSize      float64 `json:"fontSize"`
	FontFamily    string  `json:"fontFamily"`
	Fill          string  `json:"fill"`
	Width         float64 `json:"width"`
	FontWeight    string  `json:"fontWeight"`
	FontStyle     string  `json:"fontStyle"`
	Align         string  `json:"align"`
	LetterSpacing float64 `json:"letterSpacing"`
	LineHeight    float64 `json:"lineHeight"`
	Shadow        *Shadow `json:"shadow,omitempty"`
}

func (t *Text) Kind() Kind               { return KindText }
func (t *Text) Size() (float64, float64) { return t.Width, 0 }

func (t *Text) Clone() Element {
	c := *t
	c.Shadow = cloneShadow(t.Shadow)
	return &c
}

// Bold reports whether the weight selects a bold face.
func (t *Text) Bold() bool {
	switch t.FontWeight {
	case "bold", "bolder", "600", "700", "800", "900":
		return true
	}
	return false
}

// Italic reports whether the style selects an italic face.
func (t *Text) Italic() bool { return t.FontStyle == "italic" || t.FontStyle == "oblique" }

// Image is a raster picture referenced by URI, file path or data URI.
type Image struct {
	Base
	Src    string  `json:"src"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Border *Border `json:"border,omitempty"`
	Shadow *Shadow `json:"shadow,omitempty"`
}

func (i *Image) Kind() Kind               { return KindImage }
func (i *Image) Size() (float64, float64) { return i.Width, i.Height }

func (i *Image) Clone() Element {
	c := *i
	c.Shadow = cloneShadow(i.Shadow)
	if i.Border != nil {
		b := *i.Border
		c.Border = &b
	}
	return &c
}

// Shape is a filled rectangle (optionally rounded) or an ellipse inscribed in its box.
type Shape struct {
	Base
	ShapeType    string  `json:"shapeType"`
	Width        float64 `json:"width"`
	Height       float64 `json:"height"`
	Fill         string  `json:"fill"`
	CornerRadius float64 `json:"cornerRadius"`
}

func (s *Shape) Kind() Kind               { return KindShape }
func (s *Shape) Size() (float64, float64) { return s.Width, s.Height }
func (s *Shape) Clone() Element           { c := *s; return &c }

// Background is painted before every element: an image when Src is set,
// otherwise a solid Fill.
type Background struct {
	Fill string `json:"fill,omitempty"`
	Src  string `json:"src,omitempty"`
}

// IsImage reports whether the background is a full-bleed image.
func (b Background) IsImage() bool { return b.Src != "" }

// NewText returns a Text with documented defaults.
func NewText() *Text {
	return &Text{
		Base:       Base{Opacity: 1},
		Text:       "Text",
		FontSize:   48,
		FontFamily: "Go",
		Fill:       "#111111",
		Width:      600,
		FontWeight: "normal",
		FontStyle:  "normal",
		Align:      AlignLeft,
		LineHeight: 1.2,
	}
}

// NewImage returns an Image with documented defaults.
func NewImage() *Image {
	return &Image{Base: Base{Opacity: 1}, Width: 400, Height: 300}
}

// NewShape returns a Shape with documented defaults.
func NewShape() *Shape {
	return &Shape{Base: Base{Opacity: 1}, ShapeType: ShapeRect, Width: 400, Height: 240, Fill: "#e5e7eb"}
}

func newOf(k Kind) Element {
	switch k {
	case KindImage:
		return NewImage()
	case KindShape:
		return NewShape()
	default:
		return NewText()
	}
}

func cloneShadow(s *Shadow) *Shadow {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func clamp01(v float64) float64 { return math.Max(0, math.Min(1, v)) }
