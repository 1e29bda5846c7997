/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package textlayout

// Word-wrapped text layout in document units. Glyph positions are computed
// once, independent of display scale, so every surface that paints a text
// element (editor, thumbnail, preview, exports) breaks lines identically.

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Style describes one text block.
type Style struct {
	Family        string
	Size          float64
	Bold          bool
	Italic        bool
	Align         string // left | center | right
	LetterSpacing float64
	LineHeight    float64 // multiple of Size
	Width         float64 // wrap bound; <= 0 disables wrapping
}

// Glyph is one rune positioned on its line.
type Glyph struct {
	R rune
	X float64
}

// Line is a single laid out line. X is the left edge after alignment;
// Baseline is measured from the top of the block.
type Line struct {
	Text     string
	X        float64
	Baseline float64
	Width    float64
	Glyphs   []Glyph
}

// Box is the result of laying out a text block.
type Box struct {
	Lines   []Line
	Width   float64 // wrap width, or widest line when unwrapped
	Height  float64
	Ascent  float64
	Descent float64
}

// Layout breaks text into lines using the library's fonts.
func (fl *FontLibrary) Layout(text string, st Style) (Box, error) {
	if st.Size <= 0 {
		st.Size = 12
	}
	if st.LineHeight <= 0 {
		st.LineHeight = 1
	}
	face, err := fl.Face(st.Family, st.Bold, st.Italic, st.Size)
	if err != nil {
		return Box{}, err
	}
	defer face.Close()
	return layout(face, text, st), nil
}

func layout(face font.Face, text string, st Style) Box {
	m := newMeasurer(face, st.LetterSpacing)
	met := face.Metrics()
	ascent, descent := fx(met.Ascent), fx(met.Descent)
	lineH := st.Size * st.LineHeight

	var raw []string
	for _, para := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		raw = append(raw, wrap(m, para, st.Width)...)
	}

	box := Box{Ascent: ascent, Descent: descent, Width: st.Width}
	widest := 0.0
	for i, s := range raw {
		glyphs, w := m.place(s)
		widest = math.Max(widest, w)
		box.Lines = append(box.Lines, Line{
			Text:     s,
			Baseline: float64(i)*lineH + (lineH-(ascent+descent))/2 + ascent,
			Width:    w,
			Glyphs:   glyphs,
		})
	}
	if st.Width <= 0 {
		box.Width = widest
	}
	for i := range box.Lines {
		ln := &box.Lines[i]
		switch st.Align {
		case "center":
			ln.X = (box.Width - ln.Width) / 2
		case "right":
			ln.X = box.Width - ln.Width
		}
	}
	box.Height = float64(len(box.Lines)) * lineH
	return box
}

// wrap splits one paragraph into lines no wider than width. Words wider than
// the bound are broken between runes.
func wrap(m *measurer, para string, width float64) []string {
	if width <= 0 || m.width(para) <= width {
		return []string{strings.TrimRightFunc(para, unicode.IsSpace)}
	}
	var lines []string
	cur := ""
	for _, word := range strings.Fields(para) {
		cand := word
		if cur != "" {
			cand = cur + " " + word
		}
		if m.width(cand) <= width {
			cur = cand
			continue
		}
		if cur != "" {
			lines = append(lines, cur)
			cur = ""
		}
		for m.width(word) > width {
			n := fitRunes(m, word, width)
			lines = append(lines, word[:n])
			word = word[n:]
		}
		cur = word
	}
	if cur != "" || len(lines) == 0 {
		lines = append(lines, cur)
	}
	return lines
}

// fitRunes returns the byte length of the longest rune prefix of s that fits
// width, at least one rune.
func fitRunes(m *measurer, s string, width float64) int {
	n := 0
	for i, r := range s {
		end := i + utf8.RuneLen(r)
		if n > 0 && m.width(s[:end]) > width {
			break
		}
		n = end
	}
	return n
}

type measurer struct {
	face    font.Face
	spacing float64
	cache   map[rune]float64
}

func newMeasurer(face font.Face, spacing float64) *measurer {
	return &measurer{face: face, spacing: spacing, cache: map[rune]float64{}}
}

func (m *measurer) advance(r rune) float64 {
	if a, ok := m.cache[r]; ok {
		return a
	}
	adv, ok := m.face.GlyphAdvance(r)
	if !ok {
		adv, _ = m.face.GlyphAdvance('?')
	}
	a := fx(adv)
	m.cache[r] = a
	return a
}

// place positions every rune of s, applying kerning and letter spacing.
// Spacing is added after each glyph except the last.
func (m *measurer) place(s string) ([]Glyph, float64) {
	glyphs := make([]Glyph, 0, len(s))
	x := 0.0
	prev := rune(-1)
	for _, r := range s {
		if prev >= 0 {
			x += fx(m.face.Kern(prev, r)) + m.spacing
		}
		glyphs = append(glyphs, Glyph{R: r, X: x})
		x += m.advance(r)
		prev = r
	}
	return glyphs, x
}

func (m *measurer) width(s string) float64 {
	_, w := m.place(s)
	return w
}

func fx(v fixed.Int26_6) float64 { return float64(v) / 64 }
