/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package document

import (
	"encoding/json"
	"math"
	"strings"
)

// Patch is a partial field update keyed by the JSON field names of the element
// records (e.g. "x", "fontSize", "cornerRadius"). Values that are unknown for
// the target variant, of the wrong type or out of range are ignored.
type Patch map[string]any

func (p Patch) number(key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		x, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func (p Patch) str(key string) (string, bool) {
	s, ok := p[key].(string)
	return s, ok
}

func (p Patch) boolean(key string) (bool, bool) {
	b, ok := p[key].(bool)
	return b, ok
}

func (p Patch) setNum(key string, dst *float64, valid func(float64) bool) {
	if f, ok := p.number(key); ok && (valid == nil || valid(f)) {
		*dst = f
	}
}

func (p Patch) setColor(key string, dst *string) {
	if s, ok := p.str(key); ok {
		if _, ok := ParseColor(s); ok {
			*dst = strings.TrimSpace(s)
		}
	}
}

func (p Patch) setOneOf(key string, dst *string, allowed ...string) {
	s, ok := p.str(key)
	if !ok {
		return
	}
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range allowed {
		if s == a {
			*dst = s
			return
		}
	}
}

func positive(f float64) bool    { return f > 0 }
func nonNegative(f float64) bool { return f >= 0 }
func atLeastMin(f float64) bool  { return f >= MinSize }

// shadow accepts a *Shadow, a Shadow, a decoded JSON object or nil (clears).
func (p Patch) shadow(key string, dst **Shadow) {
	v, ok := p[key]
	if !ok {
		return
	}
	switch s := v.(type) {
	case nil:
		*dst = nil
	case *Shadow:
		*dst = cloneShadow(s)
	case Shadow:
		*dst = &s
	case map[string]any:
		sh := Shadow{Color: "rgba(0,0,0,0.5)", Blur: 10, OffsetX: 5, OffsetY: 5}
		if *dst != nil {
			sh = **dst
		}
		m := Patch(s)
		m.setColor("color", &sh.Color)
		m.setNum("blur", &sh.Blur, nonNegative)
		m.setNum("offsetX", &sh.OffsetX, nil)
		m.setNum("offsetY", &sh.OffsetY, nil)
		*dst = &sh
	}
}

func (p Patch) border(key string, dst **Border) {
	v, ok := p[key]
	if !ok {
		return
	}
	switch b := v.(type) {
	case nil:
		*dst = nil
	case *Border:
		if b == nil {
			*dst = nil
			return
		}
		c := *b
		*dst = &c
	case Border:
		*dst = &b
	case map[string]any:
		bd := Border{Color: "#000000", Width: 4}
		if *dst != nil {
			bd = **dst
		}
		m := Patch(b)
		m.setColor("color", &bd.Color)
		m.setNum("width", &bd.Width, nonNegative)
		*dst = &bd
	}
}

func (b *Base) apply(p Patch) {
	p.setNum("x", &b.X, nil)
	p.setNum("y", &b.Y, nil)
	p.setNum("rotation", &b.Rotation, nil)
	if f, ok := p.number("opacity"); ok {
		b.Opacity = clamp01(f)
	}
	if l, ok := p.boolean("locked"); ok {
		b.Locked = l
	}
}

func (t *Text) apply(p Patch) {
	t.Base.apply(p)
	if s, ok := p.str("text"); ok {
		t.Text = s
	}
	p.setNum("fontSize", &t.FontSize, positive)
	if s, ok := p.str("fontFamily"); ok && strings.TrimSpace(s) != "" {
		t.FontFamily = strings.TrimSpace(s)
	}
	p.setColor("fill", &t.Fill)
	p.setNum("width", &t.Width, atLeastMin)
	if s, ok := p.str("fontWeight"); ok {
		switch s = strings.ToLower(strings.TrimSpace(s)); s {
		case "normal", "bold", "bolder", "lighter", "100", "200", "300", "400", "500", "600", "700", "800", "900":
			t.FontWeight = s
		}
	}
	p.setOneOf("fontStyle", &t.FontStyle, "normal", "italic", "oblique")
	p.setOneOf("align", &t.Align, AlignLeft, AlignCenter, AlignRight)
	p.setNum("letterSpacing", &t.LetterSpacing, nil)
	p.setNum("lineHeight", &t.LineHeight, positive)
	p.shadow("shadow", &t.Shadow)
}

func (i *Image) apply(p Patch) {
	i.Base.apply(p)
	if s, ok := p.str("src"); ok {
		i.Src = strings.TrimSpace(s)
	}
	p.setNum("width", &i.Width, atLeastMin)
	p.setNum("height", &i.Height, atLeastMin)
	p.border("border", &i.Border)
	p.shadow("shadow", &i.Shadow)
}

func (s *Shape) apply(p Patch) {
	s.Base.apply(p)
	p.setOneOf("shapeType", &s.ShapeType, ShapeRect, ShapeCircle)
	p.setNum("width", &s.Width, atLeastMin)
	p.setNum("height", &s.Height, atLeastMin)
	p.setColor("fill", &s.Fill)
	if s.ShapeType == ShapeRect {
		p.setNum("cornerRadius", &s.CornerRadius, nonNegative)
	}
}
