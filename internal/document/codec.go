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
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	applog "certstudio/internal/log"
)

// Canvas is the serialized canvas size.
type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// docWire is the JSON shape shared by documents and persisted templates.
type docWire struct {
	Canvas     *Canvas           `json:"canvas,omitempty"`
	NextID     int               `json:"nextId,omitempty"`
	Background *Background       `json:"background,omitempty"`
	Elements   []json.RawMessage `json:"elements"`
}

// MarshalJSON encodes the document as {"canvas", "background", "elements"}.
func (d *Document) MarshalJSON() ([]byte, error) {
	w, err := d.wire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes leniently: malformed fields keep their defaults,
// unknown element types are dropped and missing or duplicate ids are re-issued.
func (d *Document) UnmarshalJSON(data []byte) error {
	var w docWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	*d = *w.document()
	return nil
}

// Restore replaces d's contents with a previously marshalled state. The id
// counter never moves backwards, so ids issued after the snapshot was taken
// are not reused.
func (d *Document) Restore(data []byte) error {
	var w docWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("restore document: %w", err)
	}
	next := d.nextID
	*d = *w.document()
	if next > d.nextID {
		d.nextID = next
	}
	return nil
}

func (d *Document) wire() (docWire, error) {
	w := docWire{
		Canvas:     &Canvas{Width: d.Width, Height: d.Height},
		NextID:     d.nextID,
		Background: d.background,
		Elements:   make([]json.RawMessage, 0, len(d.elements)),
	}
	for _, el := range d.elements {
		raw, err := EncodeElement(el)
		if err != nil {
			return w, err
		}
		w.Elements = append(w.Elements, raw)
	}
	return w, nil
}

func (w docWire) document() *Document {
	d := New(0, 0)
	if w.Canvas != nil && w.Canvas.Width > 0 && w.Canvas.Height > 0 {
		d.Width, d.Height = w.Canvas.Width, w.Canvas.Height
	}
	for _, raw := range w.Elements {
		el, err := DecodeElement(raw)
		if err != nil {
			applog.WithComponent("document").Warn("dropping element", slog.Any("err", err))
			continue
		}
		d.Insert(el)
	}
	if w.NextID > d.nextID {
		d.nextID = w.NextID
	}
	if w.Background != nil && (w.Background.Fill != "" || w.Background.Src != "") {
		d.SetBackground(*w.Background)
	}
	return d
}

// EncodeElement writes el as a flat JSON object tagged with "type".
func EncodeElement(el Element) (json.RawMessage, error) {
	switch e := el.(type) {
	case *Text:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*Text
		}{KindText, e})
	case *Image:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*Image
		}{KindImage, e})
	case *Shape:
		return json.Marshal(struct {
			Type Kind `json:"type"`
			*Shape
		}{KindShape, e})
	default:
		return nil, fmt.Errorf("encode element: unsupported %T", el)
	}
}

// DecodeElement builds an element from its record, starting from the
// variant's defaults.
func DecodeElement(raw []byte) (Element, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode element: %w", err)
	}
	p := Patch(fields)
	kind, _ := p.str("type")
	var el Element
	switch Kind(kind) {
	case KindText, KindImage, KindShape:
		el = newOf(Kind(kind))
	default:
		return nil, fmt.Errorf("decode element: unknown type %q", kind)
	}
	normalizeNumbers(fields)
	el.apply(p)
	if id, ok := p.str("id"); ok {
		el.Common().ID = id
	}
	return el, nil
}

// normalizeNumbers turns json.Number values inside nested objects into
// float64 so nested patches (shadow, border) read them.
func normalizeNumbers(m map[string]any) {
	for k, v := range m {
		switch x := v.(type) {
		case json.Number:
			if f, err := x.Float64(); err == nil {
				m[k] = f
			}
		case map[string]any:
			normalizeNumbers(x)
		}
	}
}

// Template is one persisted certificate template.
type Template struct {
	ID        string
	Name      string
	Doc       *Document
	CreatedAt time.Time
	UpdatedAt time.Time
}

type templateWire struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	docWire
}

// MarshalJSON flattens the document fields into the record.
func (t Template) MarshalJSON() ([]byte, error) {
	doc := t.Doc
	if doc == nil {
		doc = New(0, 0)
	}
	w, err := doc.wire()
	if err != nil {
		return nil, err
	}
	return json.Marshal(templateWire{ID: t.ID, Name: t.Name, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt, docWire: w})
}

// UnmarshalJSON decodes a record with the same leniency as Document.
func (t *Template) UnmarshalJSON(data []byte) error {
	var w templateWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode template: %w", err)
	}
	t.ID, t.Name, t.CreatedAt, t.UpdatedAt = w.ID, w.Name, w.CreatedAt, w.UpdatedAt
	t.Doc = w.docWire.document()
	return nil
}

// Clone deep-copies the template.
func (t Template) Clone() Template {
	c := t
	if t.Doc != nil {
		c.Doc = t.Doc.Clone()
	}
	return c
}
