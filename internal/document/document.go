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
	"fmt"
	"strconv"
	"strings"
)

// Default canvas size in document units (A4 landscape at 300 dpi).
const (
	CanvasWidth  = 3508.0
	CanvasHeight = 2480.0
)

// DuplicateOffset is added to x and y of a duplicated element.
const DuplicateOffset = 40.0

// Direction selects the neighbour a reorder swaps with.
type Direction int

const (
	// Forward moves an element one slot towards the top of the paint order.
	Forward Direction = iota
	// Backward moves an element one slot towards the bottom.
	Backward
)

// Document is one certificate template in memory. The zero value is not
// usable; call New, Starter or decode a record.
//
// All operations are synchronous and total: an unknown id is a silent no-op.
type Document struct {
	Width  float64
	Height float64

	elements   []Element
	background *Background
	nextID     int
}

// New returns an empty document with the given canvas size. Non-positive
// dimensions fall back to the default canvas.
func New(width, height float64) *Document {
	if width <= 0 || height <= 0 {
		width, height = CanvasWidth, CanvasHeight
	}
	return &Document{Width: width, Height: height, nextID: 1}
}

// Len returns the number of elements.
func (d *Document) Len() int { return len(d.elements) }

// Elements returns the elements in paint order. The slice is a copy; the
// elements are shared.
func (d *Document) Elements() []Element {
	out := make([]Element, len(d.elements))
	copy(out, d.elements)
	return out
}

// Element looks up an element by id.
func (d *Document) Element(id string) (Element, bool) {
	if i := d.Index(id); i >= 0 {
		return d.elements[i], true
	}
	return nil, false
}

// Index returns the paint position of id or -1.
func (d *Document) Index(id string) int {
	for i, e := range d.elements {
		if e.Common().ID == id {
			return i
		}
	}
	return -1
}

// IDs returns element ids in paint order.
func (d *Document) IDs() []string {
	out := make([]string, len(d.elements))
	for i, e := range d.elements {
		out[i] = e.Common().ID
	}
	return out
}

// Background returns the background and whether one is set.
func (d *Document) Background() (Background, bool) {
	if d.background == nil {
		return Background{}, false
	}
	return *d.background, true
}

// AddElement creates an element of kind with its variant defaults, applies
// the patch and appends it on top. Without an explicit position the element
// is centred on the canvas. Unknown kinds create a Text element.
func (d *Document) AddElement(kind Kind, defaults Patch) string {
	el := newOf(kind)
	w, h := el.Size()
	if t, ok := el.(*Text); ok {
		h = t.FontSize * t.LineHeight
	}
	b := el.Common()
	b.X = (d.Width - w) / 2
	b.Y = (d.Height - h) / 2
	el.apply(defaults)
	b.ID = d.newID(el.Kind())
	d.elements = append(d.elements, el)
	return b.ID
}

// Insert appends a fully built element, re-issuing its id when it is empty or
// already taken. It returns the id actually stored.
func (d *Document) Insert(el Element) string {
	b := el.Common()
	if b.ID == "" || d.Index(b.ID) >= 0 {
		b.ID = d.newID(el.Kind())
	} else {
		d.observeID(b.ID)
	}
	b.Opacity = clamp01(b.Opacity)
	d.elements = append(d.elements, el)
	return b.ID
}

// UpdateElement applies a partial update. It reports whether id exists.
func (d *Document) UpdateElement(id string, p Patch) bool {
	el, ok := d.Element(id)
	if !ok {
		return false
	}
	el.apply(p)
	return true
}

// RemoveElement deletes id. It reports whether anything was removed.
func (d *Document) RemoveElement(id string) bool {
	i := d.Index(id)
	if i < 0 {
		return false
	}
	d.elements = append(d.elements[:i], d.elements[i+1:]...)
	return true
}

// Reorder swaps id with its immediate neighbour in dir. It is a no-op at
// either end of the list and reports whether a swap happened.
func (d *Document) Reorder(id string, dir Direction) bool {
	i := d.Index(id)
	if i < 0 {
		return false
	}
	j := i + 1
	if dir == Backward {
		j = i - 1
	}
	if j < 0 || j >= len(d.elements) {
		return false
	}
	d.elements[i], d.elements[j] = d.elements[j], d.elements[i]
	return true
}

// SetBackground replaces the background.
func (d *Document) SetBackground(bg Background) {
	bg.Fill = strings.TrimSpace(bg.Fill)
	bg.Src = strings.TrimSpace(bg.Src)
	if bg.Fill != "" {
		if _, ok := ParseColor(bg.Fill); !ok {
			bg.Fill = ""
		}
	}
	d.background = &bg
}

// ClearBackground removes the background.
func (d *Document) ClearBackground() { d.background = nil }

// Duplicate clones id under a fresh id, offset by DuplicateOffset on both
// axes, and inserts the copy directly above the original. It returns the new
// id or "" when id is unknown.
func (d *Document) Duplicate(id string) string {
	i := d.Index(id)
	if i < 0 {
		return ""
	}
	c := d.elements[i].Clone()
	b := c.Common()
	b.ID = d.newID(c.Kind())
	b.X += DuplicateOffset
	b.Y += DuplicateOffset
	d.elements = append(d.elements, nil)
	copy(d.elements[i+2:], d.elements[i+1:])
	d.elements[i+1] = c
	return b.ID
}

// Clone returns a deep copy, including the id counter.
func (d *Document) Clone() *Document {
	c := &Document{Width: d.Width, Height: d.Height, nextID: d.nextID}
	c.elements = make([]Element, len(d.elements))
	for i, e := range d.elements {
		c.elements[i] = e.Clone()
	}
	if d.background != nil {
		bg := *d.background
		c.background = &bg
	}
	return c
}

// newID issues "<kind>-<n>" from a document-wide counter. Ids are never
// reused, even after the element holding one is deleted.
func (d *Document) newID(k Kind) string {
	if d.nextID < 1 {
		d.nextID = 1
	}
	for {
		id := fmt.Sprintf("%s-%d", k, d.nextID)
		d.nextID++
		if d.Index(id) < 0 {
			return id
		}
	}
}

// observeID advances the counter past a numeric suffix found in id.
func (d *Document) observeID(id string) {
	i := strings.LastIndexByte(id, '-')
	if i < 0 {
		return
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil {
		return
	}
	if n >= d.nextID {
		d.nextID = n + 1
	}
}
