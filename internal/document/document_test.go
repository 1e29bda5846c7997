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
	"math/rand"
	"reflect"
	"testing"
)

func TestStarterThenAddShapePaintsOnTop(t *testing.T) {
	d := Starter()
	if got, want := d.IDs(), []string{"text-1", "text-2", "text-3"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("starter ids = %v, want %v", got, want)
	}
	for _, el := range d.Elements() {
		if el.Kind() != KindText {
			t.Fatalf("starter element %s has kind %s", el.Common().ID, el.Kind())
		}
	}
	id := d.AddElement(KindShape, Patch{"shapeType": "rect"})
	if d.Len() != 4 {
		t.Fatalf("len = %d, want 4", d.Len())
	}
	if d.Index(id) != 3 {
		t.Fatalf("new shape index = %d, want 3 (topmost)", d.Index(id))
	}
	el, _ := d.Element(id)
	if s, ok := el.(*Shape); !ok || s.ShapeType != ShapeRect {
		t.Fatalf("added element = %#v", el)
	}
}

func TestIDsStayUniqueUnderRandomEdits(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	d := Starter()
	seen := map[string]bool{}
	for _, id := range d.IDs() {
		seen[id] = true
	}
	kinds := []Kind{KindText, KindImage, KindShape}
	for i := 0; i < 500; i++ {
		ids := d.IDs()
		switch r.Intn(4) {
		case 0:
			id := d.AddElement(kinds[r.Intn(len(kinds))], nil)
			if seen[id] {
				t.Fatalf("id %s reused", id)
			}
			seen[id] = true
		case 1:
			if len(ids) > 0 {
				d.RemoveElement(ids[r.Intn(len(ids))])
			}
		case 2:
			if len(ids) > 0 {
				id := d.Duplicate(ids[r.Intn(len(ids))])
				if seen[id] {
					t.Fatalf("duplicate id %s reused", id)
				}
				seen[id] = true
			}
		case 3:
			if len(ids) > 0 {
				d.Reorder(ids[r.Intn(len(ids))], Direction(r.Intn(2)))
			}
		}
		uniq := map[string]bool{}
		for _, id := range d.IDs() {
			if uniq[id] {
				t.Fatalf("duplicate id %s in %v", id, d.IDs())
			}
			uniq[id] = true
		}
	}
}

func TestReorderForwardThenBackwardRestores(t *testing.T) {
	d := Starter()
	d.AddElement(KindShape, nil)
	ids := d.IDs()
	for _, id := range ids[:len(ids)-1] {
		before := d.IDs()
		d.Reorder(id, Forward)
		d.Reorder(id, Backward)
		if got := d.IDs(); !reflect.DeepEqual(got, before) {
			t.Fatalf("reorder %s: got %v, want %v", id, got, before)
		}
	}
}

func TestReorderMiddleRoundTrip(t *testing.T) {
	d := Starter()
	before := d.IDs()
	if !d.Reorder("text-2", Forward) {
		t.Fatalf("forward from middle should swap")
	}
	if got := d.IDs(); !reflect.DeepEqual(got, []string{"text-1", "text-3", "text-2"}) {
		t.Fatalf("after forward: %v", got)
	}
	d.Reorder("text-2", Backward)
	if got := d.IDs(); !reflect.DeepEqual(got, before) {
		t.Fatalf("after backward: %v, want %v", got, before)
	}
	if d.Reorder("text-3", Forward) {
		t.Fatalf("forward at top must be a no-op")
	}
	if d.Reorder("text-1", Backward) {
		t.Fatalf("backward at bottom must be a no-op")
	}
}

func TestUnknownIDsAreNoOps(t *testing.T) {
	d := Starter()
	before, _ := json.Marshal(d)
	if d.UpdateElement("nope", Patch{"x": 1.0}) {
		t.Fatalf("update of unknown id reported success")
	}
	if d.RemoveElement("nope") || d.Reorder("nope", Forward) || d.Duplicate("nope") != "" {
		t.Fatalf("unknown id mutated the document")
	}
	after, _ := json.Marshal(d)
	if string(before) != string(after) {
		t.Fatalf("document changed:\n%s\n%s", before, after)
	}
}

func TestUpdateIgnoresInvalidFields(t *testing.T) {
	d := Starter()
	d.UpdateElement("text-1", Patch{
		"fontSize":     "huge",
		"cornerRadius": 12.0,
		"align":        "justify",
		"fill":         "not-a-colour",
		"width":        5.0,
		"opacity":      3.0,
		"x":            10,
	})
	el, _ := d.Element("text-1")
	tx := el.(*Text)
	if tx.FontSize != 160 || tx.Align != AlignCenter || tx.Fill != "#1f2937" || tx.Width != 3000 {
		t.Fatalf("invalid fields were applied: %#v", tx)
	}
	if tx.Opacity != 1 {
		t.Fatalf("opacity = %v, want clamped 1", tx.Opacity)
	}
	if tx.X != 10 {
		t.Fatalf("x = %v, want 10", tx.X)
	}
	d.UpdateElement("text-1", Patch{"opacity": -0.5})
	if tx.Opacity != 0 {
		t.Fatalf("opacity = %v, want clamped 0", tx.Opacity)
	}
}

func TestDuplicateOffsetsAndInsertsAfterOriginal(t *testing.T) {
	d := Starter()
	d.UpdateElement("text-1", Patch{"shadow": map[string]any{"color": "#000000", "blur": 4.0}})
	id := d.Duplicate("text-1")
	if d.Index(id) != 1 {
		t.Fatalf("copy index = %d, want 1", d.Index(id))
	}
	orig, _ := d.Element("text-1")
	cp, _ := d.Element(id)
	if cp.Common().X != orig.Common().X+DuplicateOffset || cp.Common().Y != orig.Common().Y+DuplicateOffset {
		t.Fatalf("copy not offset: %+v vs %+v", cp.Common(), orig.Common())
	}
	cp.(*Text).Shadow.Blur = 99
	if orig.(*Text).Shadow.Blur != 4 {
		t.Fatalf("duplicate shares shadow with original")
	}
}

func TestRemovedIDIsNotReissued(t *testing.T) {
	d := Starter()
	id := d.AddElement(KindShape, nil)
	if id != "shape-4" {
		t.Fatalf("id = %s, want shape-4", id)
	}
	d.RemoveElement(id)
	if next := d.AddElement(KindShape, nil); next == id {
		t.Fatalf("id %s reused", id)
	}
}

func TestBackground(t *testing.T) {
	d := Starter()
	if _, ok := d.Background(); ok {
		t.Fatalf("starter has no background")
	}
	d.SetBackground(Background{Fill: "#fafafa"})
	d.SetBackground(Background{Src: "bg.png"})
	bg, ok := d.Background()
	if !ok || !bg.IsImage() || bg.Fill != "" {
		t.Fatalf("background = %+v, %v", bg, ok)
	}
	d.ClearBackground()
	if _, ok := d.Background(); ok {
		t.Fatalf("background not cleared")
	}
}

func TestDecodeIsLenient(t *testing.T) {
	raw := []byte(`{
		"canvas": {"width": 1000, "height": 700},
		"background": {"fill": "#eeeeee"},
		"elements": [
			{"type": "text", "id": "text-9", "text": "Hi {name}", "fontSize": "big", "align": "right", "shadow": {"blur": 3, "color": "#333"}},
			{"type": "sticker", "id": "x-1"},
			{"type": "shape", "id": "text-9", "shapeType": "circle", "width": 2, "cornerRadius": 8},
			{"type": "image", "src": "data:image/png;base64,AAAA", "border": {"width": 2}}
		]
	}`)
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Width != 1000 || d.Height != 700 {
		t.Fatalf("canvas = %vx%v", d.Width, d.Height)
	}
	if d.Len() != 3 {
		t.Fatalf("len = %d, want 3 (unknown type dropped)", d.Len())
	}
	els := d.Elements()
	tx := els[0].(*Text)
	if tx.FontSize != 48 || tx.Align != AlignRight || tx.Shadow == nil || tx.Shadow.Blur != 3 {
		t.Fatalf("text = %#v shadow=%#v", tx, tx.Shadow)
	}
	sh := els[1].(*Shape)
	if sh.Common().ID == "text-9" {
		t.Fatalf("duplicate id not re-issued")
	}
	if sh.Width != 400 || sh.CornerRadius != 0 || sh.ShapeType != ShapeCircle {
		t.Fatalf("shape = %#v", sh)
	}
	im := els[2].(*Image)
	if im.Common().ID == "" || im.Border == nil || im.Border.Width != 2 {
		t.Fatalf("image = %#v", im)
	}
	if bg, ok := d.Background(); !ok || bg.Fill != "#eeeeee" {
		t.Fatalf("background = %+v", bg)
	}
}

func TestTemplateRecordRoundTrip(t *testing.T) {
	in := Template{ID: "t1", Name: "Completion", Doc: Starter()}
	in.Doc.SetBackground(Background{Fill: "#ffffff"})
	in.Doc.AddElement(KindImage, Patch{"src": "logo.png", "border": map[string]any{"color": "#000", "width": 3.0}})
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out Template
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.ID != "t1" || out.Name != "Completion" {
		t.Fatalf("header = %+v", out)
	}
	if !reflect.DeepEqual(out.Doc.Elements(), in.Doc.Elements()) {
		t.Fatalf("elements differ")
	}
	if next := out.Doc.AddElement(KindText, nil); next != "text-5" {
		t.Fatalf("id counter not restored, got %s", next)
	}
}

func TestParseColor(t *testing.T) {
	cases := map[string]bool{
		"#fff": true, "#1f2937": true, "#11223380": true, "rgba(0,0,0,0.5)": true,
		"rgb(10, 20, 30)": true, "white": true, "#12": false, "rgb(300,0,0)": false, "": false,
	}
	for in, want := range cases {
		if _, ok := ParseColor(in); ok != want {
			t.Errorf("ParseColor(%q) ok=%v, want %v", in, ok, want)
		}
	}
	c, _ := ParseColor("rgba(0,0,0,0.5)")
	if c.A != 128 {
		t.Fatalf("alpha = %d, want 128", c.A)
	}
}

func TestRestoreKeepsIDCounter(t *testing.T) {
	d := Starter()
	snap, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	added := d.AddElement(KindShape, nil)
	if err := d.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if d.Len() != 3 {
		t.Fatalf("len after restore = %d", d.Len())
	}
	if _, ok := d.Element(added); ok {
		t.Fatalf("%s survived restore", added)
	}
	if again := d.AddElement(KindShape, nil); again == added {
		t.Fatalf("restore reissued id %s", again)
	}
	if err := d.Restore([]byte("{")); err == nil {
		t.Fatalf("expected error for malformed snapshot")
	}
	if d.Len() != 4 {
		t.Fatalf("failed restore changed the document: len=%d", d.Len())
	}
}
