/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"certstudio/internal/document"
	"certstudio/internal/render"
	"certstudio/internal/storage"
)

type memPrefs map[string]string

func (m memPrefs) StringWithFallback(key, fallback string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return fallback
}

func (m memPrefs) SetString(key, value string) { m[key] = value }

func TestRecentTemplates(t *testing.T) {
	p := memPrefs{}
	if got := loadRecentTemplates(p); len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
	addRecentTemplate(p, "a")
	addRecentTemplate(p, "b")
	addRecentTemplate(p, "a")
	addRecentTemplate(p, "  ")
	got := loadRecentTemplates(p)
	if strings.Join(got, ",") != "a,b" {
		t.Fatalf("recent = %v", got)
	}
	for i := 0; i < recentMax+5; i++ {
		addRecentTemplate(p, string(rune('c'+i)))
	}
	if n := len(loadRecentTemplates(p)); n != recentMax {
		t.Fatalf("recent list not capped: %d", n)
	}
	removeRecentTemplate(p, string(rune('c'+recentMax+4)))
	if got := loadRecentTemplates(p); got[0] == string(rune('c'+recentMax+4)) {
		t.Fatalf("remove kept the id: %v", got)
	}

	p[recentPrefsKey] = "not json"
	if got := loadRecentTemplates(p); len(got) != 0 {
		t.Fatalf("corrupt prefs should read as empty, got %v", got)
	}
}

func TestFirstRecentSkipsMissing(t *testing.T) {
	p := memPrefs{}
	addRecentTemplate(p, "kept")
	addRecentTemplate(p, "gone")
	list := []document.Template{{ID: "other"}, {ID: "kept"}}
	id, ok := firstRecent(p, list)
	if !ok || id != "kept" {
		t.Fatalf("firstRecent = %q, %v", id, ok)
	}
	if _, ok := firstRecent(memPrefs{}, list); ok {
		t.Fatalf("empty prefs should find nothing")
	}
}

func TestGalleryThumbnailIsCached(t *testing.T) {
	cache, err := storage.OpenThumbCache(filepath.Join(t.TempDir(), "thumbs.sqlite"), "sqlite")
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()
	r := render.New(render.Options{})
	tpl := document.Template{ID: "t1", Name: "Base", Doc: document.Starter(), UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}

	img, err := galleryThumbnail(context.Background(), r, nil, cache, tpl, 160)
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	w, h := thumbnailSize(tpl.Doc, 160)
	if img.Bounds().Dx() != w || img.Bounds().Dy() != h {
		t.Fatalf("thumbnail %v, want %dx%d", img.Bounds(), w, h)
	}
	if w != 160 || h != 114 {
		t.Fatalf("thumbnailSize = %dx%d", w, h)
	}
	got, err := cache.Get(context.Background(), "t1", tpl.UpdatedAt, w, h)
	if err != nil || len(got) == 0 {
		t.Fatalf("thumbnail not cached: %d bytes, %v", len(got), err)
	}

	if _, err := galleryThumbnail(context.Background(), r, nil, nil, document.Template{ID: "x"}, 160); err == nil {
		t.Fatalf("template without document should fail")
	}
}

func TestFieldsFor(t *testing.T) {
	doc := document.Starter()
	el, _ := doc.Element("text-1")
	keys := map[string]bool{}
	for _, f := range fieldsFor(el) {
		keys[f.Key] = true
	}
	for _, k := range []string{"text", "fontSize", "fill", "x", "y", "rotation", "opacity"} {
		if !keys[k] {
			t.Fatalf("text fields miss %q", k)
		}
	}
	if keys["cornerRadius"] {
		t.Fatalf("text should not offer cornerRadius")
	}
	if got := fieldValue(el, "x"); got != "254" {
		t.Fatalf("x = %q", got)
	}

	id := doc.AddElement(document.KindShape, document.Patch{"cornerRadius": 12})
	sh, _ := doc.Element(id)
	if got := fieldValue(sh, "cornerRadius"); got != "12" {
		t.Fatalf("cornerRadius = %q", got)
	}
	if got := fieldValue(sh, "shapeType"); got != document.ShapeRect {
		t.Fatalf("shapeType = %q", got)
	}

	id = doc.AddElement(document.KindImage, document.Patch{"src": "data:image/png;base64,AAAA"})
	im, _ := doc.Element(id)
	if got := fieldValue(im, "src"); got != "(embedded)" {
		t.Fatalf("src = %q", got)
	}
}

func TestFieldPatch(t *testing.T) {
	p, err := fieldPatch("fontSize", " 72 ")
	if err != nil || p["fontSize"] != 72.0 {
		t.Fatalf("fontSize patch = %v, %v", p, err)
	}
	if _, err := fieldPatch("x", "abc"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := fieldPatch("y", "NaN"); err == nil {
		t.Fatalf("NaN should be rejected")
	}
	p, err = fieldPatch("fill", "#ff0000")
	if err != nil || p["fill"] != "#ff0000" {
		t.Fatalf("fill patch = %v, %v", p, err)
	}
	if _, err := fieldPatch("src", "(embedded)"); err == nil {
		t.Fatalf("placeholder source should not patch")
	}
}

func TestStatusLine(t *testing.T) {
	got := statusLine("Workshop", true, 0.25, "text-2", []error{nil, errors.New("save: offline")})
	want := "Workshop *  |  25%  |  text-2  |  save: offline"
	if got != want {
		t.Fatalf("status = %q, want %q", got, want)
	}
}

func TestFileStem(t *testing.T) {
	cases := map[string]string{
		"":                 "certificate",
		"  Workshop 2026 ": "Workshop 2026",
		"a/b:c?":           "a_b_c_",
	}
	for in, want := range cases {
		if got := fileStem(in); got != want {
			t.Fatalf("fileStem(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReadAllLimited(t *testing.T) {
	data, err := readAllLimited(strings.NewReader("12345"), 5)
	if err != nil || string(data) != "12345" {
		t.Fatalf("read = %q, %v", data, err)
	}
	if _, err := readAllLimited(strings.NewReader("123456"), 5); err == nil {
		t.Fatalf("expected limit error")
	}
}
