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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"certstudio/internal/document"
	"certstudio/internal/imagecache"
	"certstudio/internal/placeholder"
	"certstudio/internal/render"
	"certstudio/internal/storage"
)

// Preferences is the part of fyne.Preferences the shell persists to.
type Preferences interface {
	StringWithFallback(key, fallback string) string
	SetString(key, value string)
}

// Recent template persistence helpers for the gallery.
const recentPrefsKey = "recent.templates"
const recentMax = 10

func loadRecentTemplates(p Preferences) []string {
	raw := p.StringWithFallback(recentPrefsKey, "")
	var items []string
	if strings.TrimSpace(raw) != "" {
		var tmp []string
		if err := json.Unmarshal([]byte(raw), &tmp); err == nil {
			items = tmp
		}
	}
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func saveRecentTemplates(p Preferences, items []string) {
	if len(items) > recentMax {
		items = items[:recentMax]
	}
	b, _ := json.Marshal(items)
	p.SetString(recentPrefsKey, string(b))
}

func addRecentTemplate(p Preferences, id string) {
	if strings.TrimSpace(id) == "" {
		return
	}
	rec := loadRecentTemplates(p)
	out := make([]string, 0, 1+len(rec))
	out = append(out, id)
	for _, s := range rec {
		if s != id {
			out = append(out, s)
		}
	}
	saveRecentTemplates(p, out)
}

func removeRecentTemplate(p Preferences, id string) {
	rec := loadRecentTemplates(p)
	out := rec[:0]
	for _, s := range rec {
		if s != id {
			out = append(out, s)
		}
	}
	saveRecentTemplates(p, out)
}

// firstRecent returns the most recent id still present in list.
func firstRecent(p Preferences, list []document.Template) (string, bool) {
	for _, id := range loadRecentTemplates(p) {
		for _, t := range list {
			if t.ID == id {
				return id, true
			}
		}
	}
	return "", false
}

// thumbWait bounds how long a thumbnail waits for its images to decode.
const thumbWait = 5 * time.Second

func thumbnailSize(doc *document.Document, width int) (int, int) {
	s := render.ThumbnailScale(doc, width)
	return int(math.Ceil(doc.Width*s - 1e-6)), int(math.Ceil(doc.Height*s - 1e-6))
}

// galleryThumbnail returns the gallery picture of t, rendered with sample
// values. Rendered PNGs are kept in cache keyed by id and update time; a nil
// cache renders every time. Images referenced by t are given a moment to
// decode first so the cached picture is complete.
func galleryThumbnail(ctx context.Context, r *render.Renderer, images *imagecache.Cache, cache *storage.ThumbCache, t document.Template, width int) (image.Image, error) {
	if t.Doc == nil {
		return nil, fmt.Errorf("template %s has no document", t.ID)
	}
	w, h := thumbnailSize(t.Doc, width)
	gen := func(ctx context.Context) ([]byte, error) {
		if images != nil {
			wctx, cancel := context.WithTimeout(ctx, thumbWait)
			_ = images.Wait(wctx, render.Sources(t.Doc)...)
			cancel()
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, r.Thumbnail(t.Doc, placeholder.Context{}, w)); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	var (
		data []byte
		err  error
	)
	if cache != nil && t.ID != "" {
		data, err = cache.GetOrCreate(ctx, t.ID, t.UpdatedAt, w, h, gen)
	} else {
		data, err = gen(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("thumbnail %s: %w", t.ID, err)
	}
	return png.Decode(bytes.NewReader(data))
}

// field is one editable property of the selected element.
type field struct {
	Key   string
	Label string
	Multi bool
}

var (
	commonFields = []field{{"x", "X", false}, {"y", "Y", false}, {"rotation", "Rotation", false}, {"opacity", "Opacity", false}}
	textFields   = []field{{"text", "Text", true}, {"fontSize", "Font size", false}, {"fontFamily", "Font", false}, {"fill", "Colour", false}, {"width", "Width", false}, {"align", "Align", false}}
	imageFields  = []field{{"src", "Source", false}, {"width", "Width", false}, {"height", "Height", false}}
	shapeFields  = []field{{"shapeType", "Shape", false}, {"fill", "Colour", false}, {"width", "Width", false}, {"height", "Height", false}, {"cornerRadius", "Corner radius", false}}
)

// fieldsFor lists the editable properties of el, kind-specific first.
func fieldsFor(el document.Element) []field {
	var own []field
	switch el.(type) {
	case *document.Text:
		own = textFields
	case *document.Image:
		own = imageFields
	case *document.Shape:
		own = shapeFields
	}
	return append(append([]field(nil), own...), commonFields...)
}

func num(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// fieldValue formats the current value of key on el.
func fieldValue(el document.Element, key string) string {
	b := el.Common()
	switch key {
	case "x":
		return num(b.X)
	case "y":
		return num(b.Y)
	case "rotation":
		return num(b.Rotation)
	case "opacity":
		return num(b.Opacity)
	}
	switch v := el.(type) {
	case *document.Text:
		switch key {
		case "text":
			return v.Text
		case "fontSize":
			return num(v.FontSize)
		case "fontFamily":
			return v.FontFamily
		case "fill":
			return v.Fill
		case "width":
			return num(v.Width)
		case "align":
			return v.Align
		}
	case *document.Image:
		switch key {
		case "src":
			if strings.HasPrefix(v.Src, "data:") {
				return "(embedded)"
			}
			return v.Src
		case "width":
			return num(v.Width)
		case "height":
			return num(v.Height)
		}
	case *document.Shape:
		switch key {
		case "shapeType":
			return v.ShapeType
		case "fill":
			return v.Fill
		case "width":
			return num(v.Width)
		case "height":
			return num(v.Height)
		case "cornerRadius":
			return num(v.CornerRadius)
		}
	}
	return ""
}

var stringFields = map[string]bool{"text": true, "fontFamily": true, "fill": true, "align": true, "src": true, "shapeType": true}

// fieldPatch turns an edited value into a patch. Numeric fields must parse.
func fieldPatch(key, value string) (document.Patch, error) {
	if stringFields[key] {
		if key == "src" && value == "(embedded)" {
			return nil, fmt.Errorf("source unchanged")
		}
		return document.Patch{key: value}, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("%s: %q is not a number", key, value)
	}
	return document.Patch{key: f}, nil
}

// statusLine summarises the editor for the status bar.
func statusLine(name string, dirty bool, zoom float64, sel string, errs []error) string {
	var b strings.Builder
	b.WriteString(name)
	if dirty {
		b.WriteString(" *")
	}
	fmt.Fprintf(&b, "  |  %d%%", int(math.Round(zoom*100)))
	if sel != "" {
		b.WriteString("  |  ")
		b.WriteString(sel)
	}
	for _, err := range errs {
		if err != nil {
			b.WriteString("  |  ")
			b.WriteString(err.Error())
		}
	}
	return b.String()
}

// fileStem turns a template name into a file name without extension.
func fileStem(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "certificate"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}

// readAllLimited reads r fully, failing when it holds more than limit bytes.
// A non-positive limit means 20 MiB.
func readAllLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = 20 << 20
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds %d bytes", limit)
	}
	return data, nil
}
