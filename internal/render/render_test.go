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
	"bytes"
	"image"
	"image/color"
	"math"
	"reflect"
	"strings"
	"testing"

	"certstudio/internal/config"
	"certstudio/internal/document"
	"certstudio/internal/placeholder"
)

type fakeImages map[string]image.Image

func (f fakeImages) Get(src string) (image.Image, bool) {
	img, ok := f[src]
	return img, ok
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func sampleDoc() *document.Document {
	d := document.Starter()
	d.AddElement(document.KindShape, document.Patch{"x": 100.0, "y": 100.0, "width": 400.0, "height": 200.0, "fill": "#ff0000", "cornerRadius": 500.0})
	d.AddElement(document.KindImage, document.Patch{"src": "seal.png", "x": 2800.0, "y": 1800.0, "width": 300.0, "height": 300.0,
		"shadow": map[string]any{"color": "#000000", "blur": 12.0, "offsetX": 6.0, "offsetY": 6.0},
		"border": map[string]any{"color": "#c9a227", "width": 8.0}})
	d.AddElement(document.KindImage, document.Patch{"src": "pending.png"})
	return d
}

func TestRenderIsIdempotent(t *testing.T) {
	r := New(Options{Images: fakeImages{"seal.png": solid(10, 10, color.NRGBA{0, 0, 255, 255})}})
	d := sampleDoc()
	ctx := placeholder.Context{Name: "Ada", Course: "Go", Date: "2024-06-01"}
	a := r.Render(d, ctx, 0.1)
	b := r.Render(d, ctx, 0.1)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("scenes differ")
	}
	pa, pb := r.Rasterize(a), r.Rasterize(b)
	if !bytes.Equal(pa.Pix, pb.Pix) {
		t.Fatalf("rasters differ")
	}
}

func TestRenderPaintOrderAndPendingImages(t *testing.T) {
	r := New(Options{Images: fakeImages{"seal.png": solid(4, 4, color.Black)}})
	sc := r.Render(sampleDoc(), placeholder.Context{}, 1)
	var kinds []string
	for _, op := range sc.Ops {
		k := string(op.Kind)
		if op.Shadow {
			k += "+shadow"
		}
		kinds = append(kinds, op.ID+":"+k)
	}
	want := []string{
		":fill",
		"text-1:text", "text-2:text", "text-3:text",
		"shape-4:rect",
		"image-5:rect+shadow", "image-5:image", "image-5:rect",
	}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("ops = %v\nwant %v", kinds, want)
	}
	if sc.Ops[0].Fill != white {
		t.Fatalf("missing white fallback background: %+v", sc.Ops[0].Fill)
	}
	if sc.Ops[4].Radius != 100 {
		t.Fatalf("corner radius not clamped to half the short side: %v", sc.Ops[4].Radius)
	}
}

func TestRenderResolvesPlaceholdersWithoutTouchingDocument(t *testing.T) {
	r := New(Options{Fallbacks: placeholder.Fallbacks{Name: "Jane Doe", Course: "Course Name", Date: "today"}})
	d := document.Starter()
	sc := r.Render(d, placeholder.Context{Course: "Go 101"}, 0.5)
	var all []string
	for _, op := range sc.Ops {
		if op.Text == nil {
			continue
		}
		for _, ln := range op.Text.Lines {
			all = append(all, ln.Text)
		}
	}
	joined := strings.Join(all, " ")
	if !strings.Contains(joined, "Jane Doe") || !strings.Contains(joined, "Go 101") || strings.Contains(joined, "{") {
		t.Fatalf("rendered text = %q", joined)
	}
	el, _ := d.Element("text-2")
	if el.(*document.Text).Text != "This certifies that {name}" {
		t.Fatalf("stored text modified")
	}
}

func TestBackgroundImageAndFill(t *testing.T) {
	d := document.New(100, 50)
	d.SetBackground(document.Background{Fill: "#000000"})
	r := New(Options{})
	img := r.Draw(d, placeholder.Context{}, 1)
	if c := img.RGBAAt(10, 10); c.R != 0 || c.A != 255 {
		t.Fatalf("background fill pixel = %+v", c)
	}
	d.SetBackground(document.Background{Src: "bg.png"})
	sc := r.Render(d, placeholder.Context{}, 1)
	if len(sc.Ops) != 1 || sc.Ops[0].Fill != white {
		t.Fatalf("undecoded background should leave only the white fill: %+v", sc.Ops)
	}
	r = New(Options{Images: fakeImages{"bg.png": solid(2, 2, color.NRGBA{0, 255, 0, 255})}})
	img = r.Draw(d, placeholder.Context{}, 1)
	if c := img.RGBAAt(50, 25); c.G < 200 || c.R > 50 {
		t.Fatalf("background image pixel = %+v", c)
	}
}

func TestRasterizeShapeAndOpacity(t *testing.T) {
	d := document.New(200, 100)
	d.AddElement(document.KindShape, document.Patch{"x": 0.0, "y": 0.0, "width": 100.0, "height": 100.0, "fill": "#ff0000"})
	d.AddElement(document.KindShape, document.Patch{"x": 100.0, "y": 0.0, "width": 100.0, "height": 100.0, "fill": "#0000ff", "opacity": 0.5})
	img := New(Options{}).Draw(d, placeholder.Context{}, 1)
	if c := img.RGBAAt(50, 50); c.R != 255 || c.G != 0 || c.B != 0 {
		t.Fatalf("opaque shape pixel = %+v", c)
	}
	c := img.RGBAAt(150, 50)
	if c.B != 255 || c.R < 120 || c.R > 135 {
		t.Fatalf("half transparent shape over white = %+v", c)
	}
}

func TestFitScaleAndPreview(t *testing.T) {
	if s := FitScale(800, 600, 3508, 2480); math.Abs(s-800.0/3508) > 1e-12 {
		t.Fatalf("FitScale = %v", s)
	}
	if s := FitScale(8000, 6000, 3508, 2480); s != 1 {
		t.Fatalf("FitScale must not enlarge, got %v", s)
	}
	if s := FitScale(0, 600, 3508, 2480); s != 0 {
		t.Fatalf("FitScale empty = %v", s)
	}
	r := New(Options{})
	img, s, err := r.Preview(document.Starter(), placeholder.Context{}, 351, 400)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if img.Bounds().Dx() > 351 || img.Bounds().Dy() > 400 || s <= 0 {
		t.Fatalf("preview %v at scale %v does not fit", img.Bounds(), s)
	}
	if _, _, err := r.Preview(document.Starter(), placeholder.Context{}, 0, 0); err != ErrEmptyContainer {
		t.Fatalf("err = %v", err)
	}
}

func TestThumbnailWidth(t *testing.T) {
	img := New(Options{}).Thumbnail(document.Starter(), placeholder.Context{}, 0)
	if img.Bounds().Dx() != ThumbnailWidth {
		t.Fatalf("thumbnail width = %d", img.Bounds().Dx())
	}
}

func TestSameLineBreaksAtEveryScale(t *testing.T) {
	r := New(Options{})
	d := document.Starter()
	d.UpdateElement("text-1", document.Patch{"width": 900.0})
	lines := func(scale float64) []string {
		for _, op := range r.Render(d, placeholder.Context{}, scale).Ops {
			if op.ID == "text-1" {
				var out []string
				for _, ln := range op.Text.Lines {
					out = append(out, ln.Text)
				}
				return out
			}
		}
		return nil
	}
	full, thumb := lines(1), lines(0.09)
	if len(full) < 2 || !reflect.DeepEqual(full, thumb) {
		t.Fatalf("line breaks differ: %v vs %v", full, thumb)
	}
}

func TestSourcesAndBox(t *testing.T) {
	d := sampleDoc()
	d.SetBackground(document.Background{Src: "bg.jpg"})
	if got := Sources(d); !reflect.DeepEqual(got, []string{"bg.jpg", "seal.png", "pending.png"}) {
		t.Fatalf("Sources = %v", got)
	}
	r := New(Options{})
	el, _ := d.Element("text-1")
	b := r.Box(el, placeholder.Context{})
	if b.W != 3000 || b.H <= 0 {
		t.Fatalf("text box = %+v", b)
	}
}

func TestFromConfigUsesFallbacks(t *testing.T) {
	r, images := FromConfig(config.RenderConfig{FallbackName: "Ada Lovelace", FontDir: t.TempDir()}, "", nil)
	if images == nil {
		t.Fatalf("no image cache")
	}
	txt := &document.Text{Text: "Awarded to {name} for {course}"}
	got := r.ResolvedText(txt, placeholder.Context{})
	if got != "Awarded to Ada Lovelace for Course Name" {
		t.Fatalf("resolved = %q", got)
	}
	if got := r.ResolvedText(txt, placeholder.Context{Name: "Grace"}); !strings.HasPrefix(got, "Awarded to Grace ") {
		t.Fatalf("context did not win: %q", got)
	}
}

func TestDefaultRendererFixesDateFallback(t *testing.T) {
	r := New(Options{})
	txt := &document.Text{Text: "on {date}"}
	first := r.ResolvedText(txt, placeholder.Context{})
	if first == "on " || strings.Contains(first, "{") {
		t.Fatalf("date fallback missing: %q", first)
	}
	if again := r.ResolvedText(txt, placeholder.Context{}); again != first {
		t.Fatalf("resolved text changed between calls: %q then %q", first, again)
	}
	if got := r.ResolvedText(txt, placeholder.Context{Date: "2025-03-01"}); got != "on 2025-03-01" {
		t.Fatalf("context date ignored: %q", got)
	}
}
