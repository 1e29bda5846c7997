/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"certstudio/internal/document"
	"certstudio/internal/placeholder"
	"certstudio/internal/render"
)

func testRenderer() *render.Renderer {
	return render.New(render.Options{Fallbacks: placeholder.DefaultFallbacks()})
}

// sampleDoc is the starter certificate with a shadowed title, a rotated
// rounded badge and a translucent circle.
func sampleDoc() *document.Document {
	d := document.Starter()
	d.AddElement(document.KindShape, document.Patch{
		"x": 200.0, "y": 1800.0, "width": 400.0, "height": 300.0,
		"cornerRadius": 40.0, "rotation": 15.0, "fill": "#f59e0b",
	})
	d.AddElement(document.KindShape, document.Patch{
		"shapeType": "circle", "x": 2900.0, "y": 1800.0, "width": 300.0, "height": 300.0,
		"fill": "#2563eb", "opacity": 0.8,
	})
	d.UpdateElement("text-1", document.Patch{
		"shadow": map[string]any{"color": "#000000", "blur": 12.0, "offsetX": 6.0, "offsetY": 6.0},
	})
	return d
}

func TestExportPNGScale(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "cert.png")
	if err := ExportPNG(out, testRenderer(), sampleDoc(), PNGOptions{Scale: 0.1}); err != nil {
		t.Fatalf("export png: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 351 || b.Dy() != 248 {
		t.Fatalf("size = %dx%d, want 351x248", b.Dx(), b.Dy())
	}
}

func TestWritePDF(t *testing.T) {
	b, err := EncodePDF(testRenderer(), sampleDoc(), PDFOptions{Context: placeholder.Context{Name: "Zoë"}, Title: "Award"})
	if err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", b[:min(len(b), 16)])
	}
	if !bytes.Contains(b, []byte("%%EOF")) {
		t.Fatalf("pdf not terminated")
	}
	if !bytes.Contains(b, []byte("FontFile2")) {
		t.Fatalf("fonts not embedded")
	}
	if !bytes.Contains(b, []byte("841.89")) {
		t.Fatalf("expected an A4 landscape page")
	}
}

func TestWritePDFPortraitCanvas(t *testing.T) {
	d := document.New(2480, 3508)
	d.AddElement(document.KindText, document.Patch{"text": "Portrait"})
	var buf bytes.Buffer
	if err := WritePDF(&buf, testRenderer(), d, PDFOptions{PageSize: "Letter"}); err != nil {
		t.Fatalf("pdf: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("612.00 792.00")) {
		t.Fatalf("expected a Letter portrait page")
	}
}

func TestWriteSVG(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSVG(&buf, testRenderer(), sampleDoc(), SVGOptions{Scale: 0.5, Context: placeholder.Context{Name: "Ada & Co", Course: "Go", Date: "2026-01-31"}})
	if err != nil {
		t.Fatalf("svg: %v", err)
	}
	s := buf.String()
	for _, want := range []string{
		`width="1754" height="1240"`,
		"This certifies that Ada &amp; Co",
		"has completed Go on 2026-01-31",
		`id="text-1"`,
		"rotate(15)",
		"<ellipse",
		"feGaussianBlur",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("svg missing %q", want)
		}
	}
	// Three lines plus the title's shadow.
	if n := strings.Count(s, "<text "); n != 4 {
		t.Errorf("text lines = %d, want 4", n)
	}
}

func TestExportFileByExtension(t *testing.T) {
	dir := t.TempDir()
	r := testRenderer()
	for _, name := range []string{"a.png", "b.PDF", "c.svg"} {
		if err := ExportFile(filepath.Join(dir, name), r, sampleDoc(), placeholder.Context{}, 0.05); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if st, err := os.Stat(filepath.Join(dir, name)); err != nil || st.Size() == 0 {
			t.Fatalf("%s not written", name)
		}
	}
	if err := ExportFile(filepath.Join(dir, "d.gif"), r, sampleDoc(), placeholder.Context{}, 1); err == nil {
		t.Fatalf("expected error for unknown extension")
	}
}

func TestBatchExportPresets(t *testing.T) {
	dir := t.TempDir()
	paths, err := BatchExport(testRenderer(), document.Starter(), BatchOptions{Preset: PresetWeb, OutDir: dir, Scale: 0.05})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(paths) != 2 || filepath.Ext(paths[0]) != ".png" || filepath.Ext(paths[1]) != ".svg" {
		t.Fatalf("paths = %v", paths)
	}
	if _, err := BatchExport(testRenderer(), document.Starter(), BatchOptions{Formats: []string{"tiff"}, OutDir: dir}); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if got := presetDefaultFormats(PresetPrint); len(got) != 2 || got[0] != "pdf" {
		t.Fatalf("print formats = %v", got)
	}
}
