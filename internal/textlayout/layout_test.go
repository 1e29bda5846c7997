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

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func TestLayoutWrapsWithinWidth(t *testing.T) {
	box, err := Default().Layout("This certifies that Jane Doe has completed the course", Style{Family: "Go", Size: 40, LineHeight: 1.2, Width: 400})
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if len(box.Lines) < 2 {
		t.Fatalf("expected wrapping, got %d line(s)", len(box.Lines))
	}
	for _, ln := range box.Lines {
		if ln.Width > 400+1e-9 {
			t.Fatalf("line %q is %v wide, bound 400", ln.Text, ln.Width)
		}
	}
	if want := float64(len(box.Lines)) * 48; math.Abs(box.Height-want) > 1e-9 {
		t.Fatalf("height = %v, want %v", box.Height, want)
	}
}

func TestLayoutBreaksLongWords(t *testing.T) {
	box, err := Default().Layout("Supercalifragilistic", Style{Size: 40, Width: 100})
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if len(box.Lines) < 2 {
		t.Fatalf("long word not broken: %+v", box.Lines)
	}
	joined := ""
	for _, ln := range box.Lines {
		joined += ln.Text
	}
	if joined != "Supercalifragilistic" {
		t.Fatalf("runes lost while breaking: %q", joined)
	}
}

func TestLayoutAlignment(t *testing.T) {
	st := Style{Size: 40, Width: 1000}
	st.Align = "center"
	c, _ := Default().Layout("Hi", st)
	st.Align = "right"
	r, _ := Default().Layout("Hi", st)
	w := c.Lines[0].Width
	if math.Abs(c.Lines[0].X-(1000-w)/2) > 1e-9 || math.Abs(r.Lines[0].X-(1000-w)) > 1e-9 {
		t.Fatalf("center x=%v right x=%v width=%v", c.Lines[0].X, r.Lines[0].X, w)
	}
}

func TestLetterSpacingWidensLine(t *testing.T) {
	a, _ := Default().Layout("ABCD", Style{Size: 40})
	b, _ := Default().Layout("ABCD", Style{Size: 40, LetterSpacing: 5})
	if d := b.Lines[0].Width - a.Lines[0].Width; math.Abs(d-15) > 1e-9 {
		t.Fatalf("spacing added %v, want 15 (three gaps)", d)
	}
}

func TestLayoutIsDeterministicAndNewlines(t *testing.T) {
	st := Style{Family: "Go", Size: 32, LineHeight: 1.5, Width: 300, Align: "center"}
	a, _ := Default().Layout("Line one\nLine two is longer than the bound allows", st)
	b, _ := Default().Layout("Line one\nLine two is longer than the bound allows", st)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("layout not deterministic")
	}
	if a.Lines[0].Text != "Line one" {
		t.Fatalf("hard break ignored: %q", a.Lines[0].Text)
	}
}

func TestResolveFallsBackToDefaultFamily(t *testing.T) {
	fl := NewFontLibrary()
	if _, err := fl.Face("Comic Sans MS", true, false, 20); err != nil {
		t.Fatalf("fallback face: %v", err)
	}
	if fl.FontData("serif", false, false) == nil {
		t.Fatalf("alias not resolved")
	}
}

func TestLoadDirParsesStyleFromName(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Brand-BoldItalic.ttf"), goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	fl := NewFontLibrary()
	n, err := fl.LoadDir(dir)
	if err != nil || n != 1 {
		t.Fatalf("LoadDir = %d, %v", n, err)
	}
	found := false
	for _, f := range fl.Families() {
		if f == "brand" {
			found = true
		}
	}
	if !found {
		t.Fatalf("families = %v", fl.Families())
	}
	if _, err := fl.Face("Brand", true, true, 24); err != nil {
		t.Fatalf("Face: %v", err)
	}
}
