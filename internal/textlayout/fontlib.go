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
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/gofont/gosmallcaps"
	"golang.org/x/image/font/gofont/gosmallcapsitalic"
	"golang.org/x/image/font/opentype"
)

// DefaultFamily is used when a requested family is not loaded.
const DefaultFamily = "Go"

// FontLibrary stores parsed fonts mapped by family/bold/italic. The embedded
// Go fonts are always present; user TTF/OTF files can be added with LoadFile
// and LoadDir.
//
// Faces are created per call: font.Face values are not safe for concurrent
// use, while the parsed fonts are.
type FontLibrary struct {
	mu    sync.RWMutex
	fonts map[fontKey]*fontSource
	alias map[string]string
}

type fontKey struct {
	family string
	bold   bool
	italic bool
}

// fontSource is one parsed font file. Built-in fonts are parsed with
// freetype's truetype package; user files with x/image opentype, which also
// reads CFF-flavoured OTF.
type fontSource struct {
	data []byte
	tt   *truetype.Font
	ot   *opentype.Font
}

func (s *fontSource) face(size float64) (font.Face, error) {
	if s.tt != nil {
		return truetype.NewFace(s.tt, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone}), nil
	}
	return opentype.NewFace(s.ot, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingNone})
}

var (
	defaultLib     *FontLibrary
	defaultLibOnce sync.Once
)

// Default returns the shared library holding the embedded Go fonts.
func Default() *FontLibrary {
	defaultLibOnce.Do(func() { defaultLib = NewFontLibrary() })
	return defaultLib
}

// NewFontLibrary returns a library preloaded with the embedded Go fonts.
func NewFontLibrary() *FontLibrary {
	fl := &FontLibrary{
		fonts: make(map[fontKey]*fontSource),
		alias: map[string]string{
			"sans-serif": "Go", "sans": "Go", "serif": "Go", "arial": "Go", "helvetica": "Go",
			"times new roman": "Go", "georgia": "Go", "monospace": "Go Mono", "courier": "Go Mono",
			"courier new": "Go Mono",
		},
	}
	builtin := []struct {
		family       string
		bold, italic bool
		data         []byte
	}{
		{"Go", false, false, goregular.TTF},
		{"Go", true, false, gobold.TTF},
		{"Go", false, true, goitalic.TTF},
		{"Go", true, true, gobolditalic.TTF},
		{"Go Mono", false, false, gomono.TTF},
		{"Go Mono", true, false, gomonobold.TTF},
		{"Go Mono", false, true, gomonoitalic.TTF},
		{"Go Mono", true, true, gomonobolditalic.TTF},
		{"Go Smallcaps", false, false, gosmallcaps.TTF},
		{"Go Smallcaps", false, true, gosmallcapsitalic.TTF},
	}
	for _, b := range builtin {
		f, err := truetype.Parse(b.data)
		if err != nil {
			// embedded fonts are known good
			panic(fmt.Sprintf("parse embedded font %s: %v", b.family, err))
		}
		fl.fonts[fontKey{family: strings.ToLower(b.family), bold: b.bold, italic: b.italic}] = &fontSource{data: b.data, tt: f}
	}
	return fl
}

// LoadFile parses a TTF/OTF file and registers it under family/bold/italic.
func (fl *FontLibrary) LoadFile(family string, bold, italic bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	return fl.LoadBytes(family, bold, italic, data)
}

// LoadBytes registers font data under family/bold/italic.
func (fl *FontLibrary) LoadBytes(family string, bold, italic bool, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", family, err)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.fonts[fontKey{family: strings.ToLower(strings.TrimSpace(family)), bold: bold, italic: italic}] = &fontSource{data: data, ot: f}
	return nil
}

// LoadDir registers every .ttf/.otf file in dir. The family and style come
// from the file name: "Family-Bold.ttf", "Family-Italic.otf",
// "Family-BoldItalic.ttf" or plain "Family.ttf".
func (fl *FontLibrary) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read font dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".ttf" && ext != ".otf") {
			continue
		}
		family, bold, italic := parseFontFileName(strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		if err := fl.LoadFile(family, bold, italic, filepath.Join(dir, e.Name())); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func parseFontFileName(base string) (family string, bold, italic bool) {
	family = base
	if i := strings.LastIndexByte(base, '-'); i > 0 {
		style := strings.ToLower(base[i+1:])
		switch style {
		case "regular":
			return base[:i], false, false
		case "bold":
			return base[:i], true, false
		case "italic", "oblique":
			return base[:i], false, true
		case "bolditalic", "boldoblique":
			return base[:i], true, true
		}
	}
	return family, false, false
}

// Families lists the loaded family names (lower-cased) in sorted order.
func (fl *FontLibrary) Families() []string {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for k := range fl.fonts {
		if !seen[k.family] {
			seen[k.family] = true
			out = append(out, k.family)
		}
	}
	sort.Strings(out)
	return out
}

// resolve picks the closest loaded font: exact match, then the same family
// with any style, then the default family with the requested style.
func (fl *FontLibrary) resolve(family string, bold, italic bool) *fontSource {
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	fam := strings.ToLower(strings.TrimSpace(family))
	if a, ok := fl.alias[fam]; ok {
		fam = strings.ToLower(a)
	}
	try := []fontKey{
		{fam, bold, italic},
		{fam, bold, false},
		{fam, false, italic},
		{fam, false, false},
		{"go", bold, italic},
		{"go", false, false},
	}
	for _, k := range try {
		if s, ok := fl.fonts[k]; ok {
			return s
		}
	}
	return nil
}

// Face returns a new face for the font at size document units.
func (fl *FontLibrary) Face(family string, bold, italic bool, size float64) (font.Face, error) {
	if size <= 0 {
		size = 12
	}
	src := fl.resolve(family, bold, italic)
	if src == nil {
		return nil, fmt.Errorf("no font for %q", family)
	}
	return src.face(size)
}

// FontData returns the raw font file used for family/bold/italic, for
// embedding into exported documents.
func (fl *FontLibrary) FontData(family string, bold, italic bool) []byte {
	if src := fl.resolve(family, bold, italic); src != nil {
		return src.data
	}
	return nil
}
