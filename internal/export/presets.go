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
	"fmt"
	"path/filepath"
	"strings"

	"certstudio/internal/document"
	"certstudio/internal/placeholder"
	"certstudio/internal/render"
)

// PresetName represents a named export preset.
type PresetName string

const (
	PresetWeb   PresetName = "web"
	PresetPrint PresetName = "print"
)

// BatchOptions controls export of one template to several formats at once.
//
// Path semantics:
//   - Files are written to OutDir as <BaseName>.<ext>; BaseName defaults to "certificate".
//   - OutDir defaults to the preset name, relative to the working directory.
//
// Scale overrides the preset's raster scale for PNG and SVG when > 0.
type BatchOptions struct {
	Preset   PresetName
	Formats  []string // allowed: pdf, png, svg; empty means preset defaults
	Scale    float64
	OutDir   string
	BaseName string
	Context  placeholder.Context
}

// BatchExport runs exports according to the given preset and returns the
// written paths.
func BatchExport(r *render.Renderer, doc *document.Document, opt BatchOptions) ([]string, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}
	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	scale := presetScale(opt.Preset)
	if opt.Scale > 0 {
		scale = opt.Scale
	}
	outDir := opt.OutDir
	if outDir == "" {
		outDir = string(opt.Preset)
		if outDir == "" {
			outDir = "exports"
		}
	}
	base := opt.BaseName
	if base == "" {
		base = "certificate"
	}

	var written []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		out := filepath.Join(outDir, base+"."+f)
		var err error
		switch f {
		case "pdf":
			err = ExportPDF(out, r, doc, PDFOptions{Context: opt.Context, Title: base})
		case "png":
			err = ExportPNG(out, r, doc, PNGOptions{Scale: scale, Context: opt.Context})
		case "svg":
			err = ExportSVG(out, r, doc, SVGOptions{Scale: scale, Context: opt.Context})
		default:
			return written, fmt.Errorf("unknown format: %s", f)
		}
		if err != nil {
			return written, fmt.Errorf("%s: %w", f, err)
		}
		written = append(written, out)
	}
	return written, nil
}

// ExportFile picks the format from outPath's extension.
func ExportFile(outPath string, r *render.Renderer, doc *document.Document, ctx placeholder.Context, scale float64) error {
	switch ext := strings.ToLower(filepath.Ext(outPath)); ext {
	case ".pdf":
		return ExportPDF(outPath, r, doc, PDFOptions{Context: ctx})
	case ".png":
		return ExportPNG(outPath, r, doc, PNGOptions{Scale: scale, Context: ctx})
	case ".svg":
		return ExportSVG(outPath, r, doc, SVGOptions{Scale: scale, Context: ctx})
	default:
		return fmt.Errorf("unsupported export extension %q (want .pdf, .png or .svg)", ext)
	}
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetWeb:
		return []string{"png", "svg"}
	case PresetPrint:
		return []string{"pdf", "png"}
	default:
		return []string{"pdf"}
	}
}

// presetScale is the raster scale: full 300 dpi for print, half for web.
func presetScale(p PresetName) float64 {
	if p == PresetWeb {
		return 0.5
	}
	return 1
}
