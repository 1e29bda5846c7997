/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package export writes rendered templates to PNG, PDF and SVG files and
// packs per-recipient renders into a mail-merge archive.
package export

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"certstudio/internal/document"
	"certstudio/internal/placeholder"
	"certstudio/internal/render"
)

// PNGOptions controls raster export.
//   - Scale: output pixels per canvas unit; 0 means 1 (the canvas is A4 at 300 dpi).
//   - Context: placeholder values; empty fields use the renderer's fallbacks.
type PNGOptions struct {
	Scale   float64
	Context placeholder.Context
}

// WritePNG renders doc and encodes it as PNG into w.
func WritePNG(w io.Writer, r *render.Renderer, doc *document.Document, opt PNGOptions) error {
	if doc == nil {
		return fmt.Errorf("document is nil")
	}
	scale := opt.Scale
	if scale <= 0 {
		scale = 1
	}
	img := r.Draw(doc, opt.Context, scale)
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// EncodePNG returns the PNG bytes of doc.
func EncodePNG(r *render.Renderer, doc *document.Document, opt PNGOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePNG(&buf, r, doc, opt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportPNG writes doc to outPath, creating parent directories.
func ExportPNG(outPath string, r *render.Renderer, doc *document.Document, opt PNGOptions) error {
	b, err := EncodePNG(r, doc, opt)
	if err != nil {
		return err
	}
	return writeFile(outPath, b)
}

func writeFile(outPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(outPath), err)
	}
	return nil
}
