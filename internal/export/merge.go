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
	"archive/zip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"certstudio/internal/document"
	"certstudio/internal/placeholder"
	"certstudio/internal/render"
)

// ErrNoRecipients is returned when a recipient list has no data rows.
var ErrNoRecipients = errors.New("no recipients")

// ReadRecipients parses CSV rows into placeholder contexts. A first row naming
// any of the columns name, course or date (case-insensitive) is a header and
// maps columns by name; otherwise columns are positional name,course,date.
// Blank rows are skipped.
func ReadRecipients(r io.Reader) ([]placeholder.Context, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read recipients: %w", err)
	}
	cols := map[string]int{"name": 0, "course": 1, "date": 2}
	if len(rows) > 0 {
		header := map[string]int{}
		for i, h := range rows[0] {
			key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
			if _, known := cols[key]; known {
				header[key] = i
			}
		}
		if len(header) > 0 {
			cols = header
			rows = rows[1:]
		}
	}
	field := func(row []string, key string) string {
		i, ok := cols[key]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	var out []placeholder.Context
	for _, row := range rows {
		pc := placeholder.Context{Name: field(row, "name"), Course: field(row, "course"), Date: field(row, "date")}
		if pc == (placeholder.Context{}) {
			continue
		}
		out = append(out, pc)
	}
	if len(out) == 0 {
		return nil, ErrNoRecipients
	}
	return out, nil
}

// MergeOptions controls mail-merge export.
//   - Format: "png" (default) or "pdf".
//   - Scale applies to PNG output; 0 means 1.
//   - PDF carries page options for PDF output; its Context is ignored.
type MergeOptions struct {
	Format string
	Scale  float64
	PDF    PDFOptions
	// Progress, when set, is called after each recipient is written.
	Progress func(done, total int)
}

// Merge renders doc once per recipient and writes the files plus a
// manifest.csv into a ZIP archive on w. Entries are named
// "<nnn>-<slug>.<ext>" in recipient order. It stops early when ctx ends.
func Merge(ctx context.Context, w io.Writer, r *render.Renderer, doc *document.Document, recipients []placeholder.Context, opt MergeOptions) error {
	if doc == nil {
		return fmt.Errorf("document is nil")
	}
	if len(recipients) == 0 {
		return ErrNoRecipients
	}
	format := strings.ToLower(strings.TrimSpace(opt.Format))
	if format == "" {
		format = "png"
	}
	if format != "png" && format != "pdf" {
		return fmt.Errorf("unknown merge format: %s", format)
	}

	zw := zip.NewWriter(w)
	pad := len(fmt.Sprint(len(recipients)))
	if pad < 3 {
		pad = 3
	}
	var manifest strings.Builder
	mw := csv.NewWriter(&manifest)
	_ = mw.Write([]string{"file", "name", "course", "date"})

	for i, pc := range recipients {
		if err := ctx.Err(); err != nil {
			return err
		}
		var (
			data []byte
			err  error
		)
		switch format {
		case "pdf":
			po := opt.PDF
			po.Context = pc
			if po.Title == "" {
				po.Title = pc.Name
			}
			data, err = EncodePDF(r, doc, po)
		default:
			data, err = EncodePNG(r, doc, PNGOptions{Scale: opt.Scale, Context: pc})
		}
		if err != nil {
			return fmt.Errorf("recipient %d: %w", i+1, err)
		}
		name := fmt.Sprintf("%0*d-%s.%s", pad, i+1, slug(pc.Name), format)
		if err := addZipFile(zw, name, data); err != nil {
			return fmt.Errorf("zip add %s: %w", name, err)
		}
		_ = mw.Write([]string{name, pc.Name, pc.Course, pc.Date})
		if opt.Progress != nil {
			opt.Progress(i+1, len(recipients))
		}
	}
	mw.Flush()
	if err := mw.Error(); err != nil {
		return fmt.Errorf("build manifest: %w", err)
	}
	if err := addZipFile(zw, "manifest.csv", []byte(manifest.String())); err != nil {
		return fmt.Errorf("zip add manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// MergeFile runs Merge into outPath. A failed merge leaves no file behind.
func MergeFile(ctx context.Context, outPath string, r *render.Renderer, doc *document.Document, recipients []placeholder.Context, opt MergeOptions) (err error) {
	if !strings.HasSuffix(strings.ToLower(outPath), ".zip") {
		outPath += ".zip"
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close zip: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(outPath)
		}
	}()
	return Merge(ctx, f, r, doc, recipients, opt)
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// slug lowercases s and collapses everything but letters and digits to
// single dashes. An empty result becomes "recipient".
func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "recipient"
	}
	if rs := []rune(out); len(rs) > 48 {
		out = strings.TrimSuffix(string(rs[:48]), "-")
	}
	return out
}
