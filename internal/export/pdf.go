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
	"fmt"
	"image/color"
	"image/png"
	"io"
	"math"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"certstudio/internal/document"
	"certstudio/internal/placeholder"
	"certstudio/internal/render"
)

// PDFOptions controls PDF export.
//   - PageSize: a gofpdf size name ("A4", "Letter", ...); empty means A4.
//     Orientation follows the canvas, so the default canvas lands on A4 landscape.
//   - The canvas is scaled to fit the page and centred; units are points.
//   - Fonts are embedded from the renderer's font library; text stays vector.
//     Families without font data fall back to built-in Helvetica.
//   - Shadows are drawn unblurred at their offset.
type PDFOptions struct {
	Context  placeholder.Context
	PageSize string
	Title    string
	Author   string
}

// WritePDF renders doc as a one-page vector PDF into w.
func WritePDF(w io.Writer, r *render.Renderer, doc *document.Document, opt PDFOptions) error {
	if doc == nil {
		return fmt.Errorf("document is nil")
	}
	size := opt.PageSize
	if size == "" {
		size = "A4"
	}
	orient := "L"
	if doc.Height > doc.Width {
		orient = "P"
	}
	pdf := gofpdf.New(orient, "pt", size, "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	author := opt.Author
	if author == "" {
		author = "certstudio"
	}
	pdf.SetAuthor(author, true)
	pdf.SetCreator("certstudio", true)
	pdf.AddPage()

	pw, ph := pdf.GetPageSize()
	k := math.Min(pw/doc.Width, ph/doc.Height)
	p := &pdfPainter{
		pdf:    pdf,
		r:      r,
		k:      k,
		ox:     (pw - doc.Width*k) / 2,
		oy:     (ph - doc.Height*k) / 2,
		fonts:  map[string]string{},
		images: map[string]string{},
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
	}
	for _, op := range r.Render(doc, opt.Context, 1).Ops {
		p.paint(op)
		if pdf.Err() {
			break
		}
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// EncodePDF returns the PDF bytes of doc.
func EncodePDF(r *render.Renderer, doc *document.Document, opt PDFOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := WritePDF(&buf, r, doc, opt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ExportPDF writes doc to outPath, creating parent directories.
func ExportPDF(outPath string, r *render.Renderer, doc *document.Document, opt PDFOptions) error {
	b, err := EncodePDF(r, doc, opt)
	if err != nil {
		return err
	}
	return writeFile(outPath, b)
}

// pdfPainter maps a scale-1 scene (canvas units) onto the page.
type pdfPainter struct {
	pdf    *gofpdf.Fpdf
	r      *render.Renderer
	k      float64 // points per canvas unit
	ox, oy float64
	fonts  map[string]string // family/style -> registered family, "" when unavailable
	images map[string]string // src -> registered image name
	tr     func(string) string
}

func (p *pdfPainter) paint(op render.Op) {
	pdf := p.pdf
	x, y := p.ox+op.X*p.k, p.oy+op.Y*p.k
	w, h := op.W*p.k, op.H*p.k
	pdf.TransformBegin()
	defer pdf.TransformEnd()
	if op.Rotation != 0 {
		// gofpdf rotates counter-clockwise.
		pdf.TransformRotate(-op.Rotation, x, y)
	}
	switch op.Kind {
	case render.OpFill:
		p.setFill(op.Fill)
		pdf.Rect(x, y, w, h, "F")
	case render.OpRect, render.OpEllipse:
		style := ""
		if op.Fill.A > 0 {
			p.setFill(op.Fill)
			style += "F"
		}
		if op.StrokeWidth > 0 && op.Stroke.A > 0 {
			pdf.SetDrawColor(int(op.Stroke.R), int(op.Stroke.G), int(op.Stroke.B))
			pdf.SetLineWidth(op.StrokeWidth * p.k)
			if style == "" {
				pdf.SetAlpha(float64(op.Stroke.A)/255, "Normal")
			}
			style += "D"
		}
		if style == "" {
			return
		}
		switch {
		case op.Kind == render.OpEllipse:
			pdf.Ellipse(x+w/2, y+h/2, w/2, h/2, 0, style)
		case op.Radius > 0:
			roundedRect(pdf, x, y, w, h, op.Radius*p.k, style)
		default:
			pdf.Rect(x, y, w, h, style)
		}
	case render.OpImage:
		p.image(op, x, y, w, h)
	case render.OpText:
		p.text(op, x, y)
	}
	pdf.SetAlpha(1, "Normal")
}

func (p *pdfPainter) setFill(c color.NRGBA) {
	p.pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
	p.pdf.SetAlpha(float64(c.A)/255, "Normal")
}

func (p *pdfPainter) image(op render.Op, x, y, w, h float64) {
	if op.Image == nil || w <= 0 || h <= 0 {
		return
	}
	name, ok := p.images[op.Src]
	if !ok {
		var buf bytes.Buffer
		if err := png.Encode(&buf, op.Image); err != nil {
			return
		}
		name = fmt.Sprintf("img%d", len(p.images)+1)
		p.pdf.RegisterImageOptionsReader(name, gofpdf.ImageOptions{ImageType: "PNG"}, &buf)
		p.images[op.Src] = name
	}
	p.pdf.SetAlpha(math.Max(0, math.Min(1, op.Opacity)), "Normal")
	p.pdf.ImageOptions(name, x, y, w, h, false, gofpdf.ImageOptions{ImageType: "PNG"}, 0, "")
}

func (p *pdfPainter) text(op render.Op, x, y float64) {
	t := op.Text
	if t == nil || t.Size <= 0 {
		return
	}
	style := fontStyle(t.Bold, t.Italic)
	family := p.font(t.Family, t.Bold, t.Italic)
	utf8 := family != ""
	if !utf8 {
		family = "Helvetica"
	}
	p.pdf.SetFont(family, style, t.Size*p.k)
	p.pdf.SetTextColor(int(op.Fill.R), int(op.Fill.G), int(op.Fill.B))
	p.pdf.SetAlpha(float64(op.Fill.A)/255, "Normal")
	for _, ln := range t.Lines {
		by := y + ln.Baseline*p.k
		for _, g := range ln.Glyphs {
			s := string(g.R)
			if !utf8 {
				s = p.tr(s)
			}
			p.pdf.Text(x+(ln.X+g.X)*p.k, by, s)
		}
	}
}

// font registers the font data for family once and returns the name to use
// with SetFont, or "" when the library has no data for it.
func (p *pdfPainter) font(family string, bold, italic bool) string {
	key := strings.ToLower(family) + "/" + fontStyle(bold, italic)
	if name, ok := p.fonts[key]; ok {
		return name
	}
	name := ""
	if data := p.r.Fonts().FontData(family, bold, italic); len(data) > 0 {
		name = fontAlias(family)
		p.pdf.AddUTF8FontFromBytes(name, fontStyle(bold, italic), data)
		if p.pdf.Err() {
			p.pdf.ClearError()
			name = ""
		}
	}
	p.fonts[key] = name
	return name
}

func fontStyle(bold, italic bool) string {
	switch {
	case bold && italic:
		return "BI"
	case bold:
		return "B"
	case italic:
		return "I"
	default:
		return ""
	}
}

// fontAlias keeps registered names clear of the PDF core font names.
func fontAlias(family string) string {
	var b strings.Builder
	b.WriteString("cst")
	for _, r := range strings.ToLower(family) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// roundedRect draws a rectangle with circular corners of radius r using
// cubic Bézier arcs.
func roundedRect(pdf *gofpdf.Fpdf, x, y, w, h, r float64, style string) {
	r = math.Min(r, math.Min(w, h)/2)
	if r <= 0 {
		pdf.Rect(x, y, w, h, style)
		return
	}
	const kappa = 0.5522847498
	c := r * kappa
	pdf.MoveTo(x+r, y)
	pdf.LineTo(x+w-r, y)
	pdf.CurveBezierCubicTo(x+w-r+c, y, x+w, y+r-c, x+w, y+r)
	pdf.LineTo(x+w, y+h-r)
	pdf.CurveBezierCubicTo(x+w, y+h-r+c, x+w-r+c, y+h, x+w-r, y+h)
	pdf.LineTo(x+r, y+h)
	pdf.CurveBezierCubicTo(x+r-c, y+h, x, y+h-r+c, x, y+h-r)
	pdf.LineTo(x, y+r)
	pdf.CurveBezierCubicTo(x, y+r-c, x+r-c, y, x+r, y)
	pdf.ClosePath()
	pdf.DrawPath(style)
}
