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
	"strings"

	"certstudio/internal/document"
	"certstudio/internal/imagecache"
	"certstudio/internal/placeholder"
	"certstudio/internal/render"
)

// SVGOptions controls SVG export.
//   - Scale: output units per canvas unit; 0 means 1.
//   - Images are inlined as PNG data URIs.
//   - Text is positioned glyph by glyph, so letter spacing and wrapping match
//     the raster output; the font family is referenced, not embedded.
type SVGOptions struct {
	Scale   float64
	Context placeholder.Context
}

// WriteSVG dumps the display list of doc as SVG into w.
func WriteSVG(w io.Writer, r *render.Renderer, doc *document.Document, opt SVGOptions) error {
	if doc == nil {
		return fmt.Errorf("document is nil")
	}
	scale := opt.Scale
	if scale <= 0 {
		scale = 1
	}
	sc := r.Render(doc, opt.Context, scale)

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%d\" height=\"%d\" viewBox=\"0 0 %d %d\">\n", sc.Width, sc.Height, sc.Width, sc.Height)

	filters := 0
	for _, op := range sc.Ops {
		transform := fmt.Sprintf("translate(%g %g)", op.X, op.Y)
		if op.Rotation != 0 {
			transform += fmt.Sprintf(" rotate(%g)", op.Rotation)
		}
		filter := ""
		if op.Shadow && op.Blur > 0 {
			filters++
			wf("  <filter id=\"blur%d\" x=\"-50%%\" y=\"-50%%\" width=\"200%%\" height=\"200%%\"><feGaussianBlur stdDeviation=\"%g\"/></filter>\n", filters, op.Blur/2)
			filter = fmt.Sprintf(" filter=\"url(#blur%d)\"", filters)
		}
		id := ""
		if op.ID != "" && !op.Shadow {
			id = fmt.Sprintf(" id=\"%s\"", escAttr(op.ID))
		}
		switch op.Kind {
		case render.OpFill:
			wf("  <rect x=\"0\" y=\"0\" width=\"%g\" height=\"%g\"%s/>\n", op.W, op.H, fillAttrs(op.Fill))
		case render.OpRect:
			paint := fillAttrs(op.Fill) + strokeAttrs(op)
			if op.Radius > 0 {
				wf("  <rect%s transform=\"%s\" width=\"%g\" height=\"%g\" rx=\"%g\"%s%s/>\n", id, transform, op.W, op.H, op.Radius, paint, filter)
			} else {
				wf("  <rect%s transform=\"%s\" width=\"%g\" height=\"%g\"%s%s/>\n", id, transform, op.W, op.H, paint, filter)
			}
		case render.OpEllipse:
			wf("  <ellipse%s transform=\"%s\" cx=\"%g\" cy=\"%g\" rx=\"%g\" ry=\"%g\"%s%s%s/>\n", id, transform, op.W/2, op.H/2, op.W/2, op.H/2, fillAttrs(op.Fill), strokeAttrs(op), filter)
		case render.OpImage:
			if op.Image == nil {
				continue
			}
			var ib bytes.Buffer
			if err := png.Encode(&ib, op.Image); err != nil {
				return fmt.Errorf("encode image %s: %w", op.ID, err)
			}
			wf("  <image%s transform=\"%s\" width=\"%g\" height=\"%g\" preserveAspectRatio=\"none\" opacity=\"%g\" href=\"%s\"/>\n",
				id, transform, op.W, op.H, op.Opacity, imagecache.EncodeDataURI("image/png", ib.Bytes()))
		case render.OpText:
			t := op.Text
			if t == nil {
				continue
			}
			weight, style := "normal", "normal"
			if t.Bold {
				weight = "bold"
			}
			if t.Italic {
				style = "italic"
			}
			wf("  <g%s transform=\"%s\" font-family=\"%s\" font-size=\"%g\" font-weight=\"%s\" font-style=\"%s\"%s%s>\n",
				id, transform, escAttr(t.Family), t.Size, weight, style, fillAttrs(op.Fill), filter)
			for _, ln := range t.Lines {
				if len(ln.Glyphs) == 0 {
					continue
				}
				xs := make([]string, len(ln.Glyphs))
				var text strings.Builder
				for i, g := range ln.Glyphs {
					xs[i] = fmt.Sprintf("%g", ln.X+g.X)
					text.WriteRune(g.R)
				}
				wf("    <text xml:space=\"preserve\" x=\"%s\" y=\"%g\">%s</text>\n", strings.Join(xs, " "), ln.Baseline, escText(text.String()))
			}
			wf("  </g>\n")
		}
	}
	wf("</svg>\n")
	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ExportSVG writes doc to outPath, creating parent directories.
func ExportSVG(outPath string, r *render.Renderer, doc *document.Document, opt SVGOptions) error {
	var buf bytes.Buffer
	if err := WriteSVG(&buf, r, doc, opt); err != nil {
		return err
	}
	return writeFile(outPath, buf.Bytes())
}

func svgColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func fillAttrs(c color.NRGBA) string {
	if c.A == 0 {
		return " fill=\"none\""
	}
	if c.A == 255 {
		return fmt.Sprintf(" fill=\"%s\"", svgColor(c))
	}
	return fmt.Sprintf(" fill=\"%s\" fill-opacity=\"%.3f\"", svgColor(c), float64(c.A)/255)
}

func strokeAttrs(op render.Op) string {
	if op.StrokeWidth <= 0 || op.Stroke.A == 0 {
		return ""
	}
	s := fmt.Sprintf(" stroke=\"%s\" stroke-width=\"%g\"", svgColor(op.Stroke), op.StrokeWidth)
	if op.Stroke.A < 255 {
		s += fmt.Sprintf(" stroke-opacity=\"%.3f\"", float64(op.Stroke.A)/255)
	}
	return s
}

func escAttr(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '"':
			out = append(out, "&quot;"...)
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '\n':
			out = append(out, ' ')
		case '\r':
			// skip
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '&':
			out = append(out, "&amp;"...)
		case '<':
			out = append(out, "&lt;"...)
		case '>':
			out = append(out, "&gt;"...)
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
