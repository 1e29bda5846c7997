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
	"errors"
	"image"
	"math"

	"certstudio/internal/document"
	"certstudio/internal/placeholder"
)

// ThumbnailWidth is the default gallery thumbnail width in pixels.
const ThumbnailWidth = 320

// Draw renders doc at scale and rasterizes the result.
func (r *Renderer) Draw(doc *document.Document, ctx placeholder.Context, scale float64) *image.RGBA {
	return r.Rasterize(r.Render(doc, ctx, scale))
}

// FitScale returns min(containerW/docW, containerH/docH, 1): the largest
// scale at which the whole canvas fits without being enlarged. It returns 0
// for an empty container.
func FitScale(containerW, containerH, docW, docH float64) float64 {
	if containerW <= 0 || containerH <= 0 || docW <= 0 || docH <= 0 {
		return 0
	}
	return math.Min(math.Min(containerW/docW, containerH/docH), 1)
}

// ThumbnailScale is the scale that renders doc at width pixels.
func ThumbnailScale(doc *document.Document, width int) float64 {
	if width <= 0 {
		width = ThumbnailWidth
	}
	return float64(width) / doc.Width
}

// Thumbnail renders a non-interactive gallery image width pixels wide.
func (r *Renderer) Thumbnail(doc *document.Document, ctx placeholder.Context, width int) *image.RGBA {
	return r.Draw(doc, ctx, ThumbnailScale(doc, width))
}

// ErrEmptyContainer is returned by Preview for a zero-sized container.
var ErrEmptyContainer = errors.New("preview container has no area")

// Preview renders doc auto-fitted into a containerW x containerH box. The
// caller recomputes it whenever the container resizes.
func (r *Renderer) Preview(doc *document.Document, ctx placeholder.Context, containerW, containerH int) (*image.RGBA, float64, error) {
	s := FitScale(float64(containerW), float64(containerH), doc.Width, doc.Height)
	if s == 0 {
		return nil, 0, ErrEmptyContainer
	}
	return r.Draw(doc, ctx, s), s, nil
}

// Sources lists the image sources a document references, background first.
func Sources(doc *document.Document) []string {
	var out []string
	if bg, ok := doc.Background(); ok && bg.IsImage() {
		out = append(out, bg.Src)
	}
	for _, el := range doc.Elements() {
		if im, ok := el.(*document.Image); ok && im.Src != "" {
			out = append(out, im.Src)
		}
	}
	return out
}
