/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package document

// Starter returns the document shown when nothing has been loaded: a title,
// a name line and a course/date line (ids text-1, text-2, text-3).
func Starter() *Document {
	d := New(CanvasWidth, CanvasHeight)
	lines := []Patch{
		{"text": "Certificate of Completion", "fontSize": 160.0, "fontWeight": "bold", "fill": "#1f2937", "y": 520.0},
		{"text": "This certifies that {name}", "fontSize": 96.0, "fill": "#111827", "y": 1040.0},
		{"text": "has completed {course} on {date}", "fontSize": 72.0, "fill": "#374151", "y": 1360.0},
	}
	for _, p := range lines {
		p["x"] = 254.0
		p["width"] = 3000.0
		p["align"] = AlignCenter
		p["fontFamily"] = "Go"
		d.AddElement(KindText, p)
	}
	return d
}
