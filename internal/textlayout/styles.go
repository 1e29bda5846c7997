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

// TextStyle is a named preset for new text elements.
// LetterSpacing is in document units, LineHeight a multiple of Size.
type TextStyle struct {
	Name          string
	Family        string
	Size          float64
	Bold          bool
	Italic        bool
	LetterSpacing float64
	LineHeight    float64
}

var builtinStyles = map[string]TextStyle{
	"Title":     {Name: "Title", Family: "Go", Size: 160, Bold: true, LetterSpacing: 2, LineHeight: 1.1},
	"Recipient": {Name: "Recipient", Family: "Go", Size: 120, Italic: true, LineHeight: 1.2},
	"Body":      {Name: "Body", Family: "Go", Size: 64, LineHeight: 1.4},
	"Caption":   {Name: "Caption", Family: "Go Smallcaps", Size: 40, LetterSpacing: 1, LineHeight: 1.3},
	"Signature": {Name: "Signature", Family: "Go Mono", Size: 36, LineHeight: 1.2},
}

// GetStyle returns a builtin preset by name. The second return value is false
// if the style is not found.
func GetStyle(name string) (TextStyle, bool) { s, ok := builtinStyles[name]; return s, ok }

// ListStyles lists the builtin preset names in stable order.
func ListStyles() []string {
	return []string{"Title", "Recipient", "Body", "Caption", "Signature"}
}
