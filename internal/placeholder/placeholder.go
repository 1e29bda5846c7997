/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package placeholder substitutes {name}, {course} and {date} tokens at render
// time. Stored template text is never rewritten.
package placeholder

import (
	"regexp"
	"strings"
	"time"
)

// Context supplies the recipient values for one render.
type Context struct {
	Name   string `json:"name"`
	Course string `json:"course"`
	Date   string `json:"date"`
}

// Fallbacks are used for fields a Context leaves empty.
type Fallbacks struct {
	Name   string
	Course string
	Date   string
}

// DateLayout is the form of the default {date} fallback.
const DateLayout = "2006-01-02"

// DefaultFallbacks returns the sample values shown in editors and galleries.
// Date is today's date, read once here.
func DefaultFallbacks() Fallbacks {
	return Fallbacks{Name: "Jane Doe", Course: "Course Name", Date: time.Now().Format(DateLayout)}
}

var token = regexp.MustCompile(`(?i)\{(name|course|date)\}`)

// Resolve replaces the three known tokens case-insensitively. Any other
// {...} sequence is left untouched. It depends only on its arguments.
func Resolve(text string, ctx Context, fb Fallbacks) string {
	if !strings.ContainsRune(text, '{') {
		return text
	}
	return token.ReplaceAllStringFunc(text, func(m string) string {
		switch strings.ToLower(m[1 : len(m)-1]) {
		case "name":
			return pick(ctx.Name, fb.Name)
		case "course":
			return pick(ctx.Course, fb.Course)
		default:
			return pick(ctx.Date, fb.Date)
		}
	})
}

// Tokens lists the distinct tokens (lower-cased) used in text, in order of
// first appearance.
func Tokens(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range token.FindAllStringSubmatch(text, -1) {
		k := strings.ToLower(m[1])
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// WithDefaults fills empty fallback fields from DefaultFallbacks.
func (f Fallbacks) WithDefaults() Fallbacks {
	d := DefaultFallbacks()
	if strings.TrimSpace(f.Name) == "" {
		f.Name = d.Name
	}
	if strings.TrimSpace(f.Course) == "" {
		f.Course = d.Course
	}
	if strings.TrimSpace(f.Date) == "" {
		f.Date = d.Date
	}
	return f
}

func pick(v, fb string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return fb
}
