/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editor

import (
	"testing"

	"certstudio/internal/document"
)

func TestRouterDeliversToMountedEditor(t *testing.T) {
	r := NewRouter()
	a := New(nil, Options{Router: r})
	b := New(nil, Options{Router: r})
	if r.Dispatch(KeyEvent{Key: KeyRight}) {
		t.Fatalf("event delivered with nothing mounted")
	}
	a.Select("text-1")
	b.Select("text-1")
	if r.Active() != b {
		t.Fatalf("latest selection should own the keyboard")
	}
	r.Dispatch(KeyEvent{Key: KeyRight})
	xa := elX(a, "text-1")
	xb := elX(b, "text-1")
	if xa != 254 || xb != 256 {
		t.Fatalf("xa=%v xb=%v, want only b moved", xa, xb)
	}
	b.Deselect()
	if r.Active() != a {
		t.Fatalf("idle editor still mounted")
	}
	r.Dispatch(KeyEvent{Key: KeyRight})
	if elX(a, "text-1") != 256 {
		t.Fatalf("a did not receive event after b unmounted")
	}
	a.Close()
	if r.Dispatch(KeyEvent{Key: KeyRight}) {
		t.Fatalf("closed editor received input")
	}
}

func TestRouterUnmountsOnDelete(t *testing.T) {
	r := NewRouter()
	c := New(nil, Options{Router: r})
	c.Select("text-2")
	r.Dispatch(KeyEvent{Key: KeyDelete})
	if r.Active() != nil {
		t.Fatalf("editor stays mounted after deleting its selection")
	}
	if c.Document().Len() != 2 {
		t.Fatalf("len = %d", c.Document().Len())
	}
}

func elX(c *Controller, id string) float64 {
	el, ok := c.Document().Element(id)
	if !ok {
		return -1
	}
	return el.(*document.Text).X
}
