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

import "sync"

// Key names the keys the editor reacts to. Printable input arrives as KeyRune.
type Key int

const (
	KeyNone Key = iota
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyDelete
	KeyBackspace
	KeyEnter
	KeyEscape
	KeyRune
)

// KeyEvent is one key press. Shift is the nudge modifier; Ctrl marks commands.
type KeyEvent struct {
	Key   Key
	Rune  rune
	Shift bool
	Ctrl  bool
}

// Rune returns a printable-character event.
func Rune(r rune) KeyEvent { return KeyEvent{Key: KeyRune, Rune: r} }

// Router delivers keyboard input from one host window to the editor that is
// currently mounted. Editors mount while they hold a selection; input for an
// editor that is not mounted is dropped.
type Router struct {
	mu    sync.Mutex
	stack []*Controller
}

// NewRouter returns an empty router.
func NewRouter() *Router { return &Router{} }

// Mount makes c the receiver of key events. Mounting an already mounted
// editor moves it to the top.
func (r *Router) Mount(c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(c)
	r.stack = append(r.stack, c)
}

// Unmount stops delivering events to c.
func (r *Router) Unmount(c *Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(c)
}

// Active returns the editor receiving events, or nil.
func (r *Router) Active() *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stack) == 0 {
		return nil
	}
	return r.stack[len(r.stack)-1]
}

// Dispatch sends ev to the active editor and reports whether it was handled.
func (r *Router) Dispatch(ev KeyEvent) bool {
	c := r.Active()
	if c == nil {
		return false
	}
	return c.Key(ev)
}

func (r *Router) removeLocked(c *Controller) {
	for i, x := range r.stack {
		if x == c {
			r.stack = append(r.stack[:i], r.stack[i+1:]...)
			return
		}
	}
}
