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

// State is the selection/transform state of a Controller.
type State int

const (
	// Idle has no selection.
	Idle State = iota
	// Selected has one selected element.
	Selected
	// Dragging moves the selected element with the pointer.
	Dragging
	// Transforming resizes or rotates the selected element through a handle.
	Transforming
	// EditingText routes printable keys into the selected Text element.
	EditingText
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selected:
		return "selected"
	case Dragging:
		return "dragging"
	case Transforming:
		return "transforming"
	case EditingText:
		return "editing-text"
	}
	return "unknown"
}
