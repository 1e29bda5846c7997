/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package vector

import "testing"

func TestComputeSmartGuides_SnapToEdges(t *testing.T) {
	frame := Rect{X: 0, Y: 0, W: 200, H: 100}
	moving := Rect{X: 3, Y: 4, W: 80, H: 40}
	snapped, guides := ComputeSmartGuides(moving, []Anchor{{Rect: frame, Weight: 1}}, SnapOptions{Threshold: 6, SnapToEdges: true})
	if snapped.X != 0 || snapped.Y != 0 {
		t.Fatalf("expected snap to (0,0), got %+v", snapped)
	}
	var vOK, hOK bool
	for _, g := range guides {
		if g.Orientation == "vertical" && g.Position == 0 {
			vOK = true
		}
		if g.Orientation == "horizontal" && g.Position == 0 {
			hOK = true
		}
	}
	if !vOK || !hOK {
		t.Fatalf("expected guides at x=0 (%v) and y=0 (%v)", vOK, hOK)
	}
}

func TestComputeSmartGuides_SnapToCenters(t *testing.T) {
	frame := Rect{X: 0, Y: 0, W: 200, H: 100}
	moving := Rect{X: 48, Y: 17, W: 100, H: 60}
	snapped, guides := ComputeSmartGuides(moving, []Anchor{{Rect: frame, Weight: 1}}, SnapOptions{Threshold: 5, SnapToCenters: true})
	if snapped.X != 50 || snapped.Y != 20 {
		t.Fatalf("expected centred rect at (50,20), got %+v", snapped)
	}
	if len(guides) != 2 || guides[0].Kind != "center" || guides[1].Kind != "center" {
		t.Fatalf("unexpected guides %+v", guides)
	}
}

func TestComputeSmartGuides_ThresholdPreventsSnap(t *testing.T) {
	frame := Rect{X: 0, Y: 0, W: 200, H: 100}
	moving := Rect{X: 10, Y: 10, W: 50, H: 20}
	snapped, guides := ComputeSmartGuides(moving, []Anchor{{Rect: frame, Weight: 1}}, SnapOptions{Threshold: 5, SnapToEdges: true})
	if snapped != moving || len(guides) != 0 {
		t.Fatalf("expected no snapping, got %+v %v", snapped, guides)
	}
}

func TestCanvasCentreSnapsEdgesAndCentre(t *testing.T) {
	a := CanvasCentre(3508, 2480)
	opts := SnapOptions{Threshold: 8, SnapToEdges: true, SnapToCenters: true}

	// left edge 5 units right of the vertical centre line
	snapped, _ := ComputeSmartGuides(Rect{X: 1759, Y: 100, W: 300, H: 100}, []Anchor{a}, opts)
	if snapped.X != 1754 {
		t.Fatalf("left edge should land on x=1754, got %v", snapped.X)
	}
	// centre 3 units below the horizontal centre line
	snapped, guides := ComputeSmartGuides(Rect{X: 100, Y: 1193, W: 300, H: 100}, []Anchor{a}, opts)
	if snapped.Y != 1190 {
		t.Fatalf("centre should land on y=1240, got top %v", snapped.Y)
	}
	full := ExtendGuides(guides, 3508, 2480)
	if len(full) != 1 || full[0].From.X != 0 || full[0].To.X != 3508 || full[0].Position != 1240 {
		t.Fatalf("extended guides = %+v", full)
	}
}
