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
	"encoding/json"
	"log/slog"
	"time"
	"unicode"
	"unicode/utf8"

	"certstudio/internal/document"
	applog "certstudio/internal/log"
	"certstudio/internal/placeholder"
	"certstudio/internal/render"
	"certstudio/internal/textlayout"
	"certstudio/internal/undo"
	"certstudio/internal/vector"
	"certstudio/internal/viewport"
)

const (
	// NudgeStep and NudgeStepLarge are arrow-key moves in document units.
	NudgeStep      = 2.0
	NudgeStepLarge = 10.0
	// KnobDistance is how far the rotation knob sits above the top edge, in
	// screen pixels; HandleRadius is the handle hit radius in screen pixels.
	KnobDistance = 40.0
	HandleRadius = 10.0
	// GuideThreshold is the smart-guide snap distance in document units.
	GuideThreshold = 8.0
	// RotationStep is the rotation snap with the modifier held.
	RotationStep = 15.0
)

// Modifiers carries pointer modifier keys.
type Modifiers struct {
	Shift bool
}

// Options configures a Controller. Zero values get working defaults.
type Options struct {
	Viewport *viewport.Viewport
	Renderer *render.Renderer
	History  *undo.Manager
	Router   *Router
	// Context feeds placeholder resolution when measuring text boxes.
	Context placeholder.Context
	// OnChange runs after every committed document or selection change.
	OnChange func()
	Now      func() time.Time
}

// Controller is the selection and transform state machine over one document.
// It is driven from the host's event loop and is not safe for concurrent use.
type Controller struct {
	doc      *document.Document
	key      string
	vp       *viewport.Viewport
	renderer *render.Renderer
	history  *undo.Manager
	router   *Router
	ctx      placeholder.Context
	onChange func()
	now      func() time.Time
	log      *slog.Logger

	state State
	sel   string

	// gesture state
	grab     vector.Pt
	handle   vector.Handle
	orig     vector.Box
	origFont float64
	before   []byte
	guides   []vector.GuideLine

	revision uint64
}

// New returns a controller editing doc. A nil doc starts from the starter
// document.
func New(doc *document.Document, opts Options) *Controller {
	if doc == nil {
		doc = document.Starter()
	}
	if opts.Viewport == nil {
		opts.Viewport = viewport.New(0.25)
	}
	if opts.Renderer == nil {
		opts.Renderer = render.New(render.Options{})
	}
	if opts.History == nil {
		opts.History = undo.NewManager(undo.Config{MinInterval: 250 * time.Millisecond})
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		doc:      doc,
		key:      "scratch",
		vp:       opts.Viewport,
		renderer: opts.Renderer,
		history:  opts.History,
		router:   opts.Router,
		ctx:      opts.Context,
		onChange: opts.OnChange,
		now:      opts.Now,
		log:      applog.WithComponent("editor"),
	}
}

// Document returns the live document. Callers must not mutate it directly.
func (c *Controller) Document() *document.Document { return c.doc }

// Viewport returns the controller's viewport.
func (c *Controller) Viewport() *viewport.Viewport { return c.vp }

// Renderer returns the renderer used for measuring and drawing.
func (c *Controller) Renderer() *render.Renderer { return c.renderer }

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Selection returns the selected id, or "" when idle.
func (c *Controller) Selection() string { return c.sel }

// Revision increases with every committed document change.
func (c *Controller) Revision() uint64 { return c.revision }

// Guides returns the smart guides of the drag in progress.
func (c *Controller) Guides() []vector.GuideLine { return c.guides }

// Load replaces the document wholesale. key scopes the undo history (usually
// the template id). The selection is cleared.
func (c *Controller) Load(doc *document.Document, key string) {
	if doc == nil {
		doc = document.Starter()
	}
	if key == "" {
		key = "scratch"
	}
	c.doc = doc
	c.key = key
	c.history.Clear(key)
	c.toIdle()
	c.mutated()
}

// HistoryKey returns the undo key of the loaded document.
func (c *Controller) HistoryKey() string { return c.key }

// Close releases the keyboard.
func (c *Controller) Close() {
	if c.router != nil {
		c.router.Unmount(c)
	}
}

// Select makes id the selection. Unknown ids are ignored.
func (c *Controller) Select(id string) bool {
	if _, ok := c.doc.Element(id); !ok {
		return false
	}
	c.endGesture()
	c.sel = id
	c.state = Selected
	if c.router != nil {
		c.router.Mount(c)
	}
	c.changed()
	return true
}

// Deselect returns to Idle.
func (c *Controller) Deselect() {
	if c.state == Idle {
		return
	}
	c.toIdle()
	c.changed()
}

func (c *Controller) toIdle() {
	c.endGesture()
	c.sel = ""
	c.state = Idle
	if c.router != nil {
		c.router.Unmount(c)
	}
}

func (c *Controller) endGesture() {
	c.before = nil
	c.guides = nil
	c.handle = vector.HandleNone
}

func (c *Controller) selected() (document.Element, bool) {
	if c.sel == "" {
		return nil, false
	}
	return c.doc.Element(c.sel)
}

// Box returns the rotated box of id in document units.
func (c *Controller) Box(id string) (vector.Box, bool) {
	el, ok := c.doc.Element(id)
	if !ok {
		return vector.Box{}, false
	}
	return c.renderer.Box(el, c.ctx), true
}

// HitTest returns the topmost element containing the document point p.
func (c *Controller) HitTest(p vector.Pt) (string, bool) {
	els := c.doc.Elements()
	for i := len(els) - 1; i >= 0; i-- {
		if c.renderer.Box(els[i], c.ctx).Contains(p) {
			return els[i].Common().ID, true
		}
	}
	return "", false
}

func (c *Controller) knob() float64   { return KnobDistance / c.vp.Zoom }
func (c *Controller) radius() float64 { return HandleRadius / c.vp.Zoom }

// PointerDown handles a press at screen position (sx, sy).
func (c *Controller) PointerDown(sx, sy float64, _ Modifiers) {
	p := c.vp.ToDoc(sx, sy)
	if c.state == EditingText {
		c.state = Selected
	}
	if el, ok := c.selected(); ok && !el.Common().Locked {
		box := c.renderer.Box(el, c.ctx)
		if h := box.HitHandle(p, c.radius(), c.knob()); h != vector.HandleNone {
			c.beginGesture()
			c.state = Transforming
			c.handle = h
			c.orig = box
			if t, ok := el.(*document.Text); ok {
				c.origFont = t.FontSize
			}
			return
		}
	}
	id, ok := c.HitTest(p)
	if !ok {
		c.Deselect()
		return
	}
	if id != c.sel || c.state != Selected {
		c.Select(id)
	}
	el, _ := c.doc.Element(id)
	if el.Common().Locked {
		return
	}
	b := el.Common()
	c.beginGesture()
	c.grab = vector.Pt{X: p.X - b.X, Y: p.Y - b.Y}
	c.state = Dragging
}

// PointerMove handles pointer motion at screen position (sx, sy).
func (c *Controller) PointerMove(sx, sy float64, mods Modifiers) {
	p := c.vp.ToDoc(sx, sy)
	switch c.state {
	case Dragging:
		c.drag(p)
	case Transforming:
		if c.handle == vector.HandleRotate {
			c.rotate(p, mods.Shift)
		} else {
			c.resize(p)
		}
	}
}

// PointerUp ends a drag or transform.
func (c *Controller) PointerUp(_, _ float64) {
	if c.state == Dragging || c.state == Transforming {
		c.state = Selected
		c.endGesture()
		c.changed()
	}
}

// Wheel zooms the viewport.
func (c *Controller) Wheel(deltaY float64) {
	c.vp.OnWheel(deltaY)
	c.changed()
}

func (c *Controller) drag(p vector.Pt) {
	el, ok := c.selected()
	if !ok {
		return
	}
	x, y := c.vp.Snap(p.X-c.grab.X, p.Y-c.grab.Y)
	c.guides = nil
	if c.vp.GuidesActive() {
		box := c.renderer.Box(el, c.ctx)
		box.X, box.Y = x, y
		r := box.AABB()
		snapped, gs := vector.ComputeSmartGuides(r, []vector.Anchor{vector.CanvasCentre(c.doc.Width, c.doc.Height)},
			vector.SnapOptions{Threshold: GuideThreshold, SnapToEdges: true, SnapToCenters: true})
		x += snapped.X - r.X
		y += snapped.Y - r.Y
		c.guides = vector.ExtendGuides(gs, c.doc.Width, c.doc.Height)
	}
	b := el.Common()
	if x == b.X && y == b.Y {
		return
	}
	c.commit(document.Patch{"x": x, "y": y})
}

func (c *Controller) resize(p vector.Pt) {
	el, ok := c.selected()
	if !ok {
		return
	}
	nb := c.orig.Resize(c.handle, p)
	if nb.W < document.MinSize || nb.H < document.MinSize {
		// Keep the last accepted box.
		return
	}
	patch := document.Patch{"x": nb.X, "y": nb.Y, "width": nb.W}
	if _, isText := el.(*document.Text); isText {
		if c.orig.H > 0 && c.origFont > 0 {
			patch["fontSize"] = c.origFont * nb.H / c.orig.H
		}
	} else {
		patch["height"] = nb.H
	}
	c.commit(patch)
}

func (c *Controller) rotate(p vector.Pt, snap bool) {
	deg := vector.AngleFrom(c.orig.Center(), p)
	if snap {
		deg = vector.SnapAngle(deg, RotationStep)
	}
	nb := c.orig.RotateTo(vector.NormalizeDeg(deg))
	c.commit(document.Patch{"x": nb.X, "y": nb.Y, "rotation": nb.Rotation})
}

// beginGesture captures the pre-gesture state; it is pushed to the history
// on the first committed change so a whole gesture undoes in one step.
func (c *Controller) beginGesture() {
	c.before = c.snapshot()
}

func (c *Controller) snapshot() []byte {
	b, err := json.Marshal(c.doc)
	if err != nil {
		c.log.Error("snapshot failed", slog.Any("err", err))
		return nil
	}
	return b
}

// checkpoint records the state before a discrete change.
func (c *Controller) checkpoint() {
	if b := c.snapshot(); b != nil {
		c.history.Push(undo.Snapshot{Key: c.key, Blob: b, TS: c.now()})
	}
}

// commit applies p to the selection, recording history.
func (c *Controller) commit(p document.Patch) bool {
	if c.before != nil {
		c.history.Push(undo.Snapshot{Key: c.key, Blob: c.before, TS: c.now()})
		c.before = nil
	} else if c.state != Dragging && c.state != Transforming {
		c.checkpoint()
	}
	if !c.doc.UpdateElement(c.sel, p) {
		return false
	}
	c.mutated()
	return true
}

// mutated marks a document change.
func (c *Controller) mutated() {
	c.revision++
	c.changed()
}

// changed notifies the host of a document, selection or view change.
func (c *Controller) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}

// Key handles one key press and reports whether it was consumed.
func (c *Controller) Key(ev KeyEvent) bool {
	if ev.Ctrl {
		return c.command(ev)
	}
	switch c.state {
	case EditingText:
		return c.editKey(ev)
	case Selected:
		return c.selectedKey(ev)
	}
	return false
}

func (c *Controller) command(ev KeyEvent) bool {
	if ev.Key != KeyRune {
		return false
	}
	switch unicode.ToLower(ev.Rune) {
	case 'z':
		if ev.Shift {
			return c.Redo()
		}
		return c.Undo()
	case 'y':
		return c.Redo()
	case 'd':
		return c.Duplicate() != ""
	case ']':
		return c.Reorder(document.Forward)
	case '[':
		return c.Reorder(document.Backward)
	case 'l':
		el, ok := c.selected()
		return ok && c.SetLocked(!el.Common().Locked)
	}
	return false
}

func (c *Controller) selectedKey(ev KeyEvent) bool {
	el, ok := c.selected()
	if !ok {
		return false
	}
	if ev.Key == KeyEscape {
		c.Deselect()
		return true
	}
	if el.Common().Locked {
		return false
	}
	step := NudgeStep
	if ev.Shift {
		step = NudgeStepLarge
	}
	switch ev.Key {
	case KeyUp:
		return c.Nudge(0, -step)
	case KeyDown:
		return c.Nudge(0, step)
	case KeyLeft:
		return c.Nudge(-step, 0)
	case KeyRight:
		return c.Nudge(step, 0)
	case KeyDelete, KeyBackspace:
		return c.Remove()
	case KeyEnter:
		return c.BeginTextEdit()
	case KeyRune:
		if !unicode.IsPrint(ev.Rune) || !c.BeginTextEdit() {
			return false
		}
		return c.editKey(ev)
	}
	return false
}

// BeginTextEdit enters inline text editing for a selected, unlocked Text.
func (c *Controller) BeginTextEdit() bool {
	el, ok := c.selected()
	if !ok || el.Common().Locked {
		return false
	}
	if _, isText := el.(*document.Text); !isText {
		return false
	}
	c.state = EditingText
	c.changed()
	return true
}

// EndTextEdit leaves inline text editing.
func (c *Controller) EndTextEdit() {
	if c.state == EditingText {
		c.state = Selected
		c.changed()
	}
}

func (c *Controller) editKey(ev KeyEvent) bool {
	el, ok := c.selected()
	if !ok {
		return false
	}
	t, ok := el.(*document.Text)
	if !ok {
		c.state = Selected
		return false
	}
	switch ev.Key {
	case KeyEnter, KeyEscape:
		c.EndTextEdit()
		return true
	case KeyBackspace:
		if t.Text == "" {
			return true
		}
		_, n := utf8.DecodeLastRuneInString(t.Text)
		return c.commit(document.Patch{"text": t.Text[:len(t.Text)-n]})
	case KeyRune:
		if !unicode.IsPrint(ev.Rune) {
			return false
		}
		return c.commit(document.Patch{"text": t.Text + string(ev.Rune)})
	}
	return false
}

// Nudge moves the selection by (dx, dy) document units.
func (c *Controller) Nudge(dx, dy float64) bool {
	el, ok := c.selected()
	if !ok || el.Common().Locked {
		return false
	}
	b := el.Common()
	return c.commit(document.Patch{"x": b.X + dx, "y": b.Y + dy})
}

// Add creates an element, selects it and returns its id.
func (c *Controller) Add(kind document.Kind, defaults document.Patch) string {
	c.checkpoint()
	id := c.doc.AddElement(kind, defaults)
	c.revision++
	c.Select(id)
	return id
}

// Set applies per-variant field changes to the selection. Fields the
// variant does not have are ignored.
func (c *Controller) Set(p document.Patch) bool {
	if _, ok := c.selected(); !ok || len(p) == 0 {
		return false
	}
	return c.commit(p)
}

// ApplyTextStyle copies a named text preset onto the selected Text element.
func (c *Controller) ApplyTextStyle(name string) bool {
	el, ok := c.selected()
	if !ok || el.Kind() != document.KindText {
		return false
	}
	st, ok := textlayout.GetStyle(name)
	if !ok {
		return false
	}
	weight, style := "normal", "normal"
	if st.Bold {
		weight = "bold"
	}
	if st.Italic {
		style = "italic"
	}
	return c.commit(document.Patch{
		"fontFamily":    st.Family,
		"fontSize":      st.Size,
		"fontWeight":    weight,
		"fontStyle":     style,
		"letterSpacing": st.LetterSpacing,
		"lineHeight":    st.LineHeight,
	})
}

// SetLocked locks or unlocks the selection.
func (c *Controller) SetLocked(locked bool) bool {
	el, ok := c.selected()
	if !ok || el.Common().Locked == locked {
		return false
	}
	return c.commit(document.Patch{"locked": locked})
}

// Remove deletes the selection and returns to Idle.
func (c *Controller) Remove() bool {
	if _, ok := c.selected(); !ok {
		return false
	}
	c.checkpoint()
	c.doc.RemoveElement(c.sel)
	c.toIdle()
	c.mutated()
	return true
}

// Duplicate copies the selection, selects the copy and returns its id.
func (c *Controller) Duplicate() string {
	if _, ok := c.selected(); !ok {
		return ""
	}
	c.checkpoint()
	id := c.doc.Duplicate(c.sel)
	if id == "" {
		return ""
	}
	c.revision++
	c.Select(id)
	return id
}

// Reorder moves the selection one step forward or backward in paint order.
func (c *Controller) Reorder(dir document.Direction) bool {
	if _, ok := c.selected(); !ok {
		return false
	}
	i, n := c.doc.Index(c.sel), c.doc.Len()
	if (dir == document.Forward && i == n-1) || (dir == document.Backward && i == 0) {
		return false
	}
	c.checkpoint()
	c.doc.Reorder(c.sel, dir)
	c.mutated()
	return true
}

// SetBackground sets the solid fill or image background.
func (c *Controller) SetBackground(bg document.Background) {
	c.checkpoint()
	c.doc.SetBackground(bg)
	c.mutated()
}

// ClearBackground removes the background.
func (c *Controller) ClearBackground() {
	if _, ok := c.doc.Background(); !ok {
		return
	}
	c.checkpoint()
	c.doc.ClearBackground()
	c.mutated()
}

// Undo restores the state before the last change.
func (c *Controller) Undo() bool {
	return c.travel(c.history.Undo)
}

// Redo re-applies the last undone change.
func (c *Controller) Redo() bool {
	return c.travel(c.history.Redo)
}

func (c *Controller) travel(step func(undo.Snapshot) (undo.Snapshot, bool)) bool {
	if c.state == Dragging || c.state == Transforming {
		return false
	}
	cur := c.snapshot()
	if cur == nil {
		return false
	}
	s, ok := step(undo.Snapshot{Key: c.key, Blob: cur, TS: c.now()})
	if !ok {
		return false
	}
	if err := c.doc.Restore(s.Blob); err != nil {
		c.log.Error("restore failed", slog.Any("err", err))
		return false
	}
	if _, ok := c.doc.Element(c.sel); c.sel != "" && !ok {
		c.toIdle()
	} else if c.state == EditingText {
		c.state = Selected
	}
	c.mutated()
	return true
}

// CanUndo reports whether Undo would do anything.
func (c *Controller) CanUndo() bool { return c.history.CanUndo(c.key) }

// CanRedo reports whether Redo would do anything.
func (c *Controller) CanRedo() bool { return c.history.CanRedo(c.key) }

// Overlay describes the editing chrome for the raster overlay at the current
// zoom.
func (c *Controller) Overlay() render.Overlay {
	ov := render.Overlay{
		Scale:      c.vp.Zoom,
		Knob:       c.knob(),
		HandleSize: 2 * HandleRadius,
		Guides:     c.guides,
		Editing:    c.state == EditingText,
	}
	ov.GridXs, ov.GridYs = c.vp.GridLines(c.doc.Width, c.doc.Height)
	if box, ok := c.Box(c.sel); ok {
		ov.Selection = &box
	}
	return ov
}
