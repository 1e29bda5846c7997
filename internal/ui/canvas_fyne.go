//go:build fyne

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"unicode"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"certstudio/internal/editor"
	"certstudio/internal/placeholder"
	"certstudio/internal/render"
)

var canvasBackground = color.NRGBA{R: 30, G: 30, B: 34, A: 255}

// EditorCanvas shows the document being edited and feeds pointer and keyboard
// input to its controller. Keyboard input goes through the window's router so
// only the mounted editor reacts.
type EditorCanvas struct {
	widget.BaseWidget

	ctl    *editor.Controller
	router *editor.Router
	ctx    placeholder.Context

	// OnChanged runs after every gesture or key that reached the controller.
	OnChanged func()

	shift   bool
	ctrl    bool
	panning bool
	last    fyne.Position
}

// NewEditorCanvas returns a canvas bound to ctl. A nil router delivers keys
// straight to ctl.
func NewEditorCanvas(ctl *editor.Controller, router *editor.Router) *EditorCanvas {
	e := &EditorCanvas{ctl: ctl, router: router}
	e.ExtendBaseWidget(e)
	return e
}

// SetContext changes the recipient values shown in text elements.
func (e *EditorCanvas) SetContext(ctx placeholder.Context) {
	e.ctx = ctx
	e.Refresh()
}

// CreateRenderer builds a raster that repaints the scene and overlay on demand.
func (e *EditorCanvas) CreateRenderer() fyne.WidgetRenderer {
	r := &editorCanvasRenderer{ec: e}
	r.raster = canvas.NewRaster(r.paint)
	return r
}

// MinSize keeps the editing area usable in small windows.
func (e *EditorCanvas) MinSize() fyne.Size { return fyne.NewSize(480, 360) }

// FitToView centres the document and zooms it to fit the current size.
func (e *EditorCanvas) FitToView() {
	sz := e.Size()
	doc := e.ctl.Document()
	if sz.Width <= 0 || sz.Height <= 0 {
		return
	}
	vp := e.ctl.Viewport()
	vp.SetZoom(render.FitScale(float64(sz.Width)*0.95, float64(sz.Height)*0.95, doc.Width, doc.Height))
	vp.OffsetX = (float64(sz.Width) - doc.Width*vp.Zoom) / 2
	vp.OffsetY = (float64(sz.Height) - doc.Height*vp.Zoom) / 2
	e.Refresh()
}

func (e *EditorCanvas) mods() editor.Modifiers { return editor.Modifiers{Shift: e.shift} }

// MouseDown starts a gesture; a press on empty canvas starts panning.
func (e *EditorCanvas) MouseDown(ev *desktop.MouseEvent) {
	e.requestFocus()
	e.shift = ev.Modifier&fyne.KeyModifierShift != 0
	e.last = ev.Position
	if ev.Button == desktop.MouseButtonSecondary {
		e.panning = true
		return
	}
	e.ctl.PointerDown(float64(ev.Position.X), float64(ev.Position.Y), e.mods())
	e.panning = e.ctl.State() == editor.Idle
	e.changed()
}

// MouseUp finishes the gesture.
func (e *EditorCanvas) MouseUp(ev *desktop.MouseEvent) {
	e.finish(ev.Position)
}

// Dragged moves, resizes or rotates the selection, or pans the view.
func (e *EditorCanvas) Dragged(ev *fyne.DragEvent) {
	if e.panning {
		e.ctl.Viewport().Pan(float64(ev.Dragged.DX), float64(ev.Dragged.DY))
		e.last = ev.Position
		e.Refresh()
		return
	}
	e.last = ev.Position
	e.ctl.PointerMove(float64(ev.Position.X), float64(ev.Position.Y), e.mods())
	e.Refresh()
}

// DragEnd finishes the gesture at the last drag position.
func (e *EditorCanvas) DragEnd() { e.finish(e.last) }

func (e *EditorCanvas) finish(pos fyne.Position) {
	if e.panning {
		e.panning = false
		return
	}
	before := e.ctl.State()
	e.ctl.PointerUp(float64(pos.X), float64(pos.Y))
	if before != e.ctl.State() {
		e.changed()
	}
}

// Scrolled zooms with the wheel.
func (e *EditorCanvas) Scrolled(ev *fyne.ScrollEvent) {
	// fyne reports wheel-up as positive DY; the viewport expects browser sign.
	e.ctl.Wheel(-float64(ev.Scrolled.DY) * 10)
	e.Refresh()
}

// FocusGained is part of fyne.Focusable.
func (e *EditorCanvas) FocusGained() {}

// FocusLost leaves inline text editing.
func (e *EditorCanvas) FocusLost() {
	e.shift, e.ctrl = false, false
	if e.ctl.State() == editor.EditingText {
		e.ctl.EndTextEdit()
		e.changed()
	}
}

// KeyDown tracks modifier state.
func (e *EditorCanvas) KeyDown(ev *fyne.KeyEvent) {
	switch ev.Name {
	case desktop.KeyShiftLeft, desktop.KeyShiftRight:
		e.shift = true
	case desktop.KeyControlLeft, desktop.KeyControlRight, desktop.KeySuperLeft, desktop.KeySuperRight:
		e.ctrl = true
	}
}

// KeyUp tracks modifier state.
func (e *EditorCanvas) KeyUp(ev *fyne.KeyEvent) {
	switch ev.Name {
	case desktop.KeyShiftLeft, desktop.KeyShiftRight:
		e.shift = false
	case desktop.KeyControlLeft, desktop.KeyControlRight, desktop.KeySuperLeft, desktop.KeySuperRight:
		e.ctrl = false
	}
}

// TypedKey maps named keys to editor keys.
func (e *EditorCanvas) TypedKey(ev *fyne.KeyEvent) {
	k, ok := keyMap[ev.Name]
	if !ok {
		return
	}
	e.dispatch(editor.KeyEvent{Key: k, Shift: e.shift})
}

// TypedRune feeds printable input to inline text editing.
func (e *EditorCanvas) TypedRune(r rune) {
	if e.ctrl {
		return
	}
	e.dispatch(editor.Rune(r))
}

// TypedShortcut turns Ctrl/Cmd chords into editor commands.
func (e *EditorCanvas) TypedShortcut(s fyne.Shortcut) {
	cs, ok := s.(*desktop.CustomShortcut)
	if !ok {
		return
	}
	if cs.Modifier&(fyne.KeyModifierControl|fyne.KeyModifierSuper) == 0 {
		return
	}
	name := string(cs.KeyName)
	if len([]rune(name)) != 1 {
		return
	}
	r := unicode.ToLower([]rune(strings.ToLower(name))[0])
	e.dispatch(editor.KeyEvent{Key: editor.KeyRune, Rune: r, Ctrl: true, Shift: cs.Modifier&fyne.KeyModifierShift != 0})
}

func (e *EditorCanvas) dispatch(ev editor.KeyEvent) {
	var used bool
	if e.router != nil {
		used = e.router.Dispatch(ev)
	} else {
		used = e.ctl.Key(ev)
	}
	if used {
		e.changed()
	}
}

func (e *EditorCanvas) changed() {
	e.Refresh()
	if e.OnChanged != nil {
		e.OnChanged()
	}
}

func (e *EditorCanvas) requestFocus() {
	a := fyne.CurrentApp()
	if a == nil {
		return
	}
	if c := a.Driver().CanvasForObject(e); c != nil {
		c.Focus(e)
	}
}

var keyMap = map[fyne.KeyName]editor.Key{
	fyne.KeyUp:        editor.KeyUp,
	fyne.KeyDown:      editor.KeyDown,
	fyne.KeyLeft:      editor.KeyLeft,
	fyne.KeyRight:     editor.KeyRight,
	fyne.KeyDelete:    editor.KeyDelete,
	fyne.KeyBackspace: editor.KeyBackspace,
	fyne.KeyReturn:    editor.KeyEnter,
	fyne.KeyEnter:     editor.KeyEnter,
	fyne.KeyEscape:    editor.KeyEscape,
}

// editorCanvasRenderer paints through a single raster sized to the widget.
type editorCanvasRenderer struct {
	ec     *EditorCanvas
	raster *canvas.Raster
}

func (r *editorCanvasRenderer) Destroy()                     {}
func (r *editorCanvasRenderer) Objects() []fyne.CanvasObject { return []fyne.CanvasObject{r.raster} }
func (r *editorCanvasRenderer) MinSize() fyne.Size           { return r.ec.MinSize() }
func (r *editorCanvasRenderer) Refresh()                     { canvas.Refresh(r.raster) }

func (r *editorCanvasRenderer) Layout(size fyne.Size) {
	r.raster.Resize(size)
	r.raster.Move(fyne.NewPos(0, 0))
}

// paint draws the document at the viewport zoom and offset, then the overlay.
// w and h are device pixels; the widget size is in fyne units.
func (r *editorCanvasRenderer) paint(w, h int) image.Image {
	return r.ec.frame(w, h)
}

func (e *EditorCanvas) frame(w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(canvasBackground), image.Point{}, draw.Src)
	ps := 1.0
	if sz := e.Size(); sz.Width > 0 {
		ps = float64(w) / float64(sz.Width)
	}
	vp := e.ctl.Viewport()
	rd := e.ctl.Renderer()
	page := rd.Draw(e.ctl.Document(), e.ctx, vp.Zoom*ps)
	ox, oy := int(vp.OffsetX*ps), int(vp.OffsetY*ps)
	draw.Draw(dst, page.Bounds().Add(image.Pt(ox, oy)), page, image.Point{}, draw.Over)

	ov := e.ctl.Overlay()
	ov.Scale *= ps
	ov.HandleSize *= ps
	ov.OriginX, ov.OriginY = float64(ox), float64(oy)
	render.DrawOverlay(dst, ov)
	return dst
}
