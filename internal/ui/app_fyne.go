//go:build fyne && cgo

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
	"context"
	"fmt"
	"image"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"certstudio/internal/backend"
	"certstudio/internal/config"
	"certstudio/internal/crash"
	"certstudio/internal/document"
	"certstudio/internal/editor"
	"certstudio/internal/export"
	"certstudio/internal/imagecache"
	applog "certstudio/internal/log"
	"certstudio/internal/placeholder"
	"certstudio/internal/render"
	"certstudio/internal/storage"
	"certstudio/internal/textlayout"
	"certstudio/internal/undo"
	"certstudio/internal/version"
)

// gatewayTimeout bounds one gateway call made from the UI.
const gatewayTimeout = 30 * time.Second

// Run starts the Fyne-based desktop editor: a template gallery on the left, the
// editing canvas in the middle and the properties of the selection on the right.
// openID, when set, is opened instead of the most recent template.
func Run(cfg config.AppConfig, token, openID string) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	gw, err := backend.OpenGateway(context.Background(), cfg, token)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer gw.Close()
	thumbs, err := storage.OpenThumbs(gw, cfg)
	if err != nil {
		l.Warn("thumbnail cache unavailable", slog.Any("err", err))
		thumbs = nil
	} else {
		defer thumbs.Close()
	}

	fyneApp := app.NewWithID("certstudio")
	switch cfg.General.Theme {
	case "dark":
		fyneApp.Settings().SetTheme(theme.DarkTheme())
	case "light":
		fyneApp.Settings().SetTheme(theme.LightTheme())
	}
	w := fyneApp.NewWindow("CertStudio")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1400)
	winH := prefs.IntWithFallback("window.height", 860)
	if winW < 900 {
		winW = 900
	}
	if winH < 600 {
		winH = 600
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	var ec *EditorCanvas
	renderer, images := render.FromConfig(cfg.Render, cfg.ResolvedDataDir(), func(string, imagecache.State) {
		fyne.Do(func() {
			if ec != nil {
				ec.Refresh()
			}
		})
	})
	router := editor.NewRouter()
	var onChange func()
	ctl := editor.New(nil, editor.Options{
		Renderer: renderer,
		Router:   router,
		History: undo.NewManager(undo.Config{
			MaxBytes:    32 * 1024 * 1024,
			MaxPerKey:   50,
			MinInterval: 250 * time.Millisecond,
		}),
		OnChange: func() {
			if onChange != nil {
				onChange()
			}
		},
	})
	ctl.Viewport().ShowGrid = prefs.BoolWithFallback("view.grid", false)
	ctl.Viewport().SnapToGrid = prefs.BoolWithFallback("view.snap", true)
	ctl.Viewport().SmartGuides = prefs.BoolWithFallback("view.guides", true)
	sess := editor.NewSession(gw, ctl)
	defer crash.Recover(cfg.ResolvedDataDir(), sess)

	ec = NewEditorCanvas(ctl, router)
	status := widget.NewLabel("Ready")

	gatewayCtx := func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), gatewayTimeout)
	}

	// Gallery (left)
	var gallery []document.Template
	thumbImgs := map[string]image.Image{}
	thumbBusy := map[string]bool{}
	thumbKey := func(t document.Template) string { return t.ID + "@" + t.UpdatedAt.UTC().Format(time.RFC3339Nano) }
	thumbWidth := cfg.Render.ThumbnailWidth
	if thumbWidth <= 0 {
		thumbWidth = render.ThumbnailWidth
	}
	var galleryList *widget.List
	requestThumb := func(t document.Template) {
		key := thumbKey(t)
		if thumbBusy[key] || t.Doc == nil {
			return
		}
		thumbBusy[key] = true
		go func() {
			ctx, cancel := gatewayCtx()
			defer cancel()
			img, err := galleryThumbnail(ctx, renderer, images, thumbs, t, thumbWidth)
			fyne.Do(func() {
				delete(thumbBusy, key)
				if err != nil {
					l.Warn("gallery thumbnail failed", slog.String("id", t.ID), slog.Any("err", err))
					return
				}
				thumbImgs[key] = img
				galleryList.Refresh()
			})
		}()
	}
	galleryList = widget.NewList(
		func() int { return len(gallery) },
		func() fyne.CanvasObject {
			img := canvas.NewImageFromImage(nil)
			img.FillMode = canvas.ImageFillContain
			img.SetMinSize(fyne.NewSize(120, 85))
			return container.NewBorder(nil, nil, img, nil, container.NewVBox(widget.NewLabel(""), widget.NewLabel("")))
		},
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i < 0 || int(i) >= len(gallery) {
				return
			}
			t := gallery[i]
			row := o.(*fyne.Container)
			labels := row.Objects[0].(*fyne.Container)
			img := row.Objects[1].(*canvas.Image)
			name := t.Name
			if t.ID == "" {
				name += " (saving…)"
			}
			labels.Objects[0].(*widget.Label).SetText(name)
			labels.Objects[1].(*widget.Label).SetText(t.UpdatedAt.Local().Format("2006-01-02 15:04"))
			if pic, ok := thumbImgs[thumbKey(t)]; ok {
				img.Image = pic
			} else {
				img.Image = nil
				if t.ID != "" {
					requestThumb(t)
				}
			}
			img.Refresh()
		},
	)
	refreshGallery := func() {
		gallery = sess.Templates()
		galleryList.UnselectAll()
		galleryList.Refresh()
	}
	reloadGallery := func() {
		go func() {
			ctx, cancel := gatewayCtx()
			defer cancel()
			err := sess.Refresh(ctx)
			fyne.Do(func() {
				if err != nil {
					l.Error("list templates failed", slog.Any("err", err))
				}
				refreshGallery()
				onChange()
			})
		}()
	}

	// Properties (right)
	nameEntry := widget.NewEntry()
	nameEntry.SetPlaceHolder("Template name")
	nameEntry.OnChanged = func(s string) {
		sess.Rename(s)
	}
	previewName := widget.NewEntry()
	previewCourse := widget.NewEntry()
	previewDate := widget.NewEntry()
	previewName.SetPlaceHolder(cfg.Render.FallbackName)
	previewCourse.SetPlaceHolder(cfg.Render.FallbackCourse)
	previewDate.SetPlaceHolder("YYYY-MM-DD")
	previewCtx := func() placeholder.Context {
		return placeholder.Context{Name: previewName.Text, Course: previewCourse.Text, Date: previewDate.Text}
	}
	for _, e := range []*widget.Entry{previewName, previewCourse, previewDate} {
		e.OnChanged = func(string) { ec.SetContext(previewCtx()) }
	}

	propsBox := container.NewVBox()
	lockCheck := widget.NewCheck("Locked", nil)
	propEntries := map[string]*widget.Entry{}
	shownSel := "\x00"
	syncing := false
	// syncProps refreshes the property values in place so an entry being typed
	// into keeps its focus; the form is rebuilt only when the selection changes.
	syncProps := func() {
		el, ok := ctl.Document().Element(ctl.Selection())
		if !ok {
			return
		}
		syncing = true
		defer func() { syncing = false }()
		focused := w.Canvas().Focused()
		for key, entry := range propEntries {
			if fyne.Focusable(entry) == focused {
				continue
			}
			if v := fieldValue(el, key); v != entry.Text {
				entry.SetText(v)
			}
		}
		lockCheck.SetChecked(el.Common().Locked)
	}
	rebuildProps := func() {
		sel := ctl.Selection()
		if sel == shownSel {
			syncProps()
			return
		}
		shownSel = sel
		propsBox.Objects = nil
		propEntries = map[string]*widget.Entry{}
		el, ok := ctl.Document().Element(sel)
		if !ok {
			propsBox.Add(widget.NewLabel("Nothing selected"))
			propsBox.Refresh()
			return
		}
		form := widget.NewForm()
		for _, f := range fieldsFor(el) {
			f := f
			var entry *widget.Entry
			if f.Multi {
				entry = widget.NewMultiLineEntry()
				entry.SetMinRowsVisible(3)
			} else {
				entry = widget.NewEntry()
			}
			apply := func(v string) {
				if syncing {
					return
				}
				p, err := fieldPatch(f.Key, v)
				if err != nil {
					status.SetText(err.Error())
					return
				}
				ctl.Set(p)
			}
			if f.Multi {
				entry.OnChanged = apply
			} else {
				entry.OnSubmitted = apply
			}
			propEntries[f.Key] = entry
			form.Append(f.Label, entry)
		}
		lockCheck.OnChanged = func(b bool) {
			if !syncing {
				ctl.SetLocked(b)
			}
		}
		syncProps()
		propsBox.Add(widget.NewLabelWithStyle(sel, fyne.TextAlignLeading, fyne.TextStyle{Bold: true}))
		propsBox.Add(form)
		propsBox.Add(lockCheck)
		propsBox.Add(container.NewGridWithColumns(2,
			widget.NewButtonWithIcon("Forward", theme.MoveUpIcon(), func() { ctl.Reorder(document.Forward) }),
			widget.NewButtonWithIcon("Backward", theme.MoveDownIcon(), func() { ctl.Reorder(document.Backward) }),
			widget.NewButtonWithIcon("Duplicate", theme.ContentCopyIcon(), func() { ctl.Duplicate() }),
			widget.NewButtonWithIcon("Delete", theme.DeleteIcon(), func() { ctl.Remove() }),
		))
		propsBox.Refresh()
	}

	onChange = func() {
		rebuildProps()
		cur := sess.Current()
		errs := []error{sess.Err(editor.OpList), sess.Err(editor.OpLoad), sess.Err(editor.OpSave), sess.Err(editor.OpDuplicate), sess.Err(editor.OpDelete)}
		dirty := sess.Dirty()
		status.SetText(statusLine(cur.Name, dirty, ctl.Viewport().Zoom, ctl.Selection(), errs))
		title := "CertStudio - " + cur.Name
		if dirty {
			title += " *"
		}
		w.SetTitle(title)
		ec.Refresh()
	}

	openTemplate := func(id string) {
		ctx, cancel := gatewayCtx()
		defer cancel()
		if err := sess.Load(ctx, id); err != nil {
			l.Error("open template failed", slog.String("id", id), slog.Any("err", err))
			if editor.IsNotFound(err) {
				removeRecentTemplate(prefs, id)
			}
			dialog.ShowError(err, w)
			onChange()
			return
		}
		addRecentTemplate(prefs, id)
		nameEntry.SetText(sess.Current().Name)
		ec.SetContext(previewCtx())
		ec.FitToView()
		onChange()
	}
	confirmDiscard := func(title string, next func()) {
		if !sess.Dirty() {
			next()
			return
		}
		dialog.ShowConfirm(title, "Discard unsaved changes to "+sess.Current().Name+"?", func(ok bool) {
			if ok {
				next()
			}
		}, w)
	}
	galleryList.OnSelected = func(i widget.ListItemID) {
		if i < 0 || int(i) >= len(gallery) || gallery[i].ID == "" {
			return
		}
		id := gallery[i].ID
		if id == sess.Current().ID {
			return
		}
		confirmDiscard("Open template", func() { openTemplate(id) })
	}

	saveTemplate := func() {
		ch := sess.SaveAsync(context.Background())
		status.SetText("Saving…")
		refreshGallery()
		go func() {
			err := <-ch
			fyne.Do(func() {
				if err != nil {
					l.Error("save failed", slog.Any("err", err))
					dialog.ShowError(err, w)
				} else {
					addRecentTemplate(prefs, sess.Current().ID)
				}
				refreshGallery()
				onChange()
			})
		}()
	}
	newTemplate := func() {
		confirmDiscard("New template", func() {
			sess.New("")
			nameEntry.SetText(sess.Current().Name)
			ec.FitToView()
			onChange()
		})
	}
	duplicateTemplate := func() {
		cur := sess.Current()
		if cur.ID == "" {
			dialog.ShowInformation("Duplicate", "Save the template first.", w)
			return
		}
		ctx, cancel := gatewayCtx()
		defer cancel()
		if _, err := sess.Duplicate(ctx, cur.ID); err != nil {
			dialog.ShowError(err, w)
		}
		refreshGallery()
		onChange()
	}
	deleteTemplate := func() {
		cur := sess.Current()
		if cur.ID == "" {
			return
		}
		dialog.ShowConfirm("Delete template", "Delete "+cur.Name+" permanently?", func(ok bool) {
			if !ok {
				return
			}
			ctx, cancel := gatewayCtx()
			defer cancel()
			if err := sess.Delete(ctx, cur.ID); err != nil {
				dialog.ShowError(err, w)
			} else {
				removeRecentTemplate(prefs, cur.ID)
				if thumbs != nil {
					_ = thumbs.Forget(ctx, cur.ID)
				}
				nameEntry.SetText(sess.Current().Name)
			}
			refreshGallery()
			onChange()
		}, w)
	}

	// Insert actions place new elements at the centre of the canvas.
	centre := func(wd, ht float64) document.Patch {
		d := ctl.Document()
		return document.Patch{"x": (d.Width - wd) / 2, "y": (d.Height - ht) / 2}
	}
	addText := func() {
		p := centre(1200, 0)
		p["width"] = 1200.0
		p["align"] = document.AlignCenter
		ctl.Add(document.KindText, p)
	}
	addShape := func(kind string) {
		p := centre(400, 240)
		p["shapeType"] = kind
		ctl.Add(document.KindShape, p)
	}
	pickImage := func(use func(src string)) {
		fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if rc == nil {
				return
			}
			defer rc.Close()
			data, err := readAllLimited(rc, cfg.Render.ImageFetchLimit)
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			mt := mime.TypeByExtension(strings.ToLower(rc.URI().Extension()))
			if mt == "" {
				mt = "image/png"
			}
			use(imagecache.EncodeDataURI(mt, data))
		}, w)
		fd.SetFilter(fstorage.NewExtensionFileFilter([]string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".bmp", ".tiff"}))
		fd.Show()
	}
	addImage := func() {
		pickImage(func(src string) {
			p := centre(800, 600)
			p["src"] = src
			p["width"], p["height"] = 800.0, 600.0
			ctl.Add(document.KindImage, p)
		})
	}
	setBackgroundImage := func() {
		pickImage(func(src string) {
			ctl.SetBackground(document.Background{Src: src})
		})
	}
	setBackgroundColour := func() {
		entry := widget.NewEntry()
		entry.SetPlaceHolder("#fdf6e3")
		if bg, ok := ctl.Document().Background(); ok && !bg.IsImage() {
			entry.SetText(bg.Fill)
		}
		dialog.ShowForm("Background colour", "Apply", "Cancel", []*widget.FormItem{widget.NewFormItem("Colour", entry)}, func(ok bool) {
			if !ok {
				return
			}
			if _, valid := document.ParseColor(entry.Text); !valid {
				dialog.ShowError(fmt.Errorf("%q is not a colour", entry.Text), w)
				return
			}
			ctl.SetBackground(document.Background{Fill: entry.Text})
		}, w)
	}

	// Export actions render the open document with the preview values.
	exportTo := func(ext string) {
		save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uc == nil {
				return
			}
			outPath := uc.URI().Path()
			_ = uc.Close()
			doc := ctl.Document().Clone()
			ctx, cancel := context.WithTimeout(context.Background(), thumbWait)
			_ = images.Wait(ctx, render.Sources(doc)...)
			cancel()
			// Run synchronously on the UI thread
			if err := export.ExportFile(outPath, renderer, doc, previewCtx(), 1); err != nil {
				dialog.ShowError(err, w)
				return
			}
			l.Info("exported", slog.String("path", outPath))
			dialog.ShowInformation("Export", "Exported to "+outPath, w)
		}, w)
		save.SetFileName(fileStem(sess.Current().Name) + ext)
		save.SetFilter(fstorage.NewExtensionFileFilter([]string{ext}))
		save.Show()
	}
	mailMerge := func() {
		open := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if rc == nil {
				return
			}
			recipients, err := export.ReadRecipients(rc)
			_ = rc.Close()
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			format := widget.NewSelect([]string{"png", "pdf"}, nil)
			format.SetSelected("pdf")
			dialog.ShowForm("Mail merge", "Choose output…", "Cancel", []*widget.FormItem{
				widget.NewFormItem("Recipients", widget.NewLabel(fmt.Sprintf("%d", len(recipients)))),
				widget.NewFormItem("Format", format),
			}, func(ok bool) {
				if !ok {
					return
				}
				save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
					if err != nil || uc == nil {
						if err != nil {
							dialog.ShowError(err, w)
						}
						return
					}
					outPath := uc.URI().Path()
					_ = uc.Close()
					doc := ctl.Document().Clone()
					bar := widget.NewProgressBar()
					prog := dialog.NewCustomWithoutButtons("Merging…", bar, w)
					prog.Show()
					go func() {
						ctx := context.Background()
						wctx, cancel := context.WithTimeout(ctx, thumbWait)
						_ = images.Wait(wctx, render.Sources(doc)...)
						cancel()
						err := export.MergeFile(ctx, outPath, renderer, doc, recipients, export.MergeOptions{
							Format: format.Selected,
							Progress: func(done, total int) {
								fyne.Do(func() { bar.SetValue(float64(done) / float64(total)) })
							},
						})
						fyne.Do(func() {
							prog.Hide()
							if err != nil {
								dialog.ShowError(err, w)
								return
							}
							dialog.ShowInformation("Mail merge", fmt.Sprintf("Wrote %d certificates to %s", len(recipients), outPath), w)
						})
					}()
				}, w)
				save.SetFileName(fileStem(sess.Current().Name) + ".zip")
				save.SetFilter(fstorage.NewExtensionFileFilter([]string{".zip"}))
				save.Show()
			}, w)
		}, w)
		open.SetFilter(fstorage.NewExtensionFileFilter([]string{".csv"}))
		open.Show()
	}
	restoreAutosave := func() {
		path, err := crash.LatestAutosave(cfg.ResolvedDataDir())
		if err != nil || path == "" {
			dialog.ShowInformation("Restore", "No autosave found.", w)
			return
		}
		confirmDiscard("Restore autosave", func() {
			t, err := crash.LoadAutosave(path)
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			sess.Restore(t)
			nameEntry.SetText(sess.Current().Name)
			ec.FitToView()
			onChange()
			status.SetText("Restored " + filepath.Base(path))
		})
	}

	// View toggles
	gridCheck := widget.NewCheck("Grid", func(b bool) {
		ctl.Viewport().ShowGrid = b
		prefs.SetBool("view.grid", b)
		ec.Refresh()
	})
	gridCheck.SetChecked(ctl.Viewport().ShowGrid)
	snapCheck := widget.NewCheck("Snap", func(b bool) {
		ctl.Viewport().SnapToGrid = b
		prefs.SetBool("view.snap", b)
	})
	snapCheck.SetChecked(ctl.Viewport().SnapToGrid)
	guidesCheck := widget.NewCheck("Guides", func(b bool) {
		ctl.Viewport().SmartGuides = b
		prefs.SetBool("view.guides", b)
	})
	guidesCheck.SetChecked(ctl.Viewport().SmartGuides)
	zoomBy := func(f float64) {
		vp := ctl.Viewport()
		vp.SetZoom(vp.Zoom * f)
		onChange()
	}

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.DocumentCreateIcon(), newTemplate),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), saveTemplate),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentUndoIcon(), func() { ctl.Undo() }),
		widget.NewToolbarAction(theme.ContentRedoIcon(), func() { ctl.Redo() }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ZoomOutIcon(), func() { zoomBy(1 / 1.25) }),
		widget.NewToolbarAction(theme.ZoomFitIcon(), ec.FitToView),
		widget.NewToolbarAction(theme.ZoomInIcon(), func() { zoomBy(1.25) }),
	)
	styleSelect := widget.NewSelect(textlayout.ListStyles(), nil)
	styleSelect.PlaceHolder = "Text style"
	styleSelect.OnChanged = func(name string) {
		if name != "" && ctl.ApplyTextStyle(name) {
			styleSelect.ClearSelected()
		}
	}
	insertBar := container.NewHBox(
		widget.NewButtonWithIcon("Text", theme.ContentAddIcon(), addText),
		widget.NewButtonWithIcon("Image", theme.FileImageIcon(), addImage),
		widget.NewButton("Rectangle", func() { addShape(document.ShapeRect) }),
		widget.NewButton("Circle", func() { addShape(document.ShapeCircle) }),
		styleSelect,
		gridCheck, snapCheck, guidesCheck,
	)

	galleryPane := container.NewBorder(
		container.NewVBox(widget.NewLabelWithStyle("Templates", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
			container.NewGridWithColumns(3,
				widget.NewButtonWithIcon("", theme.ContentCopyIcon(), duplicateTemplate),
				widget.NewButtonWithIcon("", theme.DeleteIcon(), deleteTemplate),
				widget.NewButtonWithIcon("", theme.ViewRefreshIcon(), reloadGallery),
			)),
		nil, nil, nil, galleryList)
	rightPane := container.NewVScroll(container.NewVBox(
		widget.NewLabelWithStyle("Template", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		nameEntry,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Preview values", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewForm(
			widget.NewFormItem("Name", previewName),
			widget.NewFormItem("Course", previewCourse),
			widget.NewFormItem("Date", previewDate),
		),
		widget.NewSeparator(),
		propsBox,
	))
	centrePane := container.NewBorder(container.NewVBox(toolbar, insertBar), nil, nil, nil, ec)
	inner := container.NewHSplit(centrePane, rightPane)
	inner.Offset = 0.75
	outer := container.NewHSplit(galleryPane, inner)
	outer.Offset = 0.18
	w.SetContent(container.NewBorder(nil, status, nil, nil, outer))

	// Menus
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("New Template", newTemplate),
		fyne.NewMenuItem("Save", saveTemplate),
		fyne.NewMenuItem("Duplicate", duplicateTemplate),
		fyne.NewMenuItem("Delete…", deleteTemplate),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Restore Autosave…", restoreAutosave),
	)
	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Undo", func() { ctl.Undo() }),
		fyne.NewMenuItem("Redo", func() { ctl.Redo() }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Duplicate Element", func() { ctl.Duplicate() }),
		fyne.NewMenuItem("Delete Element", func() { ctl.Remove() }),
		fyne.NewMenuItem("Bring Forward", func() { ctl.Reorder(document.Forward) }),
		fyne.NewMenuItem("Send Backward", func() { ctl.Reorder(document.Backward) }),
	)
	insertMenu := fyne.NewMenu("Insert",
		fyne.NewMenuItem("Text", addText),
		fyne.NewMenuItem("Image…", addImage),
		fyne.NewMenuItem("Rectangle", func() { addShape(document.ShapeRect) }),
		fyne.NewMenuItem("Circle", func() { addShape(document.ShapeCircle) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Background Image…", setBackgroundImage),
		fyne.NewMenuItem("Background Colour…", setBackgroundColour),
		fyne.NewMenuItem("Clear Background", ctl.ClearBackground),
	)
	exportMenu := fyne.NewMenu("Export",
		fyne.NewMenuItem("PDF…", func() { exportTo(".pdf") }),
		fyne.NewMenuItem("PNG…", func() { exportTo(".png") }),
		fyne.NewMenuItem("SVG…", func() { exportTo(".svg") }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Mail Merge…", mailMerge),
	)
	aboutItem := fyne.NewMenuItem("About CertStudio", func() {
		exe, _ := os.Executable()
		info := fmt.Sprintf("CertStudio\nVersion: %s\nOS: %s\nArch: %s\nGo: %s\nExecutable: %s\nData Dir: %s\nStorage: %s",
			version.String(), runtime.GOOS, runtime.GOARCH, runtime.Version(), exe, cfg.ResolvedDataDir(), cfg.Storage.Kind)
		dialog.ShowInformation("Installation Environment", info, w)
	})
	w.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, insertMenu, exportMenu, fyne.NewMenu("About", aboutItem)))

	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { saveTemplate() })
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyN, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { newTemplate() })

	// Persist preferences on close
	w.SetCloseIntercept(func() {
		closeNow := func() {
			sz := w.Canvas().Size()
			prefs.SetInt("window.width", int(sz.Width))
			prefs.SetInt("window.height", int(sz.Height))
			ctl.Close()
			w.Close()
		}
		confirmDiscard("Quit", closeNow)
	})

	// Initial state: list the gallery, then open the requested or most recent template.
	ctx, cancel := gatewayCtx()
	if err := sess.Refresh(ctx); err != nil {
		l.Error("initial list failed", slog.Any("err", err))
	}
	cancel()
	refreshGallery()
	if openID == "" {
		openID, _ = firstRecent(prefs, gallery)
	}
	w.Canvas().Focus(ec)
	if openID != "" {
		openTemplate(openID)
	} else {
		onChange()
	}
	go func() {
		// Give the window a frame to lay out before fitting.
		time.Sleep(100 * time.Millisecond)
		fyne.Do(ec.FitToView)
	}()

	w.ShowAndRun()
	return nil
}
