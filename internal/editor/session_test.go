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
	"context"
	"errors"
	"sync"
	"testing"

	"certstudio/internal/document"
	"certstudio/internal/storage"
)

// flaky wraps a Memory gateway and fails the named operations.
type flaky struct {
	*storage.Memory
	mu   sync.Mutex
	fail map[Op]bool
}

var errBoom = errors.New("backend unavailable")

func newFlaky() *flaky { return &flaky{Memory: storage.NewMemory(), fail: map[Op]bool{}} }

func (f *flaky) set(op Op, v bool) {
	f.mu.Lock()
	f.fail[op] = v
	f.mu.Unlock()
}

func (f *flaky) failing(op Op) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail[op]
}

func (f *flaky) List(ctx context.Context) ([]document.Template, error) {
	if f.failing(OpList) {
		return nil, errBoom
	}
	return f.Memory.List(ctx)
}

func (f *flaky) Update(ctx context.Context, id string, t document.Template) error {
	if f.failing(OpSave) {
		return errBoom
	}
	return f.Memory.Update(ctx, id, t)
}

func (f *flaky) Create(ctx context.Context, t document.Template) (string, error) {
	if f.failing(OpSave) {
		return "", errBoom
	}
	return f.Memory.Create(ctx, t)
}

func (f *flaky) Delete(ctx context.Context, id string) error {
	if f.failing(OpDelete) {
		return errBoom
	}
	return f.Memory.Delete(ctx, id)
}

func (f *flaky) Duplicate(ctx context.Context, id string) (string, error) {
	if f.failing(OpDuplicate) {
		return "", errBoom
	}
	return f.Memory.Duplicate(ctx, id)
}

func (f *flaky) Get(ctx context.Context, id string) (document.Template, error) {
	if f.failing(OpLoad) {
		return document.Template{}, errBoom
	}
	return f.Memory.Get(ctx, id)
}

func newSession(t *testing.T) (*Session, *flaky) {
	t.Helper()
	gw := newFlaky()
	s := NewSession(gw, New(nil, Options{}))
	return s, gw
}

func TestSessionSaveCreatesThenUpdates(t *testing.T) {
	s, _ := newSession(t)
	ctx := context.Background()
	s.Rename("Workshop")
	if err := s.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	cur := s.Current()
	if cur.ID == "" {
		t.Fatalf("no id after first save")
	}
	if list := s.Templates(); len(list) != 1 || list[0].ID != cur.ID || list[0].Name != "Workshop" {
		t.Fatalf("gallery after save = %+v", list)
	}
	s.Controller().Select("text-1")
	s.Controller().Nudge(10, 0)
	if !s.Dirty() {
		t.Fatalf("edit not marked dirty")
	}
	if err := s.Save(ctx); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if s.Dirty() {
		t.Fatalf("dirty after save")
	}
	list := s.Templates()
	if len(list) != 1 {
		t.Fatalf("second save created a new record: %d", len(list))
	}
	el, _ := list[0].Doc.Element("text-1")
	if el.Common().X != 264 {
		t.Fatalf("stored x = %v", el.Common().X)
	}
}

func TestSessionFailedSaveKeepsEdits(t *testing.T) {
	s, gw := newSession(t)
	ctx := context.Background()
	if err := s.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	gw.set(OpSave, true)
	s.Controller().Select("text-2")
	s.Controller().Set(document.Patch{"text": "Awarded to {name}"})
	if err := s.Save(ctx); !errors.Is(err, errBoom) {
		t.Fatalf("save err = %v", err)
	}
	if s.Err(OpSave) == nil {
		t.Fatalf("save error not scoped")
	}
	if s.Err(OpLoad) != nil || s.Err(OpDelete) != nil {
		t.Fatalf("error leaked to other operations")
	}
	el, _ := s.Controller().Document().Element("text-2")
	if el.(*document.Text).Text != "Awarded to {name}" || !s.Dirty() {
		t.Fatalf("local edit lost after failed save")
	}
	gw.set(OpSave, false)
	if err := s.Save(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if s.Err(OpSave) != nil {
		t.Fatalf("error not cleared by successful retry")
	}
	stored, _ := gw.Memory.Get(ctx, s.Current().ID)
	el, _ = stored.Doc.Element("text-2")
	if el.(*document.Text).Text != "Awarded to {name}" {
		t.Fatalf("retry did not store the edit")
	}
}

func TestSessionLoadFailureKeepsDocument(t *testing.T) {
	s, gw := newSession(t)
	ctx := context.Background()
	id, _ := gw.Memory.Create(ctx, document.Template{Name: "Stored", Doc: document.New(0, 0)})
	s.Controller().Select("text-1")
	s.Controller().Nudge(2, 0)
	before := s.Controller().Document().Clone()

	gw.set(OpLoad, true)
	if err := s.Load(ctx, id); err == nil {
		t.Fatalf("expected load error")
	}
	if s.Err(OpLoad) == nil || s.Loading() {
		t.Fatalf("load error state wrong")
	}
	if s.Controller().Document().Len() != before.Len() {
		t.Fatalf("failed load replaced the document")
	}

	gw.set(OpLoad, false)
	if err := s.Load(ctx, id); err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Controller().Document().Len() != 0 || s.Current().Name != "Stored" || s.Controller().State() != Idle {
		t.Fatalf("load did not replace state")
	}
	if s.Dirty() {
		t.Fatalf("freshly loaded document is dirty")
	}
	if err := s.Load(ctx, "missing"); !IsNotFound(err) {
		t.Fatalf("missing load err = %v", err)
	}
}

func TestSessionDuplicateAndDelete(t *testing.T) {
	s, gw := newSession(t)
	ctx := context.Background()
	s.Rename("Base")
	if err := s.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	id := s.Current().ID

	gw.set(OpDuplicate, true)
	if _, err := s.Duplicate(ctx, id); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if n := len(s.Templates()); n != 1 {
		t.Fatalf("optimistic copy not rolled back: %d", n)
	}
	gw.set(OpDuplicate, false)
	cp, err := s.Duplicate(ctx, id)
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	list := s.Templates()
	if len(list) != 2 || list[1].ID != cp || list[1].Name != "Base (Copy)" {
		t.Fatalf("gallery after duplicate = %+v", list)
	}

	gw.set(OpDelete, true)
	if err := s.Delete(ctx, cp); err == nil {
		t.Fatalf("expected delete error")
	}
	if len(s.Templates()) != 2 {
		t.Fatalf("failed delete not rolled back")
	}
	gw.set(OpDelete, false)
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if list := s.Templates(); len(list) != 1 || list[0].ID != cp {
		t.Fatalf("gallery after delete = %+v", list)
	}
	if s.Current().ID != "" || s.Controller().Document().Len() != 3 {
		t.Fatalf("deleting the open template should start a new one")
	}
}

func TestSessionRefreshFailureKeepsGallery(t *testing.T) {
	s, gw := newSession(t)
	ctx := context.Background()
	_ = s.Save(ctx)
	gw.set(OpList, true)
	if err := s.Refresh(ctx); err == nil {
		t.Fatalf("expected list error")
	}
	if len(s.Templates()) != 1 || s.Err(OpList) == nil {
		t.Fatalf("gallery or error state wrong")
	}
}

func TestSessionSaveAsync(t *testing.T) {
	s, gw := newSession(t)
	ctx := context.Background()
	if err := s.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Controller().Select("text-3")
	s.Controller().Nudge(0, 2)
	if err := <-s.SaveAsync(ctx); err != nil {
		t.Fatalf("async save: %v", err)
	}
	stored, _ := gw.Memory.Get(ctx, s.Current().ID)
	el, _ := stored.Doc.Element("text-3")
	if el.Common().Y != 1362 {
		t.Fatalf("stored y = %v", el.Common().Y)
	}
}

func TestSessionRestoreSavesUnderOriginalID(t *testing.T) {
	s, gw := newSession(t)
	ctx := context.Background()
	doc := document.Starter()
	doc.UpdateElement("text-1", document.Patch{"text": "Recovered"})
	id, err := gw.Create(ctx, document.Template{Name: "Lost", Doc: document.Starter()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	s.Restore(document.Template{ID: id, Name: "Lost", Doc: doc})
	if !s.Dirty() {
		t.Fatalf("restored document should be unsaved")
	}
	if got := s.Current(); got.ID != id || got.Name != "Lost" {
		t.Fatalf("current = %q %q", got.ID, got.Name)
	}
	if err := s.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	list := s.Templates()
	if len(list) != 1 {
		t.Fatalf("restore save created a record: %d", len(list))
	}
	el, _ := list[0].Doc.Element("text-1")
	if el.(*document.Text).Text != "Recovered" {
		t.Fatalf("stored text = %q", el.(*document.Text).Text)
	}
}

// gated holds Create until release is closed.
type gated struct {
	*storage.Memory
	entered chan struct{}
	release chan struct{}
}

func (g *gated) Create(ctx context.Context, t document.Template) (string, error) {
	close(g.entered)
	<-g.release
	return g.Memory.Create(ctx, t)
}

func TestSessionNewDuringSaveKeepsTemplatesApart(t *testing.T) {
	gw := &gated{Memory: storage.NewMemory(), entered: make(chan struct{}), release: make(chan struct{})}
	s := NewSession(gw, New(nil, Options{}))
	ctx := context.Background()

	s.New("First")
	done := s.SaveAsync(ctx)
	<-gw.entered
	s.New("Second")
	close(gw.release)
	if err := <-done; err != nil {
		t.Fatalf("first save: %v", err)
	}
	if id := s.Current().ID; id != "" {
		t.Fatalf("second template took id %q from the first", id)
	}

	gw.release = make(chan struct{})
	gw.entered = make(chan struct{})
	close(gw.release)
	if err := s.Save(ctx); err != nil {
		t.Fatalf("second save: %v", err)
	}
	list, err := gw.Memory.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("stored records = %d, want 2", len(list))
	}
	names := map[string]bool{}
	for _, tpl := range list {
		names[tpl.Name] = true
	}
	if !names["First"] || !names["Second"] {
		t.Fatalf("stored names = %v", names)
	}
}

func TestSessionDuplicateListFailureDropsOptimisticCopy(t *testing.T) {
	s, gw := newSession(t)
	ctx := context.Background()
	s.Rename("Base")
	if err := s.Save(ctx); err != nil {
		t.Fatalf("save: %v", err)
	}
	gw.set(OpList, true)
	if _, err := s.Duplicate(ctx, s.Current().ID); err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	for _, tpl := range s.Templates() {
		if tpl.ID == "" {
			t.Fatalf("optimistic copy left in gallery: %+v", s.Templates())
		}
	}
	gw.set(OpList, false)
	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if n := len(s.Templates()); n != 2 {
		t.Fatalf("gallery after refresh = %d, want 2", n)
	}
}
