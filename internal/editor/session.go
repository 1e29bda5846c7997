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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"certstudio/internal/document"
	applog "certstudio/internal/log"
	"certstudio/internal/storage"
)

// Op names a gateway operation for error scoping.
type Op string

const (
	OpList      Op = "list"
	OpLoad      Op = "load"
	OpSave      Op = "save"
	OpDuplicate Op = "duplicate"
	OpDelete    Op = "delete"
)

// Session is the editor shell: it binds a Controller to a persistence
// gateway. Writes update the local gallery optimistically and re-list after
// success; a failed write leaves local edits alone and is reported through
// Err until the operation next succeeds.
//
// Document access goes through the Controller and belongs to the UI thread;
// the gallery list and error state are guarded for async completions.
type Session struct {
	gw  storage.Gateway
	ctl *Controller
	log *slog.Logger

	mu        sync.Mutex
	current   document.Template // identity of the open template; Doc unused
	savedRev  uint64
	templates []document.Template
	errs      map[Op]error
	loading   bool

	saveSeq  uint64
	lastDone uint64
	// gen counts documents opened by New, Load and Restore. A save only
	// touches the open template when it was started for the same one.
	gen uint64
}

// NewSession binds ctl to gw. The controller keeps whatever document it has.
func NewSession(gw storage.Gateway, ctl *Controller) *Session {
	return &Session{
		gw:      gw,
		ctl:     ctl,
		log:     applog.WithComponent("editor"),
		current: document.Template{Name: "Untitled"},
		errs:    map[Op]error{},
	}
}

// Controller returns the bound controller.
func (s *Session) Controller() *Controller { return s.ctl }

// Err returns the last failure of op, or nil once op has succeeded again.
func (s *Session) Err(op Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs[op]
}

func (s *Session) setErr(op Op, err error) {
	s.mu.Lock()
	if err == nil {
		delete(s.errs, op)
	} else {
		s.errs[op] = err
	}
	s.mu.Unlock()
	if err != nil {
		applog.WithOperation(s.log, string(op)).Warn("gateway operation failed", slog.Any("err", err))
	}
}

// Loading reports whether a Load is in flight.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Templates returns the gallery list as last known, including optimistic edits.
func (s *Session) Templates() []document.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]document.Template, len(s.templates))
	for i, t := range s.templates {
		out[i] = t.Clone()
	}
	return out
}

// Current returns the open template with a copy of the live document.
func (s *Session) Current() document.Template {
	s.mu.Lock()
	t := s.current
	s.mu.Unlock()
	t.Doc = s.ctl.Document().Clone()
	return t
}

// Rename changes the name used by the next save.
func (s *Session) Rename(name string) {
	s.mu.Lock()
	s.current.Name = name
	s.mu.Unlock()
}

// Dirty reports unsaved edits.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctl.Revision() != s.savedRev
}

// Refresh re-lists templates from the gateway.
func (s *Session) Refresh(ctx context.Context) error {
	list, err := s.gw.List(ctx)
	s.setErr(OpList, err)
	if err != nil {
		return fmt.Errorf("list templates: %w", err)
	}
	s.mu.Lock()
	s.templates = list
	s.mu.Unlock()
	return nil
}

// New opens a fresh starter document that is not yet stored.
func (s *Session) New(name string) {
	if name == "" {
		name = "Untitled"
	}
	s.mu.Lock()
	s.current = document.Template{Name: name}
	s.gen++
	s.mu.Unlock()
	s.ctl.Load(document.Starter(), "")
	s.markSaved()
}

// Load replaces the editor document with the stored template id. On failure
// the open document is untouched.
func (s *Session) Load(ctx context.Context, id string) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()
	t, err := storage.Lookup(ctx, s.gw, id)
	s.setErr(OpLoad, err)
	if err != nil {
		return fmt.Errorf("load %s: %w", id, err)
	}
	doc := t.Doc
	t.Doc = nil
	s.mu.Lock()
	s.current = t
	s.gen++
	s.mu.Unlock()
	s.ctl.Load(doc, t.ID)
	s.markSaved()
	return nil
}

// Restore opens t, typically a crash autosave, without reading the gateway.
// The document counts as unsaved; the next save writes it under t.ID, or
// creates it when t has no id.
func (s *Session) Restore(t document.Template) {
	doc := t.Doc
	t.Doc = nil
	if t.Name == "" {
		t.Name = "Untitled"
	}
	s.mu.Lock()
	s.current = t
	s.gen++
	s.mu.Unlock()
	s.ctl.Load(doc, t.ID)
}

func (s *Session) markSaved() {
	s.mu.Lock()
	s.savedRev = s.ctl.Revision()
	s.mu.Unlock()
}

// Save stores the open document, creating it on first save.
func (s *Session) Save(ctx context.Context) error {
	return s.save(ctx, s.beginSave())
}

// SaveAsync captures the document now and writes it in the background. The
// returned channel yields the result once.
func (s *Session) SaveAsync(ctx context.Context) <-chan error {
	p := s.beginSave()
	ch := make(chan error, 1)
	go func() { ch <- s.save(ctx, p) }()
	return ch
}

type pendingSave struct {
	seq uint64
	gen uint64
	rev uint64
	tpl document.Template
}

// beginSave snapshots the document and applies the optimistic gallery update.
// It must run on the UI thread.
func (s *Session) beginSave() pendingSave {
	tpl := s.Current()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveSeq++
	p := pendingSave{seq: s.saveSeq, gen: s.gen, rev: s.ctl.Revision(), tpl: tpl}
	if tpl.ID != "" {
		for i := range s.templates {
			if s.templates[i].ID == tpl.ID {
				up := tpl.Clone()
				up.CreatedAt = s.templates[i].CreatedAt
				up.UpdatedAt = time.Now().UTC()
				s.templates[i] = up
			}
		}
	}
	return p
}

func (s *Session) save(ctx context.Context, p pendingSave) error {
	var err error
	id := p.tpl.ID
	if id == "" {
		id, err = s.gw.Create(ctx, p.tpl)
	} else {
		err = s.gw.Update(ctx, id, p.tpl)
	}
	s.mu.Lock()
	if p.seq < s.lastDone {
		// Responses are not ordered; the later completion has already been applied.
		s.log.Warn("save response arrived out of order", slog.Uint64("seq", p.seq), slog.Uint64("last", s.lastDone))
	}
	if p.seq > s.lastDone {
		s.lastDone = p.seq
	}
	s.mu.Unlock()
	s.setErr(OpSave, err)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	s.mu.Lock()
	if p.gen == s.gen {
		if s.current.ID == "" {
			s.current.ID = id
		}
		if p.rev > s.savedRev {
			s.savedRev = p.rev
		}
	} else {
		s.log.Debug("save finished for a template no longer open", slog.String("id", id))
	}
	s.mu.Unlock()
	if err := s.Refresh(ctx); err != nil {
		// The write landed; only the reconciliation failed.
		s.log.Warn("re-list after save failed", slog.Any("err", err))
	}
	return nil
}

// Duplicate copies template id. The copy appears in the gallery at once and
// is replaced by the stored record when the gateway answers.
func (s *Session) Duplicate(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	pending := false
	for _, t := range s.templates {
		if t.ID == id {
			cp := t.Clone()
			cp.ID = ""
			cp.Name = t.Name + storage.CopySuffix
			ts := time.Now().UTC()
			cp.CreatedAt, cp.UpdatedAt = ts, ts
			s.templates = append(s.templates, cp)
			pending = true
			break
		}
	}
	s.mu.Unlock()

	newID, err := s.gw.Duplicate(ctx, id)
	s.setErr(OpDuplicate, err)
	if err != nil {
		if pending {
			s.dropPending()
		}
		return "", fmt.Errorf("duplicate %s: %w", id, err)
	}
	if err := s.Refresh(ctx); err != nil {
		if pending {
			s.dropPending()
		}
		s.log.Warn("re-list after duplicate failed", slog.Any("err", err))
	}
	return newID, nil
}

// dropPending removes optimistic entries that have no id yet.
func (s *Session) dropPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.templates[:0]
	for _, t := range s.templates {
		if t.ID != "" {
			out = append(out, t)
		}
	}
	s.templates = out
}

// Delete removes template id. It disappears from the gallery at once and is
// put back if the gateway fails. Deleting the open template starts a new one.
func (s *Session) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	prev := append([]document.Template(nil), s.templates...)
	out := make([]document.Template, 0, len(s.templates))
	for _, t := range s.templates {
		if t.ID != id {
			out = append(out, t)
		}
	}
	s.templates = out
	s.mu.Unlock()

	err := s.gw.Delete(ctx, id)
	s.setErr(OpDelete, err)
	if err != nil {
		s.mu.Lock()
		s.templates = prev
		s.mu.Unlock()
		return fmt.Errorf("delete %s: %w", id, err)
	}
	s.mu.Lock()
	open := s.current.ID == id
	s.mu.Unlock()
	if open {
		s.New("")
	}
	if err := s.Refresh(ctx); err != nil {
		s.log.Warn("re-list after delete failed", slog.Any("err", err))
	}
	return nil
}

// IsNotFound reports whether err came from a missing template.
func IsNotFound(err error) bool { return errors.Is(err, storage.ErrNotFound) }
