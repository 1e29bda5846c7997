/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"certstudio/internal/document"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a template id does not exist in the store.
var ErrNotFound = errors.New("template not found")

// CopySuffix is appended to the name of a duplicated template.
const CopySuffix = " (Copy)"

// Gateway is the template persistence contract used by the editor shell,
// the CLI and the HTTP service.
type Gateway interface {
	// List returns all templates ordered by creation time, oldest first.
	List(ctx context.Context) ([]document.Template, error)
	// Create stores t under a fresh id and returns it.
	Create(ctx context.Context, t document.Template) (string, error)
	// Update replaces the stored name and document of id.
	Update(ctx context.Context, id string, t document.Template) error
	Delete(ctx context.Context, id string) error
	// Duplicate copies all fields of id into a new record named "<name> (Copy)"
	// with fresh timestamps.
	Duplicate(ctx context.Context, id string) (string, error)
	Close() error
}

// Get is a convenience lookup over Gateway.List.
func Get(ctx context.Context, g Gateway, id string) (document.Template, error) {
	all, err := g.List(ctx)
	if err != nil {
		return document.Template{}, err
	}
	for _, t := range all {
		if t.ID == id {
			return t, nil
		}
	}
	return document.Template{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
}

// getter is implemented by gateways that can fetch one record directly.
type getter interface {
	Get(ctx context.Context, id string) (document.Template, error)
}

// Lookup fetches one template, using a direct lookup when g supports it.
func Lookup(ctx context.Context, g Gateway, id string) (document.Template, error) {
	if gg, ok := g.(getter); ok {
		return gg.Get(ctx, id)
	}
	return Get(ctx, g, id)
}

// NewID returns a fresh opaque template id.
func NewID() string { return uuid.NewString() }

var (
	clockMu sync.Mutex
	lastTS  time.Time
)

// now returns a strictly increasing UTC timestamp at microsecond precision so
// records created back to back keep their creation order in every backend.
func now() time.Time {
	clockMu.Lock()
	defer clockMu.Unlock()
	t := time.Now().UTC().Truncate(time.Microsecond)
	if !t.After(lastTS) {
		t = lastTS.Add(time.Microsecond)
	}
	lastTS = t
	return t
}

// prepareCreate fills id, name, document and timestamps of a new record.
func prepareCreate(t document.Template) document.Template {
	c := t.Clone()
	c.ID = NewID()
	if strings.TrimSpace(c.Name) == "" {
		c.Name = "Untitled"
	}
	if c.Doc == nil {
		c.Doc = document.Starter()
	}
	ts := now()
	c.CreatedAt, c.UpdatedAt = ts, ts
	return c
}

// prepareUpdate carries identity and creation time over from prev.
func prepareUpdate(prev, t document.Template) document.Template {
	c := t.Clone()
	c.ID = prev.ID
	c.CreatedAt = prev.CreatedAt
	if strings.TrimSpace(c.Name) == "" {
		c.Name = prev.Name
	}
	if c.Doc == nil {
		c.Doc = document.New(0, 0)
	}
	c.UpdatedAt = now()
	if !c.UpdatedAt.After(prev.UpdatedAt) {
		c.UpdatedAt = prev.UpdatedAt.Add(time.Microsecond)
	}
	return c
}

// prepareDuplicate copies src into a new record.
func prepareDuplicate(src document.Template) document.Template {
	c := src.Clone()
	c.ID = NewID()
	c.Name = src.Name + CopySuffix
	ts := now()
	c.CreatedAt, c.UpdatedAt = ts, ts
	return c
}

// validID rejects ids that could escape a directory or break a query.
func validID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
