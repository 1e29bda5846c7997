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
	"fmt"
	"sort"
	"sync"

	"certstudio/internal/document"
)

// Memory is an in-process Gateway. It is used by tests and as a scratch store.
type Memory struct {
	mu   sync.Mutex
	recs map[string]document.Template
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory { return &Memory{recs: map[string]document.Template{}} }

func (m *Memory) List(ctx context.Context) ([]document.Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]document.Template, 0, len(m.recs))
	for _, t := range m.recs {
		out = append(out, t.Clone())
	}
	sortByCreated(out)
	return out, nil
}

func (m *Memory) Get(ctx context.Context, id string) (document.Template, error) {
	if err := ctx.Err(); err != nil {
		return document.Template{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.recs[id]
	if !ok {
		return document.Template{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return t.Clone(), nil
}

func (m *Memory) Create(ctx context.Context, t document.Template) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rec := prepareCreate(t)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs[rec.ID] = rec
	return rec.ID, nil
}

func (m *Memory) Update(ctx context.Context, id string, t document.Template) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.recs[id]
	if !ok {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	m.recs[id] = prepareUpdate(prev, t)
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[id]; !ok {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	delete(m.recs, id)
	return nil
}

func (m *Memory) Duplicate(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	src, ok := m.recs[id]
	if !ok {
		return "", fmt.Errorf("duplicate %s: %w", id, ErrNotFound)
	}
	rec := prepareDuplicate(src)
	m.recs[rec.ID] = rec
	return rec.ID, nil
}

func (m *Memory) Close() error { return nil }

// sortByCreated orders records oldest first, breaking ties by id.
func sortByCreated(ts []document.Template) {
	sort.SliceStable(ts, func(i, j int) bool {
		if !ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].CreatedAt.Before(ts[j].CreatedAt)
		}
		return ts[i].ID < ts[j].ID
	})
}
