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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"certstudio/internal/document"
	applog "certstudio/internal/log"
)

// tsLayout stores timestamps as fixed-width UTC text so they sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000Z"

// SQLStore is a Gateway over database/sql. The same queries serve SQLite and
// Postgres; only placeholders and the id column type differ.
type SQLStore struct {
	db       *sql.DB
	dollar   bool // Postgres style $n placeholders
	dialect  string
	log      *slog.Logger
	ownsConn bool
}

// DB exposes the underlying handle (the thumbnail cache shares it).
func (s *SQLStore) DB() *sql.DB { return s.db }

// Dialect returns "sqlite" or "postgres".
func (s *SQLStore) Dialect() string { return s.dialect }

// rebind turns ? placeholders into $1..$n for Postgres.
func (s *SQLStore) rebind(q string) string {
	if !s.dollar {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type row struct {
	id, name, body, created, updated string
}

func (r row) template() (document.Template, error) {
	t := document.Template{ID: r.id, Name: r.name, Doc: document.New(0, 0)}
	if err := json.Unmarshal([]byte(r.body), t.Doc); err != nil {
		return t, fmt.Errorf("decode body of %s: %w", r.id, err)
	}
	var err error
	if t.CreatedAt, err = time.Parse(tsLayout, r.created); err != nil {
		return t, fmt.Errorf("parse created_at of %s: %w", r.id, err)
	}
	if t.UpdatedAt, err = time.Parse(tsLayout, r.updated); err != nil {
		return t, fmt.Errorf("parse updated_at of %s: %w", r.id, err)
	}
	return t, nil
}

func encodeBody(t document.Template) (string, error) {
	doc := t.Doc
	if doc == nil {
		doc = document.New(0, 0)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode body: %w", err)
	}
	return string(b), nil
}

func (s *SQLStore) List(ctx context.Context) ([]document.Template, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, body, created_at, updated_at FROM templates ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()
	var out []document.Template
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.name, &r.body, &r.created, &r.updated); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		t, err := r.template()
		if err != nil {
			// One damaged row must not hide the rest of the gallery.
			s.log.Warn("skipping unreadable template", slog.String("id", r.id), slog.Any("err", err))
			continue
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (document.Template, error) {
	var r row
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT id, name, body, created_at, updated_at FROM templates WHERE id = ?`), id).
		Scan(&r.id, &r.name, &r.body, &r.created, &r.updated)
	if errors.Is(err, sql.ErrNoRows) {
		return document.Template{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return document.Template{}, fmt.Errorf("get %s: %w", id, err)
	}
	return r.template()
}

func (s *SQLStore) insert(ctx context.Context, t document.Template) error {
	body, err := encodeBody(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO templates (id, name, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		t.ID, t.Name, body, t.CreatedAt.UTC().Format(tsLayout), t.UpdatedAt.UTC().Format(tsLayout))
	if err != nil {
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

func (s *SQLStore) Create(ctx context.Context, t document.Template) (string, error) {
	rec := prepareCreate(t)
	if err := s.insert(ctx, rec); err != nil {
		return "", err
	}
	applog.WithOperation(s.log, "create").Debug("template created", slog.String("id", rec.ID))
	return rec.ID, nil
}

func (s *SQLStore) Update(ctx context.Context, id string, t document.Template) error {
	prev, err := s.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	rec := prepareUpdate(prev, t)
	body, err := encodeBody(rec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE templates SET name = ?, body = ?, updated_at = ? WHERE id = ?`),
		rec.Name, body, rec.UpdatedAt.Format(tsLayout), id)
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM templates WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLStore) Duplicate(ctx context.Context, id string) (string, error) {
	src, err := s.Get(ctx, id)
	if err != nil {
		return "", fmt.Errorf("duplicate: %w", err)
	}
	rec := prepareDuplicate(src)
	if err := s.insert(ctx, rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

// Ping checks that the database answers.
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) Close() error {
	if !s.ownsConn {
		return nil
	}
	return s.db.Close()
}
