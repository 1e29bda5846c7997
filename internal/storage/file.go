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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"certstudio/internal/document"
	applog "certstudio/internal/log"
)

const (
	RecordExt      = ".json"
	BackupsDirName = "backups"
	// MaxBackups is the number of previous versions kept per template.
	MaxBackups = 10
)

// FileStore keeps one human-readable JSON record per template in a directory.
// Writes are transactional (temp file + rename) and the previous version is
// copied to backups/ first. A record that fails to parse is served from its
// latest backup.
type FileStore struct {
	Root string

	mu  sync.Mutex
	log *slog.Logger
}

// OpenFileStore creates root and its backups folder if needed.
func OpenFileStore(root string) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := os.MkdirAll(filepath.Join(root, BackupsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("create template dir: %w", err)
	}
	return &FileStore{Root: root, log: applog.WithComponent("storage")}, nil
}

func (f *FileStore) recordPath(id string) string { return filepath.Join(f.Root, id+RecordExt) }

func (f *FileStore) List(ctx context.Context) ([]document.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ents, err := os.ReadDir(f.Root)
	if err != nil {
		return nil, fmt.Errorf("read template dir: %w", err)
	}
	var out []document.Template
	for _, e := range ents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, RecordExt) || strings.HasPrefix(name, ".") {
			continue
		}
		id := strings.TrimSuffix(name, RecordExt)
		t, err := f.read(id)
		if err != nil {
			f.log.Warn("skipping unreadable template", slog.String("id", id), slog.Any("err", err))
			continue
		}
		out = append(out, t)
	}
	sortByCreated(out)
	return out, nil
}

func (f *FileStore) Get(ctx context.Context, id string) (document.Template, error) {
	if err := ctx.Err(); err != nil {
		return document.Template{}, err
	}
	if !validID(id) {
		return document.Template{}, fmt.Errorf("get %q: %w", id, ErrNotFound)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.read(id)
}

// read loads a record, falling back to the latest backup when the current
// file is missing content or fails validation.
func (f *FileStore) read(id string) (document.Template, error) {
	p := f.recordPath(id)
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return document.Template{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	if err == nil {
		t, derr := DecodeRecord(b)
		if derr == nil {
			t.ID = id
			return t, nil
		}
		err = derr
	}
	t, berr := f.openFromLatestBackup(id)
	if berr != nil {
		return document.Template{}, fmt.Errorf("read %s: %w; backup attempt: %v", id, err, berr)
	}
	f.log.Warn("served template from backup", slog.String("id", id), slog.Any("err", err))
	return t, nil
}

func (f *FileStore) Create(ctx context.Context, t document.Template) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rec := prepareCreate(t)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.save(rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (f *FileStore) Update(ctx context.Context, id string, t document.Template) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validID(id) {
		return fmt.Errorf("update %q: %w", id, ErrNotFound)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, err := f.read(id)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	return f.save(prepareUpdate(prev, t))
}

func (f *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validID(id) {
		return fmt.Errorf("delete %q: %w", id, ErrNotFound)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.recordPath(id)
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	// Keep the last version around as a backup.
	if err := f.backup(id); err != nil {
		return fmt.Errorf("backup before delete: %w", err)
	}
	if err := os.Remove(p); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

func (f *FileStore) Duplicate(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !validID(id) {
		return "", fmt.Errorf("duplicate %q: %w", id, ErrNotFound)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	src, err := f.read(id)
	if err != nil {
		return "", fmt.Errorf("duplicate: %w", err)
	}
	rec := prepareDuplicate(src)
	if err := f.save(rec); err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (f *FileStore) Close() error { return nil }

// save writes rec with transactional semantics and a timestamped backup of
// the previous version.
func (f *FileStore) save(rec document.Template) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	data = append(data, '\n')
	if err := f.backup(rec.ID); err != nil {
		return fmt.Errorf("backup current record: %w", err)
	}
	target := f.recordPath(rec.ID)
	temp := filepath.Join(f.Root, fmt.Sprintf(".%s.tmp-%d-%d", rec.ID, os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		return fmt.Errorf("write temp record: %w", err)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(target); err == nil {
		_ = os.Remove(target)
	}
	if err := os.Rename(temp, target); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace record: %w", err)
	}
	return nil
}

// backup copies the current record (if any) into backups/ and prunes old copies.
func (f *FileStore) backup(id string) error {
	src := f.recordPath(id)
	if _, err := os.Stat(src); err != nil {
		return nil
	}
	stamp := time.Now().UTC().Format("20060102-150405.000000")
	dst := filepath.Join(f.Root, BackupsDirName, fmt.Sprintf("%s%s.%s.bak", id, RecordExt, stamp))
	if err := copyFile(src, dst); err != nil {
		return err
	}
	backups, err := f.backups(id)
	if err != nil {
		return nil
	}
	for len(backups) > MaxBackups {
		_ = os.Remove(backups[0])
		backups = backups[1:]
	}
	return nil
}

// backups lists backup files for id, oldest first.
func (f *FileStore) backups(id string) ([]string, error) {
	bdir := filepath.Join(f.Root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := id + RecordExt + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

func (f *FileStore) openFromLatestBackup(id string) (document.Template, error) {
	candidates, err := f.backups(id)
	if err != nil {
		return document.Template{}, err
	}
	if len(candidates) == 0 {
		return document.Template{}, errors.New("no backups found")
	}
	b, err := os.ReadFile(candidates[len(candidates)-1])
	if err != nil {
		return document.Template{}, fmt.Errorf("read latest backup: %w", err)
	}
	t, err := DecodeRecord(b)
	if err != nil {
		return document.Template{}, fmt.Errorf("parse latest backup: %w", err)
	}
	t.ID = id
	return t, nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
