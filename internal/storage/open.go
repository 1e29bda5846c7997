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
	"path/filepath"

	"certstudio/internal/config"
)

// ErrRemoteKind is returned by Open for storage.kind "http"; the caller wires
// the backend client instead.
var ErrRemoteKind = errors.New("storage kind http is served by the backend client")

// Open builds the local gateway selected by cfg.Storage.Kind.
func Open(ctx context.Context, cfg config.AppConfig) (Gateway, error) {
	switch cfg.Storage.Kind {
	case "", "sqlite":
		return OpenSQLite(cfg.ResolvedStoragePath(), cfg.Storage.SQLiteDriver)
	case "file":
		return OpenFileStore(cfg.ResolvedStoragePath())
	case "postgres":
		return OpenPostgres(ctx, cfg.Storage.PostgresDSN)
	case "memory":
		return NewMemory(), nil
	case "http":
		return nil, ErrRemoteKind
	default:
		return nil, fmt.Errorf("unknown storage kind %q", cfg.Storage.Kind)
	}
}

// OpenThumbs returns a thumbnail cache for g: it shares g's database when g
// is SQLite, otherwise it opens thumbs.sqlite in the data directory.
func OpenThumbs(g Gateway, cfg config.AppConfig) (*ThumbCache, error) {
	if s, ok := g.(*SQLStore); ok && s.Dialect() == "sqlite" {
		return NewThumbCache(s)
	}
	return OpenThumbCache(filepath.Join(cfg.ResolvedDataDir(), "thumbs.sqlite"), cfg.Storage.SQLiteDriver)
}
