/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report plus an autosave of the
// open template, then exits.
package crash

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"certstudio/internal/document"
	applog "certstudio/internal/log"
	"certstudio/internal/storage"
	"certstudio/internal/version"
)

// DirName is the subdirectory of the data directory holding reports and autosaves.
const DirName = "crash"

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// Source yields the template being edited. editor.Session implements it.
type Source interface {
	Current() document.Template
}

// Recover captures a panic, logs an error with stacktrace, writes an error
// report into <dataDir>/crash and autosaves the open template from src (if
// provided) next to it.
//
// Usage: defer crash.Recover(dataDir, session)
func Recover(dataDir string, src Source) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		stamp := time.Now().Format("20060102-150405")
		reportPath, err := writeReport(dataDir, stamp, r, stack)
		if err != nil {
			l.Error("write crash report failed", slog.Any("err", err))
		}
		if src != nil {
			if path, err := autosave(dataDir, stamp, src); err != nil {
				l.Error("autosave failed", slog.Any("err", err))
			} else {
				l.Info("autosave written", slog.String("path", path))
			}
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		// Exit with a non-zero code to indicate failure in CLI context.
		exitFn(2)
	}
}

func crashDir(dataDir string) string {
	if dataDir == "" {
		return filepath.Join(os.TempDir(), "certstudio-"+DirName)
	}
	return filepath.Join(dataDir, DirName)
}

func writeReport(dataDir, stamp string, panicVal any, stack []byte) (string, error) {
	dir := crashDir(dataDir)
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return path, err
	}

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "certstudio Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, err
	}
	_ = f.Sync()
	return path, nil
}

// autosave writes the template record as JSON. A panic inside src is
// contained so the report is never lost to it.
func autosave(dataDir, stamp string, src Source) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("snapshot panicked: %v", r)
		}
	}()
	t := src.Current()
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode template: %w", err)
	}
	dir := crashDir(dataDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path = filepath.Join(dir, fmt.Sprintf("autosave-%s.json", stamp))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// LatestAutosave returns the newest autosave in dataDir, or "" when there is none.
func LatestAutosave(dataDir string) (string, error) {
	entries, err := os.ReadDir(crashDir(dataDir))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	var names []string
	for _, e := range entries {
		if n := e.Name(); !e.IsDir() && strings.HasPrefix(n, "autosave-") && strings.HasSuffix(n, ".json") {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)
	return filepath.Join(crashDir(dataDir), names[len(names)-1]), nil
}

// LoadAutosave reads an autosave back into a template. The record is
// validated like any stored template.
func LoadAutosave(path string) (document.Template, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return document.Template{}, err
	}
	return storage.DecodeRecord(b)
}
