/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"certstudio/internal/document"
)

// TestRecoverWritesReportAndAutosave ensures Recover handles a panic, writes
// a report and an autosave, and does not terminate the test process due to
// the injected exitFn.
func TestRecoverWritesReportAndAutosave(t *testing.T) {
	// Capture stderr temporarily to avoid noisy test logs
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	defer func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	}()

	called := 0
	oldExit := exitFn
	exitFn = func(code int) { called = code }
	defer func() { exitFn = oldExit }()

	root := t.TempDir()
	src := fixedSource{document.Template{Name: "Unsaved", Doc: document.Starter()}}
	func() {
		defer Recover(root, src)
		panic("boom")
	}()

	var report, save string
	files, _ := os.ReadDir(filepath.Join(root, DirName))
	for _, f := range files {
		switch n := f.Name(); {
		case strings.HasPrefix(n, "crash-") && strings.HasSuffix(n, ".log"):
			report = filepath.Join(root, DirName, n)
		case strings.HasPrefix(n, "autosave-"):
			save = filepath.Join(root, DirName, n)
		}
	}
	if report == "" || save == "" {
		t.Fatalf("expected report and autosave, got %v", files)
	}
	b, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Contains(b, []byte("Panic: boom")) {
		t.Fatalf("report does not contain panic: %s", string(b))
	}
	if got, err := LoadAutosave(save); err != nil || got.Name != "Unsaved" {
		t.Fatalf("autosave = %+v, %v", got, err)
	}
	if called != 2 {
		t.Fatalf("expected exit code 2, got %d", called)
	}
}

func TestRecoverWithoutPanicIsNoop(t *testing.T) {
	called := false
	oldExit := exitFn
	exitFn = func(int) { called = true }
	defer func() { exitFn = oldExit }()
	func() {
		defer Recover(t.TempDir(), nil)
	}()
	if called {
		t.Fatalf("exit called without panic")
	}
}
