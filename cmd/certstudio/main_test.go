/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/zalando/go-keyring"

	"certstudio/internal/backend"
	"certstudio/internal/config"
	"certstudio/internal/crash"
	"certstudio/internal/document"
	"certstudio/internal/storage"
)

type testCLI struct {
	*cli
	mem    *storage.Memory
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	dir    string
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	cfg := config.Defaults()
	cfg.General.DataDir = filepath.Join(dir, "data")
	mem := storage.NewMemory()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &testCLI{
		cli:    &cli{cfg: cfg, out: out, errOut: errOut, gateway: mem},
		mem:    mem,
		stdout: out,
		stderr: errOut,
		dir:    dir,
	}
}

// exec runs one command line and returns its exit code and stdout.
func (tc *testCLI) exec(t *testing.T, args ...string) (int, string) {
	t.Helper()
	tc.stdout.Reset()
	tc.stderr.Reset()
	code := run(context.Background(), tc.cli, args)
	return code, strings.TrimSpace(tc.stdout.String())
}

func (tc *testCLI) mustExec(t *testing.T, args ...string) string {
	t.Helper()
	code, out := tc.exec(t, args...)
	if code != 0 {
		t.Fatalf("%v exited %d: %s", args, code, tc.stderr.String())
	}
	return out
}

func pngSize(t *testing.T, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return cfg.Width, cfg.Height
}

func TestUsageAndBadCommands(t *testing.T) {
	tc := newTestCLI(t)
	if code, out := tc.exec(t); code != 0 || !strings.Contains(out, "Usage:") {
		t.Fatalf("no-arg run = %d %q", code, out)
	}
	if code, _ := tc.exec(t, "bogus"); code != 2 || !strings.Contains(tc.stderr.String(), `unknown command "bogus"`) {
		t.Fatalf("unknown command exit %d: %s", code, tc.stderr.String())
	}
	if code, _ := tc.exec(t, "show"); code != 2 {
		t.Fatalf("missing argument exit %d", code)
	}
	if code, _ := tc.exec(t, "render", "x", "out.png", "--scale", "nope"); code != 2 {
		t.Fatalf("bad flag exit %d", code)
	}
	if out := tc.mustExec(t, "version"); !strings.HasPrefix(out, "CertStudio") {
		t.Fatalf("version output %q", out)
	}
}

func TestTemplateCommands(t *testing.T) {
	tc := newTestCLI(t)
	id := tc.mustExec(t, "new", "Spring", "Workshop")
	if id == "" {
		t.Fatalf("new printed no id")
	}
	if out := tc.mustExec(t, "list"); !strings.Contains(out, "Spring Workshop") || !strings.Contains(out, id) {
		t.Fatalf("list output %q", out)
	}
	if out := tc.mustExec(t, "show", id); !strings.Contains(out, "Certificate of Completion") {
		t.Fatalf("show output %q", out)
	}
	dup := tc.mustExec(t, "duplicate", id)
	if dup == "" || dup == id {
		t.Fatalf("duplicate id %q", dup)
	}
	if out := tc.mustExec(t, "list"); !strings.Contains(out, "Spring Workshop"+storage.CopySuffix) {
		t.Fatalf("list after duplicate %q", out)
	}
	tc.mustExec(t, "delete", dup)
	if code, _ := tc.exec(t, "show", dup); code != 1 {
		t.Fatalf("show deleted exit %d", code)
	}
	if code, _ := tc.exec(t, "delete", dup); code != 1 {
		t.Fatalf("delete twice exit %d", code)
	}
}

func TestImportAndValidate(t *testing.T) {
	tc := newTestCLI(t)
	id := tc.mustExec(t, "new", "Source")
	rec := filepath.Join(tc.dir, "record.json")
	if err := os.WriteFile(rec, []byte(tc.mustExec(t, "show", id)), 0o644); err != nil {
		t.Fatal(err)
	}
	if out := tc.mustExec(t, "validate", rec); out != "valid" {
		t.Fatalf("validate output %q", out)
	}
	imported := tc.mustExec(t, "import", rec)
	if imported == id {
		t.Fatalf("import reused the source id")
	}
	list, _ := tc.mem.List(context.Background())
	if len(list) != 2 {
		t.Fatalf("templates after import = %d", len(list))
	}

	bad := filepath.Join(tc.dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"name": 7, "elements": "no"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if code, _ := tc.exec(t, "validate", bad); code != 1 {
		t.Fatalf("validate bad record exit %d", code)
	}
}

func TestRenderCommands(t *testing.T) {
	tc := newTestCLI(t)
	id := tc.mustExec(t, "new", "Render")
	out := filepath.Join(tc.dir, "full.png")
	tc.mustExec(t, "render", id, out, "--scale", "0.1", "--name", "Ada")
	if w, h := pngSize(t, out); w != 351 || h != 248 {
		t.Fatalf("render size %dx%d", w, h)
	}

	thumb := filepath.Join(tc.dir, "thumb.png")
	tc.mustExec(t, "thumbnail", id, thumb, "--width", "160")
	if w, _ := pngSize(t, thumb); w != 160 {
		t.Fatalf("thumbnail width %d", w)
	}

	prev := filepath.Join(tc.dir, "preview.png")
	if msg := tc.mustExec(t, "preview", id, "400", "300", prev); !strings.Contains(msg, "scale") {
		t.Fatalf("preview output %q", msg)
	}
	if w, h := pngSize(t, prev); w > 400 || h > 300 || w < 390 {
		t.Fatalf("preview size %dx%d", w, h)
	}
	if code, _ := tc.exec(t, "preview", id, "0", "300", prev); code != 2 {
		t.Fatalf("zero preview width exit %d", code)
	}
}

func TestExportCommands(t *testing.T) {
	tc := newTestCLI(t)
	id := tc.mustExec(t, "new", "Export")
	pdf := filepath.Join(tc.dir, "out.pdf")
	tc.mustExec(t, "export", id, pdf)
	data, err := os.ReadFile(pdf)
	if err != nil || !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("pdf export: %v", err)
	}

	bundle := filepath.Join(tc.dir, "web")
	out := tc.mustExec(t, "export", id, "--preset", "web", "--dir", bundle)
	for _, ext := range []string{".png", ".svg"} {
		if !strings.Contains(out, ext) {
			t.Fatalf("preset output misses %s: %q", ext, out)
		}
	}
	entries, err := os.ReadDir(bundle)
	if err != nil || len(entries) != 2 {
		t.Fatalf("preset dir: %v, %d files", err, len(entries))
	}
	if code, _ := tc.exec(t, "export", id); code != 2 {
		t.Fatalf("export without target exit %d", code)
	}
}

func TestMergeCommand(t *testing.T) {
	tc := newTestCLI(t)
	id := tc.mustExec(t, "new", "Merge")
	csvPath := filepath.Join(tc.dir, "people.csv")
	if err := os.WriteFile(csvPath, []byte("name,course,date\nAda,Go,2026-01-01\nGrace,COBOL,2026-02-02\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(tc.dir, "batch")
	if msg := tc.mustExec(t, "merge", id, csvPath, out, "--format", "png", "--scale", "0.05"); !strings.Contains(msg, "2 certificates") {
		t.Fatalf("merge output %q", msg)
	}
	zr, err := zip.OpenReader(out + ".zip")
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 3 {
		t.Fatalf("zip entries = %d", len(zr.File))
	}
}

func TestRestoreCommand(t *testing.T) {
	tc := newTestCLI(t)
	ctx := context.Background()
	if code, _ := tc.exec(t, "restore"); code != 1 {
		t.Fatalf("restore without autosave exit %d", code)
	}

	id, err := tc.mem.Create(ctx, document.Template{Name: "Kept", Doc: document.Starter()})
	if err != nil {
		t.Fatal(err)
	}
	doc := document.Starter()
	doc.UpdateElement("text-1", document.Patch{"text": "Recovered"})
	writeAutosave := func(name string, tpl document.Template) {
		dir := filepath.Join(tc.cfg.ResolvedDataDir(), crash.DirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		b, err := json.Marshal(tpl)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	writeAutosave("autosave-20260101-000000.json", document.Template{ID: id, Name: "Kept", Doc: doc})
	tc.mustExec(t, "restore")
	got, err := tc.mem.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	el, _ := got.Doc.Element("text-1")
	if el.(*document.Text).Text != "Recovered" {
		t.Fatalf("restore did not update the record")
	}

	writeAutosave("autosave-20260102-000000.json", document.Template{ID: "gone", Name: "Orphan", Doc: doc})
	tc.mustExec(t, "restore")
	list, _ := tc.mem.List(ctx)
	found := false
	for _, tpl := range list {
		found = found || (tpl.Name == "Orphan" && tpl.ID != "gone")
	}
	if len(list) != 2 || !found {
		t.Fatalf("orphan autosave not created: %+v", list)
	}
}

func TestLoginLogout(t *testing.T) {
	keyring.MockInit()
	tc := newTestCLI(t)
	srv := backend.NewServer(backend.Options{Gateway: storage.NewMemory(), Secret: "test-secret"})
	ts := httptest.NewServer(adaptor.FiberApp(srv.App()))
	defer ts.Close()
	tc.cfg.Backend.BaseURL = ts.URL

	if out := tc.mustExec(t, "login", "desk", "--ttl", "10m"); !strings.HasPrefix(out, "Logged in to "+ts.URL) {
		t.Fatalf("login output %q", out)
	}
	_, tok, err := config.Load()
	if err != nil || tok == "" {
		t.Fatalf("token not in keychain: %q, %v", tok, err)
	}
	tc.mustExec(t, "logout")
	if _, tok, _ := config.Load(); tok != "" {
		t.Fatalf("token survived logout")
	}
}
