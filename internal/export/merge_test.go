/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"certstudio/internal/document"
	"certstudio/internal/placeholder"
)

func TestReadRecipients(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []placeholder.Context
	}{
		{
			name: "positional",
			in:   "Ada Lovelace,Math,1843-01-01\nAlan Turing,CS\n",
			want: []placeholder.Context{{Name: "Ada Lovelace", Course: "Math", Date: "1843-01-01"}, {Name: "Alan Turing", Course: "CS"}},
		},
		{
			name: "header reorders",
			in:   "\ufeffDate, Name ,email\n2026-05-01,Grace,g@example.com\n\n,,\n",
			want: []placeholder.Context{{Name: "Grace", Date: "2026-05-01"}},
		},
		{
			name: "quoted commas",
			in:   "name,course\n\"Hopper, Grace\",\"COBOL, Advanced\"\n",
			want: []placeholder.Context{{Name: "Hopper, Grace", Course: "COBOL, Advanced"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ReadRecipients(strings.NewReader(tc.in))
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %d rows: %+v", len(got), got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("row %d = %+v, want %+v", i, got[i], tc.want[i])
				}
			}
		})
	}
	if _, err := ReadRecipients(strings.NewReader("name,course\n")); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("header only: %v", err)
	}
}

func TestMergeWritesOneFilePerRecipient(t *testing.T) {
	recips := []placeholder.Context{{Name: "Ada Lovelace"}, {Name: "Ada Lovelace"}, {Name: "!!!"}}
	var buf bytes.Buffer
	var progress []int
	err := Merge(context.Background(), &buf, testRenderer(), document.Starter(), recips, MergeOptions{
		Scale:    0.05,
		Progress: func(done, total int) { progress = append(progress, done*10+total) },
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := []string{"001-ada-lovelace.png", "002-ada-lovelace.png", "003-recipient.png", "manifest.csv"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Fatalf("entries = %v", names)
	}
	rc, _ := zr.File[3].Open()
	manifest, _ := io.ReadAll(rc)
	_ = rc.Close()
	if !strings.HasPrefix(string(manifest), "file,name,course,date\n001-ada-lovelace.png,Ada Lovelace,,\n") {
		t.Fatalf("manifest = %q", manifest)
	}
	if len(progress) != 3 || progress[2] != 33 {
		t.Fatalf("progress = %v", progress)
	}
}

func TestMergePDF(t *testing.T) {
	var buf bytes.Buffer
	err := Merge(context.Background(), &buf, testRenderer(), document.Starter(), []placeholder.Context{{Name: "Linus"}}, MergeOptions{Format: "PDF"})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	zr, _ := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if zr.File[0].Name != "001-linus.pdf" {
		t.Fatalf("entry = %s", zr.File[0].Name)
	}
}

func TestMergeFileCleansUpOnFailure(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := filepath.Join(dir, "batch")
	err := MergeFile(ctx, out, testRenderer(), document.Starter(), []placeholder.Context{{Name: "A"}}, MergeOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if _, err := os.Stat(out + ".zip"); !os.IsNotExist(err) {
		t.Fatalf("partial archive left behind: %v", err)
	}
	if err := MergeFile(context.Background(), out, testRenderer(), document.Starter(), nil, MergeOptions{}); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("empty list: %v", err)
	}
	if err := Merge(context.Background(), io.Discard, testRenderer(), document.Starter(), []placeholder.Context{{Name: "A"}}, MergeOptions{Format: "gif"}); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Ada Lovelace":          "ada-lovelace",
		"  José  Ñúñez ":        "josé-ñúñez",
		"O'Brien, Jr.":          "o-brien-jr",
		"":                      "recipient",
		strings.Repeat("x", 60): strings.Repeat("x", 48),
	}
	for in, want := range cases {
		if got := slug(in); got != want {
			t.Errorf("slug(%q) = %q, want %q", in, got, want)
		}
	}
}
