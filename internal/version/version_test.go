package version

import "testing"

func TestVersionStringNonEmpty(t *testing.T) {
	if s := String(); s == "" {
		t.Fatalf("version string is empty")
	}
}

func TestVersionStringIncludesCommit(t *testing.T) {
	old := Commit
	Commit = "abc123"
	defer func() { Commit = old }()
	if s := String(); s != Version+" (abc123)" {
		t.Fatalf("unexpected version string %q", s)
	}
}
