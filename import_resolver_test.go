package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseImportSourceShapes(t *testing.T) {
	spec, err := ParseImportSource("github.com/user/repo@v1.2.3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.Source != "github.com/user/repo" || spec.Version != "v1.2.3" {
		t.Fatalf("mis-parsed: %+v", spec)
	}

	spec, err = ParseImportSource("./local/lib")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !spec.IsLocal {
		t.Fatal("dot-relative sources are local")
	}

	spec, err = ParseImportSource("sdl3")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if spec.IsLocal || spec.Version != "" {
		t.Fatalf("bare library name mis-parsed: %+v", spec)
	}
}

func TestParseImportSourceRejectsBadVersion(t *testing.T) {
	if _, err := ParseImportSource("github.com/u/r@not a version!"); err == nil {
		t.Fatal("expected an error for an unrecognized version specifier")
	}
}

func TestParseImportSourceAcceptsBranchNames(t *testing.T) {
	for _, v := range []string{"latest", "main"} {
		if _, err := ParseImportSource("github.com/u/r@" + v); err != nil {
			t.Fatalf("%s must be accepted: %v", v, err)
		}
	}
}

func TestNormalizeSemver(t *testing.T) {
	if normalizeSemver("1.2.3") != "v1.2.3" {
		t.Error("bare versions gain a v prefix")
	}
	if normalizeSemver("v1.2.3") != "v1.2.3" {
		t.Error("prefixed versions pass through")
	}
	if normalizeSemver("") != "" {
		t.Error("empty passes through")
	}
}

func TestDeriveDefaultAlias(t *testing.T) {
	cases := map[string]string{
		"./lib/strings":      "strings",
		"github.com/u/mathx": "mathx",
		"simple":             "simple",
	}
	for url, want := range cases {
		if got := deriveDefaultAlias(url); got != want {
			t.Errorf("deriveDefaultAlias(%q) = %q, want %q", url, got, want)
		}
	}
}

func TestFindSindarinFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.sn", "b.sn", "ignore.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("// stub"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "c.sn"), []byte("// stub"), 0o644); err != nil {
		t.Fatal(err)
	}

	top, err := findSindarinFiles(dir, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("top-level only should find 2 files, got %v", top)
	}
}
