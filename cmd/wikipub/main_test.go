package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_Preserves(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.xml", `<p>Check the <ac:inline-comment-marker ac:ref="q">retry budget</ac:inline-comment-marker> before paging.</p><p><ac:inline-comment-marker ac:ref="gone">Obsolete appendix</ac:inline-comment-marker></p>`)
	newPath := writeFile(t, dir, "new.xml", `<p>Check the retry budget before paging anyone.</p>`)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-old", oldPath, "-new", newPath}, &stdout, &stderr, false)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr.String())
	}
	want := `<p>Check the <ac:inline-comment-marker ac:ref="q">retry budget</ac:inline-comment-marker> before paging anyone.</p>`
	if stdout.String() != want {
		t.Errorf("expected %q, got %q", want, stdout.String())
	}
	if !strings.Contains(stderr.String(), "1 comment preserved, 1 dropped") {
		t.Errorf("expected summary on stderr, got %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), "dropped gone (NoCandidate") {
		t.Errorf("expected dropped line, got %q", stderr.String())
	}
	if strings.Contains(stderr.String(), "\x1b[") {
		t.Errorf("expected no color codes")
	}
}

func TestRun_OutFileAndTree(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.xml", `<p>plain</p>`)
	newPath := writeFile(t, dir, "new.xml", `<h1>Heading</h1><p>plain</p>`)
	outPath := filepath.Join(dir, "out.xml")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-old", oldPath, "-new", newPath, "-out", outPath, "-tree"}, &stdout, &stderr, true)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr.String())
	}
	if stdout.Len() != 0 {
		t.Errorf("expected nothing on stdout, got %q", stdout.String())
	}
	got, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `<h1>Heading</h1><p>plain</p>` {
		t.Errorf("unexpected output file %q", got)
	}
	if !strings.Contains(stderr.String(), "document") || !strings.Contains(stderr.String(), "h1") {
		t.Errorf("expected tree outline, got %q", stderr.String())
	}
	if !strings.Contains(stderr.String(), ansiGreen) {
		t.Errorf("expected colored summary")
	}
}

func TestRun_RenderSource(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.xml", `<p>Intro.</p><p>Rotate <ac:inline-comment-marker ac:ref="k">the signing keys</ac:inline-comment-marker> every quarter.</p>`)
	newPath := writeFile(t, dir, "notes.txt", "Intro.\n\nRotate the signing keys every quarter!\n")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-old", oldPath, "-new", newPath, "-render"}, &stdout, &stderr, false)
	if code != exitOK {
		t.Fatalf("expected exit 0, got %d: %s", code, stderr.String())
	}
	want := `<p>Intro.</p><p>Rotate <ac:inline-comment-marker ac:ref="k">the signing keys</ac:inline-comment-marker> every quarter!</p>`
	if stdout.String() != want {
		t.Errorf("expected %q, got %q", want, stdout.String())
	}
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.xml", `<p>x</p>`)
	bad := writeFile(t, dir, "bad.xml", `<p>x`)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"missing new", []string{"-old", good}, exitUsage},
		{"bad threshold", []string{"-old", good, "-new", good, "-threshold", "1.5"}, exitUsage},
		{"extra args", []string{"-old", good, "-new", good, "stray"}, exitUsage},
		{"unknown flag", []string{"-nope"}, exitUsage},
		{"missing file", []string{"-old", filepath.Join(dir, "absent.xml"), "-new", good}, exitError},
		{"malformed old", []string{"-old", bad, "-new", good}, exitError},
		{"help", []string{"-h"}, exitOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr, false); code != tt.code {
				t.Errorf("expected exit %d, got %d (%s)", tt.code, code, stderr.String())
			}
		})
	}
}
