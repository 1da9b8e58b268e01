package main

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deemkeen/tootsite/domain"
	"github.com/klauspost/compress/gzip"
)

const testOutbox = `{"orderedItems":[
	{"id":"1","type":"Create","object":{"url":"https://ex.test/@alice/1","content":"<p>hi</p>","published":"2022-11-05T10:00:00Z","to":["https://www.w3.org/ns/activitystreams#Public"]}},
	{"id":"2","type":"Announce","object":"https://other.test/@bob/9"}
]}`

func writeTestArchive(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range map[string]string{
		"actor.json":  `{"name":"Alice","url":"https://ex.test/@alice","preferredUsername":"alice"}`,
		"outbox.json": testOutbox,
	} {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(body)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	tw.Close()
	gz.Close()

	path := filepath.Join(t.TempDir(), "archive.tar.gz")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// isolate keeps the user's config files out of the test
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("NO_COLOR", "1")
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out, _, err := run(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "tootsite v") {
		t.Errorf("Expected 'tootsite v...', got %q", out)
	}
}

func TestBuildCommand(t *testing.T) {
	dir := isolate(t)
	archive := writeTestArchive(t)
	out := filepath.Join(dir, "site")

	_, logs, err := run(t, "-o", out, archive)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "@alice", "1", "index.html")); err != nil {
		t.Errorf("Expected page to be written: %v", err)
	}
	if !strings.Contains(logs, "Site ready") {
		t.Errorf("Expected summary in logs, got %q", logs)
	}
	if !strings.Contains(logs, "run=") {
		t.Errorf("Expected run id in logs, got %q", logs)
	}
}

func TestBuildCommandDefaultOutput(t *testing.T) {
	dir := isolate(t)
	if _, _, err := run(t, writeTestArchive(t)); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "output", "@alice", "1", "index.html")); err != nil {
		t.Errorf("Expected page below ./output: %v", err)
	}
}

func TestBuildCommandConfigFile(t *testing.T) {
	dir := isolate(t)
	conf := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(conf, []byte("conf:\n  output: from-config\n  site:\n    index: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := run(t, "--config", conf, writeTestArchive(t)); err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "from-config", "index.html")); err != nil {
		t.Errorf("Expected index page in the configured output: %v", err)
	}
}

func TestBuildCommandErrors(t *testing.T) {
	isolate(t)

	if _, _, err := run(t); err == nil {
		t.Error("Expected error without an archive argument")
	}

	_, _, err := run(t, filepath.Join(t.TempDir(), "missing.tar.gz"))
	if !errors.Is(err, domain.ErrArchiveOpen) {
		t.Errorf("Expected ErrArchiveOpen, got %v", err)
	}

	_, _, err = run(t, "--config", "nope.yaml", writeTestArchive(t))
	if err == nil {
		t.Error("Expected error for a missing config file")
	}
}
