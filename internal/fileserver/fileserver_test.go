package fileserver

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperreactor/reactord/internal/cache"
)

func newResponder(t *testing.T, root string) *Responder {
	t.Helper()
	r, err := New(root, "index.html", 1<<20, cache.New(1<<20, time.Minute, nil), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestHandleServesExistingFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := newResponder(t, dir)

	res := r.Handle("/a.txt")
	if res.Status != 200 || string(res.Body) != "hello" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.CacheHeader != "MISS" {
		t.Fatalf("expected first read to be a cache miss, got %q", res.CacheHeader)
	}

	res2 := r.Handle("/a.txt")
	if res2.CacheHeader != "HIT" {
		t.Fatalf("expected second read to be a cache hit, got %q", res2.CacheHeader)
	}
}

func TestHandleMissingFileIsNotFound(t *testing.T) {
	r := newResponder(t, t.TempDir())
	res := r.Handle("/nope.txt")
	if res.Status != 404 {
		t.Fatalf("expected 404, got %d", res.Status)
	}
}

func TestHandlePathTraversalIsForbidden(t *testing.T) {
	dir := t.TempDir()
	r := newResponder(t, dir)

	res := r.Handle("/../etc/passwd")
	if res.Status != 403 {
		t.Fatalf("expected 403, got %d", res.Status)
	}
}

func TestHandleSymlinkEscapeIsForbidden(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("shh"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(secret, filepath.Join(dir, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	r := newResponder(t, dir)

	res := r.Handle("/link.txt")
	if res.Status != 403 {
		t.Fatalf("expected 403 for symlink escape, got %d", res.Status)
	}
}

func TestHandleOversizeFileIsForbidden(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "big.bin"), make([]byte, 128), 0o644); err != nil {
		t.Fatal(err)
	}
	r, err := New(dir, "index.html", 64, cache.New(1<<20, time.Minute, nil), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res := r.Handle("/big.bin")
	if res.Status != 403 {
		t.Fatalf("expected 403 for oversize file, got %d", res.Status)
	}
}

func TestHandleDefaultFileForDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>hi</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := newResponder(t, dir)

	res := r.Handle("/")
	if res.Status != 200 || string(res.Body) != "<h1>hi</h1>" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestHandleDirectoryListingWithoutDefaultFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := newResponder(t, dir)

	res := r.Handle("/sub/")
	if res.Status != 200 {
		t.Fatalf("expected 200, got %d", res.Status)
	}
	if res.CacheHeader != "NONE" {
		t.Fatalf("expected CacheHeader NONE for a directory listing, got %q", res.CacheHeader)
	}
	if !strings.Contains(string(res.Body), "f.txt") {
		t.Fatalf("expected listing to mention f.txt, got %s", res.Body)
	}
}
