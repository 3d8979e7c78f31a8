package provision

import (
	"bytes"
	"context"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"lukechampine.com/blake3"
)

func TestFetch(t *testing.T) {
	body := []byte("ninja release bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ninja-linux.zip" {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	dir := t.TempDir()
	var progress bytes.Buffer
	f := NewFetcher(WithClient(srv.Client()), WithProgress(&progress))
	ctx := context.Background()

	dest := filepath.Join(dir, "ninja-linux.zip")
	digest, err := f.Fetch(ctx, srv.URL+"/ninja-linux.zip", dest)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, body) {
		t.Errorf("body = %q, want %q", got, body)
	}
	sum := blake3.Sum256(body)
	if want := hex.EncodeToString(sum[:]); digest != want {
		t.Errorf("digest = %s, want %s", digest, want)
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Errorf("partial file left behind, stat err = %v", err)
	}

	missing := filepath.Join(dir, "missing.zip")
	if _, err := f.Fetch(ctx, srv.URL+"/missing.zip", missing); err == nil {
		t.Fatal("expected error for 404")
	}
	if _, err := os.Stat(missing); !os.IsNotExist(err) {
		t.Errorf("failed download left %s behind", missing)
	}
}

func TestFetchCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := NewFetcher(WithClient(srv.Client()))
	if _, err := f.Fetch(ctx, srv.URL+"/a.zip", filepath.Join(t.TempDir(), "a.zip")); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestArchiveName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://github.com/ninja-build/ninja/releases/latest/download/ninja-linux.zip", "ninja-linux.zip"},
		{"https://example.com/cmake.tar.gz?token=abc", "cmake.tar.gz"},
		{"ninja-win.zip", "ninja-win.zip"},
	}
	for _, tt := range tests {
		if got := archiveName(tt.in); got != tt.want {
			t.Errorf("archiveName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
