package indexer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFetch_HTTP(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<p>hello</p>"))
	}))
	defer srv.Close()

	f := NewFetcher("MyRAG/1.0 (+https://example.com)", 5*time.Second)
	page, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(page.Body) != "<p>hello</p>" {
		t.Errorf("unexpected body %q", page.Body)
	}
	if page.ContentType != "text/html" {
		t.Errorf("expected text/html, got %q", page.ContentType)
	}
	if gotUA != "MyRAG/1.0 (+https://example.com)" {
		t.Errorf("unexpected user agent %q", gotUA)
	}
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher("", 5*time.Second).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Status != http.StatusNotFound {
		t.Fatalf("expected FetchError with 404, got %v", err)
	}
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	_, err := NewFetcher("", 50*time.Millisecond).Fetch(context.Background(), srv.URL)
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}

func TestFetch_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("local notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	page, err := NewFetcher("", time.Second).Fetch(context.Background(), "file://"+filepath.ToSlash(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(page.Body) != "local notes" {
		t.Errorf("unexpected body %q", page.Body)
	}
	if page.ContentType != "text/plain" {
		t.Errorf("expected text/plain, got %q", page.ContentType)
	}
}

func TestFetch_UnsupportedScheme(t *testing.T) {
	_, err := NewFetcher("", time.Second).Fetch(context.Background(), "ftp://example.com/x")
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}
