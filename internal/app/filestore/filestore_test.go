package filestore

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

func TestLocal_Fetch(t *testing.T) {
	src := filepath.Join(t.TempDir(), "voice.ogg")
	payload := []byte("not really ogg but close enough")
	if err := os.WriteFile(src, payload, 0644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	destDir := t.TempDir()
	localPath, size, err := NewLocal().Fetch(context.Background(), src, destDir)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if size != int64(len(payload)) {
		t.Errorf("size = %d, want %d", size, len(payload))
	}
	if filepath.Dir(localPath) != destDir {
		t.Errorf("staged file %s is outside dest dir %s", localPath, destDir)
	}
	got, err := os.ReadFile(localPath)
	if err != nil {
		t.Fatalf("read staged file: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("staged content differs from source")
	}
}

func TestLocal_Fetch_NotFound(t *testing.T) {
	_, _, err := NewLocal().Fetch(context.Background(), "/no/such/file.ogg", t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHTTP_Fetch(t *testing.T) {
	payload := []byte("downloaded audio bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Write(payload)
	}))
	defer server.Close()

	destDir := t.TempDir()
	localPath, size, err := NewHTTP(5*time.Second).Fetch(context.Background(), server.URL+"/files/msg42.oga", destDir)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if size != int64(len(payload)) {
		t.Errorf("size = %d, want %d", size, len(payload))
	}
	if filepath.Base(localPath) != "msg42.oga" {
		t.Errorf("staged name = %s, want msg42.oga", filepath.Base(localPath))
	}
	got, _ := os.ReadFile(localPath)
	if string(got) != string(payload) {
		t.Errorf("staged content differs from response body")
	}
}

func TestHTTP_Fetch_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, _, err := NewHTTP(5*time.Second).Fetch(context.Background(), server.URL+"/gone.ogg", t.TempDir())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHTTP_Fetch_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, _, err := NewHTTP(5*time.Second).Fetch(context.Background(), server.URL+"/flaky.ogg", t.TempDir())
	var transferErr *TransferError
	if !errors.As(err, &transferErr) {
		t.Fatalf("expected TransferError, got %v", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("5xx must not be classified as not-found")
	}
}

func TestHTTP_Fetch_NoNameInURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer server.Close()

	localPath, _, err := NewHTTP(5*time.Second).Fetch(context.Background(), server.URL, t.TempDir())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if filepath.Base(localPath) != "audio.bin" {
		t.Errorf("fallback name = %s, want audio.bin", filepath.Base(localPath))
	}
}

func TestAuto_Dispatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote"))
	}))
	defer server.Close()

	src := filepath.Join(t.TempDir(), "local.ogg")
	if err := os.WriteFile(src, []byte("local"), 0o644); err != nil {
		t.Fatal(err)
	}

	auto := NewAuto(5 * time.Second)

	localPath, size, err := auto.Fetch(context.Background(), src, t.TempDir())
	if err != nil {
		t.Fatalf("local fetch failed: %v", err)
	}
	if size != 5 {
		t.Errorf("local size = %d, want 5", size)
	}
	got, _ := os.ReadFile(localPath)
	if string(got) != "local" {
		t.Errorf("local content = %q", got)
	}

	remotePath, size, err := auto.Fetch(context.Background(), server.URL+"/a.ogg", t.TempDir())
	if err != nil {
		t.Fatalf("http fetch failed: %v", err)
	}
	if size != 6 {
		t.Errorf("remote size = %d, want 6", size)
	}
	got, _ = os.ReadFile(remotePath)
	if string(got) != "remote" {
		t.Errorf("remote content = %q", got)
	}
}
