package fetcher

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubRenderer struct {
	html  string
	err   error
	calls int
}

func (r *stubRenderer) Render(ctx context.Context, rawURL string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.html, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientFetchPlain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html><head><title>Carta</title></head><body><a href="/menu">Menu</a></body></html>`)
	}))
	defer srv.Close()

	renderer := &stubRenderer{}
	client := NewClient(NewHTTPFetcher(Options{}), renderer, discardLogger())

	snap, err := client.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap.Title != "Carta" {
		t.Fatalf("title = %q", snap.Title)
	}
	if len(snap.Links) != 1 || snap.Links[0].URL != srv.URL+"/menu" {
		t.Fatalf("links = %v", snap.Links)
	}
	if renderer.calls != 0 {
		t.Fatalf("renderer called %d times for a healthy page", renderer.calls)
	}
}

func TestClientFetch404ShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	renderer := &stubRenderer{html: "<html><body>should not be used</body></html>"}
	client := NewClient(NewHTTPFetcher(Options{}), renderer, discardLogger())

	snap, err := client.Fetch(context.Background(), srv.URL+"/gone")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if renderer.calls != 0 {
		t.Fatal("404 must not trigger the rendered fallback")
	}
	if len(snap.Links) != 0 || snap.CleanText != "" {
		t.Fatalf("404 must yield an empty snapshot, got %+v", snap)
	}
}

func TestClientFetchNonHTTPScheme(t *testing.T) {
	renderer := &stubRenderer{}
	client := NewClient(NewHTTPFetcher(Options{}), renderer, discardLogger())

	snap, err := client.Fetch(context.Background(), "mailto:chef@example.com")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if renderer.calls != 0 {
		t.Fatal("mailto must not trigger the rendered fallback")
	}
	if len(snap.Links) != 0 {
		t.Fatalf("mailto must yield an empty snapshot, got %+v", snap)
	}
}

func TestClientFetchFallsBackToRenderer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	renderer := &stubRenderer{html: `<html><head><title>Rendered</title></head><body></body></html>`}
	client := NewClient(NewHTTPFetcher(Options{}), renderer, discardLogger())

	snap, err := client.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if renderer.calls != 1 {
		t.Fatalf("renderer calls = %d, want 1", renderer.calls)
	}
	if snap.Title != "Rendered" {
		t.Fatalf("title = %q, want rendered document", snap.Title)
	}
}

func TestClientFetchBothPathsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	renderer := &stubRenderer{err: errors.New("browser crashed")}
	client := NewClient(NewHTTPFetcher(Options{}), renderer, discardLogger())

	if _, err := client.Fetch(context.Background(), srv.URL); !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("err = %v, want ErrFetchFailed", err)
	}

	noRenderer := NewClient(NewHTTPFetcher(Options{}), nil, discardLogger())
	if _, err := noRenderer.Fetch(context.Background(), srv.URL); !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("err = %v, want ErrFetchFailed without renderer", err)
	}
}

func TestHTTPFetcherGzipBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		_, _ = io.WriteString(gz, "<html><body>comprimido</body></html>")
		_ = gz.Close()
	}))
	defer srv.Close()

	body, err := NewHTTPFetcher(Options{}).Get(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if body != "<html><body>comprimido</body></html>" {
		t.Fatalf("body = %q", body)
	}
}

func TestHTTPFetcherBodyCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for range 64 {
			_, _ = w.Write(make([]byte, 1024))
		}
	}))
	defer srv.Close()

	if _, err := NewHTTPFetcher(Options{MaxBodyBytes: 1024}).Get(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error when body exceeds the cap")
	}
}
