package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRouter_Healthz(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(nil, nil).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rec.Code, rec.Body.String())
	}
}

func TestRouter_Readyz(t *testing.T) {
	cases := []struct {
		name  string
		ready ReadyFunc
		want  int
	}{
		{"no probe", nil, http.StatusOK},
		{"store up", func(context.Context) error { return nil }, http.StatusOK},
		{"store down", func(context.Context) error { return errors.New("dial tcp: refused") }, http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		NewServer(nil, c.ready).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rec.Code != c.want {
			t.Fatalf("%s: want %d got %d", c.name, c.want, rec.Code)
		}
	}
}

func TestRouter_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	NewServer(nil, nil).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}

func TestServer_StartShutdown(t *testing.T) {
	s := NewServer(nil, nil)
	addr, err := s.Start("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(b) != "ok" {
		t.Fatalf("unexpected body %q", b)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := http.Get("http://" + addr + "/healthz"); err == nil {
		t.Fatal("server still serving after shutdown")
	}
}
