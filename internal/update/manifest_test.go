package update

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
)

func TestManifestSource_Latest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Update-Platform"); got != runtime.GOOS+"/"+runtime.GOARCH {
			t.Errorf("platform header = %q", got)
		}
		if got := r.Header.Get("X-Update-Channel"); got != "beta" {
			t.Errorf("channel header = %q", got)
		}
		if got := r.Header.Get("X-Update-Current-Version"); got != "1.0.0" {
			t.Errorf("current version header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "m-42",
			"version": "1.1.0",
			"notes": "## Fixes",
			"assets": [{"name": "app", "url": "https://cdn/app", "sha256": "ABC", "size": 10, "os": "linux", "arch": "amd64"}]
		}`))
	}))
	defer srv.Close()

	src := &ManifestSource{URL: srv.URL, Channel: "beta", CurrentVersion: "1.0.0"}
	rel, err := src.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if rel.TagName != "v1.1.0" || rel.Name != "m-42" || rel.Body != "## Fixes" {
		t.Errorf("release = %+v", rel)
	}
	if len(rel.Assets) != 1 || rel.Assets[0].BrowserDownloadURL != "https://cdn/app" || rel.Assets[0].SHA256 != "ABC" {
		t.Errorf("assets = %+v", rel.Assets)
	}
}

func TestManifestSource_NoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	rel, err := (&ManifestSource{URL: srv.URL}).Latest(context.Background())
	if err != nil || rel != nil {
		t.Errorf("Latest() = %+v, %v; want nil, nil", rel, err)
	}
}

func TestManifestSource_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, ""},
		{"bad json", http.StatusOK, "not json"},
		{"missing version", http.StatusOK, `{"id":"x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := (&ManifestSource{URL: srv.URL}).Latest(context.Background())
			if KindOf(err) != KindBackend {
				t.Errorf("err = %v, want backend kind", err)
			}
		})
	}
}
