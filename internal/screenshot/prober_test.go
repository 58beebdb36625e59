package screenshot

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestHTTPProber(t *testing.T) {
	imageData := pngBytes(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/ok.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(imageData)
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ok.png", http.StatusFound)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	mux.HandleFunc("/html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>blocked</body></html>"))
	})
	mux.HandleFunc("/error-image", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write(imageData)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	prober := NewHTTPProber(&HTTPProberConfig{Timeout: 5 * time.Second, UserAgent: "ninjascan-test"})

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{name: "png image", path: "/ok.png"},
		{name: "redirect to image", path: "/redirect"},
		{name: "not found", path: "/missing", wantErr: true},
		{name: "html body", path: "/html", wantErr: true},
		{name: "image with error status", path: "/error-image", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := prober.Probe(context.Background(), server.URL+tc.path)
			if tc.wantErr && err == nil {
				t.Error("expected probe failure")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected probe failure: %v", err)
			}
		})
	}
}

func TestHTTPProber_UnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	if err := NewHTTPProber(nil).Probe(context.Background(), url+"/x.png"); err == nil {
		t.Error("expected failure for closed server")
	}
}

func TestHTTPProber_SendsUserAgent(t *testing.T) {
	var got string
	imageData := pngBytes(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Write(imageData)
	}))
	defer server.Close()

	if err := NewHTTPProber(&HTTPProberConfig{UserAgent: "ninjascan/1.0"}).Probe(context.Background(), server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ninjascan/1.0" {
		t.Errorf("User-Agent = %q", got)
	}
}
