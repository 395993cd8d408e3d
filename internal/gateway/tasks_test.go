package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestProxyImageURL(t *testing.T) {
	t.Parallel()

	got := ProxyImageURL("https://cdn.example/img.png?x=1&y=2")
	want := "/api/midjourney/image?url=https%3A%2F%2Fcdn.example%2Fimg.png%3Fx%3D1%26y%3D2"
	if got != want {
		t.Fatalf("ProxyImageURL = %q, want %q", got, want)
	}

	if got := ProxyImageURL(""); got != "" {
		t.Fatalf("ProxyImageURL(empty) = %q, want empty", got)
	}
}

func TestHandleImageProxy(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("png-bytes"))
		case "/page.html":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(upstream.Close)

	_, _, router := newTestGateway(t)

	t.Run("streams image", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, ProxyImageURL(upstream.URL+"/img.png"), "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if got := rec.Header().Get("Content-Type"); got != "image/png" {
			t.Fatalf("content type = %q", got)
		}
		if rec.Body.String() != "png-bytes" {
			t.Fatalf("body = %q", rec.Body.String())
		}
	})

	t.Run("rejects non-image upstream", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, ProxyImageURL(upstream.URL+"/page.html"), "")
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", rec.Code)
		}
	})

	t.Run("rejects missing upstream image", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, ProxyImageURL(upstream.URL+"/missing.png"), "")
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", rec.Code)
		}
	})

	t.Run("rejects bad scheme", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/midjourney/image?url=file%3A%2F%2F%2Fetc%2Fpasswd", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("rejects empty url", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/api/midjourney/image", "")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestImageProxyRoundTripsThroughMarkdown(t *testing.T) {
	t.Parallel()

	// The URL a finished task renders into markdown must resolve back to
	// the same remote when the proxy handler parses it.
	remote := "https://cdn.example/attachments/img%20final.png"
	proxied := ProxyImageURL(remote)

	req := httptest.NewRequest(http.MethodGet, proxied, nil)
	if got := req.URL.Query().Get("url"); got != remote {
		t.Fatalf("query round-trip = %q, want %q", got, remote)
	}
	if strings.Contains(proxied, " ") {
		t.Fatalf("proxied URL contains raw spaces: %q", proxied)
	}
}
