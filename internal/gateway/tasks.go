package gateway

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// maxProxiedImageSize caps proxied image bodies (20 MB).
const maxProxiedImageSize = 20 * 1024 * 1024

// proxyClient fetches remote generation images on behalf of the browser.
var proxyClient = &http.Client{Timeout: 30 * time.Second}

// ProxyImageURL rewrites a remote image URL into the gateway's proxy
// route so the browser never talks to the generation backend directly.
func ProxyImageURL(remote string) string {
	if remote == "" {
		return ""
	}
	return "/api/midjourney/image?url=" + url.QueryEscape(remote)
}

// handleFetchTask passes a task status fetch through to the backend so
// the client can refresh a task on demand.
func (g *Gateway) handleFetchTask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.taskAPI == nil {
			http.Error(w, "image generation is not configured", http.StatusServiceUnavailable)
			return
		}

		taskID := chi.URLParam(r, "taskID")
		detail, err := g.taskAPI.Fetch(r.Context(), taskID)
		if err != nil {
			g.logger.Warn("task fetch failed", "task", taskID, "error", err)
			http.Error(w, "task fetch failed", http.StatusBadGateway)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

// handleImageProxy streams a remote generation image to the browser.
// Only http(s) URLs are accepted.
func (g *Gateway) handleImageProxy() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("url")
		target, err := url.Parse(raw)
		if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
			http.Error(w, "invalid url", http.StatusBadRequest)
			return
		}

		req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
		if err != nil {
			http.Error(w, "invalid url", http.StatusBadRequest)
			return
		}

		resp, err := proxyClient.Do(req)
		if err != nil {
			http.Error(w, "upstream fetch failed", http.StatusBadGateway)
			return
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			http.Error(w, "upstream status "+resp.Status, http.StatusBadGateway)
			return
		}

		contentType := resp.Header.Get("Content-Type")
		if !strings.HasPrefix(contentType, "image/") {
			http.Error(w, "upstream did not return an image", http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=86400")
		_, _ = io.Copy(w, io.LimitReader(resp.Body, maxProxiedImageSize))
	}
}
