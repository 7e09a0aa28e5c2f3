package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statica-io/statica/pkg/config"
)

// Covers the full serving pipeline: an SSI-eligible HTML page is rewritten
// and charset-typed, while a css asset on the same server passes through
// byte-identical but still receives its Content-Type header.
func TestEndToEndSSIScenario(t *testing.T) {
	fragments := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/frag/news.html" {
			w.Write([]byte("<section>fresh</section>"))
			return
		}
		http.NotFound(w, r)
	}))
	defer fragments.Close()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "page.html"),
		[]byte(`<body><!--#include virtual="news.html"--></body>`), 0644))
	cssBody := []byte("body { color: #aabbcc; }")
	require.NoError(t, os.WriteFile(filepath.Join(root, "style.css"), cssBody, 0644))

	cfg := &config.Config{TrailingSlash: true, SSI: fragments.URL + "/frag/"}
	handler, err := buildHandler(root, cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/page.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "<body><section>fresh</section></body>", string(body))

	resp, err = http.Get(srv.URL + "/style.css")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/css; charset=utf-8", resp.Header.Get("Content-Type"))
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, cssBody, raw)
}

func TestBuildHandlerInvalidSSISourceDisablesFeature(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "page.html"),
		[]byte(`<body><!--#include virtual="x.html"--></body>`), 0644))

	cfg := &config.Config{TrailingSlash: true, SSI: "not a url"}
	handler, err := buildHandler(root, cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	defer srv.Close()

	// SSI is disabled, so the directive survives untouched.
	resp, err := http.Get(srv.URL + "/page.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<!--#include")
}

func TestParseEndpointsDefaults(t *testing.T) {
	eps, err := parseEndpoints(&config.Config{})
	require.NoError(t, err)
	require.Len(t, eps, 1)
	assert.Equal(t, ":5000", eps[0].Addr())
	assert.True(t, eps[0].Bare())
}

func TestParseEndpointsFromConfig(t *testing.T) {
	eps, err := parseEndpoints(&config.Config{Listen: []string{"8080", "unix:/tmp/s.sock"}})
	require.NoError(t, err)
	require.Len(t, eps, 2)
	assert.Equal(t, ":8080", eps[0].Addr())
	assert.Equal(t, "/tmp/s.sock", eps[1].Addr())
}
