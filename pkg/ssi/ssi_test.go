package ssi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadSource(t *testing.T) {
	for _, source := range []string{"", "ftp://example.com", "not a url", "/relative/path"} {
		_, err := New(source, t.TempDir())
		assert.Error(t, err, "source %q", source)
	}
}

func TestRewriteNoDirectives(t *testing.T) {
	r, err := New("https://example.com/fragments", t.TempDir())
	require.NoError(t, err)

	doc := "<html><body><p>nothing to include</p></body></html>"
	assert.Equal(t, doc, r.Rewrite(context.Background(), doc))
}

func TestRewriteVirtual(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/frag/header.html":
			w.Write([]byte("<h1>Header</h1>"))
		default:
			http.NotFound(w, req)
		}
	}))
	defer srv.Close()

	r, err := New(srv.URL+"/frag/", t.TempDir())
	require.NoError(t, err)

	doc := `<body><!--#include virtual="header.html"--><p>rest</p></body>`
	got := r.Rewrite(context.Background(), doc)
	assert.Equal(t, "<body><h1>Header</h1><p>rest</p></body>", got)
}

func TestRewriteFile(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(base, "footer.html"), []byte("<footer>f</footer>"), 0644))

	r, err := New("https://example.com/", base)
	require.NoError(t, err)

	doc := `<body><!--#include file="footer.html" --></body>`
	got := r.Rewrite(context.Background(), doc)
	assert.Equal(t, "<body><footer>f</footer></body>", got)
}

func TestRewriteFailedDirectiveYieldsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	r, err := New(srv.URL, t.TempDir())
	require.NoError(t, err)

	doc := `<p>a</p><!--#include virtual="gone.html"--><p>b</p><!--#include file="gone.html"--><p>c</p>`
	got := r.Rewrite(context.Background(), doc)
	assert.Equal(t, "<p>a</p><p>b</p><p>c</p>", got)
}

func TestRewriteFileEscapeRejected(t *testing.T) {
	base := t.TempDir()
	outside := filepath.Join(filepath.Dir(base), "secret.html")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0644))

	r, err := New("https://example.com/", base)
	require.NoError(t, err)

	doc := `<!--#include file="../secret.html"-->`
	assert.Equal(t, "", r.Rewrite(context.Background(), doc))
}
