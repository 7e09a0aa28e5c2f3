package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestLoadNoConfig(t *testing.T) {
	cfg, err := Load(t.TempDir(), "")
	require.NoError(t, err)
	assert.Equal(t, "", cfg.Public)
	assert.False(t, cfg.CleanUrls)
	assert.True(t, cfg.TrailingSlash)
	assert.True(t, cfg.ListDirectories())
}

func TestLoadServeJSON(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "serve.json", `{
		"public": "dist",
		"symlinks": true,
		"ssi": "https://example.com/frag",
		"charset": "iso-8859-1",
		"listen": ["3000", "unix:/tmp/s.sock"],
		"headers": [{"source": "**/*.js", "headers": [{"key": "Cache-Control", "value": "no-cache"}]}]
	}`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "dist", cfg.Public)
	assert.True(t, cfg.Symlinks)
	assert.Equal(t, "https://example.com/frag", cfg.SSI)
	assert.Equal(t, "iso-8859-1", cfg.Charset)
	assert.Equal(t, []string{"3000", "unix:/tmp/s.sock"}, cfg.Listen)
	require.Len(t, cfg.Headers, 1)
	assert.Equal(t, "Cache-Control", cfg.Headers[0].Headers[0].Key)
}

func TestLoadRewritesAndRedirects(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "serve.json", `{
		"rewrites": [{"source": "api/*", "destination": "/api.html"}],
		"redirects": [
			{"source": "old-home", "destination": "/"},
			{"source": "docs/*", "destination": "/manual", "type": 302}
		]
	}`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	require.Len(t, cfg.Rewrites, 1)
	assert.Equal(t, "api/*", cfg.Rewrites[0].Source)
	assert.Equal(t, "/api.html", cfg.Rewrites[0].Destination)
	require.Len(t, cfg.Redirects, 2)
	assert.Equal(t, 0, cfg.Redirects[0].Type)
	assert.Equal(t, 302, cfg.Redirects[1].Type)
}

func TestSchemaRejectsRedirectWithoutDestination(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "serve.json", `{"redirects": [{"source": "x"}]}`)
	_, err := Load(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destination")
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "serve.json", `{"public": "from-serve"}`)
	writeConfig(t, dir, "now.json", `{"static": {"public": "from-now"}}`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "from-serve", cfg.Public)
}

func TestLoadNowJSONStaticKey(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "now.json", `{"name": "x", "static": {"public": "www"}}`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "www", cfg.Public)
}

func TestLoadPackageJSONNowStaticKey(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "package.json", `{"name": "x", "now": {"static": {"public": "build"}}}`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.Equal(t, "build", cfg.Public)
}

func TestLoadExplicitPathMustExist(t *testing.T) {
	_, err := Load(t.TempDir(), filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadMalformedJSON(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "serve.json", `{"public": `)
	_, err := Load(dir, "")
	assert.Error(t, err)
}

func TestSchemaViolationNamesField(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "serve.json", `{"public": 42}`)

	_, err := Load(dir, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "public")
}

func TestSchemaRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "serve.json", `{"bogusOption": true}`)
	_, err := Load(dir, "")
	assert.Error(t, err)
}

func TestSchemaSkipsExtensionFields(t *testing.T) {
	// ssi, charset and listen are excluded from validation even with
	// values the schema would otherwise reject.
	raw := map[string]interface{}{
		"ssi":     42,
		"charset": true,
		"listen":  "8080",
		"public":  "dist",
	}
	assert.NoError(t, Validate(raw))
}

func TestTrailingSlashAndCleanUrlsAreFixed(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "serve.json", `{"cleanUrls": true, "trailingSlash": false}`)

	cfg, err := Load(dir, "")
	require.NoError(t, err)
	assert.False(t, cfg.CleanUrls)
	assert.True(t, cfg.TrailingSlash)
}
