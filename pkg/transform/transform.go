// Package transform implements the content-transform step of the serving
// pipeline: charset-typed Content-Type headers for text assets, and SSI
// rewriting of HTML-family documents when a source is configured.
package transform

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	texttransform "golang.org/x/text/transform"

	"github.com/statica-io/statica/pkg/charset"
	"github.com/statica-io/statica/pkg/ssi"
)

// allowed is the fixed extension allow-list for charset typing. SSI applies
// to the HTML-family subset only, never to css.
var allowed = map[string]bool{
	"css":   true,
	"html":  true,
	"htm":   true,
	"shtml": true,
}

type Transform struct {
	// Charset forces a charset for every request when non-empty.
	Charset string
	// Rewriter resolves SSI directives; nil disables rewriting.
	Rewriter *ssi.Rewriter
}

// Result describes what Apply decided for one request. A nil Body means
// binary-safe passthrough: the caller serves the original stream untouched.
// An empty ContentType leaves typing to the caller.
type Result struct {
	Body        *bytes.Reader
	ContentType string
	Charset     string
}

// Apply computes the per-request transform decision for the file at path.
// It never fails the request: any error inside the pipeline degrades to
// passthrough with a warning.
func (t *Transform) Apply(ctx context.Context, path string, isDir bool) Result {
	ext := Ext(path)
	if isDir || !allowed[ext] {
		return Result{}
	}

	cs := charset.Resolve(path, t.Charset)
	res := Result{
		ContentType: "text/" + ext + "; charset=" + cs,
		Charset:     cs,
	}

	if t.Rewriter == nil || ext == "css" {
		return res
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		logrus.Warnf("ssi: reading %s: %v", path, err)
		return res
	}

	enc := charset.Encoding(cs)
	decoded, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(raw)))
	if err != nil {
		logrus.Warnf("ssi: decoding %s as %s: %v", path, cs, err)
		return res
	}

	rewritten := t.Rewriter.Rewrite(ctx, string(decoded))

	// texttransform.Bytes flushes the encoder, so stateful charsets like
	// iso-2022-jp emit their end-of-stream reset sequence.
	encoded, _, err := texttransform.Bytes(enc.NewEncoder(), []byte(rewritten))
	if err != nil {
		logrus.Warnf("ssi: re-encoding %s as %s: %v", path, cs, err)
		return res
	}

	res.Body = bytes.NewReader(encoded)
	return res
}

// Ext returns the lowercased extension of name without the leading dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}
