// Package ssi resolves server-side-include directives embedded in HTML
// documents. Directives reference either a fragment path on the configured
// remote source (virtual) or a file under the local base directory (file).
package ssi

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/statica-io/statica/pkg/util"
)

// directive matches <!--#include virtual="..."--> and
// <!--#include file="..."-->, with optional whitespace before -->.
var directive = regexp.MustCompile(`<!--#include\s+(virtual|file)="([^"]*)"\s*-->`)

type Rewriter struct {
	source *url.URL
	base   string
	client *retryablehttp.Client
}

// New builds a Rewriter fetching remote fragments from source and local
// fragments from under base. The source must be an absolute http(s) URL.
func New(source, base string) (*Rewriter, error) {
	u, err := util.ParseURL(source)
	if err != nil {
		return nil, errors.Wrap(err, "ssi source")
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Errorf("ssi source %q is not an absolute http(s) URL", source)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil

	return &Rewriter{source: u, base: base, client: client}, nil
}

// Rewrite substitutes every include directive in doc and returns the result.
// A document without directives comes back unchanged. A failing directive
// yields the empty string in its place; the rest of the document still
// renders, since one broken include must not take the whole page down.
func (r *Rewriter) Rewrite(ctx context.Context, doc string) string {
	return directive.ReplaceAllStringFunc(doc, func(m string) string {
		parts := directive.FindStringSubmatch(m)
		kind, ref := parts[1], parts[2]

		var (
			fragment string
			err      error
		)
		switch kind {
		case "virtual":
			fragment, err = r.fetchRemote(ctx, ref)
		case "file":
			fragment, err = r.readLocal(ref)
		}
		if err != nil {
			logrus.Warnf("ssi: include %s=%q failed: %v", kind, ref, err)
			return ""
		}
		return fragment
	})
}

func (r *Rewriter) fetchRemote(ctx context.Context, ref string) (string, error) {
	rel, err := url.Parse(ref)
	if err != nil {
		return "", errors.Wrap(err, "parsing include target")
	}
	target := r.source.ResolveReference(rel)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("fetching %s: unexpected status %s", target, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrapf(err, "reading %s", target)
	}
	return string(body), nil
}

// readLocal resolves ref under the base directory. Anything escaping the
// base is rejected.
func (r *Rewriter) readLocal(ref string) (string, error) {
	path := filepath.Join(r.base, filepath.FromSlash(ref))
	rel, err := filepath.Rel(r.base, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("include %q escapes the base directory", ref)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
