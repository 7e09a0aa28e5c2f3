// Package responder serves files from the public root: path resolution with
// candidate-extension lookup, index files, directory listings, header rules,
// and range support through http.ServeContent. The transform pipeline is
// consulted before any body is written.
package responder

import (
	"fmt"
	"html"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/statica-io/statica/pkg/config"
	"github.com/statica-io/statica/pkg/transform"
)

type Responder struct {
	root string
	cfg  *config.Config
	tr   *transform.Transform
}

// New creates a responder rooted at the absolute directory root.
func New(root string, cfg *config.Config, tr *transform.Transform) *Responder {
	return &Responder{root: root, cfg: cfg, tr: tr}
}

func (h *Responder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	upath := r.URL.Path
	if !strings.HasPrefix(upath, "/") {
		upath = "/" + upath
	}
	upath = path.Clean(upath)
	if strings.Contains(upath, "..") {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if dest, code, ok := h.redirect(upath); ok {
		http.Redirect(w, r, dest, code)
		return
	}
	upath = h.rewrite(upath)

	abs, fi, ok := h.resolve(upath)
	if !ok && h.cfg.RenderSingle {
		// Single-page mode: unknown paths render the root index instead.
		abs, fi, ok = h.lookup(filepath.Join(h.root, "index.html"))
	}
	if !ok {
		h.notFound(w, r)
		return
	}

	if fi.IsDir() {
		// Directories are always addressed with a trailing slash.
		if !strings.HasSuffix(r.URL.Path, "/") {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		if index, ifi, ok := h.lookup(filepath.Join(abs, "index.html")); ok && !ifi.IsDir() {
			abs, fi = index, ifi
		} else if h.cfg.ListDirectories() {
			h.applyHeaderRules(w, upath)
			h.listing(w, upath, abs)
			return
		} else {
			h.notFound(w, r)
			return
		}
	}

	logrus.Debugf("GET %s => %s", r.URL.Path, abs)
	h.applyHeaderRules(w, upath)

	res := h.tr.Apply(r.Context(), abs, false)
	if res.ContentType != "" {
		w.Header().Set("Content-Type", res.ContentType)
	}
	if res.Body != nil {
		http.ServeContent(w, r, "", fi.ModTime(), res.Body)
		return
	}

	f, err := os.Open(abs)
	if err != nil {
		h.notFound(w, r)
		return
	}
	defer f.Close()
	if h.cfg.ETag {
		w.Header().Set("ETag", weakETag(fi))
	}
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}

// resolve maps a request path to a file under the root, trying an ordered,
// short-circuiting list of candidates: the exact path, then the path with
// .html and .htm appended when it has no extension of its own.
func (h *Responder) resolve(upath string) (string, os.FileInfo, bool) {
	exact := filepath.Join(h.root, filepath.FromSlash(upath))
	candidates := []string{exact}
	if transform.Ext(upath) == "" && upath != "/" {
		candidates = append(candidates, exact+".html", exact+".htm")
	}

	for _, cand := range candidates {
		if abs, fi, ok := h.lookup(cand); ok {
			return abs, fi, true
		}
	}
	return "", nil, false
}

// lookup stats one candidate path. Every filesystem error is treated as
// absence, permission failures included.
func (h *Responder) lookup(cand string) (string, os.FileInfo, bool) {
	fi, err := os.Lstat(cand)
	if err != nil {
		return "", nil, false
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		if !h.cfg.Symlinks {
			return "", nil, false
		}
		if fi, err = os.Stat(cand); err != nil {
			return "", nil, false
		}
	}
	return cand, fi, true
}

// redirect returns the destination and status of the first redirect rule
// matching the request path. A rule without an explicit type redirects
// with 301.
func (h *Responder) redirect(upath string) (string, int, bool) {
	for _, rule := range h.cfg.Redirects {
		if matchSource(rule.Source, upath) {
			code := rule.Type
			if code == 0 {
				code = http.StatusMovedPermanently
			}
			return rule.Destination, code, true
		}
	}
	return "", 0, false
}

// rewrite remaps the request path through the first matching rewrite rule.
// The client keeps the URL it asked for.
func (h *Responder) rewrite(upath string) string {
	for _, rule := range h.cfg.Rewrites {
		if matchSource(rule.Source, upath) {
			dest := rule.Destination
			if !strings.HasPrefix(dest, "/") {
				dest = "/" + dest
			}
			return path.Clean(dest)
		}
	}
	return upath
}

// applyHeaderRules sets every configured header whose source pattern
// matches the request path, in rule order.
func (h *Responder) applyHeaderRules(w http.ResponseWriter, upath string) {
	for _, rule := range h.cfg.Headers {
		if !matchSource(rule.Source, upath) {
			continue
		}
		for _, hdr := range rule.Headers {
			w.Header().Set(hdr.Key, hdr.Value)
		}
	}
}

// matchSource glob-matches pattern against the request path. A leading
// "**/" prefix matches any directory depth; otherwise path.Match semantics
// apply against the root-relative path.
func matchSource(pattern, upath string) bool {
	rel := strings.TrimPrefix(upath, "/")
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok {
		if matched, _ := path.Match(rest, path.Base(rel)); matched {
			return true
		}
	}
	matched, _ := path.Match(pattern, rel)
	return matched
}

func (h *Responder) notFound(w http.ResponseWriter, r *http.Request) {
	if body, err := os.ReadFile(filepath.Join(h.root, "404.html")); err == nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		w.Write(body)
		return
	}
	http.NotFound(w, r)
}

// listing renders a minimal HTML directory index, skipping unlisted names.
func (h *Responder) listing(w http.ResponseWriter, upath, abs string) {
	entries, err := os.ReadDir(abs)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html><html><head><meta charset=\"utf-8\"><title>Index of %s</title></head><body>", html.EscapeString(upath))
	fmt.Fprintf(&b, "<h1>Index of %s</h1><ul>", html.EscapeString(upath))
	if upath != "/" {
		b.WriteString(`<li><a href="..">..</a></li>`)
	}
	for _, e := range entries {
		name := e.Name()
		if h.unlisted(name) {
			continue
		}
		if e.IsDir() {
			name += "/"
		}
		fmt.Fprintf(&b, `<li><a href="%s">%s</a></li>`, html.EscapeString(name), html.EscapeString(name))
	}
	b.WriteString("</ul></body></html>")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(b.String()))
}

var alwaysUnlisted = []string{".DS_Store", ".git"}

func (h *Responder) unlisted(name string) bool {
	for _, u := range alwaysUnlisted {
		if name == u {
			return true
		}
	}
	for _, pattern := range h.cfg.Unlisted {
		if matched, _ := path.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

func weakETag(fi os.FileInfo) string {
	return fmt.Sprintf(`W/"%x-%x"`, fi.Size(), fi.ModTime().UnixNano())
}
