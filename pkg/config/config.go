// Package config loads the serving configuration from the first matching
// config file and merges CLI overrides on top. Discovery order: an explicit
// --config path, then serve.json, then now.json ("static" key), then
// package.json ("now.static" key); the first match wins and the rest are
// ignored.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type HeaderRule struct {
	Source  string   `json:"source"`
	Headers []Header `json:"headers"`
}

// Rewrite remaps a matching request path to another path inside the public
// root without the client seeing a different URL.
type Rewrite struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// Redirect sends the client to Destination with an HTTP redirect. Type is
// the status code; zero means 301.
type Redirect struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Type        int    `json:"type,omitempty"`
}

// Config is built once at startup, before any listener binds, and is
// read-only from the perspective of request handling.
type Config struct {
	Public           string       `json:"public,omitempty"`
	Charset          string       `json:"charset,omitempty"`
	SSI              string       `json:"ssi,omitempty"`
	Headers          []HeaderRule `json:"headers,omitempty"`
	Rewrites         []Rewrite    `json:"rewrites,omitempty"`
	Redirects        []Redirect   `json:"redirects,omitempty"`
	Symlinks         bool         `json:"symlinks,omitempty"`
	CleanUrls        bool         `json:"cleanUrls,omitempty"`
	TrailingSlash    bool         `json:"trailingSlash,omitempty"`
	RenderSingle     bool         `json:"renderSingle,omitempty"`
	DirectoryListing *bool        `json:"directoryListing,omitempty"`
	ETag             bool         `json:"etag,omitempty"`
	Unlisted         []string     `json:"unlisted,omitempty"`
	Listen           []string     `json:"listen,omitempty"`
}

// ListDirectories reports whether directory listings are enabled. They are
// on unless the config says otherwise.
func (c *Config) ListDirectories() bool {
	return c.DirectoryListing == nil || *c.DirectoryListing
}

// Load discovers and parses the configuration under cwd. An empty explicit
// path enables discovery; a non-empty one must exist. The zero Config is
// returned when no config file is present.
func Load(cwd, explicit string) (*Config, error) {
	raw, found, err := discover(cwd, explicit)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if found {
		if err := Validate(raw); err != nil {
			return nil, err
		}
		buf, err := json.Marshal(raw)
		if err != nil {
			return nil, errors.Wrap(err, "re-encoding config")
		}
		if err := json.Unmarshal(buf, cfg); err != nil {
			return nil, errors.Wrap(err, "parsing config")
		}
	}

	// Fixed to avoid ambiguity with query strings.
	cfg.CleanUrls = false
	cfg.TrailingSlash = true
	return cfg, nil
}

func discover(cwd, explicit string) (map[string]interface{}, bool, error) {
	if explicit != "" {
		raw, err := readJSON(explicit)
		if err != nil {
			return nil, false, err
		}
		return raw, true, nil
	}

	if raw, err := readOptionalJSON(filepath.Join(cwd, "serve.json")); err != nil {
		return nil, false, err
	} else if raw != nil {
		return raw, true, nil
	}

	if raw, err := readOptionalJSON(filepath.Join(cwd, "now.json")); err != nil {
		return nil, false, err
	} else if raw != nil {
		logrus.Warn("the config within now.json is deprecated, please move it to serve.json")
		return subConfig(raw, "static"), true, nil
	}

	if raw, err := readOptionalJSON(filepath.Join(cwd, "package.json")); err != nil {
		return nil, false, err
	} else if raw != nil {
		if now := subConfig(raw, "now"); now != nil {
			if static := subConfig(now, "static"); static != nil {
				logrus.Warn("the config within package.json is deprecated, please move it to serve.json")
				return static, true, nil
			}
		}
	}

	return nil, false, nil
}

func readJSON(path string) (map[string]interface{}, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(buf, &raw); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	return raw, nil
}

func readOptionalJSON(path string) (map[string]interface{}, error) {
	if _, err := os.Stat(path); err != nil {
		// Treat any stat failure as absence, matching the lookup behavior
		// of the rest of the pipeline.
		return nil, nil
	}
	return readJSON(path)
}

func subConfig(raw map[string]interface{}, key string) map[string]interface{} {
	sub, _ := raw[key].(map[string]interface{})
	return sub
}
