package util

import (
	"net/url"

	"github.com/pkg/errors"
)

// ParseURL parses rawURL, naming the offending value on failure. Unencoded
// credentials embedded in the URL are the usual cause.
func ParseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing URL %q", rawURL)
	}
	return u, nil
}

// IsWebURL reports whether str is an absolute http(s) URL with a host.
func IsWebURL(str string) bool {
	u, err := ParseURL(str)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
