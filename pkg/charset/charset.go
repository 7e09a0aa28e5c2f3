// Package charset decides which text encoding applies to a file and maps
// encoding names to codecs.
package charset

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
	htmlcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// Default is used whenever detection fails, is uncertain, or the file
// cannot be read.
const Default = "utf-8"

// sniffLen bounds how much of the file is inspected, mirroring the HTML
// standard's encoding-sniffing prefix.
const sniffLen = 1024

// Resolve returns the charset for the file at path. A non-empty forced
// charset wins unconditionally and the file is never touched. Detection
// errors are non-fatal: the caller always gets a usable charset back.
func Resolve(path, forced string) string {
	if forced != "" {
		return forced
	}

	f, err := os.Open(path)
	if err != nil {
		logrus.Debugf("charset detection skipped for %s: %v", path, err)
		return Default
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, _ := f.Read(buf)
	if n == 0 {
		return Default
	}

	_, name, certain := htmlcharset.DetermineEncoding(buf[:n], "")
	if name == "" {
		return Default
	}
	// DetermineEncoding reports windows-1252 with certain=false when it
	// found nothing at all. Only trust that answer when the document
	// actually declares it.
	if !certain && name == "windows-1252" && !bytes.Contains(bytes.ToLower(buf[:n]), []byte("windows-1252")) {
		return Default
	}
	return name
}

// Encoding maps a charset name to its codec. Unknown or unsupported names
// fall back to UTF-8 so the transform pipeline always has a lossless
// round-trip for valid UTF-8 input.
func Encoding(name string) encoding.Encoding {
	enc, err := htmlindex.Get(name)
	if err != nil || enc == nil {
		logrus.Debugf("unsupported charset %q, falling back to %s", name, Default)
		return unicode.UTF8
	}
	return enc
}
