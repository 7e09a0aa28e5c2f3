// Package endpoint turns listen-address strings into typed bind targets.
// Accepted forms: a bare port number ("8080"), "tcp://host:port",
// "unix:/path/to/socket", and "pipe:\\.\name" for Windows named pipes.
package endpoint

import (
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/statica-io/statica/pkg/util"
)

// DefaultPort is used when a tcp:// endpoint carries no explicit port and
// when no listen address is given at all.
const DefaultPort uint16 = 5000

// PipePrefix is the literal prefix every Windows named-pipe path must carry.
const PipePrefix = `\\.\`

type Kind int

const (
	TCP Kind = iota
	Unix
	Pipe
)

var ErrInvalidEndpoint = errors.New("invalid listen endpoint")

type UnknownSchemeError struct {
	Scheme string
}

func (e *UnknownSchemeError) Error() string {
	return fmt.Sprintf("unknown listen scheme %q", e.Scheme)
}

// Endpoint is a parsed listen target. Exactly one variant is populated:
// Host/Port for TCP, Path for Unix and Pipe.
type Endpoint struct {
	Kind Kind
	Host string
	Port uint16
	Path string

	bare bool
}

func Parse(str string) (Endpoint, error) {
	if str == "" {
		return Endpoint{Kind: TCP, Port: DefaultPort, bare: true}, nil
	}

	if n, err := strconv.ParseUint(str, 10, 64); err == nil {
		if n > math.MaxUint16 {
			return Endpoint{}, errors.Wrapf(ErrInvalidEndpoint, "port %d out of range", n)
		}
		return Endpoint{Kind: TCP, Port: uint16(n), bare: true}, nil
	}

	scheme, rest := util.SchemeAndAddress(str)
	switch {
	case strings.HasPrefix(str, "pipe:"):
		path := strings.TrimPrefix(str, "pipe:")
		if !strings.HasPrefix(path, PipePrefix) {
			return Endpoint{}, errors.Wrapf(ErrInvalidEndpoint, `named pipe %q must start with %q`, path, PipePrefix)
		}
		return Endpoint{Kind: Pipe, Path: path}, nil
	case strings.HasPrefix(str, "unix:"):
		path := strings.TrimPrefix(str, "unix:")
		path = strings.TrimPrefix(path, "//")
		if path == "" {
			return Endpoint{}, errors.Wrap(ErrInvalidEndpoint, "unix socket path is empty")
		}
		return Endpoint{Kind: Unix, Path: path}, nil
	case scheme == "tcp":
		return parseTCP(rest)
	case scheme != "":
		return Endpoint{}, &UnknownSchemeError{Scheme: scheme}
	}
	if name, ok := schemePrefix(str); ok {
		return Endpoint{}, &UnknownSchemeError{Scheme: name}
	}
	return Endpoint{}, errors.Wrapf(ErrInvalidEndpoint, "cannot parse %q", str)
}

// schemePrefix extracts a scheme-like "name:" prefix from str. Scheme names
// start with a letter and continue with letters, digits, "+", "-" or ".",
// which keeps things like "[::1]:80" out.
func schemePrefix(str string) (string, bool) {
	name, _, ok := strings.Cut(str, ":")
	if !ok || name == "" {
		return "", false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return "", false
		}
	}
	return name, true
}

// parseTCP handles the authority part of a tcp:// endpoint. IPv6 literals
// keep their brackets through the Host/Addr round trip via JoinHostPort.
func parseTCP(authority string) (Endpoint, error) {
	ep := Endpoint{Kind: TCP, Port: DefaultPort}
	if authority == "" {
		return ep, nil
	}

	host, port, err := net.SplitHostPort(authority)
	if err != nil {
		// No port component. A bare IPv6 literal still carries brackets.
		ep.Host = strings.TrimSuffix(strings.TrimPrefix(authority, "["), "]")
		return ep, nil
	}

	ep.Host = host
	if port != "" {
		n, err := strconv.ParseUint(port, 10, 16)
		if err != nil {
			return Endpoint{}, errors.Wrapf(ErrInvalidEndpoint, "bad port %q", port)
		}
		ep.Port = uint16(n)
	}
	return ep, nil
}

// Bare reports whether the endpoint came from a bare port number (or was
// defaulted entirely), which makes it eligible for the ephemeral-port retry
// on bind conflict.
func (e Endpoint) Bare() bool {
	return e.Kind == TCP && e.bare
}

// WithEphemeralPort returns a copy bound to port 0 for the conflict retry.
func (e Endpoint) WithEphemeralPort() Endpoint {
	e.Port = 0
	return e
}

// Network returns the net.Listen network name for the endpoint.
func (e Endpoint) Network() string {
	switch e.Kind {
	case Unix:
		return "unix"
	case Pipe:
		return "pipe"
	}
	return "tcp"
}

// Addr returns the net.Listen address for the endpoint.
func (e Endpoint) Addr() string {
	if e.Kind != TCP {
		return e.Path
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

func (e Endpoint) String() string {
	switch e.Kind {
	case Unix:
		return "unix:" + e.Path
	case Pipe:
		return "pipe:" + e.Path
	}
	return "tcp://" + e.Addr()
}
