// Package listener owns one bound endpoint and the HTTP server processing
// requests on it.
package listener

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"
	"syscall"

	"github.com/atotto/clipboard"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/statica-io/statica/pkg/endpoint"
	"github.com/statica-io/statica/pkg/util"
)

type Listener struct {
	ep  endpoint.Endpoint
	ln  net.Listener
	srv *http.Server

	// requested port carried forward when the ephemeral-port retry fired,
	// for the user-facing message only
	previous  uint16
	retried   bool
	closeOnce sync.Once
}

// Bind attempts to bind the endpoint and prepares a server around handler.
// An "address already in use" conflict on a bare TCP endpoint is retried
// exactly once with an OS-assigned ephemeral port; every other failure, or
// a failing retry, is returned to the caller as fatal.
func Bind(ep endpoint.Endpoint, handler http.Handler) (*Listener, error) {
	l := &Listener{ep: ep, srv: &http.Server{Handler: handler}}

	ln, err := listen(ep)
	if err != nil {
		if !ep.Bare() || !errors.Is(err, syscall.EADDRINUSE) {
			return nil, errors.Wrapf(err, "binding %s", ep)
		}
		ln, err = listen(ep.WithEphemeralPort())
		if err != nil {
			return nil, errors.Wrapf(err, "rebinding after conflict on port %d", ep.Port)
		}
		l.previous = ep.Port
		l.retried = true
	}

	l.ln = ln
	return l, nil
}

func listen(ep endpoint.Endpoint) (net.Listener, error) {
	switch ep.Kind {
	case endpoint.Unix:
		if err := os.Remove(ep.Path); err != nil && !os.IsNotExist(err) {
			logrus.Warnf("failed to remove socket %s: %v", ep.Path, err)
		}
		ln, err := net.Listen("unix", ep.Path)
		if err != nil {
			return nil, err
		}
		if err := os.Chmod(ep.Path, 0600); err != nil {
			ln.Close()
			return nil, err
		}
		return ln, nil
	case endpoint.Pipe:
		return listenPipe(ep.Path)
	}
	return net.Listen("tcp", ep.Addr())
}

// Serve accepts and dispatches requests until Close. A closed-server result
// is not an error.
func (l *Listener) Serve() error {
	err := l.srv.Serve(l.ln)
	if err == http.ErrServerClosed || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// Close releases the socket. Safe to call more than once; only the first
// call does anything.
func (l *Listener) Close() {
	l.closeOnce.Do(func() {
		logrus.Infof("shutting down %s", l.ep)
		l.srv.Close()
		if l.ep.Kind == endpoint.Unix {
			os.Remove(l.ep.Path)
		}
	})
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Previous returns the originally requested port when the bind conflict
// retry replaced it with an ephemeral one.
func (l *Listener) Previous() (uint16, bool) {
	return l.previous, l.retried
}

// LocalURL is the address a local client can reach the listener on.
func (l *Listener) LocalURL() string {
	switch l.ep.Kind {
	case endpoint.Unix:
		return "unix:" + l.ep.Path
	case endpoint.Pipe:
		return "pipe:" + l.ep.Path
	}
	host := l.ep.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(l.boundPort()))
}

// NetworkURL is the best-effort LAN-reachable address, or "" when the
// listener is not TCP or no non-loopback interface address was found.
func (l *Listener) NetworkURL() string {
	if l.ep.Kind != endpoint.TCP {
		return ""
	}
	lan := util.LANAddress()
	if lan == "" {
		return ""
	}
	return "http://" + net.JoinHostPort(lan, strconv.Itoa(l.boundPort()))
}

func (l *Listener) boundPort() int {
	if addr, ok := l.ln.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return int(l.ep.Port)
}

// Announce reports the bound addresses and optionally copies the local one
// to the clipboard. Clipboard failures are warnings, never fatal.
func (l *Listener) Announce(copyAddress bool) {
	if prev, ok := l.Previous(); ok {
		logrus.Infof("port %d is in use, listening on port %d instead", prev, l.boundPort())
	}
	logrus.Infof("serving on %s", l.LocalURL())
	if nw := l.NetworkURL(); nw != "" {
		logrus.Infof("reachable on the local network at %s", nw)
	}

	if copyAddress && l.ep.Kind == endpoint.TCP {
		if err := clipboard.WriteAll(l.LocalURL()); err != nil {
			logrus.Warnf("could not copy address to clipboard: %v", err)
		} else {
			logrus.Info("copied local address to clipboard")
		}
	}
}

// Banner prints the decorative startup block, suppressed in non-interactive
// contexts through the NO_BANNER environment variable.
func Banner(name, version string) {
	fmt.Printf("\n   %s %s\n   Serving!\n\n", name, version)
}
