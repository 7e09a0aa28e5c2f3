//go:build !windows

package listener

import (
	"net"

	"github.com/pkg/errors"
)

func listenPipe(path string) (net.Listener, error) {
	return nil, errors.Errorf("named pipe %s: pipe endpoints are only supported on Windows", path)
}
