//go:build !linux

package server

import (
	"fmt"
	"net"

	"sysqueryd/internal/errcode"
)

// Listen falls back to the standard listener. Socket options and the
// backlog are left to the platform defaults.
func Listen(cfg ListenConfig) (net.Listener, error) {
	ln, err := net.Listen("tcp4", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, errcode.New(errcode.Bind, err)
	}
	return ln, nil
}
