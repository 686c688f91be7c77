//go:build linux

package server

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"

	"sysqueryd/internal/errcode"
)

// Listen builds the IPv4 listening socket by hand so that the socket options
// are set before bind and the backlog is passed to listen(2) unchanged
// (net.Listen always uses the kernel's somaxconn).
func Listen(cfg ListenConfig) (net.Listener, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, errcode.New(errcode.CreateSocket, err)
	}

	ok := false
	defer func() {
		if !ok {
			_ = unix.Close(fd)
		}
	}()

	if cfg.ReuseAddr {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return nil, errcode.New(errcode.SocketOption, fmt.Errorf("SO_REUSEADDR: %w", err))
		}
	}
	if cfg.ReusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			return nil, errcode.New(errcode.SocketOption, fmt.Errorf("SO_REUSEPORT: %w", err))
		}
	}

	// zero address is INADDR_ANY
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: cfg.Port}); err != nil {
		return nil, errcode.New(errcode.Bind, fmt.Errorf("port %d: %w", cfg.Port, err))
	}
	if err := unix.Listen(fd, cfg.backlog()); err != nil {
		return nil, errcode.New(errcode.Listen, err)
	}

	f := os.NewFile(uintptr(fd), fmt.Sprintf("tcp4:%d", cfg.Port))
	ln, err := net.FileListener(f)
	// FileListener dups the descriptor; ours is released either way
	ok = true
	_ = f.Close()
	if err != nil {
		return nil, errcode.New(errcode.Listen, err)
	}
	return ln, nil
}
