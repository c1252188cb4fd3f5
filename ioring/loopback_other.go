//go:build !linux

package ioring

import (
	"errors"
)

// ErrUnsupported is returned by NewLoopbackProvider on non-Linux hosts;
// see loopback_linux.go for the real epoll-backed implementation and
// poll.ErrUnsupported for why there is no portable fallback.
var ErrUnsupported = errors.New("ioring: loopback provider only supported on linux")

// LoopbackProvider is a non-functional placeholder on non-Linux hosts.
type LoopbackProvider struct{}

func NewLoopbackProvider() (*LoopbackProvider, error) {
	return nil, ErrUnsupported
}
