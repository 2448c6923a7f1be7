//go:build !windows

package transport

import (
	"fmt"
	"time"
)

func newWinPipeDialer(path string, timeout time.Duration) (Dialer, error) {
	return nil, fmt.Errorf("npipe transport is not supported on this platform")
}
