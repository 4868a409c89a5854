//go:build unix

package supervisor

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func isExecutable(path string) bool {
	return unix.Access(path, unix.X_OK) == nil
}

func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
