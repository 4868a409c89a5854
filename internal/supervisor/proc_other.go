//go:build !unix

package supervisor

import "os"

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().Perm()&0o111 != 0
}

// Windows has no SIGTERM.
func terminate(p *os.Process) error {
	return p.Kill()
}
