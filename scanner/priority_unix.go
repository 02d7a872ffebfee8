//go:build linux || darwin

package scanner

import "golang.org/x/sys/unix"

// lowerPriority renices the whole process so detection yields to
// interactive work.
func lowerPriority() error {
	return unix.Setpriority(unix.PRIO_PROCESS, 0, 10)
}
