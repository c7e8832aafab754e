//go:build linux

package sampler

import "golang.org/x/sys/unix"

// raisePriority sets the nice value of the calling OS thread. The caller must have locked
// the goroutine to its thread.
func raisePriority(nice int) error {
	return unix.Setpriority(unix.PRIO_PROCESS, unix.Gettid(), nice)
}
