//go:build unix

package graph

import (
	"os/exec"
	"syscall"
)

// killProcessGroup starts the renderer in its own process group and kills the
// whole group on cancellation, so wrappers like `sh -c` take their children
// down with them.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
