//go:build !windows

package launcher

import (
	"os/exec"
	"syscall"
)

// setProcGroup puts the child in its own process group so Kill can take
// down whatever subprocesses it spawned, not just the direct child.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killGroup kills the child's process group, falling back to the direct
// process when the group is already gone.
func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	if err == nil || err == syscall.ESRCH {
		return nil
	}
	return cmd.Process.Kill()
}
