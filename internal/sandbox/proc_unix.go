//go:build unix

package sandbox

import (
	"os/exec"
	"syscall"
)

// isolate puts the worker in its own process group and kills the whole
// group on cancel, so tesseract or pdftoppm children die with it.
func isolate(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
