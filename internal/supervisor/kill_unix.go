//go:build unix

package supervisor

import (
	"os/exec"
	"syscall"
)

// setProcessGroup gives the transcoder its own process group so signals
// reach any children it spawns.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func interrupt(cmd *exec.Cmd) error {
	return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
}

func forceKill(cmd *exec.Cmd) {
	syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	cmd.Process.Kill()
}

func killByName(name string) error {
	return exec.Command("pkill", "-9", "-x", name).Run()
}
