//go:build windows

package supervisor

import (
	"os/exec"
	"strconv"
)

func setProcessGroup(cmd *exec.Cmd) {}

// Windows has no graceful signal for detached console processes, so the
// interrupt step is already a hard kill.
func interrupt(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

// Process.Kill reaps only the direct child; taskkill /T walks the
// descendant tree and is tried first.
func forceKill(cmd *exec.Cmd) {
	exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(cmd.Process.Pid)).Run()
	cmd.Process.Kill()
}

func killByName(name string) error {
	return exec.Command("taskkill", "/F", "/T", "/IM", name).Run()
}
