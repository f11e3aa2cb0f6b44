//go:build windows

package supervisor

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForceKillReapsCommandTree(t *testing.T) {
	cmd := exec.Command("cmd", "/C", "ping", "-n", "30", "127.0.0.1")
	require.NoError(t, cmd.Start())

	forceKill(cmd)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("command tree survived the force kill")
	}
}
