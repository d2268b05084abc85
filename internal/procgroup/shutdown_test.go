// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build linux

package procgroup

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTerminate_ReapsGroupLeader(t *testing.T) {
	cmd := exec.Command("sleep", "100")
	Set(cmd)
	require.NoError(t, cmd.Start())

	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	require.NoError(t, err)
	require.Equal(t, cmd.Process.Pid, pgid, "child must lead its own group")

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	err = Terminate(cmd, waitCh, 500*time.Millisecond)
	require.Error(t, err, "sleep killed by signal exits non-zero")
	require.Equal(t, syscall.ESRCH, syscall.Kill(-pgid, syscall.Signal(0)), "process group should be gone")
}

func TestTerminate_NilCommand(t *testing.T) {
	require.NoError(t, Terminate(nil, nil, time.Millisecond))
	require.NoError(t, Kill(nil, syscall.SIGTERM))
}
