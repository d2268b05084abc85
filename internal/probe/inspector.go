// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package probe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/ManuGH/streamnorm/internal/procgroup"
	"github.com/rs/zerolog"
)

// ErrInspectorUnavailable is returned when no inspection binary is configured.
var ErrInspectorUnavailable = errors.New("fragment inspector unavailable")

// Inspector decodes a short media sample and reports its diagnostic stream
// line by line through onLine.
type Inspector interface {
	Inspect(ctx context.Context, data []byte, onLine func(string)) error
}

// InspectorFunc adapts a function to the Inspector interface.
type InspectorFunc func(ctx context.Context, data []byte, onLine func(string)) error

// Inspect implements Inspector.
func (f InspectorFunc) Inspect(ctx context.Context, data []byte, onLine func(string)) error {
	return f(ctx, data, onLine)
}

// FFmpegInspector runs ffmpeg on the fragment and streams its stderr.
type FFmpegInspector struct {
	BinaryPath string
	Grace      time.Duration
	Logger     zerolog.Logger
}

// NewFFmpegInspector returns an inspector bound to the given ffmpeg binary.
func NewFFmpegInspector(binaryPath string, logger zerolog.Logger) *FFmpegInspector {
	return &FFmpegInspector{
		BinaryPath: binaryPath,
		Grace:      500 * time.Millisecond,
		Logger:     logger,
	}
}

// Args returns the ffmpeg command line used for inspection.
func (f *FFmpegInspector) Args() []string {
	return []string{"-hide_banner", "-i", "pipe:0", "-f", "null", "-"}
}

// Inspect implements Inspector. Cancelling ctx terminates the process group.
func (f *FFmpegInspector) Inspect(ctx context.Context, data []byte, onLine func(string)) error {
	if strings.TrimSpace(f.BinaryPath) == "" {
		return ErrInspectorUnavailable
	}

	// #nosec G204 -- binary path comes from operator configuration; args are fixed
	cmd := exec.Command(f.BinaryPath, f.Args()...)
	procgroup.Set(cmd)
	cmd.Stdin = bytes.NewReader(data)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to pipe stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: exec start failed: %v", ErrInspectorUnavailable, err)
	}

	ring := NewRingBuffer(20)
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			ring.Add(line)
			onLine(line)
		}
	}()

	// Wait closes the pipe, so it must run after the scanner drained it.
	waitCh := make(chan error, 1)
	go func() {
		<-scanDone
		waitCh <- cmd.Wait()
	}()

	select {
	case err := <-waitCh:
		if err != nil {
			return fmt.Errorf("ffmpeg exited: %w (stderr tail: %s)", err, strings.Join(ring.GetAll(), " | "))
		}
		return nil
	case <-ctx.Done():
		_ = procgroup.Terminate(cmd, waitCh, f.Grace)
		f.Logger.Debug().Int("pid", cmd.Process.Pid).Msg("inspection cancelled")
		return ctx.Err()
	}
}
