// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os/exec"
	"strings"
)

const defaultFFmpegBin = "ffmpeg"

// ResolveFFmpegBin returns the effective ffmpeg binary for the fragment probe.
//
// Resolution order:
// 1) Explicit path containing a separator, used as is if it resolves
// 2) Bare name looked up on PATH
// 3) "ffmpeg" on PATH when nothing is configured
func ResolveFFmpegBin(configured string) (string, error) {
	return resolveFFmpegBinWith(configured, exec.LookPath)
}

func resolveFFmpegBinWith(configured string, lookPath func(string) (string, error)) (string, error) {
	name := strings.TrimSpace(configured)
	if name == "" {
		name = defaultFFmpegBin
	}
	resolved, err := lookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrFFmpegNotFound, name, err)
	}
	return resolved, nil
}
