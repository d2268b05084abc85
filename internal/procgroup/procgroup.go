// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup spawns child processes in their own process group so an
// inspection run can be reaped as a whole when its session moves on.
package procgroup
