// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProcTerminateTotal tracks signals sent to inspector process groups.
	ProcTerminateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamnorm_proc_terminate_total",
		Help: "Signals sent to child process groups by signal and outcome",
	}, []string{"signal", "outcome"})

	// ProcWaitTotal tracks how terminated child processes exited.
	ProcWaitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamnorm_proc_wait_total",
		Help: "Exit classification of terminated child processes",
	}, []string{"result"})
)

// IncProcTerminate records a signal delivery attempt.
func IncProcTerminate(signal, outcome string) {
	ProcTerminateTotal.WithLabelValues(signal, outcome).Inc()
}

// IncProcWait records how a terminated process exited.
func IncProcWait(result string) {
	ProcWaitTotal.WithLabelValues(result).Inc()
}
