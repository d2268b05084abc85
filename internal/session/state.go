// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

// State is the lifecycle state of the playback session.
type State string

const (
	StateIdle      State = "IDLE"
	StateAttaching State = "ATTACHING"
	StateReady     State = "READY"
	StateTornDown  State = "TORN_DOWN"
)

// Trigger is what moves the session between states.
type Trigger string

const (
	// TriggerAttach starts a new engine instance.
	TriggerAttach Trigger = "attach"
	// TriggerManifestLoaded reports the engine's level list is loaded.
	TriggerManifestLoaded Trigger = "manifest_loaded"
	// TriggerTeardown releases the attached engine.
	TriggerTeardown Trigger = "teardown"
)

// Transition is a single allowed edge in the session state machine.
type Transition struct {
	From    State
	To      State
	Trigger Trigger
}

var transitionsTable = []Transition{
	// Attach path
	{From: StateIdle, To: StateAttaching, Trigger: TriggerAttach},
	{From: StateTornDown, To: StateAttaching, Trigger: TriggerAttach},
	{From: StateAttaching, To: StateReady, Trigger: TriggerManifestLoaded},

	// Teardown precedes every new attach and ends failed loads.
	{From: StateIdle, To: StateTornDown, Trigger: TriggerTeardown},
	{From: StateAttaching, To: StateTornDown, Trigger: TriggerTeardown},
	{From: StateReady, To: StateTornDown, Trigger: TriggerTeardown},
}

// TransitionFor returns the allowed transition for a given state and trigger.
func TransitionFor(from State, trig Trigger) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Trigger == trig {
			return tr, true
		}
	}
	return Transition{}, false
}
