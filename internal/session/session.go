package session

import (
	"sync"

	"uk.co.dudmesh.bitlink/pkg/waclient"
)

type Phase string

const (
	PhaseUninitialized Phase = "UNINITIALIZED"
	PhaseAwaitingScan  Phase = "AWAITING_SCAN"
	PhaseAuthenticated Phase = "AUTHENTICATED"
	PhaseReady         Phase = "READY"
	PhaseAuthFailed    Phase = "AUTH_FAILED"
	PhaseDisconnected  Phase = "DISCONNECTED"
)

// State tracks the external client's connectivity phase. It is written by
// the ingest loop and read from HTTP handler goroutines, hence the lock.
type State struct {
	mu    sync.RWMutex
	phase Phase
}

func NewState() *State {
	return &State{phase: PhaseUninitialized}
}

func (s *State) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Ready reports whether outbound commands may be dispatched. Callers must
// check this at invocation time, not cache it.
func (s *State) Ready() bool {
	return s.Phase() == PhaseReady
}

// Apply moves the state machine for one session event and returns the new
// phase. auth_failure and disconnected force their phase from anywhere; a
// reconnecting client re-enters through a fresh qr event.
func (s *State) Apply(kind waclient.EventKind) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch kind {
	case waclient.EventQR:
		s.phase = PhaseAwaitingScan
	case waclient.EventAuthenticated:
		s.phase = PhaseAuthenticated
	case waclient.EventReady:
		s.phase = PhaseReady
	case waclient.EventAuthFailure:
		s.phase = PhaseAuthFailed
	case waclient.EventDisconnected:
		s.phase = PhaseDisconnected
	}
	return s.phase
}
