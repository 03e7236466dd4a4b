// Package remoteaircraft reconciles positions, capability probes, and
// configuration updates arriving from the network into a set of
// simulated aircraft: discovery, eligibility, staleness eviction, and
// the ignore list.
package remoteaircraft

import (
	"strings"
	"sync"
	"time"

	"github.com/ferrlab/pilotlink/internal/aircraft"
)

// Status is a NetworkAircraft's lifecycle stage.
type Status int

const (
	StatusNew Status = iota
	StatusActive
	StatusIgnored
	StatusPending
)

// VisualState is the remote aircraft's last reported position.
type VisualState struct {
	Lat, Lon         float64
	TrueAltitudeFt   float64
	AglFt            float64
	Pitch, Bank      float64
	Heading          float64
	GroundSpeedKt    int
}

// Aircraft is one NetworkAircraft: a remote pilot's callsign, type, and
// reconciled visual/configuration state.
type Aircraft struct {
	Callsign      string
	Airline       string
	TypeCode      string
	Visual        VisualState
	Configuration *aircraft.Configuration

	LastSlowUpdateAt time.Time
	LastSyncAt       time.Time
	Status           Status
	HaveVelocities   bool
	GroundSpeedKt    int
}

// Eligible reports the invariant required before a New aircraft may be
// promoted to Active: a configuration has arrived, a type code is
// known, and it has not been ignored.
func (a *Aircraft) Eligible() bool {
	return a.Configuration != nil && a.TypeCode != "" && a.Status != StatusIgnored
}

// Commander issues aircraft commands to the simulator bridge: add,
// remove, push a configuration, or report a model change.
type Commander interface {
	AddAircraft(a *Aircraft)
	RemoveAircraft(callsign string)
	PushConfiguration(callsign string, cfg aircraft.Configuration)
	ForwardSlowPosition(callsign string, v VisualState)
	ForwardFastPosition(callsign string, v VisualState)
	ModelChanged(callsign, newTypeCode string)
}

// ProbeSender issues the capability/capabilities-announce/info-request
// probe sequence to a newly discovered callsign.
type ProbeSender interface {
	ProbeNewAircraft(callsign string)
}

const staleAfter = 10 * time.Second

// Manager owns the full set of NetworkAircraft, keyed by callsign, plus
// the ignore list.
type Manager struct {
	mu       sync.Mutex
	planes   map[string]*Aircraft
	ignored  map[string]struct{}
	sim      Commander
	probe    ProbeSender
}

// NewManager creates an empty Manager pushing simulator commands
// through sim and capability probes through probe.
func NewManager(sim Commander, probe ProbeSender) *Manager {
	return &Manager{
		planes:  make(map[string]*Aircraft),
		ignored: make(map[string]struct{}),
		sim:     sim,
		probe:   probe,
	}
}

func key(callsign string) string {
	return strings.ToUpper(callsign)
}

// Get returns the aircraft for callsign, if any.
func (m *Manager) Get(callsign string) (*Aircraft, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.planes[key(callsign)]
	return a, ok
}

func (m *Manager) isIgnored(callsign string) bool {
	_, ok := m.ignored[key(callsign)]
	return ok
}

// HandleSlowPosition applies a "@" slow pilot position report, creating
// the aircraft on first sight and probing its capabilities, or
// forwarding the update and attempting a sync if it is already present.
func (m *Manager) HandleSlowPosition(callsign string, v VisualState) {
	m.mu.Lock()
	k := key(callsign)
	a, exists := m.planes[k]
	if !exists {
		status := StatusNew
		if m.isIgnored(callsign) {
			status = StatusIgnored
		}
		a = &Aircraft{Callsign: callsign, Status: status}
		m.planes[k] = a
	}
	a.Visual = v
	a.LastSlowUpdateAt = time.Now()
	shouldProbe := !exists && a.Status != StatusIgnored
	shouldSync := exists && a.Status == StatusNew && a.Eligible()
	sim := m.sim
	probe := m.probe
	m.mu.Unlock()

	if shouldProbe && probe != nil {
		probe.ProbeNewAircraft(callsign)
	}
	if exists && sim != nil {
		sim.ForwardSlowPosition(callsign, v)
	}
	if shouldSync {
		m.syncOne(callsign)
	}
}

// HandleFastPosition forwards a "^"/"#SL"/"#ST" position to the
// simulator bridge without touching lifecycle state.
func (m *Manager) HandleFastPosition(callsign string, v VisualState) {
	m.mu.Lock()
	a, ok := m.planes[key(callsign)]
	if ok {
		a.HaveVelocities = true
	}
	sim := m.sim
	m.mu.Unlock()

	if ok && sim != nil {
		sim.ForwardFastPosition(callsign, v)
	}
}

// HandleAircraftInfo applies a "#SB PI GEN" response: sets type/airline,
// and if a prior non-empty type code changed, reports a model change
// instead of attempting a sync.
func (m *Manager) HandleAircraftInfo(callsign, typeCode, airline string) {
	m.mu.Lock()
	a, ok := m.planes[key(callsign)]
	if !ok {
		m.mu.Unlock()
		return
	}
	prior := a.TypeCode
	changed := prior != "" && typeCode != "" && prior != typeCode
	a.TypeCode = typeCode
	a.Airline = airline
	eligible := !changed && a.Status == StatusNew && a.Eligible()
	sim := m.sim
	m.mu.Unlock()

	if changed {
		if sim != nil {
			sim.ModelChanged(callsign, typeCode)
		}
		return
	}
	if eligible {
		m.syncOne(callsign)
	}
}

// HandleAircraftConfiguration merges an incoming configuration (full or
// incremental) into the aircraft's stored configuration and syncs or
// pushes it as appropriate. A delta arriving before any configuration
// has ever been seen is dropped silently.
func (m *Manager) HandleAircraftConfiguration(callsign string, cfg aircraft.Configuration) {
	m.mu.Lock()
	a, ok := m.planes[key(callsign)]
	if !ok {
		m.mu.Unlock()
		return
	}
	if a.Configuration == nil && !cfg.IsFullData {
		m.mu.Unlock()
		return
	}

	var merged aircraft.Configuration
	if a.Configuration == nil {
		merged = cfg
	} else {
		merged = aircraft.Merge(*a.Configuration, cfg)
	}
	a.Configuration = &merged

	shouldSync := a.Status == StatusNew && a.Eligible()
	sim := m.sim
	m.mu.Unlock()

	if shouldSync {
		m.syncOne(callsign)
		return
	}
	if sim != nil {
		sim.PushConfiguration(callsign, merged)
	}
}

// syncOne promotes a single New & eligible aircraft to Active, adding it
// to the simulator and pushing its configuration.
func (m *Manager) syncOne(callsign string) {
	m.mu.Lock()
	a, ok := m.planes[key(callsign)]
	if !ok || a.Status != StatusNew || !a.Eligible() {
		m.mu.Unlock()
		return
	}
	a.Status = StatusActive
	a.LastSyncAt = time.Now()
	sim := m.sim
	cfg := *a.Configuration
	m.mu.Unlock()

	if sim != nil {
		sim.AddAircraft(a)
		sim.PushConfiguration(callsign, cfg)
	}
}

// SyncSimulatorAircraft scans every aircraft and promotes any New &
// eligible one to Active.
func (m *Manager) SyncSimulatorAircraft() {
	m.mu.Lock()
	var candidates []string
	for k, a := range m.planes {
		if a.Status == StatusNew && a.Eligible() {
			candidates = append(candidates, k)
		}
	}
	m.mu.Unlock()

	for _, k := range candidates {
		m.syncOne(k)
	}
}

// EvictStale removes every aircraft whose last slow update is older
// than 10 seconds.
func (m *Manager) EvictStale() {
	m.mu.Lock()
	var stale []string
	now := time.Now()
	for k, a := range m.planes {
		if now.Sub(a.LastSlowUpdateAt) > staleAfter {
			stale = append(stale, k)
		}
	}
	for _, k := range stale {
		delete(m.planes, k)
	}
	sim := m.sim
	m.mu.Unlock()

	if sim != nil {
		for _, k := range stale {
			sim.RemoveAircraft(k)
		}
	}
}

// Delete removes an aircraft explicitly (e.g. on "#DP").
func (m *Manager) Delete(callsign string) {
	m.mu.Lock()
	k := key(callsign)
	_, existed := m.planes[k]
	delete(m.planes, k)
	sim := m.sim
	m.mu.Unlock()

	if existed && sim != nil {
		sim.RemoveAircraft(callsign)
	}
}

// Ignore deletes any existing aircraft for callsign and adds it to the
// ignore list.
func (m *Manager) Ignore(callsign string) {
	m.Delete(callsign)
	m.mu.Lock()
	m.ignored[key(callsign)] = struct{}{}
	m.mu.Unlock()
}

// Unignore removes callsign from the ignore list; a subsequent position
// report may create it again.
func (m *Manager) Unignore(callsign string) {
	m.mu.Lock()
	delete(m.ignored, key(callsign))
	m.mu.Unlock()
}

// Count returns the number of tracked aircraft, for diagnostics/tests.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.planes)
}
