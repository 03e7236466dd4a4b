package remoteaircraft

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrlab/pilotlink/internal/aircraft"
)

type fakeSim struct {
	mu      sync.Mutex
	added   []string
	removed []string
	pushed  map[string]aircraft.Configuration
	changed map[string]string
}

func newFakeSim() *fakeSim {
	return &fakeSim{pushed: map[string]aircraft.Configuration{}, changed: map[string]string{}}
}

func (f *fakeSim) AddAircraft(a *Aircraft) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, a.Callsign)
}
func (f *fakeSim) RemoveAircraft(callsign string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, callsign)
}
func (f *fakeSim) PushConfiguration(callsign string, cfg aircraft.Configuration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed[callsign] = cfg
}
func (f *fakeSim) ForwardSlowPosition(string, VisualState) {}
func (f *fakeSim) ForwardFastPosition(string, VisualState) {}
func (f *fakeSim) ModelChanged(callsign, newTypeCode string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changed[callsign] = newTypeCode
}

type fakeProbe struct {
	probed []string
}

func (p *fakeProbe) ProbeNewAircraft(callsign string) {
	p.probed = append(p.probed, callsign)
}

func TestSlowPositionCreatesNewAndProbes(t *testing.T) {
	sim := newFakeSim()
	probe := &fakeProbe{}
	m := NewManager(sim, probe)

	m.HandleSlowPosition("UAL1", VisualState{Lat: 41.5, Lon: -87.6})

	a, ok := m.Get("UAL1")
	require.True(t, ok)
	assert.Equal(t, StatusNew, a.Status)
	assert.Equal(t, []string{"UAL1"}, probe.probed)
}

func TestRemotePlaneLifecyclePromotesToActive(t *testing.T) {
	sim := newFakeSim()
	m := NewManager(sim, &fakeProbe{})

	m.HandleSlowPosition("UAL1", VisualState{})
	m.HandleAircraftInfo("UAL1", "B738", "UAL")
	m.HandleAircraftConfiguration("UAL1", aircraft.Configuration{
		IsFullData: true, GearDown: aircraft.BoolPtr(false), FlapsPct: aircraft.IntPtr(0),
		OnGround: aircraft.BoolPtr(false),
		Engines: map[int]aircraft.EngineState{1: {Running: aircraft.BoolPtr(true)}, 2: {Running: aircraft.BoolPtr(true)}},
		Lights:  &aircraft.LightsState{StrobeOn: aircraft.BoolPtr(true), NavOn: aircraft.BoolPtr(true)},
	})

	a, ok := m.Get("UAL1")
	require.True(t, ok)
	assert.Equal(t, StatusActive, a.Status)
	assert.Equal(t, []string{"UAL1"}, sim.added)
	assert.True(t, *a.Configuration.Engines[1].Running)
}

func TestIncrementalBeforeFullIsDropped(t *testing.T) {
	sim := newFakeSim()
	m := NewManager(sim, &fakeProbe{})
	m.HandleSlowPosition("UAL1", VisualState{})

	m.HandleAircraftConfiguration("UAL1", aircraft.Configuration{FlapsPct: aircraft.IntPtr(25)})
	a, _ := m.Get("UAL1")
	assert.Nil(t, a.Configuration)

	m.HandleAircraftConfiguration("UAL1", aircraft.Configuration{IsFullData: true, FlapsPct: aircraft.IntPtr(15), GearDown: aircraft.BoolPtr(true)})
	a, _ = m.Get("UAL1")
	require.NotNil(t, a.Configuration)
	assert.Equal(t, 15, *a.Configuration.FlapsPct)

	m.HandleAircraftConfiguration("UAL1", aircraft.Configuration{FlapsPct: aircraft.IntPtr(25)})
	a, _ = m.Get("UAL1")
	assert.Equal(t, 25, *a.Configuration.FlapsPct)
	assert.True(t, *a.Configuration.GearDown)
}

func TestModelChangeSkipsSync(t *testing.T) {
	sim := newFakeSim()
	m := NewManager(sim, &fakeProbe{})
	m.HandleSlowPosition("UAL1", VisualState{})
	m.HandleAircraftInfo("UAL1", "B738", "UAL")
	m.HandleAircraftInfo("UAL1", "A320", "UAL")

	assert.Equal(t, "A320", sim.changed["UAL1"])
	a, _ := m.Get("UAL1")
	assert.Equal(t, StatusNew, a.Status)
}

func TestStalenessEvictsAfterTimeout(t *testing.T) {
	sim := newFakeSim()
	m := NewManager(sim, &fakeProbe{})
	m.HandleSlowPosition("UAL1", VisualState{})

	a, _ := m.Get("UAL1")
	a.LastSlowUpdateAt = time.Now().Add(-11 * time.Second)

	m.EvictStale()
	_, ok := m.Get("UAL1")
	assert.False(t, ok)
	assert.Equal(t, []string{"UAL1"}, sim.removed)
}

func TestIgnoreFilterBlocksSimAdd(t *testing.T) {
	sim := newFakeSim()
	m := NewManager(sim, &fakeProbe{})
	m.Ignore("UAL1")

	m.HandleSlowPosition("UAL1", VisualState{})
	m.HandleAircraftInfo("UAL1", "B738", "UAL")
	m.HandleAircraftConfiguration("UAL1", aircraft.Configuration{IsFullData: true, FlapsPct: aircraft.IntPtr(0)})

	assert.Empty(t, sim.added)
	a, _ := m.Get("UAL1")
	assert.Equal(t, StatusIgnored, a.Status)
}

func TestEligibilityMonotoneNeverRevertsToNewWithoutDelete(t *testing.T) {
	sim := newFakeSim()
	m := NewManager(sim, &fakeProbe{})
	m.HandleSlowPosition("UAL1", VisualState{})
	m.HandleAircraftInfo("UAL1", "B738", "UAL")
	m.HandleAircraftConfiguration("UAL1", aircraft.Configuration{IsFullData: true, FlapsPct: aircraft.IntPtr(0)})

	a, _ := m.Get("UAL1")
	require.Equal(t, StatusActive, a.Status)

	m.HandleAircraftConfiguration("UAL1", aircraft.Configuration{FlapsPct: aircraft.IntPtr(50)})
	a, _ = m.Get("UAL1")
	assert.Equal(t, StatusActive, a.Status)
}
