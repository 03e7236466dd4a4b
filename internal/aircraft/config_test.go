package aircraft

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffThenMergeRoundTrips(t *testing.T) {
	old := Configuration{
		IsFullData:  true,
		GearDown:    BoolPtr(true),
		FlapsPct:    IntPtr(0),
		OnGround:    BoolPtr(false),
		Engines:     map[int]EngineState{1: {Running: BoolPtr(true)}, 2: {Running: BoolPtr(true)}},
		Lights:      &LightsState{StrobeOn: BoolPtr(true), NavOn: BoolPtr(true)},
	}
	updated := old
	updated.FlapsPct = IntPtr(25)
	updated.Lights = &LightsState{StrobeOn: BoolPtr(true), NavOn: BoolPtr(true), LandingOn: BoolPtr(true)}

	delta := Diff(old, updated)
	assert.Nil(t, delta.GearDown)
	assert.NotNil(t, delta.FlapsPct)
	assert.Equal(t, 25, *delta.FlapsPct)

	merged := Merge(old, delta)
	assert.True(t, Equal(merged, updated))
}

func TestDiffOfIdenticalConfigIsEmpty(t *testing.T) {
	cfg := Configuration{GearDown: BoolPtr(true), FlapsPct: IntPtr(10)}
	d := Diff(cfg, cfg)
	assert.Nil(t, d.GearDown)
	assert.Nil(t, d.FlapsPct)
	assert.Nil(t, d.Lights)
}

func TestMergeFullReplacesWholesale(t *testing.T) {
	base := Configuration{GearDown: BoolPtr(true), FlapsPct: IntPtr(40)}
	full := Configuration{IsFullData: true, FlapsPct: IntPtr(0)}

	merged := Merge(base, full)
	assert.Nil(t, merged.GearDown)
	assert.Equal(t, 0, *merged.FlapsPct)
}

func TestMergeEngineElementWisePreservesOtherEngine(t *testing.T) {
	base := Configuration{Engines: map[int]EngineState{
		1: {Running: BoolPtr(true)},
		2: {Running: BoolPtr(true)},
	}}
	delta := Configuration{Engines: map[int]EngineState{
		1: {Reversing: BoolPtr(true)},
	}}

	merged := Merge(base, delta)
	assert.True(t, *merged.Engines[1].Running)
	assert.True(t, *merged.Engines[1].Reversing)
	assert.True(t, *merged.Engines[2].Running)
	assert.Nil(t, merged.Engines[2].Reversing)
}

func TestMergeLightsElementWise(t *testing.T) {
	base := Configuration{Lights: &LightsState{StrobeOn: BoolPtr(true), NavOn: BoolPtr(false)}}
	delta := Configuration{Lights: &LightsState{NavOn: BoolPtr(true)}}

	merged := Merge(base, delta)
	assert.True(t, *merged.Lights.StrobeOn)
	assert.True(t, *merged.Lights.NavOn)
}
