package ownship

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrlab/pilotlink/internal/aircraft"
	"github.com/ferrlab/pilotlink/internal/pdu"
)

func TestAltitudeSymmetryWhenCoLocated(t *testing.T) {
	b := New("N1", RolePilot, nil, nil)
	b.SetAltimeterTemperatureError(37)
	b.SetState(State{Position: Position{AltitudeMslM: 1000}})

	transmitted := b.TransmitTrueAltitudeFt()
	adjusted := b.AdjustIncomingAltitudeFt(transmitted)
	assert.InDelta(t, transmitted-37, adjusted, 0.001)
}

func TestAdjustIncomingAltitudeTapersBetween3000And6000(t *testing.T) {
	b := New("N1", RolePilot, nil, nil)
	b.SetAltimeterTemperatureError(60)
	b.SetState(State{Position: Position{AltitudeMslM: 0}})

	own := b.TransmitTrueAltitudeFt()
	peer := own + 4500
	adjusted := b.AdjustIncomingAltitudeFt(peer)
	// weight = 1 - (4500-3000)/3000 = 0.5
	assert.InDelta(t, peer-30, adjusted, 0.001)
}

func TestAdjustIncomingAltitudeUntouchedBeyond6000(t *testing.T) {
	b := New("N1", RolePilot, nil, nil)
	b.SetAltimeterTemperatureError(60)
	b.SetState(State{Position: Position{AltitudeMslM: 0}})

	own := b.TransmitTrueAltitudeFt()
	peer := own + 9000
	adjusted := b.AdjustIncomingAltitudeFt(peer)
	assert.Equal(t, peer, adjusted)
}

func TestConfigDiffFirstCallSeedsBaselineWithoutBroadcast(t *testing.T) {
	var sent []pdu.PDU
	b := New("N1", RolePilot, func(p pdu.PDU) { sent = append(sent, p) }, nil)

	b.SetConfiguration(aircraft.Configuration{GearDown: aircraft.BoolPtr(true)})
	assert.Empty(t, sent)
}

func TestConfigDiffSendsIncrementalOnChange(t *testing.T) {
	var sent []pdu.PDU
	b := New("N1", RolePilot, func(p pdu.PDU) { sent = append(sent, p) }, nil)

	b.SetConfiguration(aircraft.Configuration{GearDown: aircraft.BoolPtr(true), FlapsPct: aircraft.IntPtr(0)})
	require.Empty(t, sent)

	b.SetConfiguration(aircraft.Configuration{GearDown: aircraft.BoolPtr(true), FlapsPct: aircraft.IntPtr(25)})
	require.Len(t, sent, 1)
	cq, ok := sent[0].(pdu.ClientQuery)
	require.True(t, ok)
	assert.Equal(t, pdu.QueryAircraftConfiguration, cq.Type)
	assert.Contains(t, cq.Payload[0], "flaps_pct")
	assert.NotContains(t, cq.Payload[0], "gear_down")
}

func TestConfigDiffNoOpWhenUnchanged(t *testing.T) {
	var sent []pdu.PDU
	b := New("N1", RolePilot, func(p pdu.PDU) { sent = append(sent, p) }, nil)

	cfg := aircraft.Configuration{GearDown: aircraft.BoolPtr(true)}
	b.SetConfiguration(cfg)
	b.SetConfiguration(cfg)
	assert.Empty(t, sent)
}

func TestTokenBucketCapsBroadcastsOverWindow(t *testing.T) {
	var sentCount int
	b := New("N1", RolePilot, func(p pdu.PDU) { sentCount++ }, nil)
	b.SetConfiguration(aircraft.Configuration{FlapsPct: aircraft.IntPtr(0)})

	for i := 1; i <= 20; i++ {
		b.SetConfiguration(aircraft.Configuration{FlapsPct: aircraft.IntPtr(i)})
	}
	assert.LessOrEqual(t, sentCount, tokenBucketMax)
}

func TestFastTickSendsStoppedWhenStationary(t *testing.T) {
	var sent []pdu.PDU
	b := New("N1", RolePilot, func(p pdu.PDU) { sent = append(sent, p) }, nil)
	b.SetState(State{})

	b.FastTick()
	require.Len(t, sent, 1)
	fp, ok := sent[0].(pdu.FastPilotPosition)
	require.True(t, ok)
	assert.Equal(t, pdu.FastPositionStopped, fp.Kind)
}

func TestFastTickSendsMovingWhenVelocityNonZero(t *testing.T) {
	var sent []pdu.PDU
	b := New("N1", RolePilot, func(p pdu.PDU) { sent = append(sent, p) }, nil)
	b.SetState(State{GroundVelocity: Vector3{X: 50}})

	b.FastTick()
	require.Len(t, sent, 1)
	fp := sent[0].(pdu.FastPilotPosition)
	assert.Equal(t, pdu.FastPositionFast, fp.Kind)
	assert.Equal(t, 50.0, fp.VelocityX)
}

func TestModeCAutoArmOnTakeoff(t *testing.T) {
	var commands []string
	b := New("N1", RolePilot, nil, func(name string) { commands = append(commands, name) })
	b.SetModeCAutoArm(true)

	b.SetState(State{OnGround: true})
	assert.Empty(t, commands)

	b.SetState(State{OnGround: false})
	require.Len(t, commands, 1)

	b.SetState(State{OnGround: true})
	b.SetState(State{OnGround: false})
	assert.Len(t, commands, 2)
}

func TestSlowIntervalByRole(t *testing.T) {
	assert.Equal(t, 5*time.Second, New("N1", RolePilot, nil, nil).SlowInterval())
	assert.Equal(t, 15*time.Second, New("N1", RoleObserver, nil, nil).SlowInterval())
}
