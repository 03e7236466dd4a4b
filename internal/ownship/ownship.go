// Package ownship drives the user's own aircraft onto the network: the
// slow/fast/stopped position cadence, the configuration-diff broadcaster
// with its token bucket, altitude temperature correction, and the
// mode-C auto-arm rule.
package ownship

import (
	"encoding/json"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/ferrlab/pilotlink/internal/aircraft"
	"github.com/ferrlab/pilotlink/internal/pdu"
	"github.com/ferrlab/pilotlink/internal/radio"
)

const (
	velocityZeroThreshold = 0.005
	tokenBucketMax        = 10
	tokenRefillInterval   = 5 * time.Second

	// ACC broadcasts go out to this fixed pseudo-frequency.
	accBroadcastFreq = 94836
)

// Vector3 is a triple of floats meaning either a positional velocity
// (m/s) or a rotational one (rad/s), matching the two uses of
// VelocityVector in the data model.
type Vector3 struct {
	X, Y, Z float64
}

func (v Vector3) isZero() bool {
	return math.Abs(v.X) < velocityZeroThreshold &&
		math.Abs(v.Y) < velocityZeroThreshold &&
		math.Abs(v.Z) < velocityZeroThreshold
}

// Position is the visual state of the own aircraft.
type Position struct {
	Lat, Lon         float64
	AltitudeMslM     float64
	AltitudeAglFt    float64
	Pitch, Bank      float64
	Heading          float64
	NoseWheelAngle   float64
}

// State is a full snapshot of simulator-reported own-aircraft state, fed
// in by the simulator bridge on every dataref update.
type State struct {
	Position           Position
	GroundVelocity     Vector3 // m/s, long/alt/lat
	RotationalVelocity Vector3 // rad/s, pitch/heading/bank
	GroundSpeedKt      int
	SquawkCode         int
	OnGround           bool
	Paused             bool
	PressureAltitudeFt *float64 // independent dataref, if the sim exposes one
	QnhMb              float64
}

func (s State) velocityZero() bool {
	return s.GroundVelocity.isZero() && s.RotationalVelocity.isZero()
}

// Role distinguishes a flying pilot from an observer/towerview
// connection, which governs the slow-timer period and the choice
// between a pilot "@" and an ATC "%" position report.
type Role int

const (
	RolePilot Role = iota
	RoleObserver
)

func (r Role) slowInterval() time.Duration {
	if r == RoleObserver {
		return 15 * time.Second
	}
	return 5 * time.Second
}

// Sender transmits an outbound PDU on the FSD connection.
type Sender func(pdu.PDU)

// SimCommander fires a fire-and-forget command at the simulator bridge,
// used here only for the mode-C auto-arm toggle.
type SimCommander func(name string)

// Broadcaster owns the last known own-aircraft state, radio stack, and
// last broadcast configuration, and drives both position cadences and
// the configuration-diff rate limiter.
type Broadcaster struct {
	mu sync.Mutex

	callsign string
	role     Role
	send     Sender
	command  SimCommander

	state State
	radio radio.StackState

	fastArmed bool
	wasOnGround bool

	baseline     *aircraft.Configuration
	tokens       int
	lastRefill   time.Time

	altimeterTempErrorFt float64
	modeCAutoArm         bool
}

// New creates a Broadcaster for callsign under role, transmitting
// through send and issuing simulator commands through command.
func New(callsign string, role Role, send Sender, command SimCommander) *Broadcaster {
	return &Broadcaster{
		callsign:   callsign,
		role:       role,
		send:       send,
		command:    command,
		tokens:     tokenBucketMax,
		lastRefill: time.Now(),
	}
}

// SetModeCAutoArm toggles the auto-arm-transponder-on-takeoff setting.
func (b *Broadcaster) SetModeCAutoArm(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modeCAutoArm = enabled
}

// SetAltimeterTemperatureError sets the correction (feet) applied to
// true-altitude on transmit and reversed (in whole or in part) on
// receive.
func (b *Broadcaster) SetAltimeterTemperatureError(feet float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.altimeterTempErrorFt = feet
}

// ArmFast enables or disables the 200 ms fast-position timer, as
// directed by the counterpart server's "$SF" PDU.
func (b *Broadcaster) ArmFast(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fastArmed = enabled
}

// FastArmed reports whether the fast timer should currently be running.
func (b *Broadcaster) FastArmed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fastArmed
}

// SlowInterval returns the cadence of the slow timer for this role.
func (b *Broadcaster) SlowInterval() time.Duration {
	return b.role.slowInterval()
}

// SetState updates the last-known simulator state and runs the mode-C
// auto-arm check for a ground-to-airborne transition.
func (b *Broadcaster) SetState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tookOff := b.wasOnGround && !s.OnGround
	b.wasOnGround = s.OnGround
	b.state = s

	if tookOff && b.modeCAutoArm && !b.radio.ModeC && b.command != nil {
		b.command("sim/transponder/transponder_mode_up")
	}
}

// SetRadioState updates the last-known radio stack.
func (b *Broadcaster) SetRadioState(r radio.StackState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.radio = r
}

// TransmitTrueAltitudeFt computes the wire true-altitude for the current
// state: MSL converted to feet plus the altimeter temperature error.
func (b *Broadcaster) TransmitTrueAltitudeFt() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.transmitTrueAltitudeFtLocked()
}

func (b *Broadcaster) transmitTrueAltitudeFtLocked() float64 {
	return b.state.Position.AltitudeMslM*3.28084 + b.altimeterTempErrorFt
}

// TransmitPressureAltitudeFt prefers an independent pressure-altitude
// dataref when the sim exposes one, else derives it from MSL and QNH.
func (b *Broadcaster) TransmitPressureAltitudeFt() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state.PressureAltitudeFt != nil {
		return *b.state.PressureAltitudeFt
	}
	mslFt := b.state.Position.AltitudeMslM * 3.28084
	return mslFt + (1013.25-b.state.QnhMb)*30
}

// AdjustIncomingAltitudeFt reverses the temperature correction on a
// peer's reported true altitude, scaled by vertical separation from our
// own true altitude: full correction within 3000 ft, linearly tapering
// to none at 6000 ft and beyond.
func (b *Broadcaster) AdjustIncomingAltitudeFt(peerTrueAltitudeFt float64) float64 {
	b.mu.Lock()
	ownTrueAlt := b.transmitTrueAltitudeFtLocked()
	tempError := b.altimeterTempErrorFt
	b.mu.Unlock()

	d := math.Abs(ownTrueAlt - peerTrueAltitudeFt)
	switch {
	case d <= 3000:
		return peerTrueAltitudeFt - tempError
	case d <= 6000:
		weight := 1 - (d-3000)/3000
		return peerTrueAltitudeFt - tempError*weight
	default:
		return peerTrueAltitudeFt
	}
}

// SlowTick runs one slow-timer cycle: send a fast position (zero-
// velocity if paused, otherwise marked "slow" if moving) and always a
// slow pilot or ATC position.
func (b *Broadcaster) SlowTick() {
	b.mu.Lock()
	s := b.state
	callsign := b.callsign
	role := b.role
	trueAlt := b.transmitTrueAltitudeFtLocked()
	pressAlt := func() float64 {
		if s.PressureAltitudeFt != nil {
			return *s.PressureAltitudeFt
		}
		return s.Position.AltitudeMslM*3.28084 + (1013.25-s.QnhMb)*30
	}()
	b.mu.Unlock()

	if s.Paused {
		b.sendPosition(pdu.FastPilotPosition{
			Kind: pdu.FastPositionFast, From: callsign,
			Lat: s.Position.Lat, Lon: s.Position.Lon, TrueAltitude: trueAlt, AglFt: s.Position.AltitudeAglFt,
			Pitch: s.Position.Pitch, Bank: s.Position.Bank, Heading: s.Position.Heading,
			HasNoseGearAngle: true, NoseGearAngle: s.Position.NoseWheelAngle,
		})
	} else if !s.velocityZero() {
		b.sendPosition(pdu.FastPilotPosition{
			Kind: pdu.FastPositionSlow, From: callsign,
			Lat: s.Position.Lat, Lon: s.Position.Lon, TrueAltitude: trueAlt, AglFt: s.Position.AltitudeAglFt,
			Pitch: s.Position.Pitch, Bank: s.Position.Bank, Heading: s.Position.Heading,
			VelocityX: s.GroundVelocity.X, VelocityY: s.GroundVelocity.Y, VelocityZ: s.GroundVelocity.Z,
			VelocityPitch: s.RotationalVelocity.X, VelocityHeading: s.RotationalVelocity.Y, VelocityBank: s.RotationalVelocity.Z,
			HasNoseGearAngle: true, NoseGearAngle: s.Position.NoseWheelAngle,
		})
	}

	if role == RoleObserver {
		b.sendPosition(pdu.ATCPosition{
			From: callsign, Facility: pdu.FacilityOBS, VisibilityRange: 40,
			Rating: pdu.RatingOBS, Lat: s.Position.Lat, Lon: s.Position.Lon,
		})
		return
	}

	b.sendPosition(pdu.PilotPosition{
		From: callsign, SquawkCode: s.SquawkCode, SquawkingModeC: b.radio.ModeC, Identing: b.radio.Ident,
		Rating: pdu.RatingOBS, Lat: s.Position.Lat, Lon: s.Position.Lon,
		TrueAltitude: int(trueAlt), PressureAltitude: int(pressAlt), GroundSpeed: s.GroundSpeedKt,
		Pitch: s.Position.Pitch, Bank: s.Position.Bank, Heading: s.Position.Heading,
	})
}

// FastTick runs one fast-timer cycle (200 ms while armed): zero-velocity
// fast position if paused, a moving fast position if velocities are
// non-zero, or an explicit stopped position otherwise. The stopped
// variant is never elided even though its payload would be all zeros.
func (b *Broadcaster) FastTick() {
	b.mu.Lock()
	s := b.state
	callsign := b.callsign
	trueAlt := b.transmitTrueAltitudeFtLocked()
	b.mu.Unlock()

	base := pdu.FastPilotPosition{
		From: callsign, Lat: s.Position.Lat, Lon: s.Position.Lon, TrueAltitude: trueAlt, AglFt: s.Position.AltitudeAglFt,
		Pitch: s.Position.Pitch, Bank: s.Position.Bank, Heading: s.Position.Heading,
		HasNoseGearAngle: true, NoseGearAngle: s.Position.NoseWheelAngle,
	}

	switch {
	case s.Paused:
		base.Kind = pdu.FastPositionFast
	case !s.velocityZero():
		base.Kind = pdu.FastPositionFast
		base.VelocityX, base.VelocityY, base.VelocityZ = s.GroundVelocity.X, s.GroundVelocity.Y, s.GroundVelocity.Z
		base.VelocityPitch, base.VelocityHeading, base.VelocityBank = s.RotationalVelocity.X, s.RotationalVelocity.Y, s.RotationalVelocity.Z
	default:
		base.Kind = pdu.FastPositionStopped
	}

	b.sendPosition(base)
}

func (b *Broadcaster) sendPosition(p pdu.PDU) {
	if b.send != nil {
		b.send(p)
	}
}

// SetConfiguration records a new full aircraft configuration read from
// the simulator. The first call seeds the baseline with no broadcast.
// Later calls broadcast an incremental diff against the baseline, but
// only when a token is available; if the change equals the baseline, or
// no token is available, nothing is sent and the baseline is left
// untouched so the next successful attempt still reflects every change
// since the last broadcast.
func (b *Broadcaster) SetConfiguration(cfg aircraft.Configuration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	full := cfg
	full.IsFullData = true

	if b.baseline == nil {
		b.baseline = &full
		return
	}
	if aircraft.Equal(*b.baseline, full) {
		return
	}
	b.refillTokensLocked()
	if b.tokens <= 0 {
		return
	}

	delta := aircraft.Diff(*b.baseline, full)
	b.tokens--
	b.baseline = &full

	if b.send != nil {
		// @94836 (ACC broadcast) is a radio-style recipient; the network
		// manager routes it like any other frequency-addressed message.
		b.send(pdu.ClientQuery{
			From: b.callsign, To: "@" + strconv.Itoa(accBroadcastFreq),
			Type:    pdu.QueryAircraftConfiguration,
			Payload: []string{accConfigJSON(delta)},
		})
	}
}

// Tokens reports the current token-bucket level, after applying any
// refill owed since the last call.
func (b *Broadcaster) Tokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillTokensLocked()
	return b.tokens
}

// accConfigJSON wraps a configuration delta in the {"config": ...}
// envelope carried as the single trailing field of a "$CQ ... ACC" PDU.
func accConfigJSON(cfg aircraft.Configuration) string {
	body, err := json.Marshal(struct {
		Config aircraft.Configuration `json:"config"`
	}{Config: cfg})
	if err != nil {
		return "{}"
	}
	return string(body)
}

func (b *Broadcaster) refillTokensLocked() {
	elapsed := time.Since(b.lastRefill)
	if elapsed < tokenRefillInterval {
		return
	}
	n := int(elapsed / tokenRefillInterval)
	b.tokens += n
	if b.tokens > tokenBucketMax {
		b.tokens = tokenBucketMax
	}
	b.lastRefill = b.lastRefill.Add(time.Duration(n) * tokenRefillInterval)
}
