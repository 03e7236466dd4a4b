// Package voice adapts own-aircraft radio state, position, and the
// controller alias table onto an external voice-radio library's control
// surface. The codec itself is out of scope; only connect, radio-state,
// PTT, and device selection are modeled here.
package voice

import (
	"context"
	"sync"
	"time"

	"github.com/ferrlab/pilotlink/internal/radio"
)

const (
	transceiverRefreshInterval = 5 * time.Second
	rxActivePollInterval       = 50 * time.Millisecond
)

// Backend is the control surface of the external voice-radio library.
type Backend interface {
	Connect(ctx context.Context, callsign string) error
	Disconnect()
	SetCredentials(user, token string)
	SetTxRadio(index int)
	SetRadioGain(index int, volume0to100 int)
	SetRadioFrequencyHz(index int, freqHz uint32)
	SetPosition(lat, lon, altFt float64)
	SetPTT(active bool)
	SelectInputDevice(name string) error
	SelectOutputDevice(name string) error
	RxActive(index int) bool
}

// AliasSource resolves a COM frequency (kHz) to the exact frequency a
// matching controller publishes, when its normalized frequency matches.
type AliasSource interface {
	AliasForFrequency(khz int) (aliasKhz int, ok bool)
}

// Events notifies callers of adapter-driven changes.
type Events struct {
	OnRadioAliasChanged func(com int, freqHz uint32)
}

// Adapter owns the shared voice-library handle and a cloned view of
// radio, position, and alias state.
type Adapter struct {
	mu sync.Mutex

	backend Backend
	alias   AliasSource
	events  Events

	radio        radio.StackState
	lat, lon, alt float64
	muted        bool

	lastCom1Freq uint32
	lastCom2Freq uint32

	stop chan struct{}
}

// New creates an Adapter driving backend, resolving aliases through
// alias.
func New(backend Backend, alias AliasSource, events Events) *Adapter {
	return &Adapter{backend: backend, alias: alias, events: events}
}

// SetRadioState applies a changed RadioStackState: selects the transmit
// radio, always overwrites both COM gains with the state's volumes
// (there is no option to keep the current gains), and recomputes effective
// frequencies (firing radio-alias-changed for each COM whose resolution
// changed).
func (a *Adapter) SetRadioState(r radio.StackState) {
	a.mu.Lock()
	a.radio = r
	txIndex := 0
	if !r.Com1.TransmitEnabled && r.Com2.TransmitEnabled {
		txIndex = 1
	}
	a.mu.Unlock()

	a.backend.SetTxRadio(txIndex)
	a.backend.SetRadioGain(0, r.Com1.Volume)
	a.backend.SetRadioGain(1, r.Com2.Volume)

	a.applyFrequency(0, r.Com1)
	a.applyFrequency(1, r.Com2)
}

func (a *Adapter) applyFrequency(index int, c radio.ComState) {
	a.mu.Lock()
	avionicsOn := a.radio.AvionicsOn
	a.mu.Unlock()

	freqHz := uint32(0)
	if c.ReceiveEnabled && avionicsOn {
		freqHz = uint32(c.FrequencyKhz) * 1000
		if a.alias != nil {
			if aliasKhz, ok := a.alias.AliasForFrequency(c.FrequencyKhz); ok {
				freqHz = uint32(aliasKhz) * 1000
			}
		}
	}

	a.backend.SetRadioFrequencyHz(index, freqHz)

	a.mu.Lock()
	var changed bool
	if index == 0 {
		changed = a.lastCom1Freq != freqHz
		a.lastCom1Freq = freqHz
	} else {
		changed = a.lastCom2Freq != freqHz
		a.lastCom2Freq = freqHz
	}
	cb := a.events.OnRadioAliasChanged
	a.mu.Unlock()

	if changed && cb != nil {
		cb(index+1, freqHz)
	}
}

// SetPosition propagates a position update to the voice library.
func (a *Adapter) SetPosition(lat, lon, altFt float64) {
	a.mu.Lock()
	a.lat, a.lon, a.alt = lat, lon, altFt
	a.mu.Unlock()
	a.backend.SetPosition(lat, lon, altFt)
}

// SetMuted applies or clears a server-imposed SELCAL/general mute
// override; while muted, PressPTT is a no-op.
func (a *Adapter) SetMuted(muted bool) {
	a.mu.Lock()
	a.muted = muted
	a.mu.Unlock()
}

// PressPTT asserts push-to-talk, unless a server-imposed mute is active.
func (a *Adapter) PressPTT() {
	a.mu.Lock()
	muted := a.muted
	a.mu.Unlock()
	if muted {
		return
	}
	a.backend.SetPTT(true)
}

// ReleasePTT clears push-to-talk unconditionally.
func (a *Adapter) ReleasePTT() {
	a.backend.SetPTT(false)
}

// RefreshAliases recomputes COM1/COM2 effective frequencies against the
// current alias source, called whenever the controller set changes.
func (a *Adapter) RefreshAliases() {
	a.mu.Lock()
	r := a.radio
	a.mu.Unlock()
	a.applyFrequency(0, r.Com1)
	a.applyFrequency(1, r.Com2)
}

// Connect establishes the voice-library session: sets callsign and
// credentials, connects, and starts the 5 s transceiver refresh and
// 50 ms RX-active poll timers.
func (a *Adapter) Connect(ctx context.Context, callsign, user, token string) error {
	a.backend.SetCredentials(user, token)
	if err := a.backend.Connect(ctx, callsign); err != nil {
		return err
	}

	a.mu.Lock()
	a.stop = make(chan struct{})
	stop := a.stop
	a.mu.Unlock()

	go a.transceiverRefreshLoop(stop)
	go a.rxActivePollLoop(stop)
	return nil
}

// Disconnect stops the timers and tears down the voice-library session.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	if a.stop != nil {
		close(a.stop)
		a.stop = nil
	}
	a.mu.Unlock()
	a.backend.Disconnect()
}

func (a *Adapter) transceiverRefreshLoop(stop chan struct{}) {
	ticker := time.NewTicker(transceiverRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.RefreshAliases()
		}
	}
}

func (a *Adapter) rxActivePollLoop(stop chan struct{}) {
	ticker := time.NewTicker(rxActivePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			a.backend.RxActive(0)
			a.backend.RxActive(1)
		}
	}
}
