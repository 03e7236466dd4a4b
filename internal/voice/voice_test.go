package voice

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrlab/pilotlink/internal/radio"
)

type fakeBackend struct {
	mu         sync.Mutex
	txRadio    int
	freqByIdx  map[int]uint32
	pttActive  bool
	connected  bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{freqByIdx: map[int]uint32{}}
}

func (f *fakeBackend) Connect(ctx context.Context, callsign string) error { f.connected = true; return nil }
func (f *fakeBackend) Disconnect()                                       { f.connected = false }
func (f *fakeBackend) SetCredentials(user, token string)                 {}
func (f *fakeBackend) SetTxRadio(index int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txRadio = index
}
func (f *fakeBackend) SetRadioGain(index, volume int) {}
func (f *fakeBackend) SetRadioFrequencyHz(index int, freqHz uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freqByIdx[index] = freqHz
}
func (f *fakeBackend) SetPosition(lat, lon, altFt float64) {}
func (f *fakeBackend) SetPTT(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pttActive = active
}
func (f *fakeBackend) SelectInputDevice(name string) error  { return nil }
func (f *fakeBackend) SelectOutputDevice(name string) error { return nil }
func (f *fakeBackend) RxActive(index int) bool               { return false }

func (f *fakeBackend) freq(idx int) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.freqByIdx[idx]
}

type fakeAlias struct{ aliasKhz int }

func (a *fakeAlias) AliasForFrequency(khz int) (int, bool) {
	if a.aliasKhz == 0 {
		return 0, false
	}
	return a.aliasKhz, true
}

func TestSetRadioStateAppliesRawFrequencyWithoutAlias(t *testing.T) {
	backend := newFakeBackend()
	a := New(backend, &fakeAlias{}, Events{})

	a.SetRadioState(radio.StackState{
		AvionicsOn: true,
		Com1:       radio.ComState{FrequencyKhz: 128000, ReceiveEnabled: true, TransmitEnabled: true},
	})

	assert.Equal(t, uint32(128000000), backend.freq(0))
	assert.Equal(t, 0, backend.txRadio)
}

func TestSetRadioStateUsesAliasWhenPresent(t *testing.T) {
	backend := newFakeBackend()
	a := New(backend, &fakeAlias{aliasKhz: 128005}, Events{})

	a.SetRadioState(radio.StackState{
		AvionicsOn: true,
		Com1:       radio.ComState{FrequencyKhz: 128000, ReceiveEnabled: true},
	})

	assert.Equal(t, uint32(128005000), backend.freq(0))
}

func TestSetRadioStateZeroesFrequencyWhenRxDisabled(t *testing.T) {
	backend := newFakeBackend()
	a := New(backend, &fakeAlias{}, Events{})

	a.SetRadioState(radio.StackState{
		AvionicsOn: true,
		Com1:       radio.ComState{FrequencyKhz: 128000, ReceiveEnabled: false},
	})

	assert.Equal(t, uint32(0), backend.freq(0))
}

func TestRadioAliasChangedFiresOnlyOnChange(t *testing.T) {
	backend := newFakeBackend()
	var calls int
	a := New(backend, &fakeAlias{}, Events{OnRadioAliasChanged: func(com int, freqHz uint32) { calls++ }})

	state := radio.StackState{AvionicsOn: true, Com1: radio.ComState{FrequencyKhz: 128000, ReceiveEnabled: true}}
	a.SetRadioState(state)
	require.Equal(t, 1, calls)

	a.SetRadioState(state)
	assert.Equal(t, 1, calls)
}

func TestPressPTTNoOpWhenMuted(t *testing.T) {
	backend := newFakeBackend()
	a := New(backend, &fakeAlias{}, Events{})
	a.SetMuted(true)

	a.PressPTT()
	assert.False(t, backend.pttActive)

	a.SetMuted(false)
	a.PressPTT()
	assert.True(t, backend.pttActive)
}

func TestConnectStartsTimersAndDisconnectStopsThem(t *testing.T) {
	backend := newFakeBackend()
	a := New(backend, &fakeAlias{}, Events{})

	require.NoError(t, a.Connect(context.Background(), "N1", "user", "token"))
	assert.True(t, backend.connected)
	assert.NotNil(t, a.stop)

	a.Disconnect()
	assert.False(t, backend.connected)
	assert.Nil(t, a.stop)
}
