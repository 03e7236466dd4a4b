package radio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeKhzCollapsesLegacyChannels(t *testing.T) {
	assert.Equal(t, 128025, NormalizeKhz(128020))
	assert.Equal(t, 128075, NormalizeKhz(128070))
	assert.Equal(t, 128025, NormalizeKhz(128025))
}

func TestEqualMatchesAcrossLegacyAndCanonicalForm(t *testing.T) {
	assert.True(t, Equal(128020, 128025))
	assert.False(t, Equal(128020, 128050))
}

func TestHzFromKhz(t *testing.T) {
	assert.Equal(t, 128025000, HzFromKhz(128025))
}

func TestEffectiveFrequencyKhzZeroWhenAvionicsOff(t *testing.T) {
	s := StackState{AvionicsOn: false, Com1: ComState{FrequencyKhz: 128025, ReceiveEnabled: true}}
	assert.Equal(t, 0, s.EffectiveFrequencyKhz(1))
}

func TestEffectiveFrequencyKhzZeroWhenReceiveDisabled(t *testing.T) {
	s := StackState{AvionicsOn: true, Com1: ComState{FrequencyKhz: 128025, ReceiveEnabled: false}}
	assert.Equal(t, 0, s.EffectiveFrequencyKhz(1))
}

func TestEffectiveFrequencyKhzReturnsTunedFrequency(t *testing.T) {
	s := StackState{AvionicsOn: true, Com2: ComState{FrequencyKhz: 121500, ReceiveEnabled: true}}
	assert.Equal(t, 121500, s.EffectiveFrequencyKhz(2))
}
