package pdu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPackUnpackPitchBankHeadingRoundTrip(t *testing.T) {
	cases := []struct {
		pitch, bank, heading float64
	}{
		{0, 0, 0},
		{10, -15, 90},
		{-45, 45, 180},
		{90, -90, 359},
		{-179, 179, 0.5},
	}

	for _, c := range cases {
		packed := PackPitchBankHeading(c.pitch, c.bank, c.heading)
		pitch, bank, heading := UnpackPitchBankHeading(packed)

		assert.InDelta(t, c.pitch, pitch, 0.4)
		assert.InDelta(t, c.bank, bank, 0.4)
		assert.InDelta(t, c.heading, heading, 0.4)
	}
}

func TestUnpackPitchBankHeadingRanges(t *testing.T) {
	_, _, heading := UnpackPitchBankHeading(PackPitchBankHeading(0, 0, 270))
	assert.GreaterOrEqual(t, heading, 0.0)
	assert.Less(t, heading, 360.0)

	pitch, bank, _ := UnpackPitchBankHeading(PackPitchBankHeading(-170, -170, 0))
	assert.Greater(t, pitch, -180.0)
	assert.LessOrEqual(t, pitch, 180.0)
	assert.Greater(t, bank, -180.0)
	assert.LessOrEqual(t, bank, 180.0)
}
