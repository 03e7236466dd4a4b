// Package radio provides the frequency-normalization helpers shared by
// the controller set, remote-aircraft manager, voice adapter, and
// network manager: all of them need to compare a COM frequency against
// an FSD-wire frequency under the same 25 kHz-stepped canonicalization.
package radio

// NormalizeKhz canonicalizes a 25 kHz-stepped channel frequency, given
// in kHz, so that the legacy "…20/…70" channel numbers collapse onto
// their "…25/…75" representative. Used whenever two frequencies are
// compared for equality (COM-to-controller binding, radio message
// frequency matching).
func NormalizeKhz(khz int) int {
	switch khz % 100 {
	case 20, 70:
		return khz + 5
	default:
		return khz
	}
}

// DenormalizeKhz reverses NormalizeKhz, mapping a canonical "…25/…75"
// frequency back to the legacy "…20/…70" channel number. Present for
// symmetry with the wire format; the client only ever needs the
// forward direction when comparing frequencies, but a PDU occasionally
// carries the legacy form and must be denormalized before re-display.
func DenormalizeKhz(khz int) int {
	switch khz % 100 {
	case 25, 75:
		return khz - 5
	default:
		return khz
	}
}

// HzFromKhz converts a kHz frequency to Hz, as stored on
// Controller.FrequencyHz.
func HzFromKhz(khz int) int {
	return khz * 1000
}

// Equal reports whether two kHz frequencies refer to the same channel
// once 25 kHz normalization is applied to both.
func Equal(aKhz, bKhz int) bool {
	return NormalizeKhz(aKhz) == NormalizeKhz(bKhz)
}
