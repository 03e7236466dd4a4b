// Package aircraft holds the configuration record shared by the
// own-aircraft broadcaster and the remote-aircraft manager: gear,
// flaps, spoilers, ground state, per-engine run/reverse flags and
// exterior lights, plus the incremental-vs-full merge/diff rules both
// sides need to agree on.
package aircraft

// EngineState is the optional run/reverse state of one engine.
type EngineState struct {
	Running   *bool `json:"running,omitempty"`
	Reversing *bool `json:"reversing,omitempty"`
}

// LightsState is the optional exterior-light state.
type LightsState struct {
	StrobeOn  *bool `json:"strobe_on,omitempty"`
	LandingOn *bool `json:"landing_on,omitempty"`
	TaxiOn    *bool `json:"taxi_on,omitempty"`
	BeaconOn  *bool `json:"beacon_on,omitempty"`
	NavOn     *bool `json:"nav_on,omitempty"`
}

// Configuration is the optional-field aircraft configuration record,
// serialized as a compact JSON object embedded in a client-query PDU
// payload. IsFullData is present only on full snapshots; its absence
// means the record is an incremental delta, never an ambiguous one.
type Configuration struct {
	IsFullData  bool                `json:"is_full_data,omitempty"`
	GearDown    *bool               `json:"gear_down,omitempty"`
	FlapsPct    *int                `json:"flaps_pct,omitempty"`
	SpoilersOut *bool               `json:"spoilers_out,omitempty"`
	OnGround    *bool               `json:"on_ground,omitempty"`
	Engines     map[int]EngineState `json:"engines,omitempty"`
	Lights      *LightsState        `json:"lights,omitempty"`
}

func boolEqual(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func intEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func lightsEqual(a, b *LightsState) bool {
	if a == nil || b == nil {
		return a == b
	}
	return boolEqual(a.StrobeOn, b.StrobeOn) &&
		boolEqual(a.LandingOn, b.LandingOn) &&
		boolEqual(a.TaxiOn, b.TaxiOn) &&
		boolEqual(a.BeaconOn, b.BeaconOn) &&
		boolEqual(a.NavOn, b.NavOn)
}

func enginesEqual(a, b map[int]EngineState) bool {
	if len(a) != len(b) {
		return false
	}
	for idx, ea := range a {
		eb, ok := b[idx]
		if !ok {
			return false
		}
		if !boolEqual(ea.Running, eb.Running) || !boolEqual(ea.Reversing, eb.Reversing) {
			return false
		}
	}
	return true
}

// Equal compares the field contents, ignoring IsFullData.
func Equal(a, b Configuration) bool {
	return boolEqual(a.GearDown, b.GearDown) &&
		intEqual(a.FlapsPct, b.FlapsPct) &&
		boolEqual(a.SpoilersOut, b.SpoilersOut) &&
		boolEqual(a.OnGround, b.OnGround) &&
		enginesEqual(a.Engines, b.Engines) &&
		lightsEqual(a.Lights, b.Lights)
}

// Diff computes the incremental configuration carrying only the
// fields of new that differ from old. diff(x, x) is empty.
func Diff(old, updated Configuration) Configuration {
	var d Configuration
	if !boolEqual(old.GearDown, updated.GearDown) {
		d.GearDown = updated.GearDown
	}
	if !intEqual(old.FlapsPct, updated.FlapsPct) {
		d.FlapsPct = updated.FlapsPct
	}
	if !boolEqual(old.SpoilersOut, updated.SpoilersOut) {
		d.SpoilersOut = updated.SpoilersOut
	}
	if !boolEqual(old.OnGround, updated.OnGround) {
		d.OnGround = updated.OnGround
	}
	if !enginesEqual(old.Engines, updated.Engines) {
		d.Engines = updated.Engines
	}
	if !lightsEqual(old.Lights, updated.Lights) {
		d.Lights = updated.Lights
	}
	return d
}

// Merge applies a delta onto base. A full delta (IsFullData) replaces
// base wholesale. An incremental delta overwrites only the fields
// present in it. Lights and engines apply element-wise: an engine index
// or a light field present in delta replaces the corresponding field in
// base, everything else in base is kept. Merge(old, Diff(old, new))
// equals new for every field new sets; a field, light or engine entry
// that is set in old and absent from new is kept from old, not cleared.
func Merge(base, delta Configuration) Configuration {
	out := base
	if delta.IsFullData {
		return delta
	}
	if delta.GearDown != nil {
		out.GearDown = delta.GearDown
	}
	if delta.FlapsPct != nil {
		out.FlapsPct = delta.FlapsPct
	}
	if delta.SpoilersOut != nil {
		out.SpoilersOut = delta.SpoilersOut
	}
	if delta.OnGround != nil {
		out.OnGround = delta.OnGround
	}
	if delta.Engines != nil {
		merged := make(map[int]EngineState, len(out.Engines))
		for idx, e := range out.Engines {
			merged[idx] = e
		}
		for idx, incoming := range delta.Engines {
			existing := merged[idx]
			if incoming.Running != nil {
				existing.Running = incoming.Running
			}
			if incoming.Reversing != nil {
				existing.Reversing = incoming.Reversing
			}
			merged[idx] = existing
		}
		out.Engines = merged
	}
	if delta.Lights != nil {
		merged := LightsState{}
		if out.Lights != nil {
			merged = *out.Lights
		}
		if delta.Lights.StrobeOn != nil {
			merged.StrobeOn = delta.Lights.StrobeOn
		}
		if delta.Lights.LandingOn != nil {
			merged.LandingOn = delta.Lights.LandingOn
		}
		if delta.Lights.TaxiOn != nil {
			merged.TaxiOn = delta.Lights.TaxiOn
		}
		if delta.Lights.BeaconOn != nil {
			merged.BeaconOn = delta.Lights.BeaconOn
		}
		if delta.Lights.NavOn != nil {
			merged.NavOn = delta.Lights.NavOn
		}
		out.Lights = &merged
	}
	return out
}

// BoolPtr and IntPtr are convenience constructors for the optional
// pointer fields above.
func BoolPtr(b bool) *bool { return &b }
func IntPtr(i int) *int    { return &i }
