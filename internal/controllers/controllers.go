// Package controllers owns the ATC station set: add/refresh/expire,
// capability and real-name probes, and COM radio-to-station callsign
// binding.
package controllers

import (
	"strings"
	"sync"
	"time"

	"github.com/ferrlab/pilotlink/internal/radio"
)

const (
	staleAfter  = 60 * time.Second
	sentinelKhz = 199998
)

// Controller is one tracked ATC station.
type Controller struct {
	Callsign          string
	FrequencyKhz      int
	NormalizedKhz     int
	FrequencyHz       int
	Lat, Lon          float64
	LastUpdateAt      time.Time
	RealName          string
	IsValidATC        bool
	IsDeletePending   bool
}

// Valid reports whether this controller should be considered a real
// ATC station: a confirmed valid-ATC flag and a non-sentinel frequency.
func (c *Controller) Valid() bool {
	return c.IsValidATC && c.FrequencyKhz != sentinelKhz
}

// ProbeSender issues the real-name/valid-ATC/capabilities query trio to
// a newly discovered controller.
type ProbeSender interface {
	ProbeController(callsign string)
}

// Subscriber is notified of controller add/refresh/remove events, in
// the order the set intends them to be observed: a refresh is always a
// delete followed by an add, never a bare update, so subscribers never
// double-count.
type Subscriber interface {
	ControllerAdded(c Controller)
	ControllerDeleted(callsign string)
}

// StationBinder receives the callsign (or empty string) each COM radio
// should display as bound, whenever the binding is recomputed.
type StationBinder interface {
	BindStation(com int, callsign string)
}

// Set owns the live controller list.
type Set struct {
	mu      sync.Mutex
	byCall  map[string]*Controller
	probe   ProbeSender
	subs    []Subscriber
	binder  StationBinder
	radio   radio.StackState
}

// NewSet creates an empty controller Set.
func NewSet(probe ProbeSender, binder StationBinder) *Set {
	return &Set{byCall: make(map[string]*Controller), probe: probe, binder: binder}
}

// Subscribe registers a Subscriber for add/delete notifications.
func (s *Set) Subscribe(sub Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
}

func key(callsign string) string { return strings.ToUpper(callsign) }

// Get returns the controller for callsign, if tracked.
func (s *Set) Get(callsign string) (*Controller, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byCall[key(callsign)]
	return c, ok
}

// UpdatePosition applies a "%" controller position. A new callsign is
// inserted and probed; an existing one is refreshed (delete-then-add to
// subscribers) if its frequency or position changed, and marked for
// deletion if the result is not a valid station.
func (s *Set) UpdatePosition(callsign string, frequencyKhz int, lat, lon float64) {
	s.mu.Lock()
	existing, ok := s.byCall[key(callsign)]
	if !ok {
		c := &Controller{
			Callsign:      callsign,
			FrequencyKhz:  frequencyKhz,
			NormalizedKhz: radio.NormalizeKhz(frequencyKhz),
			FrequencyHz:   radio.HzFromKhz(frequencyKhz),
			Lat:           lat,
			Lon:           lon,
			LastUpdateAt:  time.Now(),
			RealName:      "Unknown",
		}
		s.byCall[key(callsign)] = c
		probe := s.probe
		s.mu.Unlock()

		s.notifyAdded(*c)
		if probe != nil {
			probe.ProbeController(callsign)
		}
		s.rebind()
		return
	}

	changed := existing.FrequencyKhz != frequencyKhz || existing.Lat != lat || existing.Lon != lon
	existing.FrequencyKhz = frequencyKhz
	existing.NormalizedKhz = radio.NormalizeKhz(frequencyKhz)
	existing.FrequencyHz = radio.HzFromKhz(frequencyKhz)
	existing.Lat, existing.Lon = lat, lon
	existing.LastUpdateAt = time.Now()
	if changed && !existing.Valid() {
		existing.IsDeletePending = true
	}
	snapshot := *existing
	s.mu.Unlock()

	if changed {
		s.notifyDeleted(callsign)
		s.notifyAdded(snapshot)
		s.rebind()
	}
}

// ApplyRealName sets a controller's real name.
func (s *Set) ApplyRealName(callsign, name string) {
	s.applyAndMaybeReannounce(callsign, func(c *Controller) { c.RealName = name })
}

// ApplyValidATC records whether a controller is a confirmed valid ATC
// station, re-announcing it if it is now valid.
func (s *Set) ApplyValidATC(callsign string, valid bool) {
	s.applyAndMaybeReannounce(callsign, func(c *Controller) { c.IsValidATC = valid })
}

func (s *Set) applyAndMaybeReannounce(callsign string, mutate func(*Controller)) {
	s.mu.Lock()
	c, ok := s.byCall[key(callsign)]
	if !ok {
		s.mu.Unlock()
		return
	}
	mutate(c)
	nowValid := c.Valid()
	snapshot := *c
	s.mu.Unlock()

	if nowValid {
		s.notifyDeleted(callsign)
		s.notifyAdded(snapshot)
		s.rebind()
	}
}

// GC runs one per-second garbage-collection tick: removes any
// controller pending deletion or stale for more than 60 seconds.
func (s *Set) GC() {
	s.mu.Lock()
	var removed []string
	now := time.Now()
	for k, c := range s.byCall {
		if c.IsDeletePending || now.Sub(c.LastUpdateAt) > staleAfter {
			removed = append(removed, k)
		}
	}
	for _, k := range removed {
		delete(s.byCall, k)
	}
	s.mu.Unlock()

	for _, k := range removed {
		s.notifyDeleted(k)
	}
	if len(removed) > 0 {
		s.rebind()
	}
}

// SetRadioState updates the cloned radio stack and recomputes station
// binding for both COM radios.
func (s *Set) SetRadioState(r radio.StackState) {
	s.mu.Lock()
	s.radio = r
	s.mu.Unlock()
	s.rebind()
}

// rebind recomputes which controller (if any) each COM radio is bound
// to, by matching normalized frequency.
func (s *Set) rebind() {
	s.mu.Lock()
	com1Khz := s.radio.Com1.FrequencyKhz
	com2Khz := s.radio.Com2.FrequencyKhz
	com1Call, com2Call := "", ""
	for _, c := range s.byCall {
		if !c.Valid() {
			continue
		}
		if radio.Equal(c.FrequencyKhz, com1Khz) {
			com1Call = c.Callsign
		}
		if radio.Equal(c.FrequencyKhz, com2Khz) {
			com2Call = c.Callsign
		}
	}
	binder := s.binder
	s.mu.Unlock()

	if binder != nil {
		binder.BindStation(1, com1Call)
		binder.BindStation(2, com2Call)
	}
}

func (s *Set) notifyAdded(c Controller) {
	s.mu.Lock()
	subs := append([]Subscriber(nil), s.subs...)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.ControllerAdded(c)
	}
}

func (s *Set) notifyDeleted(callsign string) {
	s.mu.Lock()
	subs := append([]Subscriber(nil), s.subs...)
	s.mu.Unlock()
	for _, sub := range subs {
		sub.ControllerDeleted(callsign)
	}
}

// Count returns the number of tracked controllers, for tests.
func (s *Set) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byCall)
}

// List returns a snapshot of every tracked, valid controller, for
// pushing the current set to a caller (e.g. the sim bridge).
func (s *Set) List() []Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Controller, 0, len(s.byCall))
	for _, c := range s.byCall {
		if c.Valid() {
			out = append(out, *c)
		}
	}
	return out
}
