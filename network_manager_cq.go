package pilotlink

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ferrlab/pilotlink/internal/aircraft"
	"github.com/ferrlab/pilotlink/internal/pdu"
	"github.com/ferrlab/pilotlink/internal/radio"
	"github.com/ferrlab/pilotlink/internal/remoteaircraft"
)

// SetRadioState propagates a changed avionics/radio state to every
// subsystem that needs it: the own-aircraft broadcaster (for squawk
// mode on the next position), the controller set (COM-to-station
// binding), and the voice adapter (tx radio, gains, frequencies).
func (n *NetworkManager) SetRadioState(r radio.StackState) {
	n.mu.Lock()
	n.radioState = r
	ownAc := n.ownAc
	atc := n.atc
	vox := n.vox
	n.mu.Unlock()

	if ownAc != nil {
		ownAc.SetRadioState(r)
	}
	if atc != nil {
		atc.SetRadioState(r)
	}
	if vox != nil {
		vox.SetRadioState(r)
	}
}

func (n *NetworkManager) handlePDU(p pdu.PDU) {
	switch v := p.(type) {
	case pdu.ClientQuery:
		n.handleClientQuery(v)
	case pdu.ClientQueryResponse:
		n.handleClientQueryResponse(v)
	case pdu.PilotPosition:
		n.handlePilotSlowPosition(v)
	case pdu.FastPilotPosition:
		n.handleFastPosition(v)
	case pdu.ATCPosition:
		n.handleATCPosition(v)
	case pdu.PlaneInfoRequest:
		n.handlePlaneInfoRequest(v)
	case pdu.PlaneInfoResponse:
		n.planesOrNil(func(m *remoteaircraft.Manager) {
			m.HandleAircraftInfo(v.From, v.Equipment, v.Airline)
		})
	case pdu.RadioMessage:
		n.handleRadioMessage(v)
	case pdu.TextMessage:
		n.notify(fmt.Sprintf("%s: %s", v.From, v.Message))
	case pdu.DeletePilot:
		n.planesOrNil(func(m *remoteaircraft.Manager) { m.Delete(v.From) })
	case pdu.ProtocolError:
		n.handleProtocolError(v)
	case pdu.KillRequest:
		n.notify(fmt.Sprintf("disconnected by %s: %s", v.From, v.Reason))
	case pdu.SendFast:
		n.mu.Lock()
		ownAc := n.ownAc
		n.mu.Unlock()
		if ownAc != nil {
			ownAc.ArmFast(v.DoSendFast)
		}
	}
}

func (n *NetworkManager) planesOrNil(fn func(*remoteaircraft.Manager)) {
	n.mu.Lock()
	m := n.planes
	n.mu.Unlock()
	if m != nil {
		fn(m)
	}
}

func (n *NetworkManager) handlePilotSlowPosition(v pdu.PilotPosition) {
	n.planesOrNil(func(m *remoteaircraft.Manager) {
		m.HandleSlowPosition(v.From, remoteaircraft.VisualState{
			Lat: v.Lat, Lon: v.Lon, TrueAltitudeFt: float64(v.TrueAltitude),
			Pitch: v.Pitch, Bank: v.Bank, Heading: v.Heading, GroundSpeedKt: v.GroundSpeed,
		})
	})
}

func (n *NetworkManager) handleFastPosition(v pdu.FastPilotPosition) {
	n.planesOrNil(func(m *remoteaircraft.Manager) {
		m.HandleFastPosition(v.From, remoteaircraft.VisualState{
			Lat: v.Lat, Lon: v.Lon, TrueAltitudeFt: v.TrueAltitude, AglFt: v.AglFt,
			Pitch: v.Pitch, Bank: v.Bank, Heading: v.Heading,
		})
	})
}

func (n *NetworkManager) handleATCPosition(v pdu.ATCPosition) {
	if len(v.Frequencies) == 0 {
		return
	}
	n.mu.Lock()
	atc := n.atc
	n.mu.Unlock()
	if atc != nil {
		atc.UpdatePosition(v.From, v.Frequencies[0], v.Lat, v.Lon)
	}
}

// handleClientQuery answers the subset of $CQ types the client must
// reply to, per the network manager's reply table.
func (n *NetworkManager) handleClientQuery(cq pdu.ClientQuery) {
	n.mu.Lock()
	client := n.fsdConn
	settings := n.settings
	radioState := n.radioState
	sessionID := n.sessionID
	n.mu.Unlock()
	if client == nil {
		return
	}

	reply := func(qt pdu.ClientQueryType, payload ...string) {
		_ = client.Send(pdu.ClientQueryResponse{From: settings.Callsign, To: cq.From, Type: qt, Payload: payload})
	}

	switch cq.Type {
	case pdu.QueryCapabilities:
		reply(pdu.QueryCapabilities, "VERSION=1", "ACCONFIG=1")
	case pdu.QueryCOM1Freq:
		mhz := float64(radioState.Com1.FrequencyKhz) / 1000.0
		reply(pdu.QueryCOM1Freq, strconv.FormatFloat(mhz, 'f', 3, 64))
	case pdu.QueryRealName:
		name := settings.CID
		if settings.Observer {
			name += " xPilot tower view connection"
		}
		reply(pdu.QueryRealName, name, "", strconv.Itoa(int(pdu.RatingOBS)))
	case pdu.QueryINF:
		reply(pdu.QueryINF, fmt.Sprintf(
			"pilotlink PID=%s NAME=%s IP=%s UID=%s PLATFORM=xplane LAT=%.5f LON=%.5f ALT=%d",
			settings.CID, settings.CID, n.ownPublicIP(), sessionID.String(), 0.0, 0.0, 0))
	case pdu.QueryIsValidATC:
		// this client is never itself an ATC station; ignore.
	case pdu.QueryAircraftConfiguration:
		n.handleIncomingAircraftConfiguration(cq)
	}
}

func (n *NetworkManager) ownPublicIP() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.publicIP
}

func (n *NetworkManager) handleIncomingAircraftConfiguration(cq pdu.ClientQuery) {
	if len(cq.Payload) == 0 {
		return
	}
	raw := strings.Join(cq.Payload, pdu.Delimiter)
	var envelope struct {
		Config aircraft.Configuration `json:"config"`
	}
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return
	}
	n.planesOrNil(func(m *remoteaircraft.Manager) {
		m.HandleAircraftConfiguration(cq.From, envelope.Config)
	})
}

// handleClientQueryResponse applies the subset of $CR types the client
// consumes.
func (n *NetworkManager) handleClientQueryResponse(cr pdu.ClientQueryResponse) {
	n.mu.Lock()
	atc := n.atc
	n.mu.Unlock()

	switch cr.Type {
	case pdu.QueryPublicIP:
		if len(cr.Payload) > 0 {
			n.mu.Lock()
			n.publicIP = cr.Payload[0]
			n.mu.Unlock()
		}
	case pdu.QueryIsValidATC:
		if atc == nil || len(cr.Payload) == 0 {
			return
		}
		atc.ApplyValidATC(cr.From, strings.EqualFold(cr.Payload[0], "Y"))
	case pdu.QueryRealName:
		if atc == nil || len(cr.Payload) == 0 {
			return
		}
		atc.ApplyRealName(cr.From, cr.Payload[0])
	case pdu.QueryATIS:
		n.accumulateATIS(cr)
	case pdu.QueryCapabilities:
		// peer capability announcement; ACCONFIG detection happens when
		// the aircraft configuration itself arrives, so there is nothing
		// further to record here.
	}
}

// accumulateATIS gathers "T" text lines and a "Z" estimated-logoff line
// keyed by station until a terminating "E" line arrives, then delivers
// the accumulated lines as that controller's ATIS.
func (n *NetworkManager) accumulateATIS(cr pdu.ClientQueryResponse) {
	if len(cr.Payload) < 2 {
		return
	}
	kind, text := cr.Payload[0], cr.Payload[1]

	n.mu.Lock()
	switch kind {
	case "T", "Z":
		n.atisLines[cr.From] = append(n.atisLines[cr.From], text)
		n.mu.Unlock()
	case "E":
		lines := n.atisLines[cr.From]
		delete(n.atisLines, cr.From)
		n.mu.Unlock()
		for _, line := range lines {
			n.notify(fmt.Sprintf("%s ATIS: %s", cr.From, line))
		}
	default:
		n.mu.Unlock()
	}
}

// handlePlaneInfoRequest answers a "#SB ... PIR" with our own equipment
// and, when our callsign matches an airline pattern, our airline code.
func (n *NetworkManager) handlePlaneInfoRequest(req pdu.PlaneInfoRequest) {
	n.mu.Lock()
	client := n.fsdConn
	settings := n.settings
	n.mu.Unlock()
	if client == nil {
		return
	}

	airline := ""
	if m := airlineCalsignPattern.FindStringSubmatch(strings.ToUpper(settings.Callsign)); m != nil {
		airline = m[1]
	}

	_ = client.Send(pdu.PlaneInfoResponse{
		From: settings.Callsign, To: req.From,
		Equipment: settings.TypeCode, Airline: airline,
	})
}

// handleRadioMessage admits a message only if its transmit frequency
// matches COM1 or COM2 under 25 kHz normalization, detects a SELCAL
// alert addressed to our configured code, and otherwise surfaces a
// regular radio message flagged direct if it opens with our callsign.
func (n *NetworkManager) handleRadioMessage(msg pdu.RadioMessage) {
	n.mu.Lock()
	r := n.radioState
	settings := n.settings
	n.mu.Unlock()

	admitted := false
	for _, f := range msg.Frequencies {
		if radio.Equal(f, r.Com1.FrequencyKhz) || radio.Equal(f, r.Com2.FrequencyKhz) {
			admitted = true
			break
		}
	}
	if !admitted {
		return
	}

	if code, ok := parseSelcal(msg.Message); ok {
		if settings.SelcalCode != "" && selcalMatches(code, settings.SelcalCode) {
			n.notify(fmt.Sprintf("SELCAL alert from %s", msg.From))
		}
		return
	}

	isDirect := strings.HasPrefix(strings.ToUpper(msg.Message), strings.ToUpper(settings.Callsign))
	n.mu.Lock()
	cb := n.OnRadioMessage
	n.mu.Unlock()
	if cb != nil {
		cb(msg.From, msg.Message, isDirect)
	} else {
		n.notify(fmt.Sprintf("%s: %s", msg.From, msg.Message))
	}
}

func parseSelcal(message string) (string, bool) {
	const prefix = "SELCAL "
	if !strings.HasPrefix(strings.ToUpper(message), prefix) {
		return "", false
	}
	return strings.TrimSpace(message[len(prefix):]), true
}

func selcalMatches(received, configured string) bool {
	strip := func(s string) string { return strings.ToUpper(strings.ReplaceAll(s, "-", "")) }
	return strip(received) == strip(configured)
}

func (n *NetworkManager) handleProtocolError(v pdu.ProtocolError) {
	n.notify(fmt.Sprintf("server error: %s", v.Message))
	if v.Fatal() {
		n.Disconnect()
	}
}

func (n *NetworkManager) notify(message string) {
	n.mu.Lock()
	cb := n.OnNotification
	n.mu.Unlock()
	if cb != nil {
		cb(message)
	}
}
