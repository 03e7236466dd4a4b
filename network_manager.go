// Package pilotlink is the real-time pilot client: it mediates between a
// flight-simulator host, the FSD multiplayer network, and an external
// voice-radio library. NetworkManager is its public integrator.
package pilotlink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ferrlab/pilotlink/internal/aircraft"
	"github.com/ferrlab/pilotlink/internal/authtoken"
	"github.com/ferrlab/pilotlink/internal/controllers"
	"github.com/ferrlab/pilotlink/internal/fsd"
	"github.com/ferrlab/pilotlink/internal/ownship"
	"github.com/ferrlab/pilotlink/internal/pdu"
	"github.com/ferrlab/pilotlink/internal/radio"
	"github.com/ferrlab/pilotlink/internal/remoteaircraft"
	"github.com/ferrlab/pilotlink/internal/simbridge"
	"github.com/ferrlab/pilotlink/internal/voice"
)

const fsdPort = "6809"

var airlineCalsignPattern = regexp.MustCompile(`^([A-Z]{3})\d+`)

// NetworkManager orchestrates the FSD client, the simulator bridge, the
// own-aircraft broadcaster, the remote-aircraft manager, the controller
// set, and the voice adapter. It holds the connection state and the
// cross-cutting fields reply PDUs need (own public IP, ATIS
// accumulation, SELCAL code).
type NetworkManager struct {
	mu sync.Mutex

	settings Settings
	fsdConn  *fsd.Client
	sim      *simbridge.UDPBridge
	plugin   *simbridge.PluginChannel
	ownAc    *ownship.Broadcaster
	planes   *remoteaircraft.Manager
	atc      *controllers.Set
	vox      *voice.Adapter
	auth     *authtoken.Client

	radioState radio.StackState
	publicIP   string
	sessionID  uuid.UUID
	atisLines  map[string][]string

	stopTimers chan struct{}

	// OnNotification surfaces a user-facing message for conditions that
	// take no network action (KindConfigPrecondition, KindKill, etc).
	OnNotification func(message string)

	// OnRadioMessage surfaces an admitted, non-SELCAL radio transmission
	// with isDirect set when it opens with our own callsign. If nil,
	// the message is surfaced through OnNotification instead.
	OnRadioMessage func(from, message string, isDirect bool)
}

// New creates an unconnected NetworkManager. sim and plugin may be nil
// if this process has no simulator bridge (e.g. a test harness).
func New(auth *authtoken.Client, sim *simbridge.UDPBridge, plugin *simbridge.PluginChannel) *NetworkManager {
	return &NetworkManager{
		auth:      auth,
		sim:       sim,
		plugin:    plugin,
		atisLines: make(map[string][]string),
	}
}

// Connect resolves the target server, authenticates, and opens the FSD
// session. It returns once the TCP connection and login PDUs have been
// sent; authentication completion arrives asynchronously as PDU events.
func (n *NetworkManager) Connect(ctx context.Context, settings Settings) error {
	if settings.Callsign == "" || settings.CID == "" {
		err := newClientError(KindConfigPrecondition, "missing callsign or CID", nil)
		n.notify(err.Error())
		return err
	}

	n.mu.Lock()
	n.settings = settings
	n.sessionID = uuid.New()
	role := ownship.RolePilot
	if settings.Observer {
		role = ownship.RoleObserver
	}
	n.mu.Unlock()

	addr, err := n.selectServer(ctx, settings)
	if err != nil {
		return newClientError(KindTransportError, "select server", err)
	}

	token, err := n.auth.FetchToken(ctx, authtoken.Credentials{CID: settings.CID, Password: settings.Password})
	if err != nil {
		return newClientError(KindAuthFailure, "fetch auth token", err)
	}

	client := fsd.New(fsd.ClientProperties{
		ClientID:     0x7a2c,
		ClientName:   "pilotlink",
		MajorVersion: 1,
		MinorVersion: 0,
		PrivateKey:   "",
	}, fsd.Events{
		OnConnected:      func() { n.handleConnected(settings, token) },
		OnDisconnected:   n.handleDisconnected,
		OnServerSwitched: func() { slog.Info("fsd server switch complete") },
		OnPDU:            n.handlePDU,
		OnError:          func(err error) { slog.Warn("fsd protocol error", "error", err) },
	})

	n.mu.Lock()
	n.fsdConn = client
	sender := func(p pdu.PDU) { _ = client.Send(p) }
	n.ownAc = ownship.New(settings.Callsign, role, sender, n.simCommand)
	n.ownAc.SetModeCAutoArm(settings.ModeCAutoArm)
	n.ownAc.SetAltimeterTemperatureError(settings.AltimeterTemperatureErrorFt)
	n.planes = remoteaircraft.NewManager(n, n)
	n.atc = controllers.NewSet(n, n)
	n.atc.Subscribe(n)
	n.mu.Unlock()

	return client.Connect(ctx, addr)
}

// Disconnect logs off cleanly and tears down the session.
func (n *NetworkManager) Disconnect() {
	n.mu.Lock()
	client := n.fsdConn
	stop := n.stopTimers
	settings := n.settings
	n.stopTimers = nil
	n.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if client == nil {
		return
	}
	if settings.Observer {
		_ = client.Send(pdu.DeleteATC{From: settings.Callsign, CID: settings.CID})
	} else {
		_ = client.Send(pdu.DeletePilot{From: settings.Callsign, CID: settings.CID})
	}
	client.Disconnect()
}

func (n *NetworkManager) handleConnected(settings Settings, token string) {
	n.mu.Lock()
	client := n.fsdConn
	ownAc := n.ownAc
	n.mu.Unlock()

	if settings.Observer {
		_ = client.Send(pdu.AddATC{
			Callsign: settings.Callsign, RealName: settings.CID, CID: settings.CID,
			Password: token, Rating: pdu.RatingOBS, Protocol: pdu.ProtocolVatsim2022,
		})
	} else {
		_ = client.Send(pdu.AddPilot{
			Callsign: settings.Callsign, CID: settings.CID, Password: token,
			Rating: pdu.RatingOBS, Protocol: pdu.ProtocolVatsim2022,
			SimType: pdu.SimulatorXPlane, RealName: settings.CID,
		})
	}
	_ = client.Send(pdu.ClientQuery{From: settings.Callsign, To: pdu.ServerCallsign, Type: pdu.QueryPublicIP})

	n.mu.Lock()
	stop := make(chan struct{})
	n.stopTimers = stop
	n.mu.Unlock()

	go n.runTimers(ownAc, stop)
}

func (n *NetworkManager) handleDisconnected(reason string) {
	slog.Warn("fsd disconnected", "reason", reason)
	n.mu.Lock()
	stop := n.stopTimers
	n.stopTimers = nil
	n.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

// runTimers drives the slow/fast position cadence, controller GC, and
// remote-aircraft staleness eviction until stop is closed.
func (n *NetworkManager) runTimers(ownAc *ownship.Broadcaster, stop chan struct{}) {
	slow := time.NewTicker(ownAc.SlowInterval())
	fast := time.NewTicker(200 * time.Millisecond)
	gc := time.NewTicker(time.Second)
	stale := time.NewTicker(time.Second)
	defer slow.Stop()
	defer fast.Stop()
	defer gc.Stop()
	defer stale.Stop()

	for {
		select {
		case <-stop:
			return
		case <-slow.C:
			ownAc.SlowTick()
		case <-fast.C:
			if ownAc.FastArmed() {
				ownAc.FastTick()
			}
		case <-gc.C:
			n.mu.Lock()
			atc := n.atc
			n.mu.Unlock()
			if atc != nil {
				atc.GC()
			}
		case <-stale.C:
			n.mu.Lock()
			planes := n.planes
			n.mu.Unlock()
			if planes != nil {
				planes.EvictStale()
			}
		}
	}
}

// simCommand fires a named command at the simulator bridge (used by the
// own-aircraft mode-C auto-arm rule).
func (n *NetworkManager) simCommand(name string) {
	n.mu.Lock()
	sim := n.sim
	n.mu.Unlock()
	if sim != nil {
		_ = sim.SendCommand(name)
	}
}

// BindStation implements controllers.StationBinder.
func (n *NetworkManager) BindStation(com int, callsign string) {
	n.mu.Lock()
	plugin := n.plugin
	n.mu.Unlock()
	if plugin == nil {
		return
	}
	_ = plugin.Send(simbridge.MsgStationCallsign, map[string]interface{}{"com": com, "callsign": callsign})
}

// ControllerAdded implements controllers.Subscriber: a controller came
// into existence or was re-announced valid. Push the full controller
// list to the sim bridge and let the voice adapter recompute aliases.
func (n *NetworkManager) ControllerAdded(c controllers.Controller) {
	n.pushControllerList()
	n.refreshVoiceAliases()
}

// ControllerDeleted implements controllers.Subscriber: a controller
// expired, was removed, or is about to be re-announced as part of a
// refresh. Push the full controller list and refresh voice aliases.
func (n *NetworkManager) ControllerDeleted(callsign string) {
	n.pushControllerList()
	n.refreshVoiceAliases()
}

// pushControllerList sends the current valid-controller snapshot to the
// sim bridge over the ATC message type.
func (n *NetworkManager) pushControllerList() {
	n.mu.Lock()
	plugin := n.plugin
	atc := n.atc
	n.mu.Unlock()
	if plugin == nil || atc == nil {
		return
	}
	list := atc.List()
	dto := simbridge.ControllerListDTO{Controllers: make([]simbridge.ControllerDTO, 0, len(list))}
	for _, c := range list {
		dto.Controllers = append(dto.Controllers, simbridge.ControllerDTO{
			Callsign: c.Callsign, RealName: c.RealName, Frequency: c.FrequencyKhz,
			Latitude: c.Lat, Longitude: c.Lon,
		})
	}
	_ = plugin.Send(simbridge.MsgATC, dto)
}

// refreshVoiceAliases recomputes COM1/COM2 effective frequencies
// against the now-changed controller set.
func (n *NetworkManager) refreshVoiceAliases() {
	n.mu.Lock()
	vox := n.vox
	n.mu.Unlock()
	if vox != nil {
		vox.RefreshAliases()
	}
}

// ProbeController implements controllers.ProbeSender: ask a newly
// discovered station for its real name, valid-ATC status, and
// capabilities.
func (n *NetworkManager) ProbeController(callsign string) {
	n.query(callsign, pdu.QueryRealName)
	n.query(callsign, pdu.QueryIsValidATC)
	n.query(callsign, pdu.QueryCapabilities)
}

// ProbeNewAircraft implements remoteaircraft.ProbeSender: request
// capabilities, announce our own, and request plane info.
func (n *NetworkManager) ProbeNewAircraft(callsign string) {
	n.query(callsign, pdu.QueryCapabilities)
	n.mu.Lock()
	client := n.fsdConn
	own := n.settings.Callsign
	n.mu.Unlock()
	if client == nil {
		return
	}
	_ = client.Send(pdu.ClientQueryResponse{From: own, To: callsign, Type: pdu.QueryCapabilities, Payload: []string{"VERSION=1", "ACCONFIG=1"}})
	_ = client.Send(pdu.PlaneInfoRequest{From: own, To: callsign})
}

func (n *NetworkManager) query(to string, qt pdu.ClientQueryType) {
	n.mu.Lock()
	client := n.fsdConn
	own := n.settings.Callsign
	n.mu.Unlock()
	if client == nil {
		return
	}
	_ = client.Send(pdu.ClientQuery{From: own, To: to, Type: qt})
}

// AddAircraft implements remoteaircraft.Commander.
func (n *NetworkManager) AddAircraft(a *remoteaircraft.Aircraft) {
	n.mu.Lock()
	plugin := n.plugin
	n.mu.Unlock()
	if plugin == nil {
		return
	}
	_ = plugin.Send(simbridge.MsgAdd, simbridge.AddPlaneDTO{
		Callsign: a.Callsign, Airline: a.Airline, TypeCode: a.TypeCode,
		Latitude: a.Visual.Lat, Longitude: a.Visual.Lon, Altitude: a.Visual.TrueAltitudeFt,
		Heading: a.Visual.Heading, Bank: a.Visual.Bank, Pitch: a.Visual.Pitch,
	})
}

// RemoveAircraft implements remoteaircraft.Commander.
func (n *NetworkManager) RemoveAircraft(callsign string) {
	n.mu.Lock()
	plugin := n.plugin
	n.mu.Unlock()
	if plugin != nil {
		_ = plugin.Send(simbridge.MsgDel, map[string]string{"callsign": callsign})
	}
}

// PushConfiguration implements remoteaircraft.Commander.
func (n *NetworkManager) PushConfiguration(callsign string, cfg aircraft.Configuration) {
	n.mu.Lock()
	plugin := n.plugin
	n.mu.Unlock()
	if plugin == nil {
		return
	}
	dto := simbridge.AcConfigDTO{
		Callsign: callsign, GearDown: cfg.GearDown, FlapsPercent: cfg.FlapsPct,
		SpoilersDeployed: cfg.SpoilersOut, OnGround: cfg.OnGround,
	}
	if cfg.Lights != nil {
		dto.StrobeOn = cfg.Lights.StrobeOn
		dto.LandingOn = cfg.Lights.LandingOn
		dto.TaxiOn = cfg.Lights.TaxiOn
		dto.BeaconOn = cfg.Lights.BeaconOn
		dto.NavOn = cfg.Lights.NavOn
	}
	_ = plugin.Send(simbridge.MsgAcConfig, dto)
}

// ForwardSlowPosition implements remoteaircraft.Commander.
func (n *NetworkManager) ForwardSlowPosition(callsign string, v remoteaircraft.VisualState) {
	n.forwardPosition(callsign, v)
}

// ForwardFastPosition implements remoteaircraft.Commander.
func (n *NetworkManager) ForwardFastPosition(callsign string, v remoteaircraft.VisualState) {
	n.forwardPosition(callsign, v)
}

func (n *NetworkManager) forwardPosition(callsign string, v remoteaircraft.VisualState) {
	n.mu.Lock()
	plugin := n.plugin
	ownAc := n.ownAc
	n.mu.Unlock()
	if plugin == nil {
		return
	}
	trueAlt := v.TrueAltitudeFt
	if ownAc != nil {
		trueAlt = ownAc.AdjustIncomingAltitudeFt(v.TrueAltitudeFt)
	}
	_ = plugin.Send(simbridge.MsgFastPosition, simbridge.FastPositionDTO{
		Callsign: callsign, Latitude: v.Lat, Longitude: v.Lon, Altitude: trueAlt,
		Pitch: v.Pitch, Bank: v.Bank, Heading: v.Heading, GroundSpeed: float64(v.GroundSpeedKt),
	})
}

// ModelChanged implements remoteaircraft.Commander.
func (n *NetworkManager) ModelChanged(callsign, newTypeCode string) {
	n.mu.Lock()
	plugin := n.plugin
	n.mu.Unlock()
	if plugin != nil {
		_ = plugin.Send(simbridge.MsgNotification, simbridge.NotificationDTO{
			Message: fmt.Sprintf("%s changed aircraft model to %s", callsign, newTypeCode),
		})
	}
}

// selectServer resolves the server host:port to dial. AUTOMATIC first
// asks the well-known VATSIM address for a plain-IPv4 body (3 s limit);
// if that fails it picks a random server from the status feed's list.
// Any other configured address is used as given, with the FSD port
// appended when it has none.
func (n *NetworkManager) selectServer(ctx context.Context, settings Settings) (string, error) {
	if settings.ServerAddress != AutomaticServer {
		return ensurePort(settings.ServerAddress), nil
	}

	raceCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	host, err := fetchPlainIPv4(raceCtx, "http://fsd.vatsim.net")
	if err == nil && host != "" {
		return joinHostDefaultPort(host, fsdPort), nil
	}

	servers, err := fetchServerList(ctx, "https://status.vatsim.net/status.json")
	if err != nil || len(servers) == 0 {
		return "", fmt.Errorf("no server available: %w", err)
	}
	chosen := servers[rand.Intn(len(servers))]
	return joinHostDefaultPort(chosen, fsdPort), nil
}

func joinHostDefaultPort(host, port string) string {
	if strings.Contains(host, ":") {
		return host // already host:port
	}
	return host + ":" + port
}

func ensurePort(addr string) string {
	if strings.Contains(addr, ":") {
		return addr
	}
	return addr + ":" + fsdPort
}

func fetchPlainIPv4(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body := make([]byte, 64)
	nRead, _ := resp.Body.Read(body)
	ip := strings.TrimSpace(string(body[:nRead]))
	if looksLikeIPv4(ip) {
		return ip, nil
	}
	return "", fmt.Errorf("unexpected body from %s", url)
}

func looksLikeIPv4(s string) bool {
	parts := strings.Split(s, ".")
	return len(parts) == 4
}

type statusDotJSON struct {
	Data struct {
		Servers []struct {
			HostnameOrIP string `json:"hostname_or_ip"`
		} `json:"servers"`
	} `json:"data"`
}

func fetchServerList(ctx context.Context, url string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed statusDotJSON
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(parsed.Data.Servers))
	for _, s := range parsed.Data.Servers {
		out = append(out, s.HostnameOrIP)
	}
	return out, nil
}
