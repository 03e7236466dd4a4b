package pilotlink

import (
	"context"
	"net/http"

	"github.com/ferrlab/pilotlink/internal/authtoken"
	"github.com/ferrlab/pilotlink/internal/simbridge"
)

// Client is the public two-operation surface: connect and disconnect.
// Everything else (server selection, auth, position cadence, voice,
// controller tracking) happens underneath. Network credentials, the
// chosen server, and the plugin/simulator transports are supplied once
// at construction; callsign, type code, SELCAL, and observer mode vary
// per session.
type Client struct {
	cid           string
	password      string
	serverAddress string
	authEndpoint  string
	modeCAutoArm  bool
	altimeterErrFt float64

	manager *NetworkManager
}

// NewClient builds a Client around one session's credentials and its
// simulator/plugin transports. sim and plugin may be nil for a
// network-only test harness.
func NewClient(cid, password, serverAddress, authEndpoint string, sim *simbridge.UDPBridge, plugin *simbridge.PluginChannel) *Client {
	auth := authtoken.New(authEndpoint, http.DefaultClient)
	return &Client{
		cid: cid, password: password,
		serverAddress: serverAddress, authEndpoint: authEndpoint,
		manager: New(auth, sim, plugin),
	}
}

// SetModeCAutoArm controls whether transponder mode C is armed
// automatically on the ground-to-airborne transition.
func (c *Client) SetModeCAutoArm(on bool) { c.modeCAutoArm = on }

// SetAltimeterTemperatureErrorFt sets the correction applied to
// transmitted and received true altitudes.
func (c *Client) SetAltimeterTemperatureErrorFt(ft float64) { c.altimeterErrFt = ft }

// OnNotification registers a callback for user-facing messages that
// take no network action.
func (c *Client) OnNotification(fn func(message string)) { c.manager.OnNotification = fn }

// Connect logs the named callsign onto the network. observer joins as
// an ATC-rated observer instead of a pilot.
func (c *Client) Connect(ctx context.Context, callsign, typeCode, selcalCode string, observer bool) error {
	return c.manager.Connect(ctx, Settings{
		Callsign: callsign, TypeCode: typeCode, SelcalCode: selcalCode, Observer: observer,
		CID: c.cid, Password: c.password,
		ServerAddress: c.serverAddress, AuthEndpoint: c.authEndpoint,
		ModeCAutoArm: c.modeCAutoArm, AltimeterTemperatureErrorFt: c.altimeterErrFt,
	})
}

// Disconnect logs off and tears down the session.
func (c *Client) Disconnect() { c.manager.Disconnect() }
