package simbridge

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Message type tags carried on the plugin duplex channel's envelope.
const (
	MsgAdd             = "ADD"
	MsgAdded           = "ADDED"
	MsgDeleted         = "DELETED"
	MsgDel             = "DEL"
	MsgDelAll          = "DELALL"
	MsgAcConfig        = "ACCONF"
	MsgFastPosition    = "FSTPOS"
	MsgHeartbeat       = "HB"
	MsgVersion         = "VER"
	MsgCSL             = "CSL"
	MsgRadioSent       = "RDIOSENT"
	MsgRadioReceived   = "RDIORCVD"
	MsgNotification    = "NOTIF"
	MsgPrivateSent     = "PRIVSENT"
	MsgPrivateReceived = "PRIVRCVD"
	MsgATC             = "ATC"
	MsgReqMetar        = "REQMETAR"
	MsgReqStation      = "REQSTATION"
	MsgWallop          = "WALLOP"
	MsgForceDisconnect = "FORCEDISC"
	MsgConnected       = "CONN"
	MsgDisconnected    = "DISCON"
	MsgShutdown        = "SHUTDOWN"
	MsgStationCallsign = "STATION_CALLSIGN"
)

// envelope is the wire record for every plugin-channel message.
type envelope struct {
	Type string      `msgpack:"type"`
	DTO  interface{} `msgpack:"dto"`
}

// AddPlaneDTO is the payload of an ADD message: a newly visible remote
// aircraft to render.
type AddPlaneDTO struct {
	Callsign  string  `msgpack:"callsign"`
	Airline   string  `msgpack:"airline"`
	TypeCode  string  `msgpack:"type_code"`
	Latitude  float64 `msgpack:"latitude"`
	Longitude float64 `msgpack:"longitude"`
	Altitude  float64 `msgpack:"altitude"`
	Heading   float64 `msgpack:"heading"`
	Bank      float64 `msgpack:"bank"`
	Pitch     float64 `msgpack:"pitch"`
}

// AcConfigDTO is the payload of an ACCONF message: an aircraft
// configuration delta or full snapshot.
type AcConfigDTO struct {
	Callsign        string `msgpack:"callsign"`
	GearDown        *bool  `msgpack:"gear_down,omitempty"`
	FlapsPercent    *int   `msgpack:"flaps_percent,omitempty"`
	SpoilersDeployed *bool `msgpack:"spoilers_deployed,omitempty"`
	OnGround        *bool  `msgpack:"on_ground,omitempty"`
	StrobeOn        *bool  `msgpack:"strobe_on,omitempty"`
	LandingOn       *bool  `msgpack:"landing_on,omitempty"`
	TaxiOn          *bool  `msgpack:"taxi_on,omitempty"`
	BeaconOn        *bool  `msgpack:"beacon_on,omitempty"`
	NavOn           *bool  `msgpack:"nav_on,omitempty"`
}

// FastPositionDTO is the payload of an FSTPOS message: a full 6-DoF
// position update plus nose-wheel angle and groundspeed.
type FastPositionDTO struct {
	Callsign      string  `msgpack:"callsign"`
	Latitude      float64 `msgpack:"latitude"`
	Longitude     float64 `msgpack:"longitude"`
	Altitude      float64 `msgpack:"altitude"`
	Pitch         float64 `msgpack:"pitch"`
	Bank          float64 `msgpack:"bank"`
	Heading       float64 `msgpack:"heading"`
	NoseWheelAngle float64 `msgpack:"nose_wheel_angle"`
	GroundSpeed   float64 `msgpack:"ground_speed"`
}

// NotificationDTO is the payload of a NOTIF message: a user-facing
// message and an 0xRRGGBB display color.
type NotificationDTO struct {
	Message string `msgpack:"message"`
	Color   uint32 `msgpack:"color"`
}

// ControllerDTO is one entry in an ATC message's controller snapshot.
type ControllerDTO struct {
	Callsign  string  `msgpack:"callsign"`
	RealName  string  `msgpack:"real_name"`
	Frequency int     `msgpack:"frequency"`
	Latitude  float64 `msgpack:"latitude"`
	Longitude float64 `msgpack:"longitude"`
}

// ControllerListDTO is the payload of an ATC message: the full set of
// currently tracked, valid controllers.
type ControllerListDTO struct {
	Controllers []ControllerDTO `msgpack:"controllers"`
}

// PluginChannel is the duplex, length-prefixed MsgPack control socket to
// the companion plugin. A second channel may be opened per visual machine
// for best-effort fan-out; writes there never block the primary channel.
type PluginChannel struct {
	mu   sync.Mutex
	conn net.Conn
}

// NewPluginChannel wraps an already-established connection (IPC on the
// same host, or TCP across a LAN).
func NewPluginChannel(conn net.Conn) *PluginChannel {
	return &PluginChannel{conn: conn}
}

// Send writes one {type, dto} record, length-prefixed with a big-endian
// uint32 byte count.
func (c *PluginChannel) Send(msgType string, dto interface{}) error {
	payload, err := msgpack.Marshal(envelope{Type: msgType, DTO: dto})
	if err != nil {
		return fmt.Errorf("marshal plugin message %q: %w", msgType, err)
	}

	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.conn.Write(header); err != nil {
		return fmt.Errorf("write plugin message header: %w", err)
	}
	if _, err := c.conn.Write(payload); err != nil {
		return fmt.Errorf("write plugin message body: %w", err)
	}
	return nil
}

// ReceivedMessage is one decoded {type, raw dto bytes} record. Callers
// re-decode Raw into the concrete DTO type their Type implies.
type ReceivedMessage struct {
	Type string
	Raw  []byte
}

// rawEnvelope captures the dto as opaque bytes so it can be re-decoded
// into the specific DTO struct the message Type implies.
type rawEnvelope struct {
	Type string          `msgpack:"type"`
	DTO  msgpack.RawMessage `msgpack:"dto"`
}

// ReadLoop blocks reading length-prefixed messages until the connection
// closes or ctx-like cancellation is achieved by closing the underlying
// conn; each decoded message is passed to onMessage on the calling
// goroutine.
func (c *PluginChannel) ReadLoop(onMessage func(ReceivedMessage)) error {
	header := make([]byte, 4)
	for {
		if _, err := io.ReadFull(c.conn, header); err != nil {
			return fmt.Errorf("read plugin message header: %w", err)
		}
		size := binary.BigEndian.Uint32(header)

		body := make([]byte, size)
		if _, err := io.ReadFull(c.conn, body); err != nil {
			return fmt.Errorf("read plugin message body: %w", err)
		}

		var env rawEnvelope
		if err := msgpack.Unmarshal(body, &env); err != nil {
			return fmt.Errorf("unmarshal plugin message: %w", err)
		}

		if onMessage != nil {
			onMessage(ReceivedMessage{Type: env.Type, Raw: env.DTO})
		}
	}
}

// DecodeDTO unmarshals a ReceivedMessage's raw dto bytes into out.
func DecodeDTO(raw []byte, out interface{}) error {
	return msgpack.Unmarshal(raw, out)
}

// Close closes the underlying connection.
func (c *PluginChannel) Close() error {
	return c.conn.Close()
}
