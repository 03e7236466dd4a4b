// Package fsd implements the TCP line-protocol client for the FSD
// multiplayer network: connection lifecycle, ISO-8859-1 framing, the
// mutual rolling challenge-response handshake, and mid-session server
// switching.
package fsd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/ferrlab/pilotlink/internal/pdu"
)

// State is the connection lifecycle stage.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateActive
	StateServerSwitching
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	case StateServerSwitching:
		return "server_switching"
	default:
		return "unknown"
	}
}

// ClientProperties identifies this client build to the auth handshake.
type ClientProperties struct {
	ClientID     uint16
	ClientName   string
	MajorVersion int
	MinorVersion int
	PrivateKey   string
}

// Events is the set of callbacks the owning network manager supplies.
// Every callback is optional; nil callbacks are skipped. Callbacks run on
// the client's single read goroutine and must not block.
type Events struct {
	OnConnected       func()
	OnDisconnected    func(reason string)
	OnServerSwitched  func()
	OnPDU             func(pdu.PDU)
	OnRawDataSent     func(line string)
	OnRawDataReceived func(line string)
	OnError           func(err error)
}

// Client is a single FSD session. The zero value is not usable; build one
// with New.
type Client struct {
	props  ClientProperties
	events Events

	mu       sync.Mutex
	conn     net.Conn
	state    State
	splitter pdu.Splitter

	sessionKey   string
	challengeKey string

	serverSwitching bool
	serverAddr      string
}

// New constructs an unconnected Client.
func New(props ClientProperties, events Events) *Client {
	return &Client{props: props, events: events, state: StateDisconnected}
}

// State reports the current connection stage.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect resolves addr (host:port) over IPv4 and opens a TCP session,
// then starts the read loop on a dedicated goroutine.
func (c *Client) Connect(ctx context.Context, addr string) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return fmt.Errorf("connect: client already %s", c.state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("split address %q: %w", addr, err)
	}

	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", host)
	if err != nil || len(ips) == 0 {
		return fmt.Errorf("resolve %q: %w", host, err)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp4", net.JoinHostPort(ips[0].String(), port))
	if err != nil {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return fmt.Errorf("dial %q: %w", addr, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.serverAddr = addr
	c.state = StateAuthenticating
	c.splitter = pdu.Splitter{}
	c.mu.Unlock()

	if c.events.OnConnected != nil {
		c.events.OnConnected()
	}

	go c.readLoop(conn)
	return nil
}

// Disconnect closes the session without sending a logoff PDU; callers that
// want a graceful logoff should Send a DeletePilot/DeleteATC PDU first.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// Send encodes p, appends the packet delimiter, transcodes to ISO-8859-1
// and writes it to the socket.
func (c *Client) Send(p pdu.PDU) error {
	line := p.Encode()

	c.mu.Lock()
	conn := c.conn
	connected := c.state != StateDisconnected
	c.mu.Unlock()

	if !connected || conn == nil {
		return fmt.Errorf("send: not connected")
	}

	encoded, err := encodeLatin1(line + pdu.PacketDelimiter)
	if err != nil {
		return fmt.Errorf("encode outbound packet: %w", err)
	}

	if c.events.OnRawDataSent != nil {
		c.events.OnRawDataSent(maskPassword(line))
	}

	if _, err := conn.Write(encoded); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	return nil
}

func (c *Client) readLoop(conn net.Conn) {
	reader := bufio.NewReaderSize(transform.NewReader(conn, charmap.ISO8859_1.NewDecoder()), 4096)
	buf := make([]byte, 4096)

	for {
		n, err := reader.Read(buf)
		if n > 0 {
			c.mu.Lock()
			lines := c.splitter.Feed(string(buf[:n]))
			c.mu.Unlock()

			for _, line := range lines {
				if line == "" {
					continue
				}
				if c.events.OnRawDataReceived != nil {
					c.events.OnRawDataReceived(line)
				}
				c.handleLine(line)
			}
		}
		if err != nil {
			c.handleReadError(conn, err)
			return
		}
	}
}

func (c *Client) handleReadError(conn net.Conn, err error) {
	c.mu.Lock()
	switching := c.serverSwitching
	stillCurrent := c.conn == conn
	c.mu.Unlock()

	if switching || !stillCurrent {
		return // superseded by a server switch already in progress
	}

	c.mu.Lock()
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	slog.Warn("fsd connection closed", "error", err)

	if c.events.OnDisconnected != nil {
		c.events.OnDisconnected(err.Error())
	}
}

func (c *Client) handleLine(line string) {
	p, err := pdu.Decode(line)
	if err != nil {
		if c.events.OnError != nil {
			c.events.OnError(err)
		}
		return
	}

	switch v := p.(type) {
	case pdu.ServerIdentification:
		c.handleServerIdentification(v)
	case pdu.AuthChallenge:
		c.handleAuthChallenge(v)
	case pdu.ChangeServer:
		c.handleChangeServer(v)
	}

	if c.events.OnPDU != nil {
		c.events.OnPDU(p)
	}
}

// handleServerIdentification seeds the rolling challenge-response state
// from the server's initial challenge key.
func (c *Client) handleServerIdentification(p pdu.ServerIdentification) {
	response := generateAuthResponse(p.InitialChallengeKey, c.props.ClientID, c.props.PrivateKey)

	c.mu.Lock()
	c.sessionKey = response
	c.challengeKey = response
	c.mu.Unlock()
}

// handleAuthChallenge answers a rolling $ZC and rotates the challenge key
// so it is never reused, per the handshake invariant.
func (c *Client) handleAuthChallenge(p pdu.AuthChallenge) {
	c.mu.Lock()
	sessionKey := c.sessionKey
	challengeKey := c.challengeKey
	c.mu.Unlock()

	response := generateAuthResponse(p.ChallengeKey, c.props.ClientID, challengeKey)
	nextChallengeKey := md5Hex(sessionKey + response)

	c.mu.Lock()
	c.challengeKey = nextChallengeKey
	c.mu.Unlock()

	if err := c.Send(pdu.AuthResponse{From: p.To, To: p.From, Response: response}); err != nil {
		if c.events.OnError != nil {
			c.events.OnError(fmt.Errorf("send auth response: %w", err))
		}
	}
}

// handleChangeServer opens a new connection to the server-provided
// address, and swaps it in without emitting a disconnect event on
// success. If the new connection fails, the existing one (if any) is
// left in place; if there was no existing connection either, the client
// transitions to Disconnected.
func (c *Client) handleChangeServer(p pdu.ChangeServer) {
	c.mu.Lock()
	c.serverSwitching = true
	oldConn := c.conn
	port := "6809"
	if _, p2, err := net.SplitHostPort(c.serverAddr); err == nil {
		port = p2
	}
	c.mu.Unlock()

	addr := net.JoinHostPort(p.NewServer, port)
	slog.Info("server switch requested", "new_server", p.NewServer)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newConn, err := (&net.Dialer{}).DialContext(ctx, "tcp4", addr)
	if err != nil {
		c.mu.Lock()
		c.serverSwitching = false
		stillNoOldConn := oldConn == nil
		c.mu.Unlock()

		if stillNoOldConn {
			c.Disconnect()
		}
		if c.events.OnError != nil {
			c.events.OnError(fmt.Errorf("server switch to %q: %w", p.NewServer, err))
		}
		return
	}

	if oldConn != nil {
		oldConn.Close()
	}

	c.mu.Lock()
	c.conn = newConn
	c.serverAddr = addr
	c.splitter = pdu.Splitter{}
	c.serverSwitching = false
	c.mu.Unlock()

	go c.readLoop(newConn)

	if c.events.OnServerSwitched != nil {
		c.events.OnServerSwitched()
	}
}

func encodeLatin1(s string) ([]byte, error) {
	return charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
}

// maskPassword redacts a password field for logging: only the first two
// characters of a PDU's #AA/#AP password survive.
func maskPassword(line string) string {
	if !strings.HasPrefix(line, "#AA") && !strings.HasPrefix(line, "#AP") {
		return line
	}
	idx := 4 // #AA: callsign, SERVER, real name, CID, password
	if strings.HasPrefix(line, "#AP") {
		idx = 3 // #AP: callsign, SERVER, CID, password
	}
	fields := strings.Split(line, pdu.Delimiter)
	if len(fields) <= idx {
		return line
	}
	pw := fields[idx]
	masked := pw
	if len(pw) > 2 {
		masked = pw[:2] + strings.Repeat("*", len(pw)-2)
	}
	fields[idx] = masked
	return strings.Join(fields, pdu.Delimiter)
}
