package fsd

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrlab/pilotlink/internal/pdu"
)

// testServer is a minimal loopback FSD-shaped TCP peer for exercising the
// client's framing pump and handshake without a real network server.
type testServer struct {
	listener net.Listener
	conn     net.Conn
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	return &testServer{listener: ln}
}

func (s *testServer) accept(t *testing.T) net.Conn {
	t.Helper()
	conn, err := s.listener.Accept()
	require.NoError(t, err)
	s.conn = conn
	return conn
}

func (s *testServer) addr() string {
	return s.listener.Addr().String()
}

func (s *testServer) close() {
	if s.conn != nil {
		s.conn.Close()
	}
	s.listener.Close()
}

func TestConnectEmitsOnConnected(t *testing.T) {
	server := newTestServer(t)
	defer server.close()

	connected := make(chan struct{}, 1)
	c := New(ClientProperties{ClientID: 0x1234, ClientName: "test", PrivateKey: "key"}, Events{
		OnConnected: func() { connected <- struct{}{} },
	})

	go server.accept(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx, server.addr()))

	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for OnConnected")
	}
	assert.Equal(t, StateAuthenticating, c.State())
}

func TestRollingAuthChallengeResponseNeverReusesKey(t *testing.T) {
	server := newTestServer(t)
	defer server.close()

	received := make(chan pdu.PDU, 8)
	c := New(ClientProperties{ClientID: 0xABCD, ClientName: "test", PrivateKey: "secretkey"}, Events{
		OnPDU: func(p pdu.PDU) { received <- p },
	})

	go server.accept(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx, server.addr()))

	conn := waitForConn(t, server)

	writeLine(t, conn, pdu.ServerIdentification{From: "SERVER", To: "CLIENT", Version: "vatsim-fsd", InitialChallengeKey: "initialchallenge"}.Encode())

	c.mu.Lock()
	firstSessionKey := c.sessionKey
	c.mu.Unlock()
	require.NotEmpty(t, firstSessionKey)

	writeLine(t, conn, pdu.AuthChallenge{From: "SERVER", To: "CLIENT", ChallengeKey: "roll1"}.Encode())
	line1 := readLine(t, conn)
	assert.Equal(t, byte('$'), line1[0])

	c.mu.Lock()
	keyAfterFirst := c.challengeKey
	c.mu.Unlock()

	writeLine(t, conn, pdu.AuthChallenge{From: "SERVER", To: "CLIENT", ChallengeKey: "roll2"}.Encode())
	line2 := readLine(t, conn)
	assert.NotEqual(t, line1, line2)

	c.mu.Lock()
	keyAfterSecond := c.challengeKey
	c.mu.Unlock()
	assert.NotEqual(t, keyAfterFirst, keyAfterSecond)
}

func TestMaskPasswordRedactsAddPilotPassword(t *testing.T) {
	line := pdu.AddPilot{Callsign: "N1", CID: "100", Password: "supersecret", Rating: pdu.RatingOBS}.Encode()
	masked := maskPassword(line)
	assert.NotContains(t, masked, "supersecret")
	assert.Contains(t, masked, "su")
}

func waitForConn(t *testing.T, server *testServer) net.Conn {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if server.conn != nil {
			return server.conn
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server never accepted a connection")
	return nil
}

func writeLine(t *testing.T, conn net.Conn, line string) {
	t.Helper()
	encoded, err := encodeLatin1(line + pdu.PacketDelimiter)
	require.NoError(t, err)
	_, err = conn.Write(encoded)
	require.NoError(t, err)
}

func readLine(t *testing.T, conn net.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return string(buf[:n])
}
