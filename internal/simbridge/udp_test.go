package simbridge

import (
	"encoding/binary"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeRefDatagramShape(t *testing.T) {
	packetCh := make(chan []byte, 1)
	conn := startEchoUDPServer(t, packetCh)
	defer conn.Close()

	host, portStr, err := net.SplitHostPort(conn.LocalAddr().String())
	require.NoError(t, err)
	_ = host
	port := mustAtoi(t, portStr)

	bridge := NewUDPBridge("127.0.0.1", port, nil, nil)
	require.NoError(t, bridge.Connect())
	defer bridge.Disconnect()

	require.NoError(t, bridge.SubscribeRef(3, 5, "sim/flightmodel/position/elevation"))

	select {
	case pkt := <-packetCh:
		require.Len(t, pkt, refDatagramLen)
		assert.Equal(t, "RREF", string(pkt[0:4]))
		assert.Equal(t, uint32(5), binary.LittleEndian.Uint32(pkt[5:9]))
		assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(pkt[9:13]))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for RREF datagram")
	}
}

func TestSetDrefDatagramShape(t *testing.T) {
	packetCh := make(chan []byte, 1)
	conn := startEchoUDPServer(t, packetCh)
	defer conn.Close()

	_, portStr, err := net.SplitHostPort(conn.LocalAddr().String())
	require.NoError(t, err)
	port := mustAtoi(t, portStr)

	bridge := NewUDPBridge("127.0.0.1", port, nil, nil)
	require.NoError(t, bridge.Connect())
	defer bridge.Disconnect()

	require.NoError(t, bridge.SetDref("sim/cockpit2/radios/actuators/com1_frequency_hz", 122800))

	select {
	case pkt := <-packetCh:
		require.Len(t, pkt, setDatagramLen)
		assert.Equal(t, "DREF", string(pkt[0:4]))
		assert.Equal(t, float32(122800), math.Float32frombits(binary.LittleEndian.Uint32(pkt[5:9])))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for DREF datagram")
	}
}

func TestDecodeRefUpdatesParsesAllEntries(t *testing.T) {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], 1)
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(100))
	binary.LittleEndian.PutUint32(buf[8:12], 2)
	binary.LittleEndian.PutUint32(buf[12:16], math.Float32bits(200))

	updates := decodeRefUpdates(buf)
	require.Len(t, updates, 2)
	assert.Equal(t, int32(1), updates[0].Index)
	assert.Equal(t, float32(100), updates[0].Value)
	assert.Equal(t, int32(2), updates[1].Index)
	assert.Equal(t, float32(200), updates[1].Value)
}

func startEchoUDPServer(t *testing.T, out chan<- []byte) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)

	go func() {
		buf := make([]byte, 8192)
		for {
			n, _, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			cp := make([]byte, n)
			copy(cp, buf[:n])
			select {
			case out <- cp:
			default:
			}
		}
	}()

	return conn
}

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			t.Fatalf("not a port number: %q", s)
		}
		n = n*10 + int(c-'0')
	}
	return n
}
