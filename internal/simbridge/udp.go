// Package simbridge implements the wire contract with the companion
// flight-sim plugin: a fire-and-forget UDP dataref channel (RREF/DREF/
// CMND) and a length-prefixed MsgPack duplex control channel.
package simbridge

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"sync"
	"time"
)

const (
	datarefPathLen  = 400
	refDatagramLen  = 413 // "RREF\0" + freq u32 + index u32 + 400-byte path
	setDatagramLen  = 509 // f32 value + 500-byte path (DREF)
	setPathLen      = 500
	livenessTimeout = 15 * time.Second
)

// RefUpdate is one {index, value} pair out of an inbound RREF datagram.
type RefUpdate struct {
	Index int32
	Value float32
}

// UDPBridge owns the fire-and-forget dataref channel to the sim host:
// RREF subscribe, DREF set, CMND fire, and the inbound RREF listener.
type UDPBridge struct {
	host string
	port int

	mu           sync.Mutex
	conn         *net.UDPConn
	lastHeard    time.Time
	stop         chan struct{}
	onUpdate     func([]RefUpdate)
	onSimGone    func()
	gonePosted   bool
}

// NewUDPBridge targets host:port, the plugin's UDP dataref listener.
// onUpdate is invoked on the read goroutine for every inbound RREF batch;
// onSimGone fires once when no datagram has arrived for 15 seconds.
func NewUDPBridge(host string, port int, onUpdate func([]RefUpdate), onSimGone func()) *UDPBridge {
	return &UDPBridge{host: host, port: port, onUpdate: onUpdate, onSimGone: onSimGone}
}

// Connect opens the UDP socket and starts the inbound listener.
func (b *UDPBridge) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	addr, err := net.ResolveUDPAddr("udp4", fmt.Sprintf("%s:%d", b.host, b.port))
	if err != nil {
		return fmt.Errorf("resolve dataref host: %w", err)
	}

	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return fmt.Errorf("dial dataref udp: %w", err)
	}

	b.conn = conn
	b.lastHeard = time.Now()
	b.gonePosted = false
	b.stop = make(chan struct{})

	go b.listenLoop(conn)
	go b.livenessLoop()

	return nil
}

// Disconnect closes the socket and stops both background goroutines.
func (b *UDPBridge) Disconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stop != nil {
		close(b.stop)
		b.stop = nil
	}
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
	}
}

// SubscribeRef sends an RREF subscribe datagram for datarefPath at the
// given index and frequency in Hz. A frequency of 0 unsubscribes.
func (b *UDPBridge) SubscribeRef(index int32, freqHz int32, datarefPath string) error {
	buf := make([]byte, refDatagramLen)
	copy(buf[0:4], "RREF")
	buf[4] = 0
	binary.LittleEndian.PutUint32(buf[5:9], uint32(freqHz))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(index))
	copy(buf[13:13+datarefPathLen], truncatePath(datarefPath, datarefPathLen))

	return b.write(buf)
}

// SetDref sends a DREF datagram setting datarefPath to value.
func (b *UDPBridge) SetDref(datarefPath string, value float32) error {
	buf := make([]byte, setDatagramLen)
	copy(buf[0:4], "DREF")
	buf[4] = 0
	binary.LittleEndian.PutUint32(buf[5:9], math.Float32bits(value))
	copy(buf[9:9+setPathLen], truncatePath(datarefPath, setPathLen))

	return b.write(buf)
}

// SendCommand fires a named, instantaneous CMND.
func (b *UDPBridge) SendCommand(name string) error {
	buf := make([]byte, 5+len(name)+1)
	copy(buf[0:4], "CMND")
	buf[4] = 0
	copy(buf[5:], name)
	buf[len(buf)-1] = 0

	return b.write(buf)
}

func (b *UDPBridge) write(buf []byte) error {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("dataref channel not connected")
	}
	_, err := conn.Write(buf)
	return err
}

func (b *UDPBridge) listenLoop(conn *net.UDPConn) {
	buf := make([]byte, 8192)
	stop := b.stopChan()

	for {
		select {
		case <-stop:
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(time.Second))
		n, err := conn.Read(buf)
		if err != nil {
			continue
		}
		if n < 5 || string(buf[0:4]) != "RREF" {
			continue
		}

		updates := decodeRefUpdates(buf[5:n])

		b.mu.Lock()
		b.lastHeard = time.Now()
		b.gonePosted = false
		b.mu.Unlock()

		if b.onUpdate != nil && len(updates) > 0 {
			b.onUpdate(updates)
		}
	}
}

func (b *UDPBridge) livenessLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	stop := b.stopChan()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.mu.Lock()
			lapsed := time.Since(b.lastHeard) > livenessTimeout
			alreadyPosted := b.gonePosted
			if lapsed {
				b.gonePosted = true
			}
			b.mu.Unlock()

			if lapsed && !alreadyPosted && b.onSimGone != nil {
				b.onSimGone()
			}
		}
	}
}

func (b *UDPBridge) stopChan() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stop
}

func decodeRefUpdates(data []byte) []RefUpdate {
	var out []RefUpdate
	offset := 0
	for offset+8 <= len(data) {
		idx := int32(binary.LittleEndian.Uint32(data[offset : offset+4]))
		val := math.Float32frombits(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		out = append(out, RefUpdate{Index: idx, Value: val})
		offset += 8
	}
	return out
}

func truncatePath(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
