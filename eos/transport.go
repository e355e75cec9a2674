package eos

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hypebeast/go-osc/osc"
)

// Transport frames OSC messages to and from the console. Implementations do not
// reconnect on their own: a lost connection surfaces on Lost and the caller
// re-invokes Connect on a fresh transport. Sends while disconnected fail fast.
type Transport interface {
	Connect() error
	Send(msg *osc.Message) error
	Messages() <-chan *osc.Message
	Lost() <-chan error
	Close() error
}

const inboundBuffer = 256

// UDPTransport sends one datagram per OSC message and listens for console
// output on a fixed local port.
type UDPTransport struct {
	host       string
	port       int
	listenPort int

	mu        sync.Mutex
	client    *osc.Client
	server    *osc.Server
	connected bool

	msgs chan *osc.Message
	lost chan error
}

// NewUDPTransport creates a UDP transport sending to host:port and receiving on
// listenPort.
func NewUDPTransport(host string, port, listenPort int) *UDPTransport {
	return &UDPTransport{
		host:       host,
		port:       port,
		listenPort: listenPort,
		msgs:       make(chan *osc.Message, inboundBuffer),
		lost:       make(chan error, 1),
	}
}

// Connect binds the listening socket and prepares the outbound client. The far
// side is considered reachable once the local bind succeeds; UDP gives nothing
// stronger to wait for.
func (t *UDPTransport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		return nil
	}

	d := osc.NewStandardDispatcher()
	_ = d.AddMsgHandler("*", func(msg *osc.Message) {
		t.deliver(msg)
	})

	server := &osc.Server{
		Addr:       fmt.Sprintf(":%d", t.listenPort),
		Dispatcher: d,
	}

	started := make(chan error, 1)
	go func() {
		err := server.ListenAndServe()
		if err != nil && !strings.Contains(err.Error(), "use of closed network connection") {
			started <- err
			select {
			case t.lost <- err:
			default:
			}
			return
		}
		started <- nil
	}()

	// Give the bind a moment to fail before declaring readiness.
	select {
	case err := <-started:
		if err != nil {
			return fmt.Errorf("failed to listen on UDP port %d: %v", t.listenPort, err)
		}
	case <-time.After(200 * time.Millisecond):
	}

	t.client = osc.NewClient(t.host, t.port)
	t.server = server
	t.connected = true
	log.Info("UDP transport ready", "console", fmt.Sprintf("%s:%d", t.host, t.port), "listen", t.listenPort)
	return nil
}

func (t *UDPTransport) deliver(msg *osc.Message) {
	select {
	case t.msgs <- msg:
	default:
		log.Warnf("Inbound buffer full, dropping message %s", msg.Address)
	}
}

// Send transmits one OSC message as a single datagram.
func (t *UDPTransport) Send(msg *osc.Message) error {
	t.mu.Lock()
	client := t.client
	connected := t.connected
	t.mu.Unlock()
	if !connected {
		return fmt.Errorf("not connected")
	}
	return client.Send(msg)
}

func (t *UDPTransport) Messages() <-chan *osc.Message { return t.msgs }
func (t *UDPTransport) Lost() <-chan error            { return t.lost }

// Close shuts the listening socket down.
func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil
	}
	t.connected = false
	if t.server != nil {
		if err := t.server.CloseConnection(); err != nil {
			log.Warnf("Failed to close UDP listener: %v", err)
		}
		t.server = nil
	}
	return nil
}

// TCPTransport shares one connection for both directions, framing each OSC
// packet with SLIP.
type TCPTransport struct {
	addr string

	mu        sync.Mutex
	conn      net.Conn
	connected bool

	msgs chan *osc.Message
	lost chan error
}

// NewTCPTransport creates a TCP transport for the console at addr (host:port).
func NewTCPTransport(addr string) *TCPTransport {
	return &TCPTransport{
		addr: addr,
		msgs: make(chan *osc.Message, inboundBuffer),
		lost: make(chan error, 1),
	}
}

// Connect dials the console and starts the read loop. A successful dial is the
// ready signal.
func (t *TCPTransport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		return nil
	}
	conn, err := net.DialTimeout("tcp", t.addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to console at %s: %v", t.addr, err)
	}
	t.conn = conn
	t.connected = true
	go t.readLoop(conn)
	log.Info("TCP transport ready", "console", t.addr)
	return nil
}

func (t *TCPTransport) readLoop(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		frame, err := readSLIPFrame(r)
		if err != nil {
			t.mu.Lock()
			wasConnected := t.connected
			t.connected = false
			t.mu.Unlock()
			if wasConnected {
				log.Warnf("Console connection lost: %v", err)
				select {
				case t.lost <- err:
				default:
				}
			}
			return
		}
		packet, err := osc.ParsePacket(string(frame))
		if err != nil {
			log.Debugf("Dropping malformed OSC frame (%d bytes): %v", len(frame), err)
			continue
		}
		t.dispatchPacket(packet)
	}
}

// dispatchPacket flattens bundles; the console mostly sends bare messages.
func (t *TCPTransport) dispatchPacket(packet osc.Packet) {
	switch p := packet.(type) {
	case *osc.Message:
		select {
		case t.msgs <- p:
		default:
			log.Warnf("Inbound buffer full, dropping message %s", p.Address)
		}
	case *osc.Bundle:
		for _, m := range p.Messages {
			t.dispatchPacket(m)
		}
		for _, b := range p.Bundles {
			t.dispatchPacket(b)
		}
	}
}

// Send SLIP-frames one OSC message onto the shared connection.
func (t *TCPTransport) Send(msg *osc.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return fmt.Errorf("not connected")
	}
	payload, err := msg.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode OSC message: %v", err)
	}
	if _, err := t.conn.Write(slipEncode(payload)); err != nil {
		return fmt.Errorf("failed to write to console: %v", err)
	}
	return nil
}

func (t *TCPTransport) Messages() <-chan *osc.Message { return t.msgs }
func (t *TCPTransport) Lost() <-chan error            { return t.lost }

// Close tears the connection down without signalling Lost.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil
	}
	t.connected = false
	return t.conn.Close()
}
