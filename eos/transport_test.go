package eos

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/hypebeast/go-osc/osc"
)

// freeUDPPort asks the OS for an available UDP port.
func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	_ = conn.Close()
	return port
}

func TestUDPTransportRequestReply(t *testing.T) {
	consolePort := freeUDPPort(t)
	listenPort := freeUDPPort(t)

	console := NewMockConsole("127.0.0.1", consolePort, "127.0.0.1", listenPort)
	if err := console.Start(); err != nil {
		t.Fatalf("Failed to start mock console: %v", err)
	}
	t.Cleanup(func() {
		_ = console.Stop()
		time.Sleep(100 * time.Millisecond)
	})

	tr := NewUDPTransport("127.0.0.1", consolePort, listenPort)
	if err := tr.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })

	if err := tr.Send(osc.NewMessage("/eos/get/version")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		select {
		case msg := <-tr.Messages():
			if msg.Address == "/eos/out/get/version" {
				if len(msg.Arguments) == 0 || msg.Arguments[0] != "3.2.5" {
					t.Errorf("Unexpected version arguments: %v", msg.Arguments)
				}
				return
			}
		case <-deadline:
			t.Fatal("No version reply received over UDP")
		}
	}
}

func TestUDPTransportSendWhileDisconnected(t *testing.T) {
	tr := NewUDPTransport("127.0.0.1", freeUDPPort(t), freeUDPPort(t))
	if err := tr.Send(osc.NewMessage("/eos/get/version")); err == nil {
		t.Error("Send before Connect should fail fast")
	}
}

// slipTCPServer accepts one connection, decodes SLIP-framed OSC requests, and
// answers /eos/get/version like the console does in TCP mode.
func slipTCPServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		r := bufio.NewReader(conn)
		for {
			frame, err := readSLIPFrame(r)
			if err != nil {
				return
			}
			packet, err := osc.ParsePacket(string(frame))
			if err != nil {
				continue
			}
			msg, ok := packet.(*osc.Message)
			if !ok || msg.Address != "/eos/get/version" {
				continue
			}
			reply := osc.NewMessage("/eos/out/get/version")
			reply.Append("3.2.5")
			payload, err := reply.MarshalBinary()
			if err != nil {
				return
			}
			if _, err := conn.Write(slipEncode(payload)); err != nil {
				return
			}
		}
	}()
	return ln.Addr().String()
}

func TestTCPTransportSLIPRequestReply(t *testing.T) {
	addr := slipTCPServer(t)

	tr := NewTCPTransport(addr)
	if err := tr.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })

	if err := tr.Send(osc.NewMessage("/eos/get/version")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case msg := <-tr.Messages():
		if msg.Address != "/eos/out/get/version" {
			t.Errorf("Unexpected reply address %s", msg.Address)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("No version reply received over TCP")
	}
}

func TestTCPTransportConnectionLost(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	tr := NewTCPTransport(ln.Addr().String())
	if err := tr.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case conn := <-accepted:
		_ = conn.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("Server never accepted")
	}

	select {
	case <-tr.Lost():
	case <-time.After(3 * time.Second):
		t.Fatal("Connection loss never surfaced")
	}

	if err := tr.Send(osc.NewMessage("/eos/get/version")); err == nil {
		t.Error("Send after connection loss should fail fast")
	}
	_ = ln.Close()
}

func TestTCPTransportConnectRefused(t *testing.T) {
	// Grab a port and release it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	tr := NewTCPTransport(addr)
	if err := tr.Connect(); err == nil {
		t.Error("Connect to closed port should fail")
		_ = tr.Close()
	}
}
