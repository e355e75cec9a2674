package integration

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/tbeaumont/cuemirror/eos"
	"github.com/tbeaumont/cuemirror/show"
)

// These tests run against a real console (or an emulator) and are skipped unless
// CUEMIRROR_CONSOLE is set to its host. Run with:
//
//	CUEMIRROR_CONSOLE=10.0.1.20 go test ./integration -run TestRealConsole -v
func consoleAddr(t *testing.T) (string, int) {
	host := os.Getenv("CUEMIRROR_CONSOLE")
	if host == "" {
		t.Skip("CUEMIRROR_CONSOLE not set; skipping real console test")
	}
	port := 3032
	if p := os.Getenv("CUEMIRROR_CONSOLE_PORT"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}
	return host, port
}

func isConsoleReachable(host string, port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", host, port), 2*time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// TestRealConsoleDiscovery connects over TCP, waits for handshake traffic, and
// expects at least one cue list to be discovered and refreshed.
func TestRealConsoleDiscovery(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping real console test in short mode")
	}
	host, port := consoleAddr(t)
	if !isConsoleReachable(host, port) {
		t.Skipf("Console at %s:%d not reachable", host, port)
	}

	mgr, err := show.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	settings := show.DefaultSettings()
	settings.OSC.IPAddress = host
	settings.OSC.Port = port
	settings.OSC.Protocol = "tcp"

	engine := eos.New(eos.NewTCPTransport(fmt.Sprintf("%s:%d", host, port)), mgr, settings, nil)
	if err := engine.OpenShow("Integration"); err != nil {
		t.Fatalf("OpenShow failed: %v", err)
	}
	if err := engine.Connect(); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer engine.Disconnect()

	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		st := engine.Status()
		if len(st.Lists) > 0 && st.CueCount > 0 && !st.Refreshing {
			t.Logf("Discovered %d lists, mirrored %d cues (console %s)",
				len(st.Lists), st.CueCount, st.Version)
			return
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("No cues mirrored within deadline: %+v", engine.Status())
}
