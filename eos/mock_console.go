package eos

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/hypebeast/go-osc/osc"
)

// MockConsole simulates the console's OSC surface for testing: it answers the
// version, fader config, discovery, count, and indexed-fetch queries the mirror
// sends, and can push unsolicited output like a subscribed console would. It
// does not answer active/pending polls.
type MockConsole struct {
	host      string
	port      int
	replyHost string
	replyPort int

	mu       sync.Mutex
	server   *osc.Server
	client   *osc.Client
	version  string
	showName string
	faders   []MockFader
	lists    map[int][]MockCue
	received []string
	running  bool
}

// MockCue is one cue the mock console reports.
type MockCue struct {
	Number string
	Part   int
	Label  string
	UpTime int // raw console time units (3000 decodes to 3.00 s)
	Scene  string
}

// MockFader is one fader binding reported by the fader config query.
type MockFader struct {
	Index    int
	Type     int
	TargetID int
	Label    string
}

// NewMockConsole creates a mock console listening on host:port and sending its
// output to replyHost:replyPort.
func NewMockConsole(host string, port int, replyHost string, replyPort int) *MockConsole {
	return &MockConsole{
		host:      host,
		port:      port,
		replyHost: replyHost,
		replyPort: replyPort,
		version:   "3.2.5",
		showName:  "Mock Show",
		faders:    []MockFader{{Index: 0, Type: 1, TargetID: 1, Label: "Main"}},
		lists:     map[int][]MockCue{},
	}
}

// SetCues replaces the cue content of one list.
func (m *MockConsole) SetCues(list int, cues []MockCue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[list] = cues
}

// SetFaders replaces the fader bindings.
func (m *MockConsole) SetFaders(faders []MockFader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faders = faders
}

// Received returns the addresses of every request seen so far.
func (m *MockConsole) Received() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.received...)
}

// Start begins serving. The listener runs until Stop.
func (m *MockConsole) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	d := osc.NewStandardDispatcher()
	_ = d.AddMsgHandler("*", func(msg *osc.Message) {
		m.handle(msg)
	})

	m.server = &osc.Server{
		Addr:       fmt.Sprintf("%s:%d", m.host, m.port),
		Dispatcher: d,
	}
	m.client = osc.NewClient(m.replyHost, m.replyPort)
	m.running = true

	go func() {
		if err := m.server.ListenAndServe(); err != nil &&
			!strings.Contains(err.Error(), "use of closed network connection") {
			log.Errorf("Mock console exited: %v", err)
		}
	}()
	return nil
}

// Stop shuts the listener down.
func (m *MockConsole) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.running = false
	return m.server.CloseConnection()
}

// Push sends an unsolicited message, as the console does while subscribed.
func (m *MockConsole) Push(msg *osc.Message) error {
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return fmt.Errorf("mock console not started")
	}
	return client.Send(msg)
}

func (m *MockConsole) handle(msg *osc.Message) {
	m.mu.Lock()
	m.received = append(m.received, msg.Address)
	client := m.client
	m.mu.Unlock()
	if client == nil {
		return
	}

	for _, reply := range m.repliesFor(msg.Address) {
		if err := client.Send(reply); err != nil {
			log.Warnf("Mock console failed to reply: %v", err)
		}
	}
}

func (m *MockConsole) repliesFor(addr string) []*osc.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch addr {
	case "/eos/get/version":
		reply := osc.NewMessage("/eos/out/get/version")
		reply.Append(m.version)
		return []*osc.Message{reply, m.showNameMessage()}

	case "/eos/get/cuelist/count":
		reply := osc.NewMessage("/eos/out/get/cuelist/count")
		reply.Append(int32(len(m.lists)))
		return []*osc.Message{reply}

	case "/eos/get/fader/0/config":
		var out []*osc.Message
		for _, f := range m.faders {
			reply := osc.NewMessage("/eos/out/get/fader/0/config")
			reply.Append(int32(f.Index))
			reply.Append(int32(f.Type))
			reply.Append(int32(f.TargetID))
			reply.Append(f.Label)
			out = append(out, reply)
		}
		return out
	}

	segs := strings.Split(strings.Trim(addr, "/"), "/")

	// /eos/get/cuelist/index/<i>
	if len(segs) == 5 && segs[2] == "cuelist" && segs[3] == "index" {
		i, err := strconv.Atoi(segs[4])
		if err != nil {
			return nil
		}
		lists := m.sortedLists()
		if i >= len(lists) {
			return nil
		}
		reply := osc.NewMessage(fmt.Sprintf("/eos/out/get/cuelist/%d/list/%d/%d", lists[i], i, len(lists)))
		return []*osc.Message{reply}
	}

	// /eos/get/cue/<L>/...
	if len(segs) >= 4 && segs[2] == "cue" {
		list, err := strconv.Atoi(segs[3])
		if err != nil {
			return nil
		}
		cues := m.lists[list]
		rest := segs[4:]

		switch {
		case len(rest) == 1 && rest[0] == "count":
			reply := osc.NewMessage(fmt.Sprintf("/eos/out/get/cue/%d/count", list))
			reply.Append(int32(len(cues)))
			return []*osc.Message{reply}

		case len(rest) == 2 && rest[0] == "index":
			i, err := strconv.Atoi(rest[1])
			if err != nil || i >= len(cues) {
				return nil
			}
			return []*osc.Message{m.cueDataMessage(list, i, cues[i], len(cues))}
		}
	}
	return nil
}

func (m *MockConsole) sortedLists() []int {
	out := make([]int, 0, len(m.lists))
	for l := range m.lists {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

func (m *MockConsole) showNameMessage() *osc.Message {
	msg := osc.NewMessage("/eos/out/show/name")
	msg.Append(m.showName)
	return msg
}

// cueDataMessage builds the flat cue argument vector the way the console packs
// it: index, uid, label, then raw time pairs and flag strings.
func (m *MockConsole) cueDataMessage(list, index int, cue MockCue, total int) *osc.Message {
	msg := osc.NewMessage(fmt.Sprintf("/eos/out/get/cue/%d/%s/%d/list/%d/%d",
		list, cue.Number, cue.Part, index, total))

	args := make([]any, 30)
	args[0] = int32(index)
	args[1] = fmt.Sprintf("mock-uid-%d-%s", list, cue.Number)
	args[2] = cue.Label
	for i := 3; i <= 12; i++ {
		args[i] = int32(-1)
	}
	args[3] = int32(cue.UpTime)
	for i := 13; i <= 19; i++ {
		args[i] = ""
	}
	args[20] = int32(-1)
	args[21] = int32(-1)
	for i := 22; i <= 25; i++ {
		args[i] = int32(0)
	}
	args[26] = int32(0)
	args[27] = int32(0)
	args[28] = cue.Scene
	args[29] = int32(0)

	for _, a := range args {
		msg.Append(a)
	}
	return msg
}
