package eos

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hypebeast/go-osc/osc"
	"k8s.io/utils/clock"

	"github.com/tbeaumont/cuemirror/messages"
	"github.com/tbeaumont/cuemirror/show"
)

// Engine owns every piece of mutable mirror state: the cue store, list
// discovery, refresh progress, per-list runtime state, and the timing log. One
// mutex serializes all of it; transport reads, timers, and API calls all funnel
// through that lock. Disk writes happen on snapshots taken under the lock.
type Engine struct {
	transport Transport
	shows     *show.Manager
	clock     clock.Clock

	mu          sync.Mutex
	store       *Store
	settings    show.Settings
	connected   bool
	version     string
	consoleShow string

	// Discovered cue lists and their last known cue count (-1 until counted).
	lists map[int]int

	mainList int

	refresh      refreshState
	refreshQueue []int

	poll pollState

	timing timingState

	onDisconnect func()

	stop chan struct{}

	// Protocol tunables; tests shorten these.
	countTimeout    time.Duration
	fallbackTimeout time.Duration
	completionFloor time.Duration
	perCueTimeout   time.Duration
	batchInterval   time.Duration
	batchSize       int
	pollInterval    time.Duration
	pollTimeout     time.Duration
}

// New creates an engine over a transport and a show manager. A nil clk uses the
// wall clock; tests pass a fake.
func New(t Transport, shows *show.Manager, settings show.Settings, clk clock.Clock) *Engine {
	if clk == nil {
		clk = clock.RealClock{}
	}
	e := &Engine{
		transport: t,
		shows:     shows,
		clock:     clk,
		store:     NewStore(),
		settings:  settings,
		lists:     map[int]int{},
		mainList:  parseListNumber(settings.MainPlaybackList),

		countTimeout:    5 * time.Second,
		fallbackTimeout: 5 * time.Second,
		completionFloor: 5 * time.Second,
		perCueTimeout:   100 * time.Millisecond,
		batchInterval:   50 * time.Millisecond,
		batchSize:       10,
		pollInterval:    500 * time.Millisecond,
		pollTimeout:     600 * time.Millisecond,
	}
	return e
}

func parseListNumber(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 1
	}
	return n
}

// OnDisconnect sets a callback invoked when the transport reports the
// connection lost.
func (e *Engine) OnDisconnect(cb func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onDisconnect = cb
}

// OpenShow switches the current show, swapping the entire in-memory model. An
// unknown show name is created with empty data.
func (e *Engine) OpenShow(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.shows.Open(name); err != nil {
		return err
	}

	var cues []*Cue
	e.shows.LoadCues(&cues)
	e.store.Replace(cues)
	e.timing = timingFromShow(e.shows.LoadTimings())

	e.settings.LastShowName = e.shows.Current()
	e.saveSettingsLocked()
	return nil
}

// Connect opens the transport, starts the event loop, subscribes to console
// output, and kicks off discovery.
func (e *Engine) Connect() error {
	e.mu.Lock()
	if e.connected {
		e.mu.Unlock()
		return nil
	}
	e.mu.Unlock()

	if err := e.transport.Connect(); err != nil {
		return err
	}
	e.mu.Lock()
	e.connected = true
	e.stop = make(chan struct{})
	stop := e.stop
	e.mu.Unlock()

	go e.run(stop)

	e.send(osc.NewMessage(messages.AddrSubscribe, int32(1)))
	e.send(osc.NewMessage(messages.AddrGetVersion))
	e.send(osc.NewMessage(messages.AddrGetFaderConfig))
	e.send(osc.NewMessage(messages.AddrGetCueListCount))
	return nil
}

// Disconnect stops the event loop and closes the transport. Pending cue writes
// are flushed synchronously.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	if !e.connected {
		e.mu.Unlock()
		return
	}
	e.connected = false
	close(e.stop)
	snap := e.store.Snapshot()
	e.mu.Unlock()

	if err := e.transport.Close(); err != nil {
		log.Warnf("Failed to close transport: %v", err)
	}
	if err := e.shows.SaveCuesNow(snap); err != nil {
		log.Warnf("Failed to flush cue file: %v", err)
	}
}

// Connected reports whether the engine believes the console is reachable.
func (e *Engine) Connected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

func (e *Engine) run(stop chan struct{}) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case msg := <-e.transport.Messages():
			e.handleMessage(msg)
		case err := <-e.transport.Lost():
			e.handleLost(err)
			return
		case <-ticker.C:
			e.pollTick()
		}
	}
}

func (e *Engine) handleMessage(msg *osc.Message) {
	ev, err := messages.Parse(msg)
	if err != nil {
		log.Debugf("Dropping malformed message %s: %v", msg.Address, err)
		return
	}
	if ev == nil {
		return
	}
	e.apply(ev)
}

func (e *Engine) handleLost(err error) {
	e.mu.Lock()
	e.connected = false
	cb := e.onDisconnect
	e.mu.Unlock()
	log.Warn("Console connection lost", "error", err)
	if cb != nil {
		cb()
	}
}

// apply dispatches one decoded event. All state mutation happens here or in the
// *_Locked helpers it calls, under the engine lock.
func (e *Engine) apply(ev messages.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch ev := ev.(type) {
	case messages.ShowName:
		e.consoleShow = ev.Name
		log.Info("Console show", "name", ev.Name)

	case messages.Version:
		e.version = ev.Version
		log.Info("Console version", "version", ev.Version)

	case messages.CueListCount:
		log.Debugf("Console reports %d cue lists", ev.Count)
		for i := 0; i < ev.Count; i++ {
			e.send(osc.NewMessage(messages.GetCueListIndex(i)))
		}

	case messages.CueListDiscovered:
		if _, known := e.lists[ev.List]; !known {
			log.Info("Discovered cue list", "list", ev.List)
			e.lists[ev.List] = -1
			e.requestRefreshLocked(ev.List)
		}

	case messages.CueCount:
		e.handleCueCountLocked(ev)

	case messages.CueData:
		e.handleCueDataLocked(ev)

	case messages.CueNotify:
		e.handleNotifyLocked(ev)

	case messages.ActiveCue:
		e.freePollLocked(pollActive, ev.List)
		e.applyRuntimeLocked(ev.List, ev.Number, SeenActive, "")

	case messages.PendingCue:
		e.freePollLocked(pollPending, ev.List)
		e.applyRuntimeLocked(ev.List, ev.Number, SeenPending, "")

	case messages.ActiveCueText:
		e.handleTextLocked(ev.Text, ev.List, ev.HasList, SeenActive)

	case messages.PendingCueText:
		e.handleTextLocked(ev.Text, ev.List, ev.HasList, SeenPending)

	case messages.FaderConfig:
		e.handleFaderLocked(ev)
	}
}

func (e *Engine) handleNotifyLocked(ev messages.CueNotify) {
	last, known := e.lists[ev.List]
	if known && last > 0 && ev.Count != last {
		log.Debugf("Cue list %d count changed %d -> %d, refreshing", ev.List, last, ev.Count)
		e.requestRefreshLocked(ev.List)
		return
	}
	if ev.Number != "" {
		// Same count, so a cue changed in place; fetch just that cue.
		e.send(osc.NewMessage(messages.GetCue(ev.List, ev.Number)))
	}
}

func (e *Engine) handleFaderLocked(ev messages.FaderConfig) {
	if ev.Index != 0 || ev.Type != 1 || ev.TargetID <= 0 {
		return
	}
	if ev.TargetID == e.mainList {
		return
	}
	log.Info("Main playback list from fader config", "list", ev.TargetID, "label", ev.Label)
	e.mainList = ev.TargetID
	e.settings.MainPlaybackList = strconv.Itoa(ev.TargetID)
	e.saveSettingsLocked()
}

// SetMainList applies a user override of the main playback list. A later fader
// config report replaces it.
func (e *Engine) SetMainList(list int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if list <= 0 {
		return
	}
	e.mainList = list
	e.settings.MainPlaybackList = strconv.Itoa(list)
	e.saveSettingsLocked()
}

// MainList returns the current main playback list number.
func (e *Engine) MainList() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mainList
}

func (e *Engine) saveSettingsLocked() {
	s := e.settings
	dir := e.shows.DataDir()
	go func() {
		if err := show.SaveSettings(dir, s); err != nil {
			log.Warnf("Failed to save settings: %v", err)
		}
	}()
}

// send transmits one message, logging failures. Send errors are not fatal to
// the loop; the transport's Lost channel is the authority on disconnects.
func (e *Engine) send(msg *osc.Message) {
	if err := e.transport.Send(msg); err != nil {
		log.Debugf("Send %s failed: %v", msg.Address, err)
	}
}

func (e *Engine) persistDebouncedLocked() {
	e.shows.SaveCuesDebounced(e.store.Snapshot())
}

// PersistNow flushes the cue file synchronously.
func (e *Engine) PersistNow() error {
	e.mu.Lock()
	snap := e.store.Snapshot()
	e.mu.Unlock()
	return e.shows.SaveCuesNow(snap)
}

// Cues returns a value snapshot of the mirrored cues in sort order.
func (e *Engine) Cues() []Cue {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Snapshot()
}

// mutateCue applies a user edit and writes the cue file before returning, so
// API-driven changes are durable when the call completes.
func (e *Engine) mutateCue(key CueKey, fn func(*Cue)) error {
	e.mu.Lock()
	c := e.store.Get(key)
	if c == nil {
		e.mu.Unlock()
		return fmt.Errorf("no cue %d/%s part %d", key.List, key.Number, key.Part)
	}
	fn(c)
	snap := e.store.Snapshot()
	e.mu.Unlock()
	return e.shows.SaveCuesNow(snap)
}

// SetCueNotes replaces a cue's user notes.
func (e *Engine) SetCueNotes(key CueKey, notes string) error {
	return e.mutateCue(key, func(c *Cue) { c.Notes = notes })
}

// SetCueColor sets a cue's user color, normalized to #rrggbb.
func (e *Engine) SetCueColor(key CueKey, color string) error {
	return e.mutateCue(key, func(c *Cue) { c.Color = show.NormalizeColor(color) })
}

// SetCueTags replaces a cue's tag set.
func (e *Engine) SetCueTags(key CueKey, tags []string) error {
	return e.mutateCue(key, func(c *Cue) { c.Tags = append([]string(nil), tags...) })
}

// SetCuePage sets a cue's script page reference.
func (e *Engine) SetCuePage(key CueKey, page string) error {
	return e.mutateCue(key, func(c *Cue) { c.Page = page })
}

// SetCueImagePath sets a cue's attached image path.
func (e *Engine) SetCueImagePath(key CueKey, path string) error {
	return e.mutateCue(key, func(c *Cue) { c.ImagePath = path })
}

// ListState is the runtime state of one discovered cue list.
type ListState struct {
	List    int
	Count   int
	Active  string
	Pending string
}

// Status is a point-in-time view of the engine for UIs.
type Status struct {
	Connected   bool
	Version     string
	ConsoleShow string
	CurrentShow string
	MainList    int
	Recording   bool
	Refreshing  bool
	CueCount    int
	Lists       []ListState
}

// Status returns a snapshot of connection, discovery, and runtime state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := Status{
		Connected:   e.connected,
		Version:     e.version,
		ConsoleShow: e.consoleShow,
		CurrentShow: e.shows.Current(),
		MainList:    e.mainList,
		Recording:   e.timing.recording,
		Refreshing:  e.refresh.phase != refreshIdle,
		CueCount:    e.store.Len(),
	}

	lists := make([]int, 0, len(e.lists))
	for l := range e.lists {
		lists = append(lists, l)
	}
	sort.Ints(lists)
	for _, l := range lists {
		ls := ListState{List: l, Count: e.lists[l]}
		for _, c := range e.store.ByList(l) {
			switch c.LastSeen {
			case SeenActive:
				ls.Active = c.Number
			case SeenPending:
				ls.Pending = c.Number
			}
		}
		st.Lists = append(st.Lists, ls)
	}
	return st
}
