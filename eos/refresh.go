package eos

import (
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hypebeast/go-osc/osc"

	"github.com/tbeaumont/cuemirror/messages"
)

// Refresh walks one cue list through count -> indexed fetch -> cleanup. The
// state machine has three phases; gen invalidates timers and the batch sender
// whenever a session ends, so stale callbacks fall through harmlessly.
type refreshPhase int

const (
	refreshIdle refreshPhase = iota
	refreshAwaitingCount
	refreshFetching
)

type refreshState struct {
	phase        refreshPhase
	list         int
	gen          int
	expected     int
	countKnown   bool
	fallbackSent bool
	receivedIdx  map[int]bool
	receivedNums map[string]bool
	pendingIdx   []int
}

// RefreshList requests a bulk refresh of one cue list. Only one refresh runs at
// a time; further requests queue, deduplicated against both the queue and the
// list currently refreshing.
func (e *Engine) RefreshList(list int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requestRefreshLocked(list)
}

// RefreshAll queues a refresh of every discovered list.
func (e *Engine) RefreshAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	lists := make([]int, 0, len(e.lists))
	for l := range e.lists {
		lists = append(lists, l)
	}
	sort.Ints(lists)
	for _, l := range lists {
		e.requestRefreshLocked(l)
	}
}

func (e *Engine) requestRefreshLocked(list int) {
	if e.refresh.phase != refreshIdle {
		if e.refresh.list == list {
			return
		}
		for _, queued := range e.refreshQueue {
			if queued == list {
				return
			}
		}
		e.refreshQueue = append(e.refreshQueue, list)
		log.Debugf("Refresh of list %d queued behind list %d", list, e.refresh.list)
		return
	}
	e.startRefreshLocked(list)
}

func (e *Engine) startRefreshLocked(list int) {
	e.refresh.gen++
	e.refresh.phase = refreshAwaitingCount
	e.refresh.list = list
	e.refresh.expected = 0
	e.refresh.countKnown = false
	e.refresh.fallbackSent = false
	e.refresh.receivedIdx = map[int]bool{}
	e.refresh.receivedNums = map[string]bool{}
	e.refresh.pendingIdx = nil

	gen := e.refresh.gen
	log.Info("Refreshing cue list", "list", list)
	e.send(osc.NewMessage(messages.GetCueCount(list)))
	time.AfterFunc(e.countTimeout, func() { e.countTimeoutFired(gen) })
}

// countTimeoutFired runs when the count request went unanswered: first fire
// sends the fallback triple, second fire gives up without evicting anything.
func (e *Engine) countTimeoutFired(gen int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refresh.gen != gen || e.refresh.phase != refreshAwaitingCount {
		return
	}
	list := e.refresh.list
	if !e.refresh.fallbackSent {
		log.Warnf("No cue count from console for list %d, trying fallback queries", list)
		e.refresh.fallbackSent = true
		e.send(osc.NewMessage(messages.GetCueRange(list)))
		e.send(osc.NewMessage(messages.GetCueFirst(list)))
		e.send(osc.NewMessage(messages.GetCueListWildcard(list)))
		time.AfterFunc(e.fallbackTimeout, func() { e.countTimeoutFired(gen) })
		return
	}
	log.Warnf("Refresh of list %d failed: console never reported a cue count", list)
	e.finishRefreshLocked(false)
}

func (e *Engine) handleCueCountLocked(ev messages.CueCount) {
	e.lists[ev.List] = ev.Count

	r := &e.refresh
	if r.phase != refreshAwaitingCount || ev.List != r.list {
		return
	}

	r.expected = ev.Count
	r.countKnown = true
	log.Debugf("List %d reports %d cues", ev.List, ev.Count)

	if ev.Count == 0 {
		e.finishRefreshLocked(true)
		return
	}

	r.phase = refreshFetching
	r.pendingIdx = make([]int, ev.Count)
	for i := range r.pendingIdx {
		r.pendingIdx[i] = i
	}
	e.startCompletionTimerLocked()
	go e.runFetchBatches(r.gen)
}

func (e *Engine) startCompletionTimerLocked() {
	gen := e.refresh.gen
	deadline := e.completionFloor
	if perCount := time.Duration(e.refresh.expected) * e.perCueTimeout; perCount > deadline {
		deadline = perCount
	}
	time.AfterFunc(deadline, func() { e.completionTimeoutFired(gen) })
}

func (e *Engine) completionTimeoutFired(gen int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refresh.gen != gen || e.refresh.phase != refreshFetching {
		return
	}
	log.Warnf("Refresh of list %d timed out with %d/%d cues; keeping partial results",
		e.refresh.list, len(e.refresh.receivedIdx), e.refresh.expected)
	e.finishRefreshLocked(true)
}

// runFetchBatches issues the indexed cue requests in small batches on a fixed
// cadence until the session ends or every index has been requested.
func (e *Engine) runFetchBatches(gen int) {
	ticker := time.NewTicker(e.batchInterval)
	defer ticker.Stop()
	for range ticker.C {
		e.mu.Lock()
		if e.refresh.gen != gen || e.refresh.phase != refreshFetching {
			e.mu.Unlock()
			return
		}
		n := e.batchSize
		if n > len(e.refresh.pendingIdx) {
			n = len(e.refresh.pendingIdx)
		}
		batch := e.refresh.pendingIdx[:n]
		e.refresh.pendingIdx = e.refresh.pendingIdx[n:]
		list := e.refresh.list
		for _, i := range batch {
			e.send(osc.NewMessage(messages.GetCueIndex(list, i)))
		}
		e.mu.Unlock()
		if n == 0 {
			return
		}
	}
}

func (e *Engine) handleCueDataLocked(ev messages.CueData) {
	r := &e.refresh
	key := CueKey{List: ev.List, Number: ev.Number, Part: ev.Part}

	if r.phase == refreshIdle || ev.List != r.list {
		// Not part of the active refresh; still authoritative cue data.
		e.store.Upsert(key, ev.Fields)
		e.persistDebouncedLocked()
		return
	}

	if r.phase == refreshAwaitingCount {
		if !r.fallbackSent {
			// Stale data from an earlier session; do not credit or apply it.
			log.Debugf("Dropping cue data for %d/%s before count", ev.List, ev.Number)
			return
		}
		// Wildcard fallback answered first: the path suffix carries the total.
		r.expected = ev.Total
		r.countKnown = true
		r.phase = refreshFetching
		e.lists[ev.List] = ev.Total
		log.Debugf("List %d count %d from wildcard reply", ev.List, ev.Total)
		e.startCompletionTimerLocked()
	}

	if ev.Index >= r.expected {
		log.Debugf("Dropping stale cue data index %d (expected %d) on list %d", ev.Index, r.expected, ev.List)
		return
	}

	e.store.Upsert(key, ev.Fields)
	r.receivedIdx[ev.Index] = true
	r.receivedNums[ev.Number] = true

	if len(r.receivedIdx) >= r.expected {
		e.finishRefreshLocked(true)
	}
}

// finishRefreshLocked ends the current session. When evict is true and a count
// was established, cues the console no longer reports are removed; a session
// that never learned its count keeps everything to avoid wiping the mirror on a
// one-message failure.
func (e *Engine) finishRefreshLocked(evict bool) {
	r := &e.refresh
	if evict && r.countKnown {
		e.store.Evict(r.list, r.receivedNums)
	}
	log.Info("Refresh finished", "list", r.list, "received", len(r.receivedNums), "evicted", evict && r.countKnown)
	e.persistDebouncedLocked()

	r.gen++
	r.phase = refreshIdle
	r.pendingIdx = nil

	if len(e.refreshQueue) > 0 {
		next := e.refreshQueue[0]
		e.refreshQueue = e.refreshQueue[1:]
		e.startRefreshLocked(next)
	}
}
