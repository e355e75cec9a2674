package eos

import (
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hypebeast/go-osc/osc"

	"github.com/tbeaumont/cuemirror/messages"
)

// The console pushes active/pending changes while subscribed, but not reliably
// for every list, so a slow poll walks the discovered lists whenever the engine
// is otherwise idle. One request is in flight at a time; a response that misses
// its window is still consumed by the normal parser, the timeout only frees the
// polling slot.
type pollKind int

const (
	pollActive pollKind = iota
	pollPending
)

type pollReq struct {
	kind pollKind
	list int
}

type pollState struct {
	queue    []pollReq
	inflight *pollReq
	deadline time.Time
}

func (e *Engine) pollTick() {
	e.mu.Lock()

	if !e.connected || e.refresh.phase != refreshIdle {
		e.mu.Unlock()
		return
	}

	now := e.clock.Now()
	if e.poll.inflight != nil {
		if now.Before(e.poll.deadline) {
			e.mu.Unlock()
			return
		}
		log.Debugf("Poll of list %d timed out, advancing", e.poll.inflight.list)
		e.poll.inflight = nil
	}

	if len(e.poll.queue) == 0 {
		e.rebuildPollQueueLocked()
	}
	if len(e.poll.queue) == 0 {
		e.mu.Unlock()
		return
	}

	req := e.poll.queue[0]
	e.poll.queue = e.poll.queue[1:]
	e.poll.inflight = &req
	e.poll.deadline = now.Add(e.pollTimeout)

	var addr string
	if req.kind == pollActive {
		addr = messages.GetCueActive(req.list)
	} else {
		addr = messages.GetCuePending(req.list)
	}
	e.mu.Unlock()

	e.send(osc.NewMessage(addr))
}

func (e *Engine) rebuildPollQueueLocked() {
	lists := make([]int, 0, len(e.lists))
	for l := range e.lists {
		lists = append(lists, l)
	}
	sort.Ints(lists)
	for _, l := range lists {
		e.poll.queue = append(e.poll.queue,
			pollReq{kind: pollActive, list: l},
			pollReq{kind: pollPending, list: l})
	}
}

// freePollLocked releases the in-flight slot when its response arrives.
func (e *Engine) freePollLocked(kind pollKind, list int) {
	if p := e.poll.inflight; p != nil && p.kind == kind && p.list == list {
		e.poll.inflight = nil
	}
}

// applyRuntimeLocked records one cue becoming active or pending on a list. The
// previous holder of that state in the same list is cleared; other lists are
// untouched. A cue that has not been mirrored yet gets a stub record.
func (e *Engine) applyRuntimeLocked(list int, number, state, label string) {
	e.store.ClearLastSeen(list, state)
	e.store.MarkLastSeen(CueKey{List: list, Number: number, Part: 0}, state)

	if state == SeenActive {
		e.noteActiveLocked(list, number, label)
	}
}

func kindForState(state string) pollKind {
	if state == SeenActive {
		return pollActive
	}
	return pollPending
}

// handleTextLocked decodes the console's one-line cue description. The
// contextual list comes from the address when present, otherwise from the
// outstanding poll of the same kind.
func (e *Engine) handleTextLocked(text string, list int, hasList bool, state string) {
	ctx, hasCtx := list, hasList
	if !hasCtx {
		if p := e.poll.inflight; p != nil && p.kind == kindForState(state) {
			ctx, hasCtx = p.list, true
		}
	}

	parsed, ok := messages.ParseCueText(text, ctx, hasCtx)
	if !ok {
		log.Debugf("Unusable %s cue text %q (no contextual list)", state, text)
		return
	}

	e.freePollLocked(kindForState(state), parsed.List)

	if parsed.Reset {
		e.store.ClearLastSeen(parsed.List, state)
		return
	}

	e.applyRuntimeLocked(parsed.List, parsed.Number, state, parsed.Label)

	if parsed.Fade != nil && (state == SeenPending || (parsed.Percent != nil && *parsed.Percent == 0)) {
		e.store.Upsert(CueKey{List: parsed.List, Number: parsed.Number, Part: 0},
			map[string]any{"fade_time": parsed.Fade})
		e.persistDebouncedLocked()
	}
}
