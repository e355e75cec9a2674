package eos

import (
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/tbeaumont/cuemirror/show"
)

// timingState is the in-memory copy of the current show's timing log plus the
// playback bookkeeping that never hits disk. Recording only registers cue
// transitions on the main playback list; active events on secondary lists still
// start the show clock but never produce entries.
type timingState struct {
	recording     bool
	showStart     *float64 // ms since epoch
	lastCueTime   *float64 // seconds from show start
	lastCueNumber string
	timings       []show.CueTiming

	// Playback state.
	activeNumber       string
	currentShowElapsed float64
	lastFire           float64 // ms since epoch, 0 = no firing seen
}

func timingFromShow(t show.Timings) timingState {
	return timingState{
		recording:     t.IsRecording,
		showStart:     t.ShowStartTime,
		lastCueTime:   t.LastCueTime,
		lastCueNumber: t.LastCueNumber,
		timings:       append([]show.CueTiming(nil), t.CueTimings...),
	}
}

func (t *timingState) toShow() show.Timings {
	return show.Timings{
		IsRecording:   t.recording,
		ShowStartTime: t.showStart,
		LastCueTime:   t.lastCueTime,
		LastCueNumber: t.lastCueNumber,
		CueTimings:    append([]show.CueTiming(nil), t.timings...),
	}
}

// noteActiveLocked feeds one active-cue observation into the timing engine.
// Any list starts the show clock on the first event while recording; only
// main-list transitions are recorded or drive playback.
func (e *Engine) noteActiveLocked(list int, number, label string) {
	t := &e.timing

	if t.recording && t.showStart == nil {
		now := float64(e.clock.Now().UnixMilli())
		t.showStart = &now
		log.Info("Show clock started")
		e.saveTimingsLocked()
	}

	if list != e.mainList {
		return
	}

	prev := t.activeNumber
	t.activeNumber = number

	if t.recording {
		e.recordFiringLocked(number, label)
		return
	}

	if number != prev && len(t.timings) > 0 {
		if entry := t.find(number); entry != nil {
			t.currentShowElapsed = entry.Timestamp
			t.lastFire = float64(e.clock.Now().UnixMilli())
		}
	}
}

func (e *Engine) recordFiringLocked(number, label string) {
	t := &e.timing
	if number == t.lastCueNumber {
		return
	}

	nowMs := float64(e.clock.Now().UnixMilli())
	timestamp := (nowMs - *t.showStart) / 1000

	timeFromPrevious := 0.0
	if t.lastCueTime != nil {
		timeFromPrevious = timestamp - *t.lastCueTime
	}

	// Re-firing a recorded cue updates its entry in place; the log holds one
	// entry per cue number.
	if entry := t.find(number); entry != nil {
		entry.Timestamp = timestamp
		entry.TimeFromPrevious = timeFromPrevious
		if label != "" {
			entry.Label = label
		}
	} else {
		t.timings = append(t.timings, show.CueTiming{
			CueNumber:        number,
			CueList:          strconv.Itoa(e.mainList),
			Label:            label,
			Timestamp:        timestamp,
			TimeFromPrevious: timeFromPrevious,
		})
	}

	t.lastCueTime = &timestamp
	t.lastCueNumber = number
	log.Debug("Recorded cue firing", "cue", number, "timestamp", timestamp)
	e.saveTimingsLocked()
}

func (t *timingState) find(number string) *show.CueTiming {
	for i := range t.timings {
		if t.timings[i].CueNumber == number {
			return &t.timings[i]
		}
	}
	return nil
}

// saveTimingsLocked writes the timing file immediately; a deferred write could
// land in the wrong show directory after a show switch.
func (e *Engine) saveTimingsLocked() {
	if err := e.shows.SaveTimings(e.timing.toShow()); err != nil {
		log.Warnf("Failed to save timings: %v", err)
	}
}

// SetRecording toggles timing capture. Turning recording on does not clear an
// existing log; re-fired cues update their entries.
func (e *Engine) SetRecording(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.timing.recording == on {
		return
	}
	e.timing.recording = on
	if on {
		e.timing.lastCueNumber = ""
	}
	log.Info("Timing recording", "enabled", on)
	e.saveTimingsLocked()
}

// ClearTimings wipes the recorded schedule for the current show.
func (e *Engine) ClearTimings() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timing.timings = nil
	e.timing.showStart = nil
	e.timing.lastCueTime = nil
	e.timing.lastCueNumber = ""
	e.timing.currentShowElapsed = 0
	e.timing.lastFire = 0
	e.saveTimingsLocked()
}

// Timings returns a copy of the recorded schedule.
func (e *Engine) Timings() []show.CueTiming {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]show.CueTiming(nil), e.timing.timings...)
}

// CueCountdown is the per-cue playback number: the live countdown for the
// active main-list cue, or the recorded gap as a static duration for the rest.
type CueCountdown struct {
	CueNumber string
	Label     string
	Seconds   float64
	Live      bool
}

// Countdown is the playback view computed against the recorded schedule.
type Countdown struct {
	Recording          bool
	HasSchedule        bool
	ActiveCue          string
	ShowElapsed        float64
	TimeToNext         float64
	HasNext            bool
	NextCue            string
	TotalShowTime      float64
	EstimatedRemaining float64
	PerCue             []CueCountdown
}

// CountdownNow computes the live countdown snapshot. Values advance with the
// wall clock between main-list cue firings.
func (e *Engine) CountdownNow() Countdown {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := &e.timing
	out := Countdown{
		Recording:   t.recording,
		HasSchedule: len(t.timings) > 0,
		ActiveCue:   t.activeNumber,
	}
	if !out.HasSchedule || t.recording {
		return out
	}

	out.TotalShowTime = t.timings[len(t.timings)-1].Timestamp

	elapsed := t.currentShowElapsed
	if t.lastFire > 0 {
		elapsed += (float64(e.clock.Now().UnixMilli()) - t.lastFire) / 1000
	}
	out.ShowElapsed = elapsed
	out.EstimatedRemaining = out.TotalShowTime - elapsed

	activeIdx := -1
	for i := range t.timings {
		if t.timings[i].CueNumber == t.activeNumber {
			activeIdx = i
			break
		}
	}
	if activeIdx >= 0 && activeIdx+1 < len(t.timings) {
		next := t.timings[activeIdx+1]
		out.HasNext = true
		out.NextCue = next.CueNumber
		out.TimeToNext = next.TimeFromPrevious - (elapsed - t.timings[activeIdx].Timestamp)
	}

	for i := range t.timings {
		entry := t.timings[i]
		cd := CueCountdown{CueNumber: entry.CueNumber, Label: entry.Label}
		if entry.CueNumber == t.activeNumber && out.HasNext {
			cd.Live = true
			cd.Seconds = out.TimeToNext
			if cd.Seconds < 0 {
				cd.Seconds = 0
			}
		} else {
			cd.Seconds = entry.TimeFromPrevious
		}
		out.PerCue = append(out.PerCue, cd)
	}
	return out
}
