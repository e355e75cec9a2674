package eos

import (
	"testing"
	"time"

	"github.com/tbeaumont/cuemirror/messages"
)

func TestRecordingIgnoresSecondaryLists(t *testing.T) {
	engine, _, fc := newTestEngine(t)
	engine.SetRecording(true)

	engine.apply(messages.ActiveCue{List: 2, Number: "3"})
	fc.Step(5 * time.Second)
	engine.apply(messages.ActiveCue{List: 1, Number: "7"})

	timings := engine.Timings()
	if len(timings) != 1 {
		t.Fatalf("got %d timing entries, want 1: %+v", len(timings), timings)
	}
	if timings[0].CueNumber != "7" {
		t.Errorf("recorded cue = %q, want 7", timings[0].CueNumber)
	}
	// The show clock started on the first active event, even on a secondary list.
	if timings[0].Timestamp != 5.0 {
		t.Errorf("timestamp = %v, want 5.0", timings[0].Timestamp)
	}
	if timings[0].TimeFromPrevious != 0 {
		t.Errorf("timeFromPrevious = %v, want 0 for the first entry", timings[0].TimeFromPrevious)
	}
}

func TestRecordingRefireUpdatesInPlace(t *testing.T) {
	engine, _, fc := newTestEngine(t)
	engine.SetRecording(true)

	engine.apply(messages.ActiveCue{List: 1, Number: "7"})
	fc.Step(10 * time.Second)
	engine.apply(messages.ActiveCue{List: 1, Number: "8"})
	fc.Step(5 * time.Second)
	engine.apply(messages.ActiveCue{List: 1, Number: "7"})

	timings := engine.Timings()
	if len(timings) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(timings), timings)
	}
	var seven, eight float64
	for _, entry := range timings {
		switch entry.CueNumber {
		case "7":
			seven = entry.Timestamp
		case "8":
			eight = entry.Timestamp
		}
	}
	if seven != 15.0 {
		t.Errorf("re-fired cue 7 timestamp = %v, want 15.0", seven)
	}
	if eight != 10.0 {
		t.Errorf("cue 8 timestamp = %v, want 10.0", eight)
	}
}

func TestRecordingRepeatedActiveEventIsIdempotent(t *testing.T) {
	engine, _, fc := newTestEngine(t)
	engine.SetRecording(true)

	engine.apply(messages.ActiveCue{List: 1, Number: "7"})
	fc.Step(2 * time.Second)
	engine.apply(messages.ActiveCue{List: 1, Number: "7"})

	timings := engine.Timings()
	if len(timings) != 1 {
		t.Fatalf("got %d entries, want 1", len(timings))
	}
	if timings[0].Timestamp != 0 {
		t.Errorf("duplicate event updated the entry: %v", timings[0].Timestamp)
	}
}

func TestFaderConfigSetsMainList(t *testing.T) {
	engine, _, fc := newTestEngine(t)

	engine.apply(messages.FaderConfig{Index: 0, Type: 1, TargetID: 3, Label: "Main"})
	if engine.MainList() != 3 {
		t.Fatalf("main list = %d, want 3", engine.MainList())
	}

	engine.SetRecording(true)
	engine.apply(messages.ActiveCue{List: 1, Number: "5"})
	fc.Step(time.Second)
	engine.apply(messages.ActiveCue{List: 3, Number: "2"})

	timings := engine.Timings()
	if len(timings) != 1 || timings[0].CueNumber != "2" {
		t.Errorf("timings = %+v, want only list-3 cue 2", timings)
	}
}

func TestFaderConfigIgnoresNonCueListFaders(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	engine.apply(messages.FaderConfig{Index: 0, Type: 2, TargetID: 5, Label: "Sub"})
	if engine.MainList() != 1 {
		t.Errorf("main list = %d, want unchanged 1", engine.MainList())
	}

	engine.apply(messages.FaderConfig{Index: 1, Type: 1, TargetID: 5, Label: "Other"})
	if engine.MainList() != 1 {
		t.Errorf("main list = %d, want unchanged 1", engine.MainList())
	}
}

func TestUserMainListOverrideReplacedByFader(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	engine.SetMainList(4)
	if engine.MainList() != 4 {
		t.Fatalf("override not applied")
	}
	engine.apply(messages.FaderConfig{Index: 0, Type: 1, TargetID: 2, Label: "Main"})
	if engine.MainList() != 2 {
		t.Errorf("fresh fader config did not replace the override")
	}
}

func TestPlaybackCountdown(t *testing.T) {
	engine, _, fc := newTestEngine(t)

	// Record a three-cue schedule: 1 at t=0, 2 at t=10, 3 at t=25.
	engine.SetRecording(true)
	engine.apply(messages.ActiveCue{List: 1, Number: "1"})
	fc.Step(10 * time.Second)
	engine.apply(messages.ActiveCue{List: 1, Number: "2"})
	fc.Step(15 * time.Second)
	engine.apply(messages.ActiveCue{List: 1, Number: "3"})
	engine.SetRecording(false)

	// Play the show back: cue 1 fires, four seconds pass.
	engine.apply(messages.ActiveCue{List: 1, Number: "1"})
	fc.Step(4 * time.Second)

	cd := engine.CountdownNow()
	if !cd.HasSchedule || cd.Recording {
		t.Fatalf("countdown state = %+v", cd)
	}
	if cd.ShowElapsed != 4.0 {
		t.Errorf("showElapsed = %v, want 4.0", cd.ShowElapsed)
	}
	if !cd.HasNext || cd.NextCue != "2" {
		t.Fatalf("next cue = %q (hasNext=%v), want 2", cd.NextCue, cd.HasNext)
	}
	if cd.TimeToNext != 6.0 {
		t.Errorf("timeToNext = %v, want 6.0", cd.TimeToNext)
	}
	if cd.TotalShowTime != 25.0 {
		t.Errorf("totalShowTime = %v, want 25.0", cd.TotalShowTime)
	}
	if cd.EstimatedRemaining != 21.0 {
		t.Errorf("estimatedRemaining = %v, want 21.0", cd.EstimatedRemaining)
	}

	var active, second CueCountdown
	for _, pc := range cd.PerCue {
		switch pc.CueNumber {
		case "1":
			active = pc
		case "2":
			second = pc
		}
	}
	if !active.Live || active.Seconds != 6.0 {
		t.Errorf("active cue countdown = %+v, want live 6.0", active)
	}
	if second.Live || second.Seconds != 10.0 {
		t.Errorf("second cue countdown = %+v, want static 10.0", second)
	}
}

func TestCountdownClampsAtZero(t *testing.T) {
	engine, _, fc := newTestEngine(t)

	engine.SetRecording(true)
	engine.apply(messages.ActiveCue{List: 1, Number: "1"})
	fc.Step(5 * time.Second)
	engine.apply(messages.ActiveCue{List: 1, Number: "2"})
	engine.SetRecording(false)

	engine.apply(messages.ActiveCue{List: 1, Number: "1"})
	fc.Step(30 * time.Second) // well past the recorded gap

	cd := engine.CountdownNow()
	for _, pc := range cd.PerCue {
		if pc.CueNumber == "1" && pc.Seconds != 0 {
			t.Errorf("overdue countdown = %v, want clamped to 0", pc.Seconds)
		}
	}
}

func TestClearTimings(t *testing.T) {
	engine, _, fc := newTestEngine(t)
	engine.SetRecording(true)
	engine.apply(messages.ActiveCue{List: 1, Number: "1"})
	fc.Step(time.Second)
	engine.apply(messages.ActiveCue{List: 1, Number: "2"})

	engine.ClearTimings()
	if len(engine.Timings()) != 0 {
		t.Error("timings remain after clear")
	}
}

func TestTimingsSurviveShowReopen(t *testing.T) {
	engine, _, fc := newTestEngine(t)
	engine.SetRecording(true)
	engine.apply(messages.ActiveCue{List: 1, Number: "1"})
	fc.Step(3 * time.Second)
	engine.apply(messages.ActiveCue{List: 1, Number: "2"})

	if err := engine.OpenShow("Another"); err != nil {
		t.Fatalf("OpenShow failed: %v", err)
	}
	if len(engine.Timings()) != 0 {
		t.Error("new show inherited the old show's timings")
	}

	if err := engine.OpenShow("Test Show"); err != nil {
		t.Fatalf("OpenShow failed: %v", err)
	}
	timings := engine.Timings()
	if len(timings) != 2 {
		t.Fatalf("reloaded %d timing entries, want 2", len(timings))
	}
	if timings[1].TimeFromPrevious != 3.0 {
		t.Errorf("reloaded timeFromPrevious = %v, want 3.0", timings[1].TimeFromPrevious)
	}
}
