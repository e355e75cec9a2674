package eos

import (
	"sort"
	"strconv"

	"github.com/charmbracelet/log"
)

// Runtime states a cue can hold per list.
const (
	SeenActive  = "active"
	SeenPending = "pending"
)

const defaultColor = "#ffffff"

// CueKey is the primary key of a cue: part 0 is the main cue, 1..N its parts.
type CueKey struct {
	List   int
	Number string
	Part   int
}

// Cue is one mirrored cue record. Console-owned fields are overwritten on every
// refresh; user-owned fields (Notes, Color, Tags, Page, ImagePath) belong to the
// local annotation layer and survive refreshes. LastSeen is runtime-only and is
// never persisted.
type Cue struct {
	List   int    `json:"cue_list"`
	Number string `json:"cue_number"`
	Part   int    `json:"part_number"`

	UID           string   `json:"uid"`
	Label         string   `json:"label"`
	UpDuration    *float64 `json:"up_duration"`
	UpDelay       *float64 `json:"up_delay"`
	DownDuration  *float64 `json:"down_duration"`
	DownDelay     *float64 `json:"down_delay"`
	FocusDuration *float64 `json:"focus_duration"`
	FocusDelay    *float64 `json:"focus_delay"`
	ColorDuration *float64 `json:"color_duration"`
	ColorDelay    *float64 `json:"color_delay"`
	BeamDuration  *float64 `json:"beam_duration"`
	BeamDelay     *float64 `json:"beam_delay"`
	Mark          string   `json:"mark"`
	Block         string   `json:"block"`
	Assert        string   `json:"assert"`
	FollowTime    *float64 `json:"follow_time"`
	HangTime      *float64 `json:"hang_time"`
	PartCount     int      `json:"part_count"`
	Scene         string   `json:"scene"`
	SceneEnd      bool     `json:"scene_end"`
	Duration      float64  `json:"duration"`
	FadeTime      *float64 `json:"fade_time,omitempty"`

	Notes     string   `json:"notes"`
	Color     string   `json:"color"`
	Tags      []string `json:"tags"`
	Page      string   `json:"page"`
	ImagePath string   `json:"image_path"`

	LastSeen string `json:"-"`
}

// Key returns the cue's primary key.
func (c *Cue) Key() CueKey {
	return CueKey{List: c.List, Number: c.Number, Part: c.Part}
}

// Fields in this set are written on every upsert even when the incoming value is
// empty or null; everything else only overwrites with a non-empty value, which
// is what keeps user annotations alive through refreshes.
var alwaysOverwrite = map[string]bool{
	"last_seen":      true,
	"mark":           true,
	"block":          true,
	"assert":         true,
	"scene":          true,
	"scene_end":      true,
	"part_count":     true,
	"part_number":    true,
	"follow_time":    true,
	"hang_time":      true,
	"up_duration":    true,
	"up_delay":       true,
	"down_duration":  true,
	"down_delay":     true,
	"focus_duration": true,
	"focus_delay":    true,
	"color_duration": true,
	"color_delay":    true,
	"beam_duration":  true,
	"beam_delay":     true,
	"duration":       true,
}

// Store is the in-memory cue collection, kept sorted by (list, number, part).
// It has no lock of its own; the owning engine serializes all access.
type Store struct {
	cues  []*Cue
	index map[CueKey]*Cue
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{index: map[CueKey]*Cue{}}
}

func newCue(key CueKey) *Cue {
	return &Cue{
		List:   key.List,
		Number: key.Number,
		Part:   key.Part,
		Color:  defaultColor,
		Tags:   []string{},
	}
}

// Upsert applies console updates to the cue at key, creating it (user fields at
// defaults) when absent. A part > 0 arriving before its main cue creates a
// part-0 stub so the parent always exists.
func (s *Store) Upsert(key CueKey, updates map[string]any) *Cue {
	if key.Part > 0 {
		parent := CueKey{List: key.List, Number: key.Number, Part: 0}
		if s.index[parent] == nil {
			s.insert(newCue(parent))
		}
	}

	c := s.index[key]
	if c == nil {
		c = newCue(key)
		s.insert(c)
	}
	for field, value := range updates {
		if alwaysOverwrite[field] || !isEmptyValue(value) {
			applyField(c, field, value)
		}
	}
	s.sortCues()
	return c
}

// Get returns the cue at key, or nil.
func (s *Store) Get(key CueKey) *Cue {
	return s.index[key]
}

// Find returns the first cue matching the predicate in sort order, or nil.
func (s *Store) Find(pred func(*Cue) bool) *Cue {
	for _, c := range s.cues {
		if pred(c) {
			return c
		}
	}
	return nil
}

// ByList returns the cues of one list in sort order.
func (s *Store) ByList(list int) []*Cue {
	var out []*Cue
	for _, c := range s.cues {
		if c.List == list {
			out = append(out, c)
		}
	}
	return out
}

// All returns the full sorted cue slice. Callers must not mutate it.
func (s *Store) All() []*Cue {
	return s.cues
}

// Len returns the number of cue records.
func (s *Store) Len() int {
	return len(s.cues)
}

// Evict removes every cue in list whose cue number is not in kept. Cues in other
// lists are untouched. Returns the number of evicted records.
func (s *Store) Evict(list int, kept map[string]bool) int {
	removed := 0
	out := s.cues[:0]
	for _, c := range s.cues {
		if c.List == list && !kept[c.Number] {
			delete(s.index, c.Key())
			removed++
			continue
		}
		out = append(out, c)
	}
	s.cues = out
	if removed > 0 {
		log.Debugf("Evicted %d cues from list %d", removed, list)
	}
	return removed
}

// Replace swaps the entire collection, used when switching shows.
func (s *Store) Replace(cues []*Cue) {
	s.cues = nil
	s.index = map[CueKey]*Cue{}
	for _, c := range cues {
		if c == nil {
			continue
		}
		if c.Color == "" {
			c.Color = defaultColor
		}
		if c.Tags == nil {
			c.Tags = []string{}
		}
		if s.index[c.Key()] != nil {
			continue
		}
		s.insert(c)
	}
	s.sortCues()
}

// ClearLastSeen clears the given runtime state on every cue in one list, leaving
// other lists untouched.
func (s *Store) ClearLastSeen(list int, state string) {
	for _, c := range s.cues {
		if c.List == list && c.LastSeen == state {
			c.LastSeen = ""
		}
	}
}

// MarkLastSeen sets the runtime state on the cue at key, creating a stub record
// when the cue has not been mirrored yet.
func (s *Store) MarkLastSeen(key CueKey, state string) *Cue {
	c := s.index[key]
	if c == nil {
		c = newCue(key)
		s.insert(c)
		s.sortCues()
	}
	c.LastSeen = state
	return c
}

// Snapshot returns a deep value copy of every cue, safe to hand to the persister
// outside the engine lock.
func (s *Store) Snapshot() []Cue {
	out := make([]Cue, 0, len(s.cues))
	for _, c := range s.cues {
		cp := *c
		cp.Tags = append([]string(nil), c.Tags...)
		out = append(out, cp)
	}
	return out
}

func (s *Store) insert(c *Cue) {
	s.cues = append(s.cues, c)
	s.index[c.Key()] = c
}

func (s *Store) sortCues() {
	sort.SliceStable(s.cues, func(i, j int) bool {
		a, b := s.cues[i], s.cues[j]
		if a.List != b.List {
			return a.List < b.List
		}
		if a.Number != b.Number {
			return cueNumberLess(a.Number, b.Number)
		}
		return a.Part < b.Part
	})
}

// cueNumberLess orders cue numbers numerically with decimal support ("9.5"
// before "10"), falling back to lexical order for non-numeric numbers.
func cueNumberLess(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		if fa != fb {
			return fa < fb
		}
		return a < b
	}
	if errA == nil {
		return true
	}
	if errB == nil {
		return false
	}
	return a < b
}

func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case *float64:
		return x == nil
	case []string:
		return len(x) == 0
	}
	return false
}

// applyField writes one named update onto a cue. Unknown fields are ignored so
// newer consoles cannot corrupt the record.
func applyField(c *Cue, field string, v any) {
	switch field {
	case "uid":
		c.UID = asString(v)
	case "label":
		c.Label = asString(v)
	case "up_duration":
		c.UpDuration = asTime(v)
	case "up_delay":
		c.UpDelay = asTime(v)
	case "down_duration":
		c.DownDuration = asTime(v)
	case "down_delay":
		c.DownDelay = asTime(v)
	case "focus_duration":
		c.FocusDuration = asTime(v)
	case "focus_delay":
		c.FocusDelay = asTime(v)
	case "color_duration":
		c.ColorDuration = asTime(v)
	case "color_delay":
		c.ColorDelay = asTime(v)
	case "beam_duration":
		c.BeamDuration = asTime(v)
	case "beam_delay":
		c.BeamDelay = asTime(v)
	case "mark":
		c.Mark = asString(v)
	case "block":
		c.Block = asString(v)
	case "assert":
		c.Assert = asString(v)
	case "follow_time":
		c.FollowTime = asTime(v)
	case "hang_time":
		c.HangTime = asTime(v)
	case "part_count":
		if n, ok := v.(int); ok {
			c.PartCount = n
		}
	case "part_number":
		if n, ok := v.(int); ok {
			c.Part = n
		}
	case "scene":
		c.Scene = asString(v)
	case "scene_end":
		if b, ok := v.(bool); ok {
			c.SceneEnd = b
		}
	case "duration":
		if f, ok := v.(float64); ok {
			c.Duration = f
		}
	case "fade_time":
		c.FadeTime = asTime(v)
	case "last_seen":
		c.LastSeen = asString(v)
	case "notes":
		c.Notes = asString(v)
	case "color":
		c.Color = asString(v)
	case "page":
		c.Page = asString(v)
	case "image_path":
		c.ImagePath = asString(v)
	case "tags":
		if tags, ok := v.([]string); ok {
			c.Tags = append([]string(nil), tags...)
		}
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asTime(v any) *float64 {
	switch x := v.(type) {
	case *float64:
		return x
	case float64:
		f := x
		return &f
	}
	return nil
}
