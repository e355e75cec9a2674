package show

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lucasb-eyer/go-colorful"
)

// Per-show file names. The cue file is written by the engine through the
// debounced saver; everything else is written immediately on change.
const (
	cuesFile      = "cues.json"
	notesFile     = "show_notes.json"
	timingsFile   = "show_timings.json"
	sceneDataFile = "scene-data.json"
	tagColorsFile = "tag-colors.json"
	defaultShow   = "Default"
	saveDebounce  = time.Second
	defaultCueHex = "#ffffff"
)

// SceneMeta is user-authored metadata attached to a scene name.
type SceneMeta struct {
	Notes string `json:"notes"`
	Color string `json:"color"`
}

// CueTiming is one recorded cue firing. Timestamp is seconds from show start;
// TimeFromPrevious is seconds since the previous recorded firing.
type CueTiming struct {
	CueNumber        string  `json:"cueNumber"`
	CueList          string  `json:"cueList"`
	Label            string  `json:"label"`
	Timestamp        float64 `json:"timestamp"`
	TimeFromPrevious float64 `json:"timeFromPrevious"`
}

// Timings is the persisted recording state for one show. ShowStartTime and
// LastCueTime are nil until the first cue fires while recording.
type Timings struct {
	IsRecording   bool        `json:"isRecording"`
	ShowStartTime *float64    `json:"showStartTime"`
	LastCueTime   *float64    `json:"lastCueTime"`
	LastCueNumber string      `json:"lastCueNumber"`
	CueTimings    []CueTiming `json:"cueTimings"`
}

type showNotes struct {
	Notes string `json:"notes"`
}

// Manager owns the per-show on-disk layout: one directory per show
// (percent-encoded name) under a data root. The global settings file in the same
// root is handled by LoadSettings and SaveSettings, not by Manager. It holds the current show's
// user metadata (notes, scenes, tag colors) and offers load/save for the cue and
// timing files whose in-memory state lives in the engine.
type Manager struct {
	mu      sync.Mutex
	dataDir string
	current string

	notes     string
	sceneData map[string]SceneMeta
	tagColors map[string]string

	pendingCues any
	saveTimer   *time.Timer
}

// NewManager creates a manager rooted at dataDir and runs the startup
// migrations. No show is loaded until Open is called.
func NewManager(dataDir string) (*Manager, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}
	m := &Manager{
		dataDir:   dataDir,
		sceneData: map[string]SceneMeta{},
		tagColors: map[string]string{},
	}
	m.migrateLegacyFiles()
	m.migrateLegacyDirs()
	return m, nil
}

// DataDir returns the data root.
func (m *Manager) DataDir() string {
	return m.dataDir
}

// Open switches the current show, creating it with empty data when the name is
// unknown. It loads the show's user metadata; cue and timing state are loaded by
// the caller via LoadCues and LoadTimings.
func (m *Manager) Open(name string) error {
	if name == "" {
		name = defaultShow
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flushCuesLocked()

	dir := m.showDirLocked(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create show directory: %v", err)
	}
	m.current = name

	var notes showNotes
	m.loadJSONLocked(filepath.Join(dir, notesFile), &notes)
	m.notes = notes.Notes

	m.sceneData = map[string]SceneMeta{}
	m.loadJSONLocked(filepath.Join(dir, sceneDataFile), &m.sceneData)
	if m.sceneData == nil {
		m.sceneData = map[string]SceneMeta{}
	}

	m.tagColors = map[string]string{}
	m.loadJSONLocked(filepath.Join(dir, tagColorsFile), &m.tagColors)
	if m.tagColors == nil {
		m.tagColors = map[string]string{}
	}

	log.Info("Opened show", "name", name, "dir", dir)
	return nil
}

// Current returns the current show name.
func (m *Manager) Current() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// List returns every show name present on disk, sorted.
func (m *Manager) List() []string {
	entries, err := os.ReadDir(m.dataDir)
	if err != nil {
		log.Warnf("Failed to list shows: %v", err)
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, DecodeName(e.Name()))
		}
	}
	sort.Strings(names)
	return names
}

// Notes returns the current show's free-text notes.
func (m *Manager) Notes() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notes
}

// SetNotes replaces the show notes and writes them immediately.
func (m *Manager) SetNotes(notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notes = notes
	return m.writeJSONLocked(notesFile, showNotes{Notes: notes})
}

// SceneData returns a copy of the scene metadata map.
func (m *Manager) SceneData() map[string]SceneMeta {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]SceneMeta, len(m.sceneData))
	for k, v := range m.sceneData {
		out[k] = v
	}
	return out
}

// SetSceneMeta updates one scene's metadata and writes the scene file.
func (m *Manager) SetSceneMeta(scene string, meta SceneMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta.Color = NormalizeColor(meta.Color)
	m.sceneData[scene] = meta
	return m.writeJSONLocked(sceneDataFile, m.sceneData)
}

// TagColors returns a copy of the tag color map.
func (m *Manager) TagColors() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.tagColors))
	for k, v := range m.tagColors {
		out[k] = v
	}
	return out
}

// SetTagColor assigns a color to a tag and writes the tag color file.
func (m *Manager) SetTagColor(tag, color string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tagColors[tag] = NormalizeColor(color)
	return m.writeJSONLocked(tagColorsFile, m.tagColors)
}

// NormalizeColor validates a hex color and normalizes it to lowercase #rrggbb.
// Anything unparseable falls back to the "no color" default.
func NormalizeColor(hex string) string {
	if hex == "" {
		return defaultCueHex
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		log.Debugf("Invalid color %q, using default", hex)
		return defaultCueHex
	}
	return c.Hex()
}

// LoadCues reads the current show's cue file into dst. A missing or corrupt file
// leaves dst untouched and returns false: the show starts with an empty cue list
// rather than crashing.
func (m *Manager) LoadCues(dst any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadJSONLocked(filepath.Join(m.showDirLocked(m.current), cuesFile), dst)
}

// SaveCuesDebounced schedules a write of the cue snapshot, coalescing writes
// within the debounce window. The snapshot must already be detached from live
// engine state.
func (m *Manager) SaveCuesDebounced(cues any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingCues = cues
	if m.saveTimer == nil {
		m.saveTimer = time.AfterFunc(saveDebounce, m.flushCues)
	}
}

// SaveCuesNow writes the cue snapshot synchronously, superseding any pending
// debounced write.
func (m *Manager) SaveCuesNow(cues any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
		m.saveTimer = nil
	}
	m.pendingCues = nil
	return m.writeJSONLocked(cuesFile, cues)
}

func (m *Manager) flushCues() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushCuesLocked()
}

func (m *Manager) flushCuesLocked() {
	if m.saveTimer != nil {
		m.saveTimer.Stop()
		m.saveTimer = nil
	}
	if m.pendingCues == nil {
		return
	}
	cues := m.pendingCues
	m.pendingCues = nil
	if err := m.writeJSONLocked(cuesFile, cues); err != nil {
		log.Warnf("Failed to write cue file: %v", err)
	}
}

// LoadTimings reads the current show's timing file. Missing or corrupt files
// yield a zero Timings value.
func (m *Manager) LoadTimings() Timings {
	m.mu.Lock()
	defer m.mu.Unlock()
	var t Timings
	m.loadJSONLocked(filepath.Join(m.showDirLocked(m.current), timingsFile), &t)
	return t
}

// SaveTimings writes the timing file immediately.
func (m *Manager) SaveTimings(t Timings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeJSONLocked(timingsFile, t)
}

func (m *Manager) showDirLocked(name string) string {
	if name == "" {
		name = defaultShow
	}
	return filepath.Join(m.dataDir, EncodeName(name))
}

func (m *Manager) loadJSONLocked(path string, dst any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("Failed to read %s: %v", path, err)
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		log.Warnf("Corrupt data file %s, starting empty: %v", path, err)
		return false
	}
	return true
}

func (m *Manager) writeJSONLocked(name string, v any) error {
	if m.current == "" {
		return fmt.Errorf("no show open")
	}
	dir := m.showDirLocked(m.current)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		log.Warnf("Failed to write %s: %v", name, err)
		return err
	}
	return nil
}

// migrateLegacyFiles moves pre-show-directory data files from the data root into
// the Default show directory.
func (m *Manager) migrateLegacyFiles() {
	legacy := []string{cuesFile, notesFile, timingsFile}
	moved := false
	for _, name := range legacy {
		src := filepath.Join(m.dataDir, name)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		dir := filepath.Join(m.dataDir, EncodeName(defaultShow))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Warnf("Failed to create Default show directory: %v", err)
			return
		}
		dst := filepath.Join(dir, name)
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		if err := os.Rename(src, dst); err != nil {
			log.Warnf("Failed to migrate %s: %v", name, err)
			continue
		}
		moved = true
	}
	if moved {
		log.Info("Migrated legacy data files into Default show")
	}
}

// migrateLegacyDirs renames show directories whose names do not round-trip
// through the current encoding (written by older versions with a different
// escape set).
func (m *Manager) migrateLegacyDirs() {
	entries, err := os.ReadDir(m.dataDir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := DecodeName(e.Name())
		want := EncodeName(name)
		if want == e.Name() {
			continue
		}
		src := filepath.Join(m.dataDir, e.Name())
		dst := filepath.Join(m.dataDir, want)
		if _, err := os.Stat(dst); err == nil {
			log.Warnf("Cannot migrate show directory %q: %q already exists", e.Name(), want)
			continue
		}
		if err := os.Rename(src, dst); err != nil {
			log.Warnf("Failed to migrate show directory %q: %v", e.Name(), err)
			continue
		}
		log.Info("Migrated show directory", "from", e.Name(), "to", want)
	}
}
