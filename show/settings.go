package show

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

const settingsFile = "global_settings.json"

// OSCSettings holds the transport parameters for reaching the console.
type OSCSettings struct {
	IPAddress  string `json:"ip_address"`
	Port       int    `json:"port"`
	OSCVersion string `json:"osc_version"`
	Protocol   string `json:"protocol"`
}

// Settings is the global (show-independent) configuration.
type Settings struct {
	LastShowName     string      `json:"lastShowName"`
	MainPlaybackList string      `json:"mainPlaybackList"`
	OSC              OSCSettings `json:"oscSettings"`
}

// DefaultSettings returns the configuration used before the first setup run.
func DefaultSettings() Settings {
	return Settings{
		LastShowName:     "Default",
		MainPlaybackList: "1",
		OSC: OSCSettings{
			IPAddress:  "127.0.0.1",
			Port:       8000,
			OSCVersion: "1.1",
			Protocol:   "udp",
		},
	}
}

// LoadSettings reads global_settings.json from the data directory, falling back
// to defaults when the file is missing or unreadable.
func LoadSettings(dataDir string) Settings {
	s := DefaultSettings()
	path := filepath.Join(dataDir, settingsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnf("Failed to read %s: %v", path, err)
		}
		return s
	}
	if err := json.Unmarshal(data, &s); err != nil {
		log.Warnf("Corrupt settings file %s, using defaults: %v", path, err)
		return DefaultSettings()
	}
	return s
}

// SaveSettings writes global_settings.json to the data directory.
func SaveSettings(dataDir string, s Settings) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dataDir, settingsFile), data, 0o644)
}
