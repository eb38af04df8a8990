package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Environment overrides for the settings file.
const (
	EnvPackageURLs = "EXTSYNC_PACKAGE_URLS"
	EnvAutoUpdate  = "EXTSYNC_AUTO_UPDATE"
)

// Settings are the user-editable sync settings, read fresh on every catalog
// build and sweep.
type Settings struct {
	PackageURLs     []string `yaml:"package_urls" toml:"package_urls" json:"package_urls"`
	AutoUpdate      bool     `yaml:"auto_update" toml:"auto_update" json:"auto_update"`
	ArtifactPattern string   `yaml:"artifact_pattern,omitempty" toml:"artifact_pattern,omitempty" json:"artifact_pattern,omitempty"`
}

// Endpoints returns the configured registry URLs with blanks removed.
func (s Settings) Endpoints() []string {
	out := make([]string, 0, len(s.PackageURLs))
	for _, u := range s.PackageURLs {
		u = strings.TrimSpace(u)
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// FileSource reads Settings from a YAML or TOML file. The format follows the
// file extension; anything other than .toml is parsed as YAML.
type FileSource struct {
	path string

	mu   sync.RWMutex
	last Settings
}

// NewFileSource creates a source for the given settings file.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the settings file location.
func (s *FileSource) Path() string {
	return s.path
}

// Current reads the settings file and applies environment overrides. A missing
// file yields empty settings. On a parse failure the last good snapshot is
// returned alongside the error.
func (s *FileSource) Current() (Settings, error) {
	settings, err := s.read()
	if err != nil {
		s.mu.RLock()
		last := s.last
		s.mu.RUnlock()
		return applyEnv(last), err
	}

	s.mu.Lock()
	s.last = settings
	s.mu.Unlock()

	return applyEnv(settings), nil
}

// Save writes settings to the file, creating parent directories.
func (s *FileSource) Save(settings Settings) error {
	var (
		data []byte
		err  error
	)
	if isTOML(s.path) {
		data, err = toml.Marshal(settings)
	} else {
		data, err = yaml.Marshal(settings)
	}
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	s.mu.Lock()
	s.last = settings
	s.mu.Unlock()
	return nil
}

// Update applies fn to the stored settings (without env overrides) and saves.
func (s *FileSource) Update(fn func(*Settings)) (Settings, error) {
	settings, err := s.read()
	if err != nil {
		return Settings{}, err
	}
	fn(&settings)
	if err := s.Save(settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

func (s *FileSource) read() (Settings, error) {
	var settings Settings

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("failed to read settings: %w", err)
	}

	if isTOML(s.path) {
		err = toml.Unmarshal(data, &settings)
	} else {
		err = yaml.Unmarshal(data, &settings)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to parse settings %s: %w", s.path, err)
	}
	return settings, nil
}

func applyEnv(settings Settings) Settings {
	if v, ok := os.LookupEnv(EnvPackageURLs); ok {
		settings.PackageURLs = strings.Split(v, ",")
	}
	if v, ok := os.LookupEnv(EnvAutoUpdate); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			settings.AutoUpdate = b
		}
	}
	settings.PackageURLs = settings.Endpoints()
	return settings
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
