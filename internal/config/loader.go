package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const (
	// ConfigDir is the directory name under ~/.config
	ConfigDir = "assistantd"
	// ConfigFile is the config file name
	ConfigFile = "config.json"
)

// FileConfig is the process-level config file, used as a fallback when the
// settings record carries no API key.
type FileConfig struct {
	GeminiAPIKey string `json:"gemini_api_key"`
	DatabasePath string `json:"database_path"`
	ListenAddr   string `json:"listen_addr"`
}

// FileSystem abstracts file operations for testability
type FileSystem interface {
	UserHomeDir() (string, error)
	ReadFile(path string) ([]byte, error)
}

// ConfigFileReader implements FileSystem using the real OS for config loading
type ConfigFileReader struct{}

func (ConfigFileReader) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

func (ConfigFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Loader handles config file loading with injected dependencies
type Loader struct {
	fs FileSystem
}

// NewLoader creates a production Loader using the real filesystem
func NewLoader() *Loader {
	return &Loader{fs: ConfigFileReader{}}
}

// NewLoaderWithFS creates a Loader with a custom filesystem (for testing)
func NewLoaderWithFS(fs FileSystem) *Loader {
	return &Loader{fs: fs}
}

// Load reads ~/.config/assistantd/config.json. A missing file yields an
// empty config; malformed JSON or permission problems are returned as
// errors.
func (l *Loader) Load() (*FileConfig, error) {
	cfg := &FileConfig{}

	homeDir, err := l.fs.UserHomeDir()
	if err != nil {
		return cfg, nil // No home dir, nothing to load
	}

	configPath := filepath.Join(homeDir, ".config", ConfigDir, ConfigFile)

	data, err := l.fs.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
