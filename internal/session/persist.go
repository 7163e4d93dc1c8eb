package session

import (
	"encoding/json"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/arenvik/mailpilot/internal/models"
)

// State is the durable session blob: identity and message log only.
// Loading/error flags are ephemeral and deliberately absent.
type State struct {
	User     *models.User     `json:"user"`
	Messages []models.Message `json:"messages"`
}

// StateFile persists the session blob at a fixed path.
type StateFile struct {
	path string
}

func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

func (f *StateFile) Path() string {
	return f.path
}

// Load reads the persisted state. A missing or unparsable file falls back
// to the empty initial state without raising an error; a stale or corrupt
// blob must never block startup.
func (f *StateFile) Load(logger *zap.Logger) *State {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to read session state, starting empty",
				zap.Error(err),
				zap.String("path", f.path))
		}
		return &State{}
	}

	var state State
	if err := json.Unmarshal(b, &state); err != nil {
		logger.Warn("Session state unparsable, starting empty",
			zap.Error(err),
			zap.String("path", f.path))
		return &State{}
	}
	return &state
}

// Save writes the state blob, creating the state directory if needed.
func (f *StateFile) Save(state *State) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, b, 0o600)
}
