package settings

import (
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// keys used in durable storage
const (
	CredentialKey  = "openaiSecret"
	AssistantIDKey = "assistantId"
	ThreadIDKey    = "threadId"
)

// Values are the three settings the thread orchestrator needs.
type Values struct {
	Credential  string
	AssistantID string
	ThreadID    string
}

// Complete reports whether every value is non-empty after trimming.
func (v Values) Complete() bool {
	return strings.TrimSpace(v.Credential) != "" &&
		strings.TrimSpace(v.AssistantID) != "" &&
		strings.TrimSpace(v.ThreadID) != ""
}

func (v Values) toMap() map[string]string {
	return map[string]string{
		CredentialKey:  v.Credential,
		AssistantIDKey: v.AssistantID,
		ThreadIDKey:    v.ThreadID,
	}
}

// Store holds the current settings and writes them through to Storage.
type Store struct {
	storage       Storage
	log           zerolog.Logger
	mu            sync.RWMutex
	values        Values
	displayForced bool
}

// NewStore reads the persisted values. Keys that were never stored are
// empty strings.
func NewStore(storage Storage, log zerolog.Logger) (*Store, error) {
	stored, err := storage.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	return &Store{
		storage: storage,
		log:     log,
		values: Values{
			Credential:  stored[CredentialKey],
			AssistantID: stored[AssistantIDKey],
			ThreadID:    stored[ThreadIDKey],
		},
	}, nil
}

func (s *Store) Get() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values
}

func (s *Store) IsComplete() bool {
	return s.Get().Complete()
}

// Set overwrites all three values and clears the display flag. The new
// values are live even if persisting them fails; the error only means they
// will not survive a restart.
func (s *Store) Set(credential string, assistantID string, threadID string) error {
	values := Values{
		Credential:  credential,
		AssistantID: assistantID,
		ThreadID:    threadID,
	}

	// held through the save so the stored values match the last writer
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = values
	s.displayForced = false

	if err := s.storage.SaveSettings(values.toMap()); err != nil {
		s.log.Error().Err(err).Msg("unable to persist settings")
		return fmt.Errorf("save settings: %w", err)
	}
	s.log.Info().
		Str("assistant_id", assistantID).
		Str("thread_id", threadID).
		Msg("settings updated")
	return nil
}

// ApplyDefaults fills in only the values that are currently empty and
// persists the result if anything changed.
func (s *Store) ApplyDefaults(defaults Values) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := s.values
	if strings.TrimSpace(merged.Credential) == "" {
		merged.Credential = defaults.Credential
	}
	if strings.TrimSpace(merged.AssistantID) == "" {
		merged.AssistantID = defaults.AssistantID
	}
	if strings.TrimSpace(merged.ThreadID) == "" {
		merged.ThreadID = defaults.ThreadID
	}
	if merged == s.values {
		return nil
	}

	s.values = merged
	if err := s.storage.SaveSettings(merged.toMap()); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (s *Store) RequestDisplay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayForced = true
}

func (s *Store) DismissDisplay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayForced = false
}

// DisplaySettings reports whether a front end should show the settings
// form.
func (s *Store) DisplaySettings() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.values.Complete() || s.displayForced
}
