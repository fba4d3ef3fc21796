package store

import (
	"fmt"
	"os"
	"strings"
)

// Role is a user's access level.
type Role string

const (
	// RolePatient is the default role for every new user.
	RolePatient Role = "paciente"

	// RoleOperator unlocks monitoring, patient administration and the
	// ward camera.
	RoleOperator Role = "medico"
)

// UserStore is the newline-separated registry of every chat ID that has ever
// written to the bot. Used for broadcasts. Entries are never removed.
type UserStore struct {
	path string
}

// Save registers chatID if it is not already present.
func (s *UserStore) Save(chatID string) error {
	if chatID == "" {
		return nil
	}
	users, err := s.List()
	if err != nil {
		return err
	}
	for _, u := range users {
		if u == chatID {
			return nil
		}
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening users file: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintln(f, chatID); err != nil {
		return fmt.Errorf("appending user: %w", err)
	}
	return nil
}

// List returns every registered chat ID in registration order.
func (s *UserStore) List() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading users file: %w", err)
	}
	var users []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			users = append(users, line)
		}
	}
	return users, nil
}

// Recent returns the n most recently registered chat IDs.
func (s *UserStore) Recent(n int) ([]string, error) {
	users, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(users) > n {
		users = users[len(users)-n:]
	}
	return users, nil
}

// RoleStore maps chat IDs to roles. Users without an entry are patients.
type RoleStore struct {
	path string
}

// Get returns the role for chatID, defaulting to RolePatient.
func (s *RoleStore) Get(chatID string) Role {
	roles := map[string]Role{}
	if err := readJSON(s.path, &roles); err != nil {
		return RolePatient
	}
	if r, ok := roles[chatID]; ok {
		return r
	}
	return RolePatient
}

// Set assigns role to chatID.
func (s *RoleStore) Set(chatID string, role Role) error {
	roles := map[string]Role{}
	if err := readJSON(s.path, &roles); err != nil {
		return err
	}
	roles[chatID] = role
	return writeJSON(s.path, roles)
}

// Operators returns every chat ID holding RoleOperator. Medical telemetry
// alerts fan out to this set.
func (s *RoleStore) Operators() ([]string, error) {
	roles := map[string]Role{}
	if err := readJSON(s.path, &roles); err != nil {
		return nil, err
	}
	var out []string
	for chatID, role := range roles {
		if role == RoleOperator {
			out = append(out, chatID)
		}
	}
	return out, nil
}

// PrefsStore holds per-user preferences, currently the spoken-voice language
// used for transcription, TTS and reply language.
type PrefsStore struct {
	path string
}

type userPrefs struct {
	VoiceLang string `json:"voice_lang"`
}

// VoiceLang returns the voice language code for chatID (default "es-ES").
func (s *PrefsStore) VoiceLang(chatID string) string {
	all := map[string]userPrefs{}
	if err := readJSON(s.path, &all); err != nil {
		return "es-ES"
	}
	if p, ok := all[chatID]; ok && p.VoiceLang != "" {
		return p.VoiceLang
	}
	return "es-ES"
}

// SetVoiceLang stores the voice language code for chatID.
func (s *PrefsStore) SetVoiceLang(chatID, code string) error {
	all := map[string]userPrefs{}
	if err := readJSON(s.path, &all); err != nil {
		return err
	}
	p := all[chatID]
	p.VoiceLang = code
	all[chatID] = p
	return writeJSON(s.path, all)
}
