// Package store implements the durable state files behind the bot: users,
// roles, personas, preferences, reminders, appointments, patient vitals, the
// alert log, the chat history and the transport cursor.
//
// Each responsibility is one plain file under the data directory and every
// mutation is a whole-file read-modify-write. The single-threaded main loop
// is the exclusivity guarantor, so there is no locking; running two daemon
// instances against the same data directory is not supported.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// File names under the data directory.
const (
	usersFile        = "telegram_users.txt"
	rolesFile        = "telegram_roles.json"
	personaFile      = "telegram_persona.txt"
	prefsFile        = "telegram_config.json"
	remindersFile    = "telegram_reminders.json"
	appointmentsFile = "telegram_appointments.json"
	vitalsFile       = "telegram_vitals.json"
	alertsFile       = "telegram_alerts.log"
	cursorFile       = "telegram_offset.txt"
	historyFile      = "chat_history.json"
)

// Stores bundles every state store rooted at one data directory.
type Stores struct {
	Users        *UserStore
	Roles        *RoleStore
	Persona      *PersonaStore
	Prefs        *PrefsStore
	Reminders    *ReminderStore
	Appointments *AppointmentStore
	Vitals       *VitalsStore
	Alerts       *AlertLog
	Cursor       *Cursor
	History      *HistoryStore
}

// Open creates the data directory if needed and returns the store bundle.
func Open(dataDir string) (*Stores, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &Stores{
		Users:        &UserStore{path: filepath.Join(dataDir, usersFile)},
		Roles:        &RoleStore{path: filepath.Join(dataDir, rolesFile)},
		Persona:      &PersonaStore{path: filepath.Join(dataDir, personaFile)},
		Prefs:        &PrefsStore{path: filepath.Join(dataDir, prefsFile)},
		Reminders:    &ReminderStore{path: filepath.Join(dataDir, remindersFile)},
		Appointments: &AppointmentStore{path: filepath.Join(dataDir, appointmentsFile)},
		Vitals:       &VitalsStore{path: filepath.Join(dataDir, vitalsFile)},
		Alerts:       &AlertLog{path: filepath.Join(dataDir, alertsFile)},
		Cursor:       &Cursor{path: filepath.Join(dataDir, cursorFile)},
		History:      &HistoryStore{path: filepath.Join(dataDir, historyFile)},
	}, nil
}

// writeAtomic writes data to path via a temp file and rename so a crash never
// leaves a half-written store behind.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}

// readJSON unmarshals path into v. A missing or corrupt file leaves v at its
// zero value and returns nil: state files start empty and a damaged file must
// degrade to "no records", never crash the loop.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil
	}
	return nil
}

// writeJSON marshals v and writes it atomically to path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return writeAtomic(path, data)
}
