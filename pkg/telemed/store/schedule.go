package store

import (
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"
)

// Reminder is a recurring daily medication alarm. LastSent ("YYYY-MM-DD")
// guards against firing more than once per calendar day.
type Reminder struct {
	ChatID   string `json:"chat_id"`
	Time     string `json:"time"` // HH:MM, 24h
	Message  string `json:"message"`
	LastSent string `json:"last_sent"`
}

// CronSpec returns the standard cron expression equivalent to the reminder's
// daily schedule.
func (r Reminder) CronSpec() string {
	t, err := time.Parse("15:04", r.Time)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour())
}

// NextFire computes the next time the reminder is due after now.
func (r Reminder) NextFire(now time.Time) (time.Time, error) {
	sched, err := cron.ParseStandard(r.CronSpec())
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing schedule for %q: %w", r.Time, err)
	}
	return sched.Next(now), nil
}

// ValidateReminderTime checks HH:MM both as a clock value and as a cron
// schedule, so a stored reminder is always sweepable and listable.
func ValidateReminderTime(hhmm string) error {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return fmt.Errorf("invalid time %q: %w", hhmm, err)
	}
	if _, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour())); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", hhmm, err)
	}
	return nil
}

// ReminderStore persists the reminder list.
type ReminderStore struct {
	path string
}

// List returns all reminders.
func (s *ReminderStore) List() ([]Reminder, error) {
	var reminders []Reminder
	if err := readJSON(s.path, &reminders); err != nil {
		return nil, err
	}
	return reminders, nil
}

// Add validates and appends a reminder.
func (s *ReminderStore) Add(r Reminder) error {
	if err := ValidateReminderTime(r.Time); err != nil {
		return err
	}
	reminders, err := s.List()
	if err != nil {
		return err
	}
	reminders = append(reminders, r)
	return writeJSON(s.path, reminders)
}

// Save rewrites the whole list. Used by the sweep after stamping LastSent.
func (s *ReminderStore) Save(reminders []Reminder) error {
	return writeJSON(s.path, reminders)
}

// ClearOwner deletes every reminder belonging to chatID and reports how many
// were removed.
func (s *ReminderStore) ClearOwner(chatID string) (int, error) {
	reminders, err := s.List()
	if err != nil {
		return 0, err
	}
	kept := reminders[:0]
	for _, r := range reminders {
		if r.ChatID != chatID {
			kept = append(kept, r)
		}
	}
	removed := len(reminders) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, writeJSON(s.path, kept)
}

// Appointment is a one-shot calendar entry. The year is implied current; a
// January appointment booked in December is a documented simplification, not
// a supported case. Notified flips irreversibly once the notification fires.
type Appointment struct {
	ChatID    string `json:"chat_id"`
	Date      string `json:"date"` // DD/MM
	Time      string `json:"time"` // HH:MM
	Reason    string `json:"reason"`
	Notified  bool   `json:"notified"`
	CreatedAt string `json:"created_at"`
}

// At resolves the appointment to a concrete time in the given year.
func (a Appointment) At(year int) (time.Time, error) {
	return time.ParseInLocation("2006/02/01 15:04",
		fmt.Sprintf("%d/%s %s", year, a.Date, a.Time), time.Local)
}

// ValidateAppointment checks the DD/MM HH:MM pair.
func ValidateAppointment(date, hhmm string) error {
	if _, err := time.Parse("02/01 15:04", date+" "+hhmm); err != nil {
		return fmt.Errorf("invalid date/time %q %q: %w", date, hhmm, err)
	}
	return nil
}

// AppointmentStore persists the appointment list. Entries accumulate and are
// never auto-deleted; listings filter to the future.
type AppointmentStore struct {
	path string
}

// List returns all appointments.
func (s *AppointmentStore) List() ([]Appointment, error) {
	var appts []Appointment
	if err := readJSON(s.path, &appts); err != nil {
		return nil, err
	}
	return appts, nil
}

// Add validates and appends an appointment.
func (s *AppointmentStore) Add(a Appointment) error {
	if err := ValidateAppointment(a.Date, a.Time); err != nil {
		return err
	}
	appts, err := s.List()
	if err != nil {
		return err
	}
	appts = append(appts, a)
	return writeJSON(s.path, appts)
}

// Save rewrites the whole list. Used by the sweep after flipping Notified.
func (s *AppointmentStore) Save(appts []Appointment) error {
	return writeJSON(s.path, appts)
}

// Upcoming returns chatID's future appointments sorted by date, skipping
// entries whose stored date no longer parses.
func (s *AppointmentStore) Upcoming(chatID string, now time.Time) ([]Appointment, error) {
	appts, err := s.List()
	if err != nil {
		return nil, err
	}
	var future []Appointment
	for _, a := range appts {
		if a.ChatID != chatID {
			continue
		}
		at, err := a.At(now.Year())
		if err != nil {
			continue
		}
		if !at.Before(now) {
			future = append(future, a)
		}
	}
	sort.Slice(future, func(i, j int) bool {
		ti, _ := future[i].At(now.Year())
		tj, _ := future[j].At(now.Year())
		return ti.Before(tj)
	})
	return future, nil
}

// HasAny reports whether chatID has any appointment, past or future.
func (s *AppointmentStore) HasAny(chatID string) (bool, error) {
	appts, err := s.List()
	if err != nil {
		return false, err
	}
	for _, a := range appts {
		if a.ChatID == chatID {
			return true, nil
		}
	}
	return false, nil
}
