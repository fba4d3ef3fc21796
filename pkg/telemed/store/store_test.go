package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tecven/telemed/pkg/telemed/vitals"
)

var vitalsRecordFixture = vitals.Record{
	Name:        "Juan Pérez",
	HeartRate:   82,
	Temperature: 37.1,
	SpO2:        97,
	Systolic:    118,
	Diastolic:   79,
	LastUpdate:  1000,
}

func openTest(t *testing.T) *Stores {
	t.Helper()
	stores, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return stores
}

func TestUserStore_SaveDedup(t *testing.T) {
	s := openTest(t)

	for _, id := range []string{"100", "200", "100", "300", "200"} {
		if err := s.Users.Save(id); err != nil {
			t.Fatalf("Save(%s) failed: %v", id, err)
		}
	}

	users, err := s.Users.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("got %d users %v, want 3", len(users), users)
	}
	if users[0] != "100" || users[1] != "200" || users[2] != "300" {
		t.Errorf("registration order lost: %v", users)
	}
}

func TestUserStore_Recent(t *testing.T) {
	s := openTest(t)
	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7"} {
		if err := s.Users.Save(id); err != nil {
			t.Fatal(err)
		}
	}
	recent, err := s.Users.Recent(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 5 || recent[0] != "3" || recent[4] != "7" {
		t.Errorf("Recent(5) = %v, want last five", recent)
	}
}

func TestRoleStore_DefaultsToPatient(t *testing.T) {
	s := openTest(t)

	if got := s.Roles.Get("999"); got != RolePatient {
		t.Errorf("unknown user role = %q, want %q", got, RolePatient)
	}

	if err := s.Roles.Set("42", RoleOperator); err != nil {
		t.Fatal(err)
	}
	if got := s.Roles.Get("42"); got != RoleOperator {
		t.Errorf("role = %q, want %q", got, RoleOperator)
	}

	ops, err := s.Roles.Operators()
	if err != nil {
		t.Fatal(err)
	}
	if len(ops) != 1 || ops[0] != "42" {
		t.Errorf("Operators() = %v, want [42]", ops)
	}
}

func TestPersonaStore_DefaultAndPreset(t *testing.T) {
	s := openTest(t)

	if s.Persona.Current() != Personas["default"] {
		t.Error("empty store should use the default persona")
	}

	if err := s.Persona.SetPreset("pirata"); err != nil {
		t.Fatal(err)
	}
	if s.Persona.Current() != Personas["pirata"] {
		t.Error("preset not applied")
	}

	if err := s.Persona.SetPreset("nope"); err == nil {
		t.Error("unknown preset must error")
	}
}

func TestPrefsStore_VoiceLang(t *testing.T) {
	s := openTest(t)
	if got := s.Prefs.VoiceLang("7"); got != "es-ES" {
		t.Errorf("default voice lang = %q, want es-ES", got)
	}
	if err := s.Prefs.SetVoiceLang("7", "en-US"); err != nil {
		t.Fatal(err)
	}
	if got := s.Prefs.VoiceLang("7"); got != "en-US" {
		t.Errorf("voice lang = %q, want en-US", got)
	}
	// Other users keep the default.
	if got := s.Prefs.VoiceLang("8"); got != "es-ES" {
		t.Errorf("unrelated user voice lang = %q, want es-ES", got)
	}
}

func TestHistoryStore_AppendTrimClear(t *testing.T) {
	s := openTest(t)

	turns, err := s.History.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 0 {
		t.Fatalf("fresh history = %v, want empty", turns)
	}

	for i := 0; i < 7; i++ {
		err := s.History.Append(
			Turn{Role: "user", Content: fmt.Sprintf("pregunta %d", i)},
			Turn{Role: "assistant", Content: fmt.Sprintf("respuesta %d", i)},
		)
		if err != nil {
			t.Fatal(err)
		}
	}

	turns, err = s.History.List()
	if err != nil {
		t.Fatal(err)
	}
	// 14 turns written, only the 10 most recent retained.
	if len(turns) != 10 {
		t.Fatalf("got %d turns, want 10", len(turns))
	}
	if turns[0].Content != "pregunta 2" || turns[9].Content != "respuesta 6" {
		t.Errorf("wrong turns retained: first=%q last=%q", turns[0].Content, turns[9].Content)
	}
	if turns[0].Role != "user" || turns[9].Role != "assistant" {
		t.Errorf("roles lost: first=%q last=%q", turns[0].Role, turns[9].Role)
	}

	if err := s.History.Clear(); err != nil {
		t.Fatal(err)
	}
	turns, err = s.History.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 0 {
		t.Errorf("history after Clear = %v, want empty", turns)
	}
	// Clearing an already-empty history is fine.
	if err := s.History.Clear(); err != nil {
		t.Errorf("second Clear = %v", err)
	}
}

func TestReminderStore_AddAndClearOwner(t *testing.T) {
	s := openTest(t)

	reminders := []Reminder{
		{ChatID: "1", Time: "08:00", Message: "pastilla"},
		{ChatID: "2", Time: "09:00", Message: "otra"},
		{ChatID: "1", Time: "21:00", Message: "noche"},
	}
	for _, r := range reminders {
		if err := s.Reminders.Add(r); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := s.Reminders.ClearOwner("1")
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	left, err := s.Reminders.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0].ChatID != "2" {
		t.Errorf("remaining = %v, want only chat 2", left)
	}
}

func TestValidateReminderTime(t *testing.T) {
	for _, ok := range []string{"00:00", "08:30", "23:59"} {
		if err := ValidateReminderTime(ok); err != nil {
			t.Errorf("ValidateReminderTime(%q) = %v, want nil", ok, err)
		}
	}
	for _, bad := range []string{"24:00", "8h30", "morning", "12:60", ""} {
		if err := ValidateReminderTime(bad); err == nil {
			t.Errorf("ValidateReminderTime(%q) = nil, want error", bad)
		}
	}
}

func TestReminder_NextFire(t *testing.T) {
	r := Reminder{Time: "08:30"}
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	next, err := r.NextFire(now)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2026, 3, 11, 8, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("NextFire = %v, want %v", next, want)
	}
}

func TestAppointmentStore_Upcoming(t *testing.T) {
	s := openTest(t)
	now := time.Date(2026, 6, 15, 12, 0, 0, 0, time.Local)

	appts := []Appointment{
		{ChatID: "1", Date: "20/06", Time: "10:00", Reason: "control"},
		{ChatID: "1", Date: "16/06", Time: "09:00", Reason: "análisis"},
		{ChatID: "1", Date: "01/01", Time: "10:00", Reason: "pasada"},
		{ChatID: "2", Date: "17/06", Time: "09:00", Reason: "otro paciente"},
	}
	for _, a := range appts {
		if err := s.Appointments.Add(a); err != nil {
			t.Fatal(err)
		}
	}

	up, err := s.Appointments.Upcoming("1", now)
	if err != nil {
		t.Fatal(err)
	}
	if len(up) != 2 {
		t.Fatalf("got %d upcoming %v, want 2", len(up), up)
	}
	if up[0].Reason != "análisis" || up[1].Reason != "control" {
		t.Errorf("not sorted by date: %v", up)
	}
}

func TestValidateAppointment(t *testing.T) {
	if err := ValidateAppointment("25/12", "10:30"); err != nil {
		t.Errorf("valid appointment rejected: %v", err)
	}
	for _, tt := range [][2]string{{"32/01", "10:00"}, {"25-12", "10:00"}, {"25/12", "25:00"}} {
		if err := ValidateAppointment(tt[0], tt[1]); err == nil {
			t.Errorf("ValidateAppointment(%q, %q) = nil, want error", tt[0], tt[1])
		}
	}
}

func TestVitalsStore_RoundTrip(t *testing.T) {
	s := openTest(t)

	patients, err := s.Vitals.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(patients) != 0 {
		t.Fatalf("fresh store has %d patients", len(patients))
	}

	patients["SIM-001"] = &vitalsRecordFixture
	if err := s.Vitals.Save(patients); err != nil {
		t.Fatal(err)
	}

	loaded, err := s.Vitals.Load()
	if err != nil {
		t.Fatal(err)
	}
	p, ok := loaded["SIM-001"]
	if !ok {
		t.Fatal("patient missing after reload")
	}
	if p.Name != "Juan Pérez" || p.HeartRate != 82 || p.Temperature != 37.1 {
		t.Errorf("reloaded record mismatch: %+v", p)
	}
}

func TestVitalsStore_LegacySingleRecordMigration(t *testing.T) {
	dir := t.TempDir()
	legacy := `{"heart_rate": 75, "temperature": 36.5, "spo2": 98, "systolic": 120, "diastolic": 80, "last_update": 100, "last_alert": 0}`
	if err := os.WriteFile(filepath.Join(dir, "telegram_vitals.json"), []byte(legacy), 0o644); err != nil {
		t.Fatal(err)
	}
	stores, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	patients, err := stores.Vitals.Load()
	if err != nil {
		t.Fatal(err)
	}
	p, ok := patients["SIM-001"]
	if !ok {
		t.Fatalf("legacy record not migrated: %v", patients)
	}
	if p.HeartRate != 75 || p.SpO2 != 98 {
		t.Errorf("migrated record mismatch: %+v", p)
	}
}

func TestVitalsStore_RepairsPersistedHypoxia(t *testing.T) {
	dir := t.TempDir()
	persisted := `{"SIM-001": {"name": "Ana", "heart_rate": 75, "temperature": 36.5, "spo2": 85, "systolic": 120, "diastolic": 80}}`
	if err := os.WriteFile(filepath.Join(dir, "telegram_vitals.json"), []byte(persisted), 0o644); err != nil {
		t.Fatal(err)
	}
	stores, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	patients, err := stores.Vitals.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got := patients["SIM-001"].SpO2; got != 93 {
		t.Errorf("SpO2 = %d, want repaired to 93", got)
	}
}

func TestNextID(t *testing.T) {
	patients, _ := openTest(t).Vitals.Load()
	if got := NextID(patients); got != "SIM-001" {
		t.Errorf("NextID(empty) = %q, want SIM-001", got)
	}
	patients["SIM-001"] = &vitalsRecordFixture
	patients["SIM-003"] = &vitalsRecordFixture
	if got := NextID(patients); got != "SIM-004" {
		t.Errorf("NextID = %q, want SIM-004", got)
	}
}

func TestAlertLog_AppendAndTail(t *testing.T) {
	s := openTest(t)
	ts := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

	for i := 0; i < 12; i++ {
		if err := s.Alerts.Append(ts.Add(time.Duration(i)*time.Minute), "SIM-001", []string{"💓 Taquicardia: 120 bpm"}); err != nil {
			t.Fatal(err)
		}
	}

	lines, err := s.Alerts.Tail(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 10 {
		t.Fatalf("Tail(10) returned %d lines", len(lines))
	}
	if want := "[2026-01-02 15:06:05] [SIM-001] 💓 Taquicardia: 120 bpm"; lines[0] != want {
		t.Errorf("line = %q, want %q", lines[0], want)
	}
}

func TestCursor_RoundTrip(t *testing.T) {
	s := openTest(t)

	off, err := s.Cursor.Load()
	if err != nil || off != 0 {
		t.Fatalf("fresh cursor = (%d, %v), want (0, nil)", off, err)
	}
	if err := s.Cursor.Save(4242); err != nil {
		t.Fatal(err)
	}
	off, err = s.Cursor.Load()
	if err != nil || off != 4242 {
		t.Errorf("cursor = (%d, %v), want (4242, nil)", off, err)
	}
}

func TestReadJSON_CorruptFileIsZeroValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "telegram_roles.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	stores, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	// Corrupt state must degrade to defaults, not crash the bot.
	if got := stores.Roles.Get("1"); got != RolePatient {
		t.Errorf("role from corrupt file = %q, want default", got)
	}
}
