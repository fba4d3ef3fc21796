package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/tecven/telemed/pkg/telemed/store"
	"github.com/tecven/telemed/pkg/telemed/tools"
	"github.com/tecven/telemed/pkg/telemed/vitals"
)

type sentMsg struct {
	ChatID string
	Text   string
}

type fakeNotifier struct {
	sent []sentMsg
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, chatID, text string) error {
	f.sent = append(f.sent, sentMsg{chatID, text})
	return f.err
}

func testConfig() Config {
	return Config{
		VitalsUpdateInterval: 5 * time.Second,
		VitalsAlertInterval:  30 * time.Second,
		Thresholds:           vitals.Thresholds{MaxHeartRate: 110, MaxTemperature: 38.5, MinSpO2: 92},
		HealthInterval:       5 * time.Minute,
		Metrics:              tools.MetricThresholds{CPU: 85, Mem: 85, Disk: 90},
		AdminChatID:          "admin",
	}
}

func newTestScheduler(t *testing.T, cfg Config, tg Notifier, metrics MetricsFunc) (*Scheduler, *store.Stores) {
	t.Helper()
	stores, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	sim := vitals.NewSimulator(rand.New(rand.NewSource(7)))
	return New(cfg, stores, sim, tg, metrics, nil), stores
}

func TestSweepReminders_FiresOncePerDay(t *testing.T) {
	tg := &fakeNotifier{}
	s, stores := newTestScheduler(t, testConfig(), tg, nil)

	if err := stores.Reminders.Add(store.Reminder{ChatID: "1", Time: "08:30", Message: "tomar la pastilla"}); err != nil {
		t.Fatal(err)
	}

	dayOne := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)
	ctx := context.Background()

	s.SweepReminders(ctx, dayOne)
	if len(tg.sent) != 1 {
		t.Fatalf("got %d sends, want 1", len(tg.sent))
	}
	if want := "⏰ *RECORDATORIO:*\n\ntomar la pastilla"; tg.sent[0].Text != want {
		t.Errorf("message = %q, want %q", tg.sent[0].Text, want)
	}

	// Same minute again, and later the same day: no re-fire.
	s.SweepReminders(ctx, dayOne)
	s.SweepReminders(ctx, dayOne.Add(30*time.Second))
	if len(tg.sent) != 1 {
		t.Fatalf("reminder re-fired same day: %d sends", len(tg.sent))
	}

	// Next day at the same time it fires again.
	s.SweepReminders(ctx, dayOne.Add(24*time.Hour))
	if len(tg.sent) != 2 {
		t.Errorf("got %d sends after day two, want 2", len(tg.sent))
	}
}

func TestSweepReminders_WrongMinuteDoesNothing(t *testing.T) {
	tg := &fakeNotifier{}
	s, stores := newTestScheduler(t, testConfig(), tg, nil)
	if err := stores.Reminders.Add(store.Reminder{ChatID: "1", Time: "08:30", Message: "x"}); err != nil {
		t.Fatal(err)
	}

	s.SweepReminders(context.Background(), time.Date(2026, 3, 10, 8, 31, 0, 0, time.UTC))
	if len(tg.sent) != 0 {
		t.Errorf("fired off-schedule: %v", tg.sent)
	}
}

func TestSweepAppointments_NotifiesOnce(t *testing.T) {
	tg := &fakeNotifier{}
	s, stores := newTestScheduler(t, testConfig(), tg, nil)

	if err := stores.Appointments.Add(store.Appointment{
		ChatID: "1", Date: "15/06", Time: "10:00", Reason: "Cardiología",
	}); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	s.SweepAppointments(ctx, at)
	if len(tg.sent) != 1 {
		t.Fatalf("got %d sends, want 1", len(tg.sent))
	}
	if want := "📅 *RECORDATORIO DE CITA:*\n\nEs hora de tu cita: Cardiología"; tg.sent[0].Text != want {
		t.Errorf("message = %q", tg.sent[0].Text)
	}

	// Notified must survive reload and stay flipped.
	s.SweepAppointments(ctx, at)
	if len(tg.sent) != 1 {
		t.Errorf("appointment re-notified: %d sends", len(tg.sent))
	}
	appts, err := stores.Appointments.List()
	if err != nil {
		t.Fatal(err)
	}
	if !appts[0].Notified {
		t.Error("Notified flag not persisted")
	}
}

func TestSweepVitals_CrisisAlertsOperatorsOnly(t *testing.T) {
	tg := &fakeNotifier{}
	s, stores := newTestScheduler(t, testConfig(), tg, nil)

	if err := stores.Roles.Set("doc1", store.RoleOperator); err != nil {
		t.Fatal(err)
	}
	if err := stores.Roles.Set("doc2", store.RoleOperator); err != nil {
		t.Fatal(err)
	}
	if err := stores.Roles.Set("patient", store.RolePatient); err != nil {
		t.Fatal(err)
	}

	now := time.Unix(10_000, 0)
	rec := vitals.NewRecord("Ana", now)
	vitals.Crisis(rec)
	if err := stores.Vitals.Save(map[string]*vitals.Record{"SIM-001": rec}); err != nil {
		t.Fatal(err)
	}

	s.SweepVitals(context.Background(), now)

	if len(tg.sent) != 2 {
		t.Fatalf("got %d alert sends, want 2 (one per operator): %v", len(tg.sent), tg.sent)
	}
	for _, m := range tg.sent {
		if m.ChatID != "doc1" && m.ChatID != "doc2" {
			t.Errorf("alert sent to non-operator %s", m.ChatID)
		}
		if !strings.Contains(m.Text, "ALERTA DE TELEMETRÍA") ||
			!strings.Contains(m.Text, "Paciente: Ana (SIM-001)") {
			t.Errorf("alert text wrong: %q", m.Text)
		}
		// SpO2 88 is floor-repaired to 93 when the record is loaded back,
		// so a persisted crisis fires on heart rate and fever only.
		if !strings.Contains(m.Text, "Taquicardia") || !strings.Contains(m.Text, "Fiebre Alta") {
			t.Errorf("alert lines missing: %q", m.Text)
		}
		if strings.Contains(m.Text, "Hipoxia") {
			t.Errorf("Hipoxia fired despite the SpO2 load repair: %q", m.Text)
		}
	}

	// The alert is also appended to the audit log.
	lines, err := stores.Alerts.Tail(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) == 0 {
		t.Error("alert log empty after crisis")
	}
}

func TestSweepVitals_AlertRateLimit(t *testing.T) {
	tg := &fakeNotifier{}
	s, stores := newTestScheduler(t, testConfig(), tg, nil)
	if err := stores.Roles.Set("doc", store.RoleOperator); err != nil {
		t.Fatal(err)
	}

	now := time.Unix(10_000, 0)
	rec := vitals.NewRecord("Ana", now)
	rec.HeartRate = 150
	rec.LastUpdate = now.Unix() // not yet due for an advance
	if err := stores.Vitals.Save(map[string]*vitals.Record{"SIM-001": rec}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	s.SweepVitals(ctx, now)
	first := len(tg.sent)
	if first != 1 {
		t.Fatalf("got %d alerts, want 1", first)
	}

	// Inside the 30s window: suppressed even though still over threshold.
	s.SweepVitals(ctx, now.Add(10*time.Second))
	if len(tg.sent) != first {
		t.Errorf("alert not rate-limited: %d sends", len(tg.sent))
	}

	// Force the vitals back over threshold and move past the window.
	patients, _ := stores.Vitals.Load()
	patients["SIM-001"].HeartRate = 150
	patients["SIM-001"].LastUpdate = now.Unix() + 40
	if err := stores.Vitals.Save(patients); err != nil {
		t.Fatal(err)
	}
	s.SweepVitals(ctx, now.Add(40*time.Second))
	if len(tg.sent) != first+1 {
		t.Errorf("alert did not resume after window: %d sends", len(tg.sent))
	}
}

func TestSweepVitals_AdvanceOnlyWhenDue(t *testing.T) {
	tg := &fakeNotifier{}
	s, stores := newTestScheduler(t, testConfig(), tg, nil)

	now := time.Unix(10_000, 0)
	rec := vitals.NewRecord("Ana", now)
	rec.LastAlert = now.Unix() // silence alerts for this test
	if err := stores.Vitals.Save(map[string]*vitals.Record{"SIM-001": rec}); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	s.SweepVitals(ctx, now.Add(2*time.Second))
	patients, _ := stores.Vitals.Load()
	if patients["SIM-001"].LastUpdate != now.Unix() {
		t.Error("record advanced before the update interval elapsed")
	}

	s.SweepVitals(ctx, now.Add(6*time.Second))
	patients, _ = stores.Vitals.Load()
	if patients["SIM-001"].LastUpdate != now.Unix()+6 {
		t.Errorf("LastUpdate = %d, want %d", patients["SIM-001"].LastUpdate, now.Unix()+6)
	}
}

func TestSweepHealth_GatedAndAdminOnly(t *testing.T) {
	calls := 0
	metrics := func(tools.MetricThresholds) (tools.Metrics, []string, error) {
		calls++
		return tools.Metrics{CPUPercent: 97}, []string{"CPU Alto: 97.0%"}, nil
	}
	tg := &fakeNotifier{}
	s, _ := newTestScheduler(t, testConfig(), tg, metrics)

	now := time.Unix(100_000, 0)
	ctx := context.Background()

	s.SweepHealth(ctx, now)
	if calls != 1 || len(tg.sent) != 1 {
		t.Fatalf("calls=%d sends=%d, want 1/1", calls, len(tg.sent))
	}
	if tg.sent[0].ChatID != "admin" {
		t.Errorf("health alert sent to %s, want admin", tg.sent[0].ChatID)
	}
	if !strings.Contains(tg.sent[0].Text, "ALERTA DEL SISTEMA") ||
		!strings.Contains(tg.sent[0].Text, "- CPU Alto: 97.0%") {
		t.Errorf("health alert text wrong: %q", tg.sent[0].Text)
	}

	// Inside the interval: not even sampled.
	s.SweepHealth(ctx, now.Add(time.Minute))
	if calls != 1 {
		t.Errorf("metrics sampled inside the interval")
	}

	s.SweepHealth(ctx, now.Add(6*time.Minute))
	if calls != 2 {
		t.Errorf("metrics not sampled after the interval")
	}
}

func TestSweepHealth_QuietWhenHealthy(t *testing.T) {
	metrics := func(tools.MetricThresholds) (tools.Metrics, []string, error) {
		return tools.Metrics{}, nil, nil
	}
	tg := &fakeNotifier{}
	s, _ := newTestScheduler(t, testConfig(), tg, metrics)

	s.SweepHealth(context.Background(), time.Unix(100_000, 0))
	if len(tg.sent) != 0 {
		t.Errorf("healthy system produced %d sends", len(tg.sent))
	}
}

func TestSweepHealth_DisabledWithoutAdmin(t *testing.T) {
	metrics := func(tools.MetricThresholds) (tools.Metrics, []string, error) {
		t.Error("metrics sampled with no admin configured")
		return tools.Metrics{}, nil, nil
	}
	cfg := testConfig()
	cfg.AdminChatID = ""
	tg := &fakeNotifier{}
	s, _ := newTestScheduler(t, cfg, tg, metrics)

	s.SweepHealth(context.Background(), time.Unix(100_000, 0))
}

func TestSweepReminders_SendFailureStillStamps(t *testing.T) {
	tg := &fakeNotifier{err: errors.New("network down")}
	s, stores := newTestScheduler(t, testConfig(), tg, nil)
	if err := stores.Reminders.Add(store.Reminder{ChatID: "1", Time: "08:30", Message: "x"}); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)
	s.SweepReminders(context.Background(), at)
	s.SweepReminders(context.Background(), at)
	if len(tg.sent) != 1 {
		t.Errorf("failed send retried within the same day: %d attempts", len(tg.sent))
	}
}
