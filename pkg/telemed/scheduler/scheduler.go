// Package scheduler implements the time-driven sweeps interleaved with the
// poll loop: reminder and appointment delivery, patient vitals simulation
// with alert fan-out, and the gated server health check.
//
// Sweeps are cheap, idempotent checks designed to run every loop iteration;
// all take the current time as an argument so tests control the clock.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tecven/telemed/pkg/telemed/store"
	"github.com/tecven/telemed/pkg/telemed/tools"
	"github.com/tecven/telemed/pkg/telemed/vitals"
)

// Notifier sends outbound messages. Narrow so tests can fake it.
type Notifier interface {
	Send(ctx context.Context, chatID, text string) error
}

// MetricsFunc samples server resources. Injectable so health-check tests do
// not depend on the host.
type MetricsFunc func(t tools.MetricThresholds) (tools.Metrics, []string, error)

// Config holds sweep cadences and thresholds.
type Config struct {
	// VitalsUpdateInterval is the minimum time between state advances per
	// patient; VitalsAlertInterval rate-limits alert sends per patient.
	VitalsUpdateInterval time.Duration
	VitalsAlertInterval  time.Duration

	// Thresholds are the telemetry alert limits.
	Thresholds vitals.Thresholds

	// HealthInterval gates the server health check (0 disables it).
	HealthInterval time.Duration

	// Metrics are the health-check resource limits.
	Metrics tools.MetricThresholds

	// AdminChatID receives health alerts. Empty disables the check.
	AdminChatID string
}

// Scheduler runs the background sweeps.
type Scheduler struct {
	cfg    Config
	stores *store.Stores
	sim    *vitals.Simulator
	tg     Notifier
	logger *slog.Logger

	metrics MetricsFunc

	lastHealthCheck time.Time
}

// New creates a Scheduler. A nil metrics uses the real gopsutil sampler.
func New(cfg Config, stores *store.Stores, sim *vitals.Simulator, tg Notifier, metrics MetricsFunc, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = tools.CollectMetrics
	}
	return &Scheduler{
		cfg:     cfg,
		stores:  stores,
		sim:     sim,
		tg:      tg,
		logger:  logger.With("component", "scheduler"),
		metrics: metrics,
	}
}

// Sweep runs every sweep once. Called after message dispatch each loop
// iteration, so state changed by a message is observed on the next sweep.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) {
	s.SweepReminders(ctx, now)
	s.SweepAppointments(ctx, now)
	s.SweepVitals(ctx, now)
	s.SweepHealth(ctx, now)
}

// SweepReminders fires every reminder whose HH:MM matches now and which has
// not fired today, then persists the fired dates.
func (s *Scheduler) SweepReminders(ctx context.Context, now time.Time) {
	reminders, err := s.stores.Reminders.List()
	if err != nil {
		s.logger.Error("failed to load reminders", "error", err)
		return
	}
	currentTime := now.Format("15:04")
	today := now.Format("2006-01-02")
	updated := false

	for i := range reminders {
		r := &reminders[i]
		if r.Time != currentTime || r.LastSent == today {
			continue
		}
		s.logger.Info("sending reminder", "chat_id", r.ChatID, "time", r.Time)
		if err := s.tg.Send(ctx, r.ChatID, "⏰ *RECORDATORIO:*\n\n"+r.Message); err != nil {
			s.logger.Warn("reminder send failed", "chat_id", r.ChatID, "error", err)
		}
		// Stamped even when the send failed: at most one attempt per day.
		r.LastSent = today
		updated = true
	}
	if updated {
		if err := s.stores.Reminders.Save(reminders); err != nil {
			s.logger.Error("failed to persist reminders", "error", err)
		}
	}
}

// SweepAppointments notifies appointments whose date and time match now and
// flips Notified irreversibly.
func (s *Scheduler) SweepAppointments(ctx context.Context, now time.Time) {
	appts, err := s.stores.Appointments.List()
	if err != nil {
		s.logger.Error("failed to load appointments", "error", err)
		return
	}
	currentDate := now.Format("02/01")
	currentTime := now.Format("15:04")
	updated := false

	for i := range appts {
		a := &appts[i]
		if a.Date != currentDate || a.Time != currentTime || a.Notified {
			continue
		}
		s.logger.Info("sending appointment notification", "chat_id", a.ChatID, "reason", a.Reason)
		if err := s.tg.Send(ctx, a.ChatID, "📅 *RECORDATORIO DE CITA:*\n\nEs hora de tu cita: "+a.Reason); err != nil {
			s.logger.Warn("appointment send failed", "chat_id", a.ChatID, "error", err)
		}
		a.Notified = true
		updated = true
	}
	if updated {
		if err := s.stores.Appointments.Save(appts); err != nil {
			s.logger.Error("failed to persist appointments", "error", err)
		}
	}
}

// SweepVitals advances every patient due for an update, evaluates thresholds
// and fans alerts out to every operator, rate-limited per patient. A
// threshold crossed inside the rate-limit window still updates the metrics;
// only the notification is suppressed.
func (s *Scheduler) SweepVitals(ctx context.Context, now time.Time) {
	patients, err := s.stores.Vitals.Load()
	if err != nil {
		s.logger.Error("failed to load vitals", "error", err)
		return
	}
	updated := false

	for _, pid := range store.SortedIDs(patients) {
		rec := patients[pid]

		if now.Unix()-rec.LastUpdate > int64(s.cfg.VitalsUpdateInterval.Seconds()) {
			s.sim.Advance(rec, now)
			updated = true
		}

		if now.Unix()-rec.LastAlert > int64(s.cfg.VitalsAlertInterval.Seconds()) {
			alerts := vitals.Evaluate(rec, s.cfg.Thresholds)
			if len(alerts) == 0 {
				continue
			}
			if err := s.stores.Alerts.Append(now, pid, alerts); err != nil {
				s.logger.Error("failed to log alerts", "patient", pid, "error", err)
			}
			s.broadcastAlert(ctx, pid, rec, alerts)
			rec.LastAlert = now.Unix()
			updated = true
		}
	}
	if updated {
		if err := s.stores.Vitals.Save(patients); err != nil {
			s.logger.Error("failed to persist vitals", "error", err)
		}
	}
}

// broadcastAlert delivers a telemetry alert to every registered operator.
func (s *Scheduler) broadcastAlert(ctx context.Context, pid string, rec *vitals.Record, alerts []string) {
	name := rec.Name
	if name == "" {
		name = "Desconocido"
	}
	msg := fmt.Sprintf("🚨 *ALERTA DE TELEMETRÍA*\nPaciente: %s (%s)\n\n%s\n\n_Se requiere revisión médica inmediata._",
		name, pid, strings.Join(alerts, "\n"))

	operators, err := s.stores.Roles.Operators()
	if err != nil {
		s.logger.Error("failed to list operators", "error", err)
		return
	}
	for _, chatID := range operators {
		s.logger.Info("sending medical alert", "chat_id", chatID, "patient", pid)
		if err := s.tg.Send(ctx, chatID, msg); err != nil {
			s.logger.Warn("alert send failed", "chat_id", chatID, "error", err)
		}
	}
}

// SweepHealth samples server resources at most once per HealthInterval and
// notifies the admin chat only when a threshold is exceeded.
func (s *Scheduler) SweepHealth(ctx context.Context, now time.Time) {
	if s.cfg.HealthInterval <= 0 || s.cfg.AdminChatID == "" {
		return
	}
	if now.Sub(s.lastHealthCheck) < s.cfg.HealthInterval {
		return
	}
	s.lastHealthCheck = now

	_, alerts, err := s.metrics(s.cfg.Metrics)
	if err != nil {
		s.logger.Warn("health check failed", "error", err)
		return
	}
	if len(alerts) == 0 {
		return
	}
	var sb strings.Builder
	sb.WriteString("🚨 *ALERTA DEL SISTEMA:*\n\n")
	for _, a := range alerts {
		sb.WriteString("- " + a + "\n")
	}
	s.logger.Warn("system alert detected, notifying admin", "alerts", len(alerts))
	if err := s.tg.Send(ctx, s.cfg.AdminChatID, sb.String()); err != nil {
		s.logger.Warn("health alert send failed", "error", err)
	}
}
