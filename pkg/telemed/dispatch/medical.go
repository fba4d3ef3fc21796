package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tecven/telemed/pkg/telemed/store"
	"github.com/tecven/telemed/pkg/telemed/telegram"
	"github.com/tecven/telemed/pkg/telemed/tools"
	"github.com/tecven/telemed/pkg/telemed/vitals"
)

func (d *Dispatcher) cmdBroadcast(ctx context.Context, sess *session) string {
	announcement := argAfter(sess.text)
	if announcement == "" {
		return "⚠️ Uso: /broadcast [mensaje para todos]"
	}
	users, err := d.stores.Users.List()
	if err != nil {
		d.logger.Error("failed to list users", "error", err)
		return "❌ No pude leer la lista de usuarios."
	}
	if len(users) == 0 {
		return "⚠️ No tengo usuarios registrados aún."
	}
	for _, uid := range users {
		d.send(ctx, uid, "📢 *ANUNCIO:*\n"+announcement)
	}
	return fmt.Sprintf("✅ Mensaje enviado a %d usuarios.", len(users))
}

func (d *Dispatcher) cmdStatus(ctx context.Context, sess *session) string {
	d.send(ctx, sess.chatID, "🔍 Escaneando sistema...")

	m, alerts, err := tools.CollectMetrics(d.cfg.Metrics)
	if err != nil {
		d.logger.Error("failed to collect metrics", "error", err)
		return "❌ Error al obtener métricas."
	}
	emoji := "✅"
	if len(alerts) > 0 {
		emoji = "⚠️"
	}
	reply := fmt.Sprintf("%s *Estado del Servidor:*\n\n💻 *CPU:* %.1f%%\n🧠 *RAM:* %.1f%% (%.1fGB / %.1fGB)\n💾 *Disco:* %.1f%% (Libre: %.1fGB)\n",
		emoji, m.CPUPercent, m.MemoryPercent, m.MemoryUsedGB, m.MemoryTotalGB, m.DiskPercent, m.DiskFreeGB)
	if len(alerts) > 0 {
		reply += "\n🚨 *Alertas:*\n"
		for _, a := range alerts {
			reply += "- " + a + "\n"
		}
	}
	return reply
}

func (d *Dispatcher) cmdUsuarios(ctx context.Context, sess *session) string {
	users, err := d.stores.Users.Recent(5)
	if err != nil {
		d.logger.Error("failed to list users", "error", err)
		return "❌ No pude leer la lista de usuarios."
	}
	if len(users) == 0 {
		return "📭 No hay usuarios registrados."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 *Últimos %d usuarios registrados:*\n", len(users))
	for _, u := range users {
		fmt.Fprintf(&sb, "- `%s`\n", u)
	}
	return sb.String()
}

func (d *Dispatcher) cmdFoto(ctx context.Context, sess *session) string {
	if d.camera == nil {
		return "⚠️ Error de Configuración: La variable `ESP32_CAM_IP` no está definida en el archivo `.env`."
	}
	d.send(ctx, sess.chatID, "📸 Conectando con la cámara de aislamiento...")

	localPath := filepath.Join(d.cfg.DataDir, fmt.Sprintf("cam_%d.jpg", d.now().Unix()))
	if err := d.camera.Capture(ctx, localPath); err != nil {
		return fmt.Sprintf("❌ Error al capturar imagen: %v\n\nVerifique que la ESP32-CAM esté encendida y conectada al WiFi.", err)
	}
	if err := d.tg.SendFile(ctx, sess.chatID, localPath, telegram.FilePhoto, "Vista en tiempo real del paciente."); err != nil {
		return fmt.Sprintf("❌ Error al enviar la captura: %v", err)
	}
	return "✅ Captura completada."
}

func (d *Dispatcher) cmdMonitorear(ctx context.Context, sess *session) string {
	patients, err := d.stores.Vitals.Load()
	if err != nil {
		d.logger.Error("failed to load vitals", "error", err)
		return "❌ No pude leer la telemetría."
	}
	pid := argAfter(sess.text)

	if pid == "" {
		if len(patients) == 0 {
			return "🏥 No hay pacientes registrados en el sistema."
		}
		var sb strings.Builder
		sb.WriteString("📡 *Pacientes Activos:*\n\n")
		for _, id := range store.SortedIDs(patients) {
			p := patients[id]
			status := "🟢 Estable"
			if !vitals.Stable(p) {
				status = "🔴 Alerta"
			}
			fmt.Fprintf(&sb, "👤 *%s* (`%s`)\n   Estado: %s | HR: %d | SpO2: %d%%\n\n", p.Name, id, status, p.HeartRate, p.SpO2)
		}
		sb.WriteString("Usa `/monitorear [ID]` para ver detalles.")
		return sb.String()
	}

	p, ok := patients[pid]
	if !ok {
		return fmt.Sprintf("❌ Paciente `%s` no encontrado.", pid)
	}
	age := d.now().Unix() - p.LastUpdate
	if age < 0 {
		age = 0
	}
	return fmt.Sprintf("📡 *Telemetría: %s (%s)*\n\n💓 *Ritmo Cardíaco:* %d bpm\n🌡️ *Temperatura:* %.1f°C\n🫁 *SpO2:* %d%%\n📉 *Presión:* %d/%d mmHg\n_Última actualización: Hace %ds_",
		p.Name, pid, p.HeartRate, p.Temperature, p.SpO2, p.Systolic, p.Diastolic, age)
}

// patientOverride factors the shared shape of the crisis/stabilize/reset
// commands: load, locate (default SIM-001), mutate, save.
func (d *Dispatcher) patientOverride(sess *session, mutate func(*vitals.Record), okReply func(name string) string) string {
	patients, err := d.stores.Vitals.Load()
	if err != nil {
		d.logger.Error("failed to load vitals", "error", err)
		return "❌ No pude leer la telemetría."
	}
	pid := argAfter(sess.text)
	if pid == "" {
		pid = "SIM-001"
	}
	p, ok := patients[pid]
	if !ok {
		return fmt.Sprintf("❌ Paciente `%s` no encontrado. Usa `/monitorear` para ver IDs.", pid)
	}
	mutate(p)
	if err := d.stores.Vitals.Save(patients); err != nil {
		d.logger.Error("failed to save vitals", "error", err)
		return "❌ No pude guardar los cambios."
	}
	return okReply(p.Name)
}

func (d *Dispatcher) cmdSimularCrisis(ctx context.Context, sess *session) string {
	return d.patientOverride(sess, vitals.Crisis, func(name string) string {
		return fmt.Sprintf("⚠️ *Simulación Iniciada para %s*: Signos vitales alterados.", name)
	})
}

func (d *Dispatcher) cmdEstabilizar(ctx context.Context, sess *session) string {
	return d.patientOverride(sess, vitals.Stabilize, func(name string) string {
		return fmt.Sprintf("✅ *%s Estabilizado/a*.", name)
	})
}

func (d *Dispatcher) cmdPacienteReset(ctx context.Context, sess *session) string {
	return d.patientOverride(sess, vitals.Reset, func(name string) string {
		return fmt.Sprintf("🔄 *Valores de %s Reseteados*.", name)
	})
}

func (d *Dispatcher) cmdHistorialAlertas(ctx context.Context, sess *session) string {
	lines, err := d.stores.Alerts.Tail(10)
	if err != nil {
		d.logger.Error("failed to read alert log", "error", err)
		return "❌ No pude leer el historial."
	}
	if len(lines) == 0 {
		return "📋 No hay alertas registradas aún."
	}
	return "📋 *Historial de Alertas Recientes:*\n\n" + strings.Join(lines, "\n")
}

func (d *Dispatcher) cmdNuevoPaciente(ctx context.Context, sess *session) string {
	arg := argAfter(sess.text)
	if arg == "" {
		return "⚠️ Uso: `/nuevo_paciente [Nombre]` (ID automático) o `/nuevo_paciente [ID] [Nombre]`"
	}
	patients, err := d.stores.Vitals.Load()
	if err != nil {
		d.logger.Error("failed to load vitals", "error", err)
		return "❌ No pude leer el registro de pacientes."
	}

	// A leading SIM- token is a caller-supplied ID; otherwise one is
	// auto-assigned.
	var newID, newName string
	first, rest, hasRest := strings.Cut(arg, " ")
	if strings.HasPrefix(strings.ToUpper(first), "SIM-") && hasRest {
		newID = strings.ToUpper(first)
		newName = strings.TrimSpace(rest)
	} else {
		newID = store.NextID(patients)
		newName = arg
	}

	if _, exists := patients[newID]; exists {
		return fmt.Sprintf("⚠️ El paciente con ID `%s` ya existe.", newID)
	}
	patients[newID] = vitals.NewRecord(newName, d.now())
	if err := d.stores.Vitals.Save(patients); err != nil {
		d.logger.Error("failed to save vitals", "error", err)
		return "❌ No pude registrar al paciente."
	}
	return fmt.Sprintf("✅ *Paciente Registrado*\n\n👤 Nombre: %s\n🆔 ID: `%s`\n\nYa está activo en el sistema de monitoreo.", newName, newID)
}

func (d *Dispatcher) cmdPacientes(ctx context.Context, sess *session) string {
	patients, err := d.stores.Vitals.Load()
	if err != nil {
		d.logger.Error("failed to load vitals", "error", err)
		return "❌ No pude leer el registro de pacientes."
	}
	if len(patients) == 0 {
		return "🏥 No hay pacientes registrados."
	}
	var sb strings.Builder
	sb.WriteString("🏥 *Lista de Pacientes:*\n\n")
	for _, id := range store.SortedIDs(patients) {
		fmt.Fprintf(&sb, "👤 *%s* (ID: `%s`)\n", patients[id].Name, id)
	}
	sb.WriteString("\nUsa `/monitorear [ID]` para ver sus signos vitales.")
	return sb.String()
}

// cmdPy runs the user's code in the sandbox and relays the result. Stdout
// lines that are /mnt/out paths with an existing local counterpart are sent
// as photo attachments; the rest is inlined as fenced blocks.
func (d *Dispatcher) cmdPy(ctx context.Context, sess *session) string {
	code := strings.TrimSpace(argAfter(sess.text))
	if d.runner == nil {
		return "⚠️ El sandbox de ejecución no está disponible."
	}

	res, err := d.runner.Run(ctx, code)
	if err != nil {
		return fmt.Sprintf("❌ *Error en Sandbox:*\n%s", sandboxErrText(err))
	}

	sentFile := false
	var cleanLines []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		path := strings.TrimSpace(line)
		if strings.HasPrefix(path, "/mnt/out/") {
			localPath := filepath.Join(d.cfg.DataDir, filepath.Base(path))
			if _, err := os.Stat(localPath); err == nil {
				if err := d.tg.SendFile(ctx, sess.chatID, localPath, telegram.FilePhoto, "Archivo generado por el Sandbox."); err != nil {
					d.logger.Warn("artifact send failed", "path", localPath, "error", err)
				} else {
					sentFile = true
					continue
				}
			}
		}
		cleanLines = append(cleanLines, line)
	}
	cleanStdout := strings.TrimSpace(strings.Join(cleanLines, "\n"))
	stderr := strings.TrimSpace(res.Stderr)

	if cleanStdout == "" && stderr == "" {
		if sentFile {
			return ""
		}
		return "📦 *Resultado del Sandbox:*\n\n_El código se ejecutó sin producir salida._"
	}
	reply := "📦 *Resultado del Sandbox:*\n\n"
	if cleanStdout != "" {
		reply += fmt.Sprintf("*Salida:*\n```\n%s\n```\n", cleanStdout)
	}
	if stderr != "" {
		reply += fmt.Sprintf("*Errores:*\n```\n%s\n```\n", stderr)
	}
	return reply
}
