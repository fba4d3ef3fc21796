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
)

// command is one entry of the ordered dispatch table. Matching is by prefix,
// first match wins, so longer commands must precede their prefixes
// (/recordatorio before /recordar, /ayuda_medica before /ayuda).
type command struct {
	prefixes []string
	minRole  store.Role
	denied   string
	handler  func(ctx context.Context, sess *session) string
}

func (c command) matches(text string) bool {
	for _, p := range c.prefixes {
		if strings.HasPrefix(text, p) {
			return true
		}
	}
	return false
}

func (c command) deniedReply() string {
	if c.denied != "" {
		return c.denied
	}
	return "⛔ *Acceso Denegado:* Este comando es exclusivo para personal médico."
}

// commandTable builds the dispatch table. Order is significant.
func (d *Dispatcher) commandTable() []command {
	return []command{
		{prefixes: []string{"/investigar", "/research"}, handler: d.cmdInvestigar},
		{prefixes: []string{"/reporte", "/report"}, handler: d.cmdReporte},
		{prefixes: []string{"/recordatorio", "/remind"}, handler: d.cmdRecordatorio},
		{prefixes: []string{"/mis_recordatorios", "/my_reminders"}, handler: d.cmdMisRecordatorios},
		{prefixes: []string{"/borrar_recordatorios", "/clear_reminders"}, handler: d.cmdBorrarRecordatorios},
		{prefixes: []string{"/cita", "/appointment"}, handler: d.cmdCita},
		{prefixes: []string{"/mis_citas", "/my_appointments"}, handler: d.cmdMisCitas},
		{prefixes: []string{"/traducir", "/translate"}, handler: d.cmdTraducir},
		{prefixes: []string{"/idioma", "/lang"}, handler: d.cmdIdioma},
		{prefixes: []string{"/ayuda_medica"}, handler: d.cmdAyudaMedica},
		{prefixes: []string{"/resumir_archivo", "/summarize_file"}, handler: d.cmdResumirArchivo},
		{prefixes: []string{"/resumir", "/summarize"}, handler: d.cmdResumir},
		{prefixes: []string{"/recordar", "/remember"}, handler: d.cmdRecordar},
		{prefixes: []string{"/memorias", "/memories"}, handler: d.cmdMemorias},
		{prefixes: []string{"/olvidar", "/forget"}, handler: d.cmdOlvidar},
		{prefixes: []string{"/broadcast", "/anuncio"}, minRole: store.RoleOperator, handler: d.cmdBroadcast},
		{prefixes: []string{"/status"}, minRole: store.RoleOperator, handler: d.cmdStatus},
		{prefixes: []string{"/usuarios", "/users"}, minRole: store.RoleOperator, handler: d.cmdUsuarios},
		{prefixes: []string{"/modo"}, handler: d.cmdModo},
		{prefixes: []string{"/reiniciar", "/reset"}, handler: d.cmdReiniciar},
		{prefixes: []string{"/rol", "/role"}, handler: d.cmdRol},
		{prefixes: []string{"/foto", "/camara", "/photo"}, minRole: store.RoleOperator,
			denied:  "⛔ *Acceso Denegado:* Solo personal médico puede acceder a la cámara de vigilancia.",
			handler: d.cmdFoto},
		{prefixes: []string{"/monitorear", "/monitor"}, minRole: store.RoleOperator, handler: d.cmdMonitorear},
		{prefixes: []string{"/simular_crisis"}, minRole: store.RoleOperator,
			denied:  "⛔ Solo médicos pueden ejecutar simulaciones.",
			handler: d.cmdSimularCrisis},
		{prefixes: []string{"/estabilizar", "/stabilize"}, minRole: store.RoleOperator,
			denied:  "⛔ Solo médicos pueden realizar procedimientos de estabilización.",
			handler: d.cmdEstabilizar},
		{prefixes: []string{"/paciente_reset", "/reset_patient"}, minRole: store.RoleOperator,
			denied:  "⛔ Solo médicos pueden resetear los valores del paciente.",
			handler: d.cmdPacienteReset},
		{prefixes: []string{"/historial_alertas", "/alert_history"}, minRole: store.RoleOperator,
			denied:  "⛔ Acceso denegado.",
			handler: d.cmdHistorialAlertas},
		{prefixes: []string{"/nuevo_paciente", "/ingresar"}, minRole: store.RoleOperator,
			denied:  "⛔ Solo médicos pueden registrar pacientes.",
			handler: d.cmdNuevoPaciente},
		{prefixes: []string{"/pacientes"}, minRole: store.RoleOperator,
			denied:  "⛔ Acceso denegado.",
			handler: d.cmdPacientes},
		{prefixes: []string{"/ayuda", "/help"}, handler: d.cmdAyuda},
		{prefixes: []string{"/py "}, handler: d.cmdPy},
	}
}

// argAfter returns everything after the command word, trimmed. Empty when
// the command came with no argument.
func argAfter(text string) string {
	if _, rest, ok := strings.Cut(text, " "); ok {
		return strings.TrimSpace(rest)
	}
	return ""
}

func (d *Dispatcher) cmdInvestigar(ctx context.Context, sess *session) string {
	topic := argAfter(sess.text)
	if topic == "" {
		return "⚠️ Uso: /investigar [tema]"
	}
	d.send(ctx, sess.chatID, fmt.Sprintf("🕵️‍♂️ Investigando sobre '%s'... dame unos segundos.", topic))

	outFile := filepath.Join(d.cfg.DataDir, "tg_research.txt")
	if err := d.searcher.Search(ctx, topic, outFile, 10); err != nil {
		d.logger.Warn("research search failed", "topic", topic, "error", err)
		return "❌ Error al ejecutar la herramienta de investigación."
	}
	data, err := os.ReadFile(outFile)
	if err != nil {
		return fmt.Sprintf("Error procesando resultados: %v", err)
	}
	if d.llm == nil {
		return "⚠️ El asistente de IA no está configurado para resumir resultados."
	}

	prompt := fmt.Sprintf("Considerando lo que ya sabes en tu memoria y los siguientes resultados de búsqueda sobre '%s', crea un resumen conciso para Telegram.\n\nResultados de Búsqueda:\n---\n%s", topic, data)
	reply, err := d.llm.Chat(ctx, prompt, "", topic, nil)
	if err != nil {
		return fmt.Sprintf("⚠️ Error del modelo: %v", err)
	}
	return reply
}

func (d *Dispatcher) cmdReporte(ctx context.Context, sess *session) string {
	topic := argAfter(sess.text)
	if topic == "" {
		return "⚠️ Uso: /reporte [tema médico o de investigación]"
	}
	d.send(ctx, sess.chatID, fmt.Sprintf("👩‍⚕️ Iniciando investigación profunda sobre '%s'... Esto tomará unos segundos.", topic))

	outFile := filepath.Join(d.cfg.DataDir, "med_research.txt")
	query := "tratamientos terapias y recuperación para " + topic
	if err := d.searcher.Search(ctx, query, outFile, 10); err != nil {
		d.logger.Warn("report search failed", "topic", topic, "error", err)
		return "❌ Error en la fase de investigación (Búsqueda)."
	}
	searchData, err := os.ReadFile(outFile)
	if err != nil {
		return fmt.Sprintf("❌ Error procesando el reporte: %v", err)
	}
	if d.llm == nil {
		return "⚠️ El asistente de IA no está configurado para redactar reportes."
	}

	prompt := fmt.Sprintf(`Actúa como un Asistente Médico de Investigación experto y empático.
Basado en los siguientes resultados de búsqueda, genera un REPORTE DETALLADO en formato Markdown sobre '%s'.

Estructura sugerida:
1. 📋 Resumen Ejecutivo
2. 💊 Tratamientos Convencionales
3. 🧘 Terapias de Rehabilitación y Fisioterapia (Ejercicios recomendados)
4. ⏱️ Tiempos de Recuperación Estimados
5. 🏠 Recomendaciones y Cuidados en Casa

RESULTADOS DE BÚSQUEDA:
%s

IMPORTANTE:
- Usa un tono profesional pero claro y esperanzador.
- INCLUYE UN DISCLAIMER AL INICIO: "Nota: Soy una IA. Este reporte es informativo y no sustituye el consejo médico profesional."`,
		topic, searchData)

	d.send(ctx, sess.chatID, "🧠 Analizando datos y redactando informe...")
	report, err := d.llm.Chat(ctx, prompt, "", topic, nil)
	if err != nil {
		return "❌ Error al redactar el reporte con el modelo."
	}

	filename := "Reporte_Medico_" + safeName(topic) + ".md"
	docsPath := filepath.Join(d.cfg.DocsDir, filename)
	if err := os.MkdirAll(d.cfg.DocsDir, 0o755); err == nil {
		if err := os.WriteFile(docsPath, []byte(report), 0o644); err != nil {
			d.logger.Warn("failed to save report", "path", docsPath, "error", err)
		} else if err := d.tg.SendFile(ctx, sess.chatID, docsPath, telegram.FileDocument, "📄 Reporte completo"); err != nil {
			d.logger.Warn("failed to send report document", "error", err)
		}
	}

	preview := tools.TruncateRunes(report, 400)
	return fmt.Sprintf("✅ *Reporte Generado Exitosamente*\n\nHe guardado el informe detallado en:\n`docs/%s`\n\nAquí tienes un resumen:\n\n%s...", filename, preview)
}

func (d *Dispatcher) cmdRecordatorio(ctx context.Context, sess *session) string {
	parts := strings.SplitN(sess.text, " ", 3)
	if len(parts) < 3 {
		return "⚠️ Uso: /recordatorio HH:MM Mensaje\nEj: `/recordatorio 08:00 Tomar antibiótico`"
	}
	timeStr, note := parts[1], parts[2]
	if err := store.ValidateReminderTime(timeStr); err != nil {
		return "❌ Hora inválida. Usa formato 24h (HH:MM), ej: 14:30."
	}
	if err := d.stores.Reminders.Add(store.Reminder{
		ChatID:  sess.chatID,
		Time:    timeStr,
		Message: note,
	}); err != nil {
		d.logger.Error("failed to save reminder", "error", err)
		return "❌ No pude guardar el recordatorio. Intenta de nuevo."
	}
	return fmt.Sprintf("✅ Recordatorio configurado.\nTe avisaré todos los días a las %s: '%s'.", timeStr, note)
}

func (d *Dispatcher) cmdMisRecordatorios(ctx context.Context, sess *session) string {
	reminders, err := d.stores.Reminders.List()
	if err != nil {
		d.logger.Error("failed to read reminders", "error", err)
		return "❌ No pude consultar tus recordatorios."
	}
	now := d.now()
	var sb strings.Builder
	count := 0
	for _, r := range reminders {
		if r.ChatID != sess.chatID {
			continue
		}
		count++
		next, err := r.NextFire(now)
		if err != nil {
			fmt.Fprintf(&sb, "▫️ *%s* - %s\n", r.Time, r.Message)
			continue
		}
		fmt.Fprintf(&sb, "▫️ *%s* - %s (próximo: %s)\n", r.Time, r.Message, next.Format("02/01 15:04"))
	}
	if count == 0 {
		return "🤔 No tienes recordatorios configurados."
	}
	return "⏰ *Tus Recordatorios:*\n\n" + sb.String()
}

func (d *Dispatcher) cmdBorrarRecordatorios(ctx context.Context, sess *session) string {
	removed, err := d.stores.Reminders.ClearOwner(sess.chatID)
	if err != nil {
		d.logger.Error("failed to clear reminders", "error", err)
		return "❌ No pude borrar los recordatorios. Intenta de nuevo."
	}
	if removed == 0 {
		return "🤔 No tienes recordatorios configurados para borrar."
	}
	return "✅ Todos tus recordatorios han sido eliminados."
}

func (d *Dispatcher) cmdCita(ctx context.Context, sess *session) string {
	parts := strings.SplitN(sess.text, " ", 4)
	if len(parts) < 4 {
		return "⚠️ Uso: /cita DD/MM HH:MM Motivo\nEj: `/cita 25/10 15:30 Revisión general`"
	}
	date, timeStr, reason := parts[1], parts[2], parts[3]
	if err := store.ValidateAppointment(date, timeStr); err != nil {
		return "❌ Formato de fecha u hora inválido. Usa DD/MM HH:MM (ej: 25/10 14:00)."
	}
	if err := d.stores.Appointments.Add(store.Appointment{
		ChatID:    sess.chatID,
		Date:      date,
		Time:      timeStr,
		Reason:    reason,
		CreatedAt: d.now().Format("2006-01-02 15:04:05"),
	}); err != nil {
		d.logger.Error("failed to save appointment", "error", err)
		return "❌ No pude agendar la cita. Intenta de nuevo."
	}
	return fmt.Sprintf("✅ *Cita Agendada*\n\n📅 Fecha: %s\n⏰ Hora: %s\n📝 Motivo: %s\n\nHe registrado esta cita en el sistema.", date, timeStr, reason)
}

func (d *Dispatcher) cmdMisCitas(ctx context.Context, sess *session) string {
	hasAny, err := d.stores.Appointments.HasAny(sess.chatID)
	if err != nil {
		d.logger.Error("failed to read appointments", "error", err)
		return "❌ No pude consultar tus citas."
	}
	if !hasAny {
		return "🗓️ No tienes ninguna cita agendada."
	}
	future, err := d.stores.Appointments.Upcoming(sess.chatID, d.now())
	if err != nil {
		d.logger.Error("failed to read appointments", "error", err)
		return "❌ No pude consultar tus citas."
	}
	if len(future) == 0 {
		return "🗓️ No tienes citas pendientes. (Todas tus citas agendadas ya pasaron)."
	}
	var sb strings.Builder
	sb.WriteString("🗓️ *Tus Próximas Citas:*\n\n")
	for _, a := range future {
		fmt.Fprintf(&sb, "▫️ *%s* a las *%s* - %s\n", a.Date, a.Time, a.Reason)
	}
	return sb.String()
}

func (d *Dispatcher) cmdTraducir(ctx context.Context, sess *session) string {
	arg := argAfter(sess.text)
	if arg == "" {
		return "⚠️ Uso: /traducir [texto | nombre_archivo]"
	}
	if d.llm == nil {
		return "⚠️ La traducción no está configurada (falta la clave de API)."
	}

	// A bare filename living in docs/ or the scratch dir means "translate
	// this file and send it back as a document".
	for _, dir := range []string{d.cfg.DocsDir, d.cfg.DataDir} {
		path := filepath.Join(dir, arg)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		d.send(ctx, sess.chatID, fmt.Sprintf("⏳ Traduciendo `%s` al español...", arg))
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Sprintf("❌ Error al traducir archivo: %v", err)
		}
		translated, err := d.llm.Translate(ctx, string(data), "Español")
		if err != nil {
			return fmt.Sprintf("❌ Error al traducir archivo: %v", err)
		}
		outPath := filepath.Join(d.cfg.DataDir, "traduccion_"+filepath.Base(arg))
		if err := os.WriteFile(outPath, []byte(translated), 0o644); err != nil {
			return fmt.Sprintf("❌ Error al traducir archivo: %v", err)
		}
		if err := d.tg.SendFile(ctx, sess.chatID, outPath, telegram.FileDocument, "📄 Traducción al Español"); err != nil {
			return fmt.Sprintf("❌ Error al enviar la traducción: %v", err)
		}
		return "✅ Archivo traducido enviado."
	}

	translated, err := d.llm.Translate(ctx, arg, "Español")
	if err != nil {
		return "❌ Error al traducir texto."
	}
	return "🇪🇸 *Traducción:*\n\n" + translated
}

func (d *Dispatcher) cmdIdioma(ctx context.Context, sess *session) string {
	arg := strings.ToLower(argAfter(sess.text))
	if arg == "" {
		return "⚠️ Uso: /idioma [es/en]\nEj: `/idioma en` (para inglés)"
	}
	langMap := map[string]string{"es": "es-ES", "en": "en-US", "fr": "fr-FR", "pt": "pt-BR"}
	code, ok := langMap[arg]
	if !ok {
		code = "es-ES"
	}
	if err := d.stores.Prefs.SetVoiceLang(sess.chatID, code); err != nil {
		d.logger.Error("failed to save voice language", "error", err)
		return "❌ No pude guardar el idioma."
	}
	return fmt.Sprintf("✅ Idioma de voz cambiado a: `%s`.\nAhora te escucharé en ese idioma.", code)
}

func (d *Dispatcher) cmdAyudaMedica(ctx context.Context, sess *session) string {
	manualPath := filepath.Join(d.cfg.DocsDir, "manual_medico.pdf")
	if _, err := os.Stat(manualPath); err != nil {
		return "⚠️ El manual PDF no ha sido generado aún. Pide al administrador que ejecute `pdflatex`."
	}
	d.send(ctx, sess.chatID, "📘 Aquí tienes la guía de uso para tu recuperación.")
	if err := d.tg.SendFile(ctx, sess.chatID, manualPath, telegram.FileDocument, "Manual de Asistente Médico (IA)"); err != nil {
		return fmt.Sprintf("❌ Error enviando el manual: %v", err)
	}
	return ""
}

func (d *Dispatcher) cmdResumirArchivo(ctx context.Context, sess *session) string {
	filename := argAfter(sess.text)
	if filename == "" {
		return "⚠️ Uso: /resumir_archivo [nombre_del_archivo_en_docs]"
	}
	d.send(ctx, sess.chatID, fmt.Sprintf("⏳ Leyendo y resumiendo `%s`...", filename))

	content, errReply := d.readInSandbox(ctx, "/mnt/docs/"+filename)
	if errReply != "" {
		return errReply
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Sprintf("❌ Error al leer el archivo `%s` desde el Sandbox:\n`archivo vacío`", filename)
	}
	if len(content) > 10000 {
		content = content[:10000] + "... (truncado)"
	}
	if d.llm == nil {
		return "⚠️ El asistente de IA no está configurado para resumir."
	}
	reply, err := d.llm.Chat(ctx, fmt.Sprintf("Resume el siguiente documento llamado '%s':\n\n%s", filename, content), "", "", nil)
	if err != nil {
		return "❌ Error generando el resumen."
	}
	return reply
}

func (d *Dispatcher) cmdResumir(ctx context.Context, sess *session) string {
	url := argAfter(sess.text)
	if url == "" {
		return "⚠️ Uso: /resumir [url]"
	}
	d.send(ctx, sess.chatID, fmt.Sprintf("⏳ Leyendo %s...", url))

	outFile := filepath.Join(d.cfg.DataDir, "web_content.txt")
	if err := d.searcher.Scrape(ctx, url, outFile); err != nil {
		if strings.Contains(err.Error(), "no scheme") {
			filename := url[strings.LastIndex(url, "/")+1:]
			return fmt.Sprintf("🤔 El comando `/resumir` es para URLs (ej: `https://...`).\n\nSi querías resumir el archivo local `%s`, el comando correcto es:\n`/resumir_archivo %s`", filename, filename)
		}
		return fmt.Sprintf("❌ Error leyendo la web: %v", err)
	}
	data, err := os.ReadFile(outFile)
	if err != nil {
		return fmt.Sprintf("❌ Error leyendo contenido: %v", err)
	}
	content := string(data)
	if len(content) > 10000 {
		content = content[:10000] + "... (truncado)"
	}
	if d.llm == nil {
		return "⚠️ El asistente de IA no está configurado para resumir."
	}
	reply, err := d.llm.Chat(ctx, "Resume el siguiente contenido web para Telegram:\n\n"+content, "", "", nil)
	if err != nil {
		return fmt.Sprintf("⚠️ Error del modelo: %v", err)
	}
	return reply
}

func (d *Dispatcher) cmdRecordar(ctx context.Context, sess *session) string {
	text := argAfter(sess.text)
	if text == "" {
		return "⚠️ Uso: /recordar [dato a guardar]"
	}
	if d.memory == nil {
		return "⚠️ La memoria a largo plazo no está disponible."
	}
	d.send(ctx, sess.chatID, "💾 Guardando nota...")
	if _, err := d.memory.Save(text, "telegram_note"); err != nil {
		d.logger.Error("failed to save memory", "error", err)
		return "❌ Error al guardar la nota en memoria."
	}
	return "✅ Nota guardada en memoria a largo plazo."
}

func (d *Dispatcher) cmdMemorias(ctx context.Context, sess *session) string {
	if d.memory == nil {
		return "⚠️ La memoria a largo plazo no está disponible."
	}
	d.send(ctx, sess.chatID, "🧠 Consultando base de datos...")
	memories, err := d.memory.List(5)
	if err != nil {
		d.logger.Error("failed to list memories", "error", err)
		return "❌ Error al consultar la memoria."
	}
	if len(memories) == 0 {
		return "📭 No tengo recuerdos guardados aún."
	}
	var sb strings.Builder
	sb.WriteString("🧠 *Últimos recuerdos:*\n")
	for _, m := range memories {
		fmt.Fprintf(&sb, "🆔 `%s`\n📅 %s: %s\n\n", m.ID, m.Timestamp.Format("2006-01-02 15:04:05"), m.Content)
	}
	return sb.String()
}

func (d *Dispatcher) cmdOlvidar(ctx context.Context, sess *session) string {
	id := argAfter(sess.text)
	if id == "" {
		return "⚠️ Uso: /olvidar [ID]"
	}
	if d.memory == nil {
		return "⚠️ La memoria a largo plazo no está disponible."
	}
	found, err := d.memory.Delete(id)
	if err != nil {
		d.logger.Error("failed to delete memory", "error", err)
		return "❌ Error al eliminar el recuerdo."
	}
	if !found {
		return fmt.Sprintf("❌ Error al eliminar: no existe el recuerdo `%s`", id)
	}
	return "✅ Recuerdo eliminado."
}

func (d *Dispatcher) cmdModo(ctx context.Context, sess *session) string {
	mode := strings.ToLower(argAfter(sess.text))
	if text, ok := store.Personas[mode]; ok {
		if err := d.stores.Persona.SetPreset(mode); err != nil {
			d.logger.Error("failed to set persona", "error", err)
			return "❌ No pude cambiar el modo."
		}
		return fmt.Sprintf("🎭 *Modo cambiado a:* %s\n\n_%s_", capitalize(mode), text)
	}
	var opts []string
	for _, k := range store.PersonaNames() {
		opts = append(opts, "`"+k+"`")
	}
	return fmt.Sprintf("⚠️ Modo no reconocido.\nOpciones disponibles: %s\nUso: `/modo [opcion]`", strings.Join(opts, ", "))
}

func (d *Dispatcher) cmdReiniciar(ctx context.Context, sess *session) string {
	if err := d.stores.Persona.SetPreset("default"); err != nil {
		d.logger.Error("failed to reset persona", "error", err)
		return "❌ No pude reiniciar la sesión."
	}
	if err := d.stores.History.Clear(); err != nil {
		d.logger.Error("failed to clear chat history", "error", err)
		return "❌ No pude borrar el historial de conversación."
	}
	return "🔄 *Sistema reiniciado.*\n\n- Historial de conversación borrado.\n- Personalidad restablecida a 'Default'."
}

func (d *Dispatcher) cmdRol(ctx context.Context, sess *session) string {
	arg := strings.ToLower(argAfter(sess.text))
	if arg == "" {
		current := d.stores.Roles.Get(sess.chatID)
		return fmt.Sprintf("👤 Tu rol actual es: *%s*.\n\nPara cambiarlo, usa:\n`/rol medico`\n`/rol paciente`", strings.ToUpper(string(current)))
	}
	switch arg {
	case "medico", "médico", "doctor":
		if err := d.stores.Roles.Set(sess.chatID, store.RoleOperator); err != nil {
			d.logger.Error("failed to set role", "error", err)
			return "❌ No pude actualizar tu rol."
		}
		return "👨‍⚕️ *Rol actualizado a MÉDICO.*\nAhora tienes acceso a herramientas de monitoreo y gestión clínica."
	case "paciente", "usuario":
		if err := d.stores.Roles.Set(sess.chatID, store.RolePatient); err != nil {
			d.logger.Error("failed to set role", "error", err)
			return "❌ No pude actualizar tu rol."
		}
		return "👤 *Rol actualizado a PACIENTE.*\nEl bot se enfocará en tu recuperación y seguimiento personal."
	}
	return "⚠️ Rol no reconocido. Usa `medico` o `paciente`."
}

func (d *Dispatcher) cmdAyuda(ctx context.Context, sess *session) string {
	if d.stores.Roles.Get(sess.chatID) == store.RoleOperator {
		return "👨‍⚕️ *Panel de Control Médico:*\n\n" +
			"📡 `/monitorear`: Ver signos vitales de pacientes (Sensores).\n" +
			"📸 `/foto`: Ver cámara en tiempo real.\n" +
			"➕ `/nuevo_paciente`: Registrar nuevo ingreso.\n" +
			"🔬 `/reporte [tema]`: Generar informe clínico detallado.\n" +
			"🔍 `/investigar [tema]`: Búsqueda médica avanzada.\n" +
			"📋 `/historial_alertas`: Ver registro de crisis pasadas.\n" +
			"🏥 `/pacientes`: Lista de pacientes activos.\n" +
			"📄 `/resumir_archivo [pdf]`: Analizar historia clínica.\n" +
			"⚙️ `/status`: Estado del servidor.\n" +
			"⚠️ `/simular_crisis`: Test de alertas.\n" +
			"💉 `/estabilizar`: Normalizar signos vitales.\n" +
			"👤 `/rol paciente`: Cambiar a vista de paciente.\n"
	}
	return "🤖 *Asistente de Paciente:*\n\n" +
		"📅 `/cita [fecha]`: Agendar nueva cita.\n" +
		"🗓️ `/mis_citas`: Ver mis citas pendientes.\n" +
		"⏰ `/recordatorio`: Configurar alarma de medicamentos.\n" +
		"📋 `/mis_recordatorios`: Ver mis alarmas y su próximo aviso.\n" +
		"📘 `/ayuda_medica`: Ver manual de recuperación.\n" +
		"🗣️ *Notas de voz*: Puedes hablarme para consultas.\n" +
		"👨‍⚕️ `/rol medico`: (Solo personal autorizado).\n"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// safeName keeps letters and digits, replacing everything else, capped so
// report filenames stay manageable.
func safeName(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}
	out := sb.String()
	if len(out) > 30 {
		out = out[:30]
	}
	return out
}
