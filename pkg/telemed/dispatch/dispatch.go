// Package dispatch classifies inbound events and routes them to handlers.
//
// Handling is a two-stage pipeline. Stage 1 resolves attachments: photos and
// documents run their own analysis pipelines, while a voice note is
// transcribed and its text re-enters classification as if it had been typed.
// Stage 2 matches the working text against an ordered command table, then
// greeting literals, then falls back to free-form LLM chat with the current
// persona.
//
// Every event is handled inside a recovery boundary: a panic or error in one
// handler is logged and turned into a best-effort apology reply, never a
// crashed loop.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/tecven/telemed/pkg/telemed/sandbox"
	"github.com/tecven/telemed/pkg/telemed/store"
	"github.com/tecven/telemed/pkg/telemed/telegram"
	"github.com/tecven/telemed/pkg/telemed/tools"
)

// Transport is the outbound surface of the Telegram client the dispatcher
// needs. Narrow so tests can fake it.
type Transport interface {
	Send(ctx context.Context, chatID, text string) error
	SendFile(ctx context.Context, chatID, path string, kind telegram.FileKind, caption string) error
	Download(ctx context.Context, fileID, destPath string) error
}

// Runner is the sandbox boundary.
type Runner interface {
	Run(ctx context.Context, code string) (*sandbox.Result, error)
}

// Config holds dispatcher collaborator-independent settings.
type Config struct {
	// DataDir is the scratch directory, mounted at /mnt/out in the sandbox.
	DataDir string

	// DocsDir holds reports and the patient manual, mounted at /mnt/docs.
	DocsDir string

	// Thresholds for the /status resource report.
	Metrics tools.MetricThresholds
}

// Dispatcher routes inbound events. Any of llm, camera or sandboxRunner may
// be nil when the capability is unconfigured; the matching commands then
// reply with a configuration notice instead of failing.
type Dispatcher struct {
	cfg    Config
	tg     Transport
	stores *store.Stores
	logger *slog.Logger

	llm      *tools.Gemini
	memory   *tools.MemoryStore
	searcher *tools.Searcher
	camera   *tools.Camera
	runner   Runner

	// now is injectable for tests.
	now func() time.Time

	commands []command
}

// New creates a Dispatcher.
func New(cfg Config, tg Transport, stores *store.Stores, llm *tools.Gemini, memory *tools.MemoryStore, searcher *tools.Searcher, camera *tools.Camera, runner Runner, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		cfg:      cfg,
		tg:       tg,
		stores:   stores,
		logger:   logger.With("component", "dispatch"),
		llm:      llm,
		memory:   memory,
		searcher: searcher,
		camera:   camera,
		runner:   runner,
		now:      time.Now,
	}
	d.commands = d.commandTable()
	return d
}

// session carries the state of one event through the pipeline.
type session struct {
	chatID string
	text   string

	// voice marks that the text came from a transcribed voice note, so the
	// reply is also delivered as audio.
	voice     bool
	voiceLang string // short code for TTS, e.g. "es"
}

// Handle processes one inbound event end to end. It never returns an error:
// failures are logged and answered with an apology.
func (d *Dispatcher) Handle(ctx context.Context, ev telegram.Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("panic while handling message", "chat_id", ev.ChatID, "panic", r)
			d.send(ctx, ev.ChatID, "🤖 ¡Ups! Ocurrió un error inesperado al procesar tu último mensaje. El administrador ha sido notificado.")
		}
	}()

	if err := d.stores.Users.Save(ev.ChatID); err != nil {
		d.logger.Warn("failed to register user", "chat_id", ev.ChatID, "error", err)
	}

	sess := &session{chatID: ev.ChatID, text: ev.Text, voiceLang: "es"}

	// Stage 1: attachments. Photo and document pipelines produce the reply
	// directly; voice rewrites the working text and continues.
	var reply string
	var done bool
	switch {
	case ev.Photo != nil:
		reply, done = d.handlePhoto(ctx, sess, ev.Photo), true
	case ev.Document != nil:
		reply, done = d.handleDocument(ctx, sess, ev.Document), true
	case ev.Voice != nil:
		reply, done = d.handleVoice(ctx, sess, ev.Voice)
	}

	// Stage 2: text classification.
	if !done {
		reply = d.route(ctx, sess)
	}

	if reply == "" {
		return
	}
	d.send(ctx, sess.chatID, reply)

	// Voice round-trip: the reply is also spoken back.
	if sess.voice && d.llm != nil {
		audioPath := filepath.Join(d.cfg.DataDir, fmt.Sprintf("reply_%d.ogg", d.now().UnixNano()))
		if err := d.llm.Synthesize(ctx, reply, sess.voiceLang, audioPath); err != nil {
			d.logger.Warn("speech synthesis failed", "error", err)
			return
		}
		if err := d.tg.SendFile(ctx, sess.chatID, audioPath, telegram.FileVoice, ""); err != nil {
			d.logger.Warn("voice reply send failed", "error", err)
		}
	}
}

// route performs stage 2: command table, greetings, then LLM fallback.
func (d *Dispatcher) route(ctx context.Context, sess *session) string {
	text := sess.text

	for _, cmd := range d.commands {
		if !cmd.matches(text) {
			continue
		}
		if cmd.minRole == store.RoleOperator && d.stores.Roles.Get(sess.chatID) != store.RoleOperator {
			return cmd.deniedReply()
		}
		return cmd.handler(ctx, sess)
	}

	switch strings.ToLower(strings.TrimSpace(text)) {
	case "hola", "hola!", "hi", "hello", "/start":
		return d.greeting(sess.chatID)
	case "gracias", "gracias!", "thanks", "thank you":
		return "¡De nada! Estoy aquí para ayudar. 🤖"
	}

	return d.chatFallback(ctx, sess)
}

// chatFallback forwards free-form text to the LLM with the current persona,
// the server time, the voice-language override and the persisted conversation
// history. Successful exchanges are appended back to the history.
func (d *Dispatcher) chatFallback(ctx context.Context, sess *session) string {
	if d.llm == nil {
		return "⚠️ El asistente de IA no está configurado. Usa /ayuda para ver los comandos disponibles."
	}
	system := d.stores.Persona.Current()
	system += fmt.Sprintf("\n[Contexto Temporal: Fecha y Hora actual del servidor: %s]",
		d.now().Format("2006-01-02 15:04:05"))
	if sess.voice && sess.voiceLang != "es" {
		system += fmt.Sprintf("\nIMPORTANT: The user is speaking in %q. You MUST respond in %q, regardless of your default instructions.",
			sess.voiceLang, sess.voiceLang)
	}

	turns, err := d.stores.History.List()
	if err != nil {
		d.logger.Warn("failed to load chat history", "error", err)
	}
	history := make([]tools.Turn, len(turns))
	for i, t := range turns {
		history[i] = tools.Turn{Role: t.Role, Content: t.Content}
	}

	reply, err := d.llm.Chat(ctx, sess.text, system, sess.text, history)
	if err != nil {
		d.logger.Warn("llm chat failed", "error", err)
		return fmt.Sprintf("⚠️ Error del Modelo: %v", err)
	}
	if err := d.stores.History.Append(
		store.Turn{Role: "user", Content: sess.text},
		store.Turn{Role: "assistant", Content: reply},
	); err != nil {
		d.logger.Warn("failed to save chat history", "error", err)
	}
	return reply
}

// greeting returns the role-appropriate welcome.
func (d *Dispatcher) greeting(chatID string) string {
	if d.stores.Roles.Get(chatID) == store.RoleOperator {
		return "👨‍⚕️ *Bienvenido, Doctor.*\n\nEl sistema de telemetría y asistencia clínica está activo. Use `/monitorear` para ver el estado de los pacientes o `/ayuda` para ver las herramientas profesionales."
	}
	return "👋 ¡Hola! Soy tu Asistente de Telemedicina.\n\n" +
		"Estoy aquí para ayudarte a gestionar tu salud y responder tus consultas.\n\n" +
		"Puedes interactuar conmigo de varias formas:\n" +
		"- Envíame un informe en PDF para que lo analice.\n" +
		"- Pídeme un reporte sobre una condición médica con `/reporte [tema]`.\n" +
		"- Usa `/ayuda` para ver todos los comandos disponibles."
}

// send delivers text, logging failures. Used for replies and for the
// "working" acknowledgments sent before slow calls.
func (d *Dispatcher) send(ctx context.Context, chatID, text string) {
	if err := d.tg.Send(ctx, chatID, text); err != nil {
		d.logger.Warn("send failed", "chat_id", chatID, "error", err)
	}
}
