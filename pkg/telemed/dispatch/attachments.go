package dispatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tecven/telemed/pkg/telemed/sandbox"
	"github.com/tecven/telemed/pkg/telemed/telegram"
	"github.com/tecven/telemed/pkg/telemed/tools"
)

// handlePhoto downloads the image and answers the caption (or a default
// description prompt) with the vision model.
func (d *Dispatcher) handlePhoto(ctx context.Context, sess *session, photo *telegram.PhotoEvent) string {
	if d.llm == nil {
		return "⚠️ El análisis de imágenes no está configurado (falta la clave de API)."
	}
	caption := strings.TrimSpace(photo.Caption)
	if caption == "" {
		caption = "Describe qué ves en esta imagen."
	}

	d.send(ctx, sess.chatID, "👀 Analizando imagen...")

	localPath := filepath.Join(d.cfg.DataDir, fmt.Sprintf("photo_%d.jpg", d.now().UnixNano()))
	if err := d.tg.Download(ctx, photo.FileID, localPath); err != nil {
		d.logger.Warn("photo download failed", "error", err)
		return fmt.Sprintf("❌ Error analizando imagen: %v", err)
	}

	desc, err := d.llm.DescribeImage(ctx, localPath, caption)
	if err != nil {
		return fmt.Sprintf("❌ Error analizando imagen: %v", err)
	}
	return "👁️ *Análisis Visual:*\n" + desc
}

// handleDocument downloads the file into the scratch dir (visible to the
// sandbox as /mnt/out), extracts its text in the sandbox and analyzes it
// with the LLM as a medical document.
func (d *Dispatcher) handleDocument(ctx context.Context, sess *session, doc *telegram.DocumentEvent) string {
	d.send(ctx, sess.chatID, fmt.Sprintf("📂 Recibí `%s`. Leyendo contenido...", doc.Name))

	localPath := filepath.Join(d.cfg.DataDir, filepath.Base(doc.Name))
	if err := d.tg.Download(ctx, doc.FileID, localPath); err != nil {
		d.logger.Warn("document download failed", "error", err)
		return fmt.Sprintf("❌ Error leyendo el PDF: %v", err)
	}

	content, errReply := d.readInSandbox(ctx, "/mnt/out/"+filepath.Base(doc.Name))
	if errReply != "" {
		return errReply
	}
	if truncated := tools.TruncateRunes(content, 15000); truncated != content {
		content = truncated + "... (truncado)"
	}
	if strings.TrimSpace(content) == "" {
		return "⚠️ El documento parece estar vacío o es una imagen escaneada sin texto (OCR no disponible en sandbox)."
	}
	if d.llm == nil {
		return "⚠️ El análisis con IA no está configurado (falta la clave de API)."
	}

	prompt := fmt.Sprintf(`Actúa como un Asistente Médico experto y empático. Analiza el siguiente documento PDF proporcionado por el usuario.

CONTEXTO DEL USUARIO (si lo hay): %s

CONTENIDO DEL DOCUMENTO:
---
%s
---

TAREA:
1. Identifica el tipo de documento (ej: informe de laboratorio, receta, artículo médico, guía de uso, etc.).
2. Si es un informe médico o de laboratorio: resume los hallazgos principales, explica los términos técnicos en lenguaje sencillo para un paciente y, si hay diagnósticos o tratamientos, explícalos brevemente. Termina con el disclaimer: "Nota: Soy una IA. Este análisis es informativo y no sustituye la opinión de un médico."
3. Si es cualquier otro tipo de documento: simplemente resume su contenido y propósito principal de forma clara.`,
		doc.Caption, content)

	d.send(ctx, sess.chatID, "🧠 Analizando informe médico...")
	reply, err := d.llm.Chat(ctx, prompt, "", "", nil)
	if err != nil {
		return "❌ Error al analizar el documento con la IA."
	}
	return reply
}

// handleVoice transcribes the note. On success it echoes the transcription,
// rewrites the session text and lets classification continue (done=false).
// On failure it returns the error reply directly (done=true).
func (d *Dispatcher) handleVoice(ctx context.Context, sess *session, voice *telegram.VoiceEvent) (reply string, done bool) {
	if d.llm == nil {
		return "⚠️ La transcripción de voz no está configurada (falta la clave de API).", true
	}
	sess.voice = true
	langCode := d.stores.Prefs.VoiceLang(sess.chatID)
	sess.voiceLang = strings.SplitN(langCode, "-", 2)[0]

	d.send(ctx, sess.chatID, "👂 Escuchando...")

	localPath := filepath.Join(d.cfg.DataDir, fmt.Sprintf("voice_%d.ogg", d.now().UnixNano()))
	if err := d.tg.Download(ctx, voice.FileID, localPath); err != nil {
		return fmt.Sprintf("❌ No pude entender el audio. Detalle: %v", err), true
	}

	text, err := d.llm.Transcribe(ctx, localPath, langCode)
	if err != nil {
		return fmt.Sprintf("❌ No pude entender el audio. Detalle: %v", err), true
	}

	d.send(ctx, sess.chatID, fmt.Sprintf("🗣️ Dijiste: %q", text))
	sess.text = text
	return "", false
}

// readInSandbox extracts a file's text inside the sandbox (PDFs via pypdf,
// everything else as plain text). Returns the content, or a user-facing
// error reply.
func (d *Dispatcher) readInSandbox(ctx context.Context, containerPath string) (content, errReply string) {
	if d.runner == nil {
		return "", "⚠️ El sandbox de ejecución no está disponible."
	}
	var code string
	if strings.HasSuffix(strings.ToLower(containerPath), ".pdf") {
		code = fmt.Sprintf(
			"from pypdf import PdfReader; reader = PdfReader('%s'); print('\\n'.join([page.extract_text() for page in reader.pages]))",
			containerPath)
	} else {
		code = fmt.Sprintf("with open('%s', 'r', encoding='utf-8') as f: print(f.read())", containerPath)
	}

	res, err := d.runner.Run(ctx, code)
	if err != nil {
		return "", fmt.Sprintf("❌ Error leyendo el archivo: %v", sandboxErrText(err))
	}
	if res.ExitCode != 0 {
		return "", fmt.Sprintf("❌ Error leyendo el archivo:\n`%s`", strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, ""
}

// sandboxErrText maps the sandbox failure taxonomy to user-facing text.
func sandboxErrText(err error) string {
	switch {
	case errors.Is(err, sandbox.ErrUnavailable):
		return "no se pudo conectar con el entorno de ejecución"
	case errors.Is(err, sandbox.ErrTimeout):
		return "la ejecución excedió el tiempo límite"
	default:
		return err.Error()
	}
}
