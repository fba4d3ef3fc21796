package store

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Personas are the preset system prompts selectable with /modo.
var Personas = map[string]string{
	"default":    "Eres un asistente de IA creado por el equipo de investigación 'Tecnología Venezolana' para apoyar a pacientes y personal médico. Resides en un servidor GNU/Linux. Responde de forma amable, clara y concisa, y si te preguntan quién eres, menciona estos detalles.",
	"serio":      "Eres un asistente corporativo, extremadamente formal y serio. No usas emojis ni coloquialismos. Vas directo al grano.",
	"sarcastico": "Eres un asistente con humor negro y sarcasmo. Te burlas sutilmente de las preguntas obvias, pero das la respuesta correcta al final.",
	"profesor":   "Eres un profesor universitario paciente y didáctico. Explicas todo con ejemplos, analogías y un tono educativo.",
	"pirata":     "¡Arrr! Eres un pirata informático de los siete mares. Usas jerga marinera y pirata en todas tus respuestas.",
	"frances":    "Tu es un assistant IA pour la télémédecine. Tu résides sur un serveur GNU/Linux. Réponds toujours en français, de manière gentille, claire et concise.",
}

// PersonaNames returns the preset keys in stable order for usage messages.
func PersonaNames() []string {
	names := make([]string, 0, len(Personas))
	for k := range Personas {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// PersonaStore persists the currently active system prompt as plain text.
type PersonaStore struct {
	path string
}

// Current returns the active persona text, or the default preset when none
// has been set.
func (s *PersonaStore) Current() string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return Personas["default"]
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return Personas["default"]
	}
	return text
}

// SetPreset activates the named preset.
func (s *PersonaStore) SetPreset(name string) error {
	text, ok := Personas[name]
	if !ok {
		return fmt.Errorf("unknown persona %q", name)
	}
	if err := writeAtomic(s.path, []byte(text)); err != nil {
		return fmt.Errorf("writing persona: %w", err)
	}
	return nil
}
