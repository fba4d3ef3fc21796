// Package tools implements the external capabilities consumed by the
// dispatcher: Gemini-backed language and media models, web search and
// scraping, the ward camera, server resource metrics and the long-term
// memory store. Every capability degrades gracefully when unconfigured.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Gemini wraps the genai client for chat, vision, transcription, speech
// synthesis and translation.
type Gemini struct {
	client      *genai.Client
	model       string
	speechModel string
	timeout     time.Duration
	logger      *slog.Logger

	// memory supplies retrieval context for chat; may be nil.
	memory *MemoryStore
}

// NewGemini creates the Gemini wrapper. An empty API key is a configuration
// error so the caller can disable AI features instead of crashing.
func NewGemini(apiKey, model, speechModel string, timeout time.Duration, memory *MemoryStore, logger *slog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}
	return &Gemini{
		client:      client,
		model:       model,
		speechModel: speechModel,
		timeout:     timeout,
		logger:      logger.With("component", "llm"),
		memory:      memory,
	}, nil
}

// Turn is one prior exchange replayed into Chat as conversation context.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Chat sends prompt with an optional system persona and prior conversation
// turns. When memoryQuery is non-empty and a memory store is attached,
// matching notes are injected as retrieval context ahead of the prompt.
func (g *Gemini) Chat(ctx context.Context, prompt, system, memoryQuery string, history []Turn) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if memoryQuery != "" && g.memory != nil {
		if notes, err := g.memory.Query(memoryQuery, 5); err == nil && len(notes) > 0 {
			var sb strings.Builder
			sb.WriteString("Contexto de tu memoria a largo plazo:\n")
			for _, n := range notes {
				sb.WriteString("- " + n.Content + "\n")
			}
			sb.WriteString("\n" + prompt)
			prompt = sb.String()
		}
	}

	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, t := range history {
		var role genai.Role = genai.RoleUser
		if t.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: chat failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return text, nil
}

// Translate returns text translated into the named language (e.g. "Español").
func (g *Gemini) Translate(ctx context.Context, text, language string) (string, error) {
	prompt := fmt.Sprintf("Traduce el siguiente texto al %s. Devuelve solo la traducción:\n\n%s", language, text)
	return g.Chat(ctx, prompt, "", "", nil)
}
