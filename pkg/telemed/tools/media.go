package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"
)

// TruncateRunes caps s at n runes. Byte slicing would split multibyte
// characters in Spanish text and produce invalid UTF-8.
func TruncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// DescribeImage answers prompt about the image at path.
func (g *Gemini) DescribeImage(ctx context.Context, path, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("gemini: reading image: %w", err)
	}
	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(data, mimeFor(path, "image/jpeg")),
		genai.NewPartFromText(prompt),
	}, genai.RoleUser)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, nil)
	if err != nil {
		return "", fmt.Errorf("gemini: image analysis failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini: empty image analysis")
	}
	return text, nil
}

// Transcribe converts the voice note at path to text. lang is a BCP 47 code
// like "es-ES" hinting the spoken language.
func (g *Gemini) Transcribe(ctx context.Context, path, lang string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("gemini: reading audio: %w", err)
	}
	prompt := fmt.Sprintf("Transcribe this audio verbatim. The speaker is using language %q. Return only the transcription, nothing else.", lang)
	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(data, mimeFor(path, "audio/ogg")),
		genai.NewPartFromText(prompt),
	}, genai.RoleUser)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{content}, nil)
	if err != nil {
		return "", fmt.Errorf("gemini: transcription failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: empty transcription")
	}
	return text, nil
}

// Synthesize renders text as speech and writes the audio to outPath. Long
// replies are capped at 500 characters to keep voice notes short.
func (g *Gemini) Synthesize(ctx context.Context, text, lang, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text = TruncateRunes(text, 500)
	prompt := fmt.Sprintf("Read aloud in %s: %s", lang, text)
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: "Kore"},
			},
		},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.speechModel,
		[]*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}, cfg)
	if err != nil {
		return fmt.Errorf("gemini: speech synthesis failed: %w", err)
	}
	audio := extractAudio(resp)
	if len(audio) == 0 {
		return fmt.Errorf("gemini: no audio in response")
	}
	if err := os.WriteFile(outPath, audio, 0o644); err != nil {
		return fmt.Errorf("gemini: writing audio: %w", err)
	}
	return nil
}

// extractAudio pulls the first inline audio blob out of a response.
func extractAudio(resp *genai.GenerateContentResponse) []byte {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}

// mimeFor guesses a MIME type from the file extension.
func mimeFor(path, fallback string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".mp3":
		return "audio/mp3"
	case ".wav":
		return "audio/wav"
	}
	return fallback
}
