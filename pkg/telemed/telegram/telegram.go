// Package telegram implements the bot's transport over the Telegram Bot API
// directly via HTTP, with no external dependencies.
//
// Unlike a push-style channel, the client exposes a batch Poll method: the
// main loop calls Poll, handles every returned event in order, then polls
// again. The update offset is persisted through an injected cursor after each
// successful fetch, so a restart resumes after the newest fetched batch and a
// crash mid-batch may re-deliver work already started.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileKind selects the upload method for SendFile.
type FileKind string

const (
	FilePhoto    FileKind = "photo"
	FileDocument FileKind = "document"
	FileVoice    FileKind = "voice"
)

// Event is one inbound update, decoded into a tagged union: exactly one of
// the pointer fields is set for non-text events, otherwise Text carries the
// message body.
type Event struct {
	ChatID string
	Sender string

	Text     string
	Photo    *PhotoEvent
	Document *DocumentEvent
	Voice    *VoiceEvent
}

// PhotoEvent is an inbound photo (largest available size).
type PhotoEvent struct {
	FileID  string
	Caption string
}

// DocumentEvent is an inbound document attachment.
type DocumentEvent struct {
	FileID  string
	Name    string
	Caption string
}

// VoiceEvent is an inbound voice note.
type VoiceEvent struct {
	FileID string
}

// CursorStore persists the update offset between restarts.
type CursorStore interface {
	Load() (int64, error)
	Save(offset int64) error
}

// Config holds transport settings.
type Config struct {
	Token string

	// AllowedUsers is a comma-separated chat-ID allowlist; "*" allows
	// everyone and empty allows no one.
	AllowedUsers string

	// PollLimit and PollTimeout are passed to getUpdates.
	PollLimit   int
	PollTimeout time.Duration

	// BaseURL overrides the Bot API endpoint (tests).
	BaseURL string
}

// Client is the Telegram transport client.
type Client struct {
	cfg     Config
	logger  *slog.Logger
	client  *http.Client
	baseURL string
	cursor  CursorStore

	// offset is the next update ID to request.
	offset int64
	loaded bool
}

// New creates a transport client. The cursor may be nil, in which case the
// offset only lives in memory.
func New(cfg Config, cursor CursorStore, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	base := cfg.BaseURL
	if base == "" {
		base = "https://api.telegram.org"
	}
	return &Client{
		cfg:     cfg,
		logger:  logger.With("component", "telegram"),
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: base + "/bot" + cfg.Token,
		cursor:  cursor,
	}
}

// Me verifies the token and returns the bot's username.
func (c *Client) Me(ctx context.Context) (string, error) {
	data, err := c.apiCall(ctx, "getMe", nil)
	if err != nil {
		return "", err
	}
	var user struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &user); err != nil {
		return "", fmt.Errorf("telegram: parsing getMe: %w", err)
	}
	return user.Username, nil
}

// Poll fetches one batch of updates. A read timeout yields an empty batch and
// a nil error. The offset advances past every fetched update (even filtered
// ones) and is persisted before the batch is returned.
func (c *Client) Poll(ctx context.Context) ([]Event, error) {
	if !c.loaded {
		if c.cursor != nil {
			off, err := c.cursor.Load()
			if err != nil {
				return nil, fmt.Errorf("telegram: loading cursor: %w", err)
			}
			c.offset = off
		}
		c.loaded = true
	}

	payload := map[string]any{
		"offset":          c.offset,
		"limit":           c.cfg.PollLimit,
		"timeout":         int(c.cfg.PollTimeout.Seconds()),
		"allowed_updates": []string{"message"},
	}
	data, err := c.apiCall(ctx, "getUpdates", payload)
	if err != nil {
		if isTimeout(err) {
			return nil, nil
		}
		return nil, err
	}

	var updates []tgUpdate
	if err := json.Unmarshal(data, &updates); err != nil {
		return nil, fmt.Errorf("telegram: parsing updates: %w", err)
	}

	var events []Event
	for _, u := range updates {
		if u.UpdateID >= c.offset {
			c.offset = u.UpdateID + 1
		}
		if ev, ok := c.decode(u); ok {
			events = append(events, ev)
		}
	}

	if len(updates) > 0 && c.cursor != nil {
		if err := c.cursor.Save(c.offset); err != nil {
			c.logger.Warn("failed to persist cursor", "offset", c.offset, "error", err)
		}
	}
	return events, nil
}

// decode converts one update into an Event, applying the allowed-user filter.
func (c *Client) decode(u tgUpdate) (Event, bool) {
	msg := u.Message
	if msg == nil {
		return Event{}, false
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	if !c.allowed(chatID) {
		c.logger.Debug("ignoring message from unauthorized chat", "chat_id", chatID)
		return Event{}, false
	}

	ev := Event{ChatID: chatID, Sender: chatID, Text: msg.Text}
	if msg.From != nil {
		ev.Sender = strconv.FormatInt(msg.From.ID, 10)
	}

	switch {
	case len(msg.Photo) > 0:
		// Largest size is last.
		ev.Photo = &PhotoEvent{
			FileID:  msg.Photo[len(msg.Photo)-1].FileID,
			Caption: msg.Caption,
		}
		ev.Text = ""
	case msg.Document != nil:
		ev.Document = &DocumentEvent{
			FileID:  msg.Document.FileID,
			Name:    msg.Document.FileName,
			Caption: msg.Caption,
		}
		ev.Text = ""
	case msg.Voice != nil:
		ev.Voice = &VoiceEvent{FileID: msg.Voice.FileID}
		ev.Text = ""
	}
	return ev, true
}

// allowed applies the chat-ID allowlist.
func (c *Client) allowed(chatID string) bool {
	list := strings.TrimSpace(c.cfg.AllowedUsers)
	if list == "*" {
		return true
	}
	for _, id := range strings.Split(list, ",") {
		if strings.TrimSpace(id) == chatID {
			return true
		}
	}
	return false
}

// Send delivers text with Markdown formatting. If Telegram rejects the parse
// (unbalanced markup in LLM output is common), the send is retried once as
// plain text.
func (c *Client) Send(ctx context.Context, chatID, text string) error {
	_, err := c.apiCall(ctx, "sendMessage", map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err == nil {
		return nil
	}
	if !strings.Contains(err.Error(), "can't parse") {
		return err
	}
	c.logger.Debug("markdown rejected, resending as plain text", "chat_id", chatID)
	_, err = c.apiCall(ctx, "sendMessage", map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	return err
}

// SendFile uploads a local file as a photo, document or voice note.
func (c *Client) SendFile(ctx context.Context, chatID, path string, kind FileKind, caption string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("telegram: reading %s: %w", path, err)
	}

	var method, field string
	switch kind {
	case FilePhoto:
		method, field = "sendPhoto", "photo"
	case FileVoice:
		method, field = "sendVoice", "voice"
	default:
		method, field = "sendDocument", "document"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("chat_id", chatID)
	if caption != "" {
		_ = w.WriteField("caption", caption)
	}
	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return fmt.Errorf("telegram: creating form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("telegram: writing file data: %w", err)
	}
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, &buf)
	if err != nil {
		return fmt.Errorf("telegram: creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: upload failed: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("telegram: decoding %s upload response: %w", method, err)
	}
	if !result.OK {
		return fmt.Errorf("telegram: %s upload: %s", method, result.Description)
	}
	return nil
}

// Download fetches the file behind fileID into destPath.
func (c *Client) Download(ctx context.Context, fileID, destPath string) error {
	data, err := c.apiCall(ctx, "getFile", map[string]any{"file_id": fileID})
	if err != nil {
		return err
	}
	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("telegram: parsing getFile: %w", err)
	}

	base := c.cfg.BaseURL
	if base == "" {
		base = "https://api.telegram.org"
	}
	url := fmt.Sprintf("%s/file/bot%s/%s", base, c.cfg.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("telegram: creating download request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: download failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram: download failed: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("telegram: creating dest dir: %w", err)
	}
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("telegram: creating %s: %w", destPath, err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("telegram: writing %s: %w", destPath, err)
	}
	return nil
}

// apiCall makes a POST request to the Bot API and unwraps the envelope.
func (c *Client) apiCall(ctx context.Context, method string, payload map[string]any) (json.RawMessage, error) {
	url := c.baseURL + "/" + method
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram: marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram: creating request for %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	var result struct {
		OK          bool            `json:"ok"`
		Description string          `json:"description"`
		Result      json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("telegram: decoding %s response: %w", method, err)
	}
	if !result.OK {
		return nil, fmt.Errorf("telegram: %s: %s", method, result.Description)
	}
	return result.Result, nil
}

// isTimeout reports whether err is a read timeout, which Poll treats as "no
// new messages".
func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "Client.Timeout exceeded") ||
		strings.Contains(err.Error(), "context deadline exceeded")
}

// ---------- Bot API wire types ----------

type tgUpdate struct {
	UpdateID int64      `json:"update_id"`
	Message  *tgMessage `json:"message"`
}

type tgMessage struct {
	MessageID int         `json:"message_id"`
	From      *tgUser     `json:"from"`
	Chat      tgChat      `json:"chat"`
	Date      int         `json:"date"`
	Text      string      `json:"text"`
	Caption   string      `json:"caption"`
	Photo     []tgPhoto   `json:"photo"`
	Voice     *tgVoice    `json:"voice"`
	Document  *tgDocument `json:"document"`
}

type tgUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

type tgChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type tgPhoto struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int    `json:"file_size"`
}

type tgVoice struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
	MimeType string `json:"mime_type"`
}

type tgDocument struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
}
