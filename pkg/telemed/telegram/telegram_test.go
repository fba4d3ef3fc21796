package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeCursor records offsets saved during the test.
type fakeCursor struct {
	offset int64
	saves  int
}

func (c *fakeCursor) Load() (int64, error) { return c.offset, nil }
func (c *fakeCursor) Save(off int64) error {
	c.offset = off
	c.saves++
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc, cursor CursorStore) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		Token:        "TEST",
		AllowedUsers: "*",
		PollLimit:    10,
		PollTimeout:  time.Second,
		BaseURL:      srv.URL,
	}, cursor, nil)
}

func okEnvelope(result any) string {
	data, _ := json.Marshal(map[string]any{"ok": true, "result": result})
	return string(data)
}

func TestPoll_DecodesAndAdvancesOffset(t *testing.T) {
	cursor := &fakeCursor{offset: 5}
	var gotOffset float64

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/getUpdates") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		gotOffset = payload["offset"].(float64)

		fmt.Fprint(w, okEnvelope([]map[string]any{
			{
				"update_id": 10,
				"message": map[string]any{
					"chat": map[string]any{"id": 111},
					"from": map[string]any{"id": 111},
					"text": "/ayuda",
				},
			},
			{
				"update_id": 11,
				"message": map[string]any{
					"chat":  map[string]any{"id": 111},
					"photo": []map[string]any{{"file_id": "small"}, {"file_id": "big"}},
					"caption": "¿qué es esto?",
				},
			},
		}))
	}, cursor)

	events, err := client.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if gotOffset != 5 {
		t.Errorf("requested offset %v, want persisted 5", gotOffset)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Text != "/ayuda" || events[0].ChatID != "111" {
		t.Errorf("text event mismatch: %+v", events[0])
	}
	if events[1].Photo == nil || events[1].Photo.FileID != "big" {
		t.Errorf("photo event must carry the largest size: %+v", events[1].Photo)
	}
	if events[1].Photo.Caption != "¿qué es esto?" {
		t.Errorf("caption lost: %+v", events[1].Photo)
	}
	if cursor.offset != 12 {
		t.Errorf("persisted offset = %d, want 12", cursor.offset)
	}
	if cursor.saves != 1 {
		t.Errorf("cursor saved %d times, want 1", cursor.saves)
	}
}

func TestPoll_EmptyBatchDoesNotTouchCursor(t *testing.T) {
	cursor := &fakeCursor{}
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, okEnvelope([]any{}))
	}, cursor)

	events, err := client.Poll(context.Background())
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("got %d events, want 0", len(events))
	}
	if cursor.saves != 0 {
		t.Errorf("cursor saved on empty batch")
	}
}

func TestPoll_FiltersUnauthorizedButAdvancesOffset(t *testing.T) {
	cursor := &fakeCursor{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, okEnvelope([]map[string]any{
			{
				"update_id": 1,
				"message": map[string]any{
					"chat": map[string]any{"id": 666},
					"text": "hola",
				},
			},
			{
				"update_id": 2,
				"message": map[string]any{
					"chat": map[string]any{"id": 111},
					"text": "hola",
				},
			},
		}))
	}))
	defer srv.Close()

	client := New(Config{
		Token:        "TEST",
		AllowedUsers: "111, 222",
		PollLimit:    10,
		BaseURL:      srv.URL,
	}, cursor, nil)

	events, err := client.Poll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].ChatID != "111" {
		t.Errorf("allowlist filter wrong: %+v", events)
	}
	// Filtered updates are still consumed, or they would be refetched forever.
	if cursor.offset != 3 {
		t.Errorf("offset = %d, want 3", cursor.offset)
	}
}

func TestAllowed(t *testing.T) {
	tests := []struct {
		list   string
		chatID string
		want   bool
	}{
		{"*", "anything", true},
		{"111,222", "111", true},
		{"111, 222", "222", true},
		{"111", "1111", false},
		{"", "111", false},
	}
	for _, tt := range tests {
		c := &Client{cfg: Config{AllowedUsers: tt.list}}
		if got := c.allowed(tt.chatID); got != tt.want {
			t.Errorf("allowed(%q) with list %q = %v, want %v", tt.chatID, tt.list, got, tt.want)
		}
	}
}

func TestSend_FallsBackToPlainText(t *testing.T) {
	var calls []map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		calls = append(calls, payload)
		if _, markdown := payload["parse_mode"]; markdown {
			fmt.Fprint(w, `{"ok": false, "description": "Bad Request: can't parse entities"}`)
			return
		}
		fmt.Fprint(w, okEnvelope(map[string]any{"message_id": 1}))
	}, nil)

	if err := client.Send(context.Background(), "111", "broken *markdown"); err != nil {
		t.Fatalf("Send failed despite plain-text fallback: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("got %d sendMessage calls, want 2", len(calls))
	}
	if _, markdown := calls[1]["parse_mode"]; markdown {
		t.Error("retry still requested markdown parsing")
	}
}

func TestSend_OtherErrorsAreNotRetried(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprint(w, `{"ok": false, "description": "Forbidden: bot was blocked by the user"}`)
	}, nil)

	if err := client.Send(context.Background(), "111", "hola"); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("got %d calls, want 1 (no retry)", calls)
	}
}

func TestDownload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getFile"):
			fmt.Fprint(w, okEnvelope(map[string]any{"file_path": "voice/file_1.ogg"}))
		case strings.Contains(r.URL.Path, "/file/botTEST/voice/file_1.ogg"):
			fmt.Fprint(w, "AUDIODATA")
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}, nil)

	dest := filepath.Join(t.TempDir(), "voice.ogg")
	if err := client.Download(context.Background(), "file-1", dest); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "AUDIODATA" {
		t.Errorf("downloaded %q", data)
	}
}

func TestSendFile_Multipart(t *testing.T) {
	var method, field, caption string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method = r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("not multipart: %v", err)
		}
		caption = r.FormValue("caption")
		for name := range r.MultipartForm.File {
			field = name
		}
		fmt.Fprint(w, okEnvelope(map[string]any{"message_id": 1}))
	}, nil)

	path := filepath.Join(t.TempDir(), "cam.jpg")
	if err := os.WriteFile(path, []byte("jpegdata"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := client.SendFile(context.Background(), "111", path, FilePhoto, "Vista"); err != nil {
		t.Fatalf("SendFile failed: %v", err)
	}
	if method != "sendPhoto" || field != "photo" {
		t.Errorf("method=%s field=%s, want sendPhoto/photo", method, field)
	}
	if caption != "Vista" {
		t.Errorf("caption = %q", caption)
	}
}
