package store

import (
	"fmt"
	"os"
)

// Turn is one entry of the persisted conversation history.
type Turn struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// historyLimit caps how many turns are kept and fed back into the model.
const historyLimit = 10

// HistoryStore persists the multi-turn conversation context behind the
// free-form chat fallback. One shared conversation, trimmed to the most
// recent turns on every read and append.
type HistoryStore struct {
	path string
}

// List returns the retained turns, oldest first.
func (s *HistoryStore) List() ([]Turn, error) {
	var turns []Turn
	if err := readJSON(s.path, &turns); err != nil {
		return nil, err
	}
	if len(turns) > historyLimit {
		turns = turns[len(turns)-historyLimit:]
	}
	return turns, nil
}

// Append adds turns to the history and trims it to the retention limit.
func (s *HistoryStore) Append(turns ...Turn) error {
	existing, err := s.List()
	if err != nil {
		return err
	}
	all := append(existing, turns...)
	if len(all) > historyLimit {
		all = all[len(all)-historyLimit:]
	}
	return writeJSON(s.path, all)
}

// Clear deletes the whole conversation.
func (s *HistoryStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing chat history: %w", err)
	}
	return nil
}
