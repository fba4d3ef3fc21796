package store

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Cursor persists the last consumed transport update ID so a restart resumes
// after the newest update already fetched.
type Cursor struct {
	path string
}

// Load returns the stored offset, or 0 when none has been persisted yet.
func (c *Cursor) Load() (int64, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading cursor: %w", err)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// Save persists offset atomically.
func (c *Cursor) Save(offset int64) error {
	return writeAtomic(c.path, []byte(strconv.FormatInt(offset, 10)))
}
