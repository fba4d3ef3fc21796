package store

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// AlertLog is the append-only history of telemetry alerts. Entries are
// immutable once written.
type AlertLog struct {
	path string
}

// Append records one alert line per entry, stamped with ts.
func (s *AlertLog) Append(ts time.Time, patientID string, alerts []string) error {
	if len(alerts) == 0 {
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening alert log: %w", err)
	}
	defer f.Close()
	stamp := ts.Format("2006-01-02 15:04:05")
	for _, a := range alerts {
		if _, err := fmt.Fprintf(f, "[%s] [%s] %s\n", stamp, patientID, a); err != nil {
			return fmt.Errorf("appending alert: %w", err)
		}
	}
	return nil
}

// Tail returns the last n log lines, oldest first.
func (s *AlertLog) Tail(n int) ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading alert log: %w", err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}
