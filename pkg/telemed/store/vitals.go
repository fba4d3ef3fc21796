package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/tecven/telemed/pkg/telemed/vitals"
)

// VitalsStore persists the patient telemetry map keyed by patient ID.
type VitalsStore struct {
	path string
}

// Load returns the patient map. Two repairs happen on load: the legacy
// single-record format (a bare record with heart_rate at the top level) is
// migrated to patient SIM-001, and any SpO2 persisted below 90 is lifted to
// 93 so a crash during a simulated crisis cannot strand a patient in a
// permanently alerting state.
func (s *VitalsStore) Load() (map[string]*vitals.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*vitals.Record{}, nil
		}
		return nil, fmt.Errorf("reading vitals file: %w", err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return map[string]*vitals.Record{}, nil
	}
	if _, legacy := probe["heart_rate"]; legacy {
		var rec vitals.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return map[string]*vitals.Record{}, nil
		}
		return map[string]*vitals.Record{"SIM-001": &rec}, nil
	}

	patients := map[string]*vitals.Record{}
	if err := json.Unmarshal(data, &patients); err != nil {
		return map[string]*vitals.Record{}, nil
	}
	for _, rec := range patients {
		if rec.SpO2 < 90 {
			rec.SpO2 = 93
		}
	}
	return patients, nil
}

// Save rewrites the patient map.
func (s *VitalsStore) Save(patients map[string]*vitals.Record) error {
	return writeJSON(s.path, patients)
}

// NextID returns the next free auto-assigned patient ID (SIM-001, SIM-002...).
func NextID(patients map[string]*vitals.Record) string {
	max := 0
	for pid := range patients {
		rest, ok := strings.CutPrefix(pid, "SIM-")
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("SIM-%03d", max+1)
}

// SortedIDs returns the patient IDs in stable order for listings.
func SortedIDs(patients map[string]*vitals.Record) []string {
	ids := make([]string, 0, len(patients))
	for pid := range patients {
		ids = append(ids, pid)
	}
	sort.Strings(ids)
	return ids
}
