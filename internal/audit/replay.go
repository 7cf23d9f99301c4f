package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ReplayFilter selects entries for replay. Empty fields match everything.
type ReplayFilter struct {
	TraceID string
	Subject string
	Reason  string
	From    time.Time
	To      time.Time
}

func (f ReplayFilter) match(e AuditEntry) bool {
	if f.TraceID != "" && e.TraceID != f.TraceID {
		return false
	}
	if f.Subject != "" && e.Action.Subject != f.Subject {
		return false
	}
	if f.Reason != "" && e.Reason != f.Reason {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	ts, err := time.Parse(TimestampFormat, e.Timestamp)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && ts.Before(f.From) {
		return false
	}
	return f.To.IsZero() || !ts.After(f.To)
}

// ReplaySummary counts the decisions in a replay.
type ReplaySummary struct {
	Total          int            `json:"total"`
	AllowCount     int            `json:"allow_count"`
	DenyCount      int            `json:"deny_count"`
	AdminCount     int            `json:"admin_count"`
	MutationCount  int            `json:"mutation_count"`
	Reasons        map[string]int `json:"reasons,omitempty"`
	FirstTimestamp string         `json:"first_timestamp"`
	LastTimestamp  string         `json:"last_timestamp"`
}

// ReplayResult holds the matching entries and their summary.
type ReplayResult struct {
	Filter  string        `json:"filter,omitempty"`
	Entries []AuditEntry  `json:"entries"`
	Summary ReplaySummary `json:"summary"`
}

// Replay reads the log at path and returns the entries matching filter.
// Malformed lines are skipped; Verify reports them.
func Replay(path string, filter ReplayFilter) (*ReplayResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	result := &ReplayResult{Filter: describe(filter)}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		var entry AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		if !filter.match(entry) {
			continue
		}
		result.Entries = append(result.Entries, entry)
		result.Summary.add(entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	return result, nil
}

func (s *ReplaySummary) add(e AuditEntry) {
	s.Total++
	switch {
	case e.Type == TypeAdmin:
		s.AdminCount++
	case e.Decision == "allow":
		s.AllowCount++
	case e.Decision == "deny":
		s.DenyCount++
	}
	if e.Mutated {
		s.MutationCount++
	}
	if e.Reason != "" {
		if s.Reasons == nil {
			s.Reasons = make(map[string]int)
		}
		s.Reasons[e.Reason]++
	}
	if s.FirstTimestamp == "" {
		s.FirstTimestamp = e.Timestamp
	}
	s.LastTimestamp = e.Timestamp
}

func describe(f ReplayFilter) string {
	switch {
	case f.TraceID != "":
		return "trace " + f.TraceID
	case f.Subject != "":
		return "subject " + f.Subject
	case f.Reason != "":
		return "reason " + f.Reason
	}
	return ""
}
