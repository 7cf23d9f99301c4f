package audit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const separator = "------------------------------------------------------------------"

// FormatTimeline renders a replay as a text timeline.
func FormatTimeline(result *ReplayResult) string {
	label := result.Filter
	if label == "" {
		label = "all entries"
	}
	if len(result.Entries) == 0 {
		return fmt.Sprintf("Audit: %s | No entries found.\n", label)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Audit: %s | %s to %s UTC\n", label,
		formatTime(result.Summary.FirstTimestamp, "2006-01-02 15:04:05"),
		formatTime(result.Summary.LastTimestamp, "15:04:05"))
	b.WriteString(separator + "\n")
	for _, e := range result.Entries {
		decision := strings.ToUpper(e.Decision)
		if e.Mutated {
			decision += "*"
		}
		op := e.Action.Op
		if e.Action.Path != "" {
			op += "/" + e.Action.Path
		}
		fmt.Fprintf(&b, "%-10s %-7s %-20s %-12s %s\n",
			formatTime(e.Timestamp, "15:04:05"), decision, truncate(op, 20),
			truncate(e.Action.Subject, 12), e.Reason)
	}
	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))
	return b.String()
}

// FormatJSON renders a replay as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func formatTime(ts, layout string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format(layout)
}

func formatSummary(s ReplaySummary) string {
	parts := []string{fmt.Sprintf("%d allow", s.AllowCount), fmt.Sprintf("%d deny", s.DenyCount)}
	if s.AdminCount > 0 {
		parts = append(parts, fmt.Sprintf("%d admin", s.AdminCount))
	}
	if s.MutationCount > 0 {
		parts = append(parts, fmt.Sprintf("%d claimed", s.MutationCount))
	}
	out := "Summary: " + strings.Join(parts, ", ")

	if len(s.Reasons) > 0 {
		reasons := make([]string, 0, len(s.Reasons))
		for r := range s.Reasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for i, r := range reasons {
			reasons[i] = fmt.Sprintf("%s=%d", r, s.Reasons[r])
		}
		out += " | " + strings.Join(reasons, " ")
	}
	return out + "\n"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
