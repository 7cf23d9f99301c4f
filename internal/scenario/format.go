package scenario

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatText summarizes runs one line per file, expanding failed cases
// with the outcome each entry point produced.
func FormatText(results []*RunResult) string {
	var (
		b        strings.Builder
		cases    int
		passed   int
		badFiles int
	)
	noun := "files"
	if len(results) == 1 {
		noun = "file"
	}
	fmt.Fprintf(&b, "Checking %d scenario %s...\n\n", len(results), noun)

	for _, r := range results {
		cases += r.Total
		passed += r.Passed
		status := "PASS"
		if r.Failed > 0 {
			status = "FAIL"
			badFiles++
		}
		fmt.Fprintf(&b, "  %s  %s (%d/%d)\n", status, r.Name, r.Passed, r.Total)
		for _, c := range r.Cases {
			if c.Passed {
				continue
			}
			fmt.Fprintf(&b, "    case %d: %-32s %s\n", c.Index, truncate(c.Name, 32), c.Failure)
			if c.Structured.Decision != "" || c.Raw.Decision != "" {
				fmt.Fprintf(&b, "      structured=%s raw=%s\n", pathLabel(c.Structured), pathLabel(c.Raw))
			}
		}
	}

	fmt.Fprintf(&b, "\n%d of %d cases passed.", passed, cases)
	if badFiles > 0 {
		fmt.Fprintf(&b, " %d of %d scenarios failed.", badFiles, len(results))
	}
	b.WriteByte('\n')
	return b.String()
}

func pathLabel(o PathOutcome) string {
	if o.Reason == "" {
		return o.Decision
	}
	return o.Decision + "/" + o.Reason
}

// FormatJSON is the machine-readable form used by check -f json.
func FormatJSON(results []*RunResult) (string, error) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	return string(data), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
