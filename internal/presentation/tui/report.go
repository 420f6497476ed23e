package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/beamline/pkg/dispatch"
	"github.com/aretw0/beamline/pkg/domain"
)

// RunReport renders the summary of a run as markdown. events may be empty.
func RunReport(res *domain.RunResult, runErr error, events []domain.Event) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Run %s\n\n", res.PlanName)
	sb.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&sb, "| UID | `%s` |\n", res.UID)
	fmt.Fprintf(&sb, "| Status | **%s** |\n", res.Status)
	fmt.Fprintf(&sb, "| Events | %d |\n", res.NumEvents)
	fmt.Fprintf(&sb, "| Duration | %s |\n", res.Duration().Round(time.Millisecond))
	if res.Reason != "" {
		fmt.Fprintf(&sb, "| Reason | %s |\n", res.Reason)
	}
	if runErr != nil && res.Status != domain.StatusCompleted {
		fmt.Fprintf(&sb, "\n> %s\n", runErr)
	}

	if len(events) == 0 {
		return sb.String()
	}

	fields := eventFields(events)
	sb.WriteString("\n## Events\n\n| seq | " + strings.Join(fields, " | ") + " |\n")
	sb.WriteString("|---" + strings.Repeat("|---", len(fields)) + "|\n")
	for _, ev := range events {
		cells := make([]string, len(fields))
		for i, f := range fields {
			if v, ok := ev.Data[f]; ok {
				cells[i] = dispatch.FormatValue(v)
			}
		}
		fmt.Fprintf(&sb, "| %d | %s |\n", ev.Seq, strings.Join(cells, " | "))
	}
	return sb.String()
}

func eventFields(events []domain.Event) []string {
	seen := make(map[string]bool)
	var fields []string
	for _, ev := range events {
		for k := range ev.Data {
			if !seen[k] {
				seen[k] = true
				fields = append(fields, k)
			}
		}
	}
	sort.Strings(fields)
	return fields
}
