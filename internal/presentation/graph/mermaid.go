package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/beamline/pkg/domain"
)

// SequenceOptions tunes the diagram.
type SequenceOptions struct {
	// Title is shown above the diagram when set.
	Title string
	// MaxMessages truncates long plans. Zero means no limit.
	MaxMessages int
}

// GenerateMermaid produces a Mermaid sequence diagram of the messages a plan
// emits. Device commands become arrows from the plan to the device:
// - set/trigger: solid arrow, async (open arrow) when grouped
// - read: dashed arrow
// - create/save: note over the plan marking the bundle
// - sleep/wait/wait_for: note over the plan
func GenerateMermaid(msgs []domain.Msg, opts SequenceOptions) string {
	var sb strings.Builder
	sb.WriteString("sequenceDiagram\n")
	if opts.Title != "" {
		fmt.Fprintf(&sb, "    title %s\n", escape(opts.Title))
	}
	sb.WriteString("    participant plan\n")

	declared := make(map[string]bool)
	for _, m := range msgs {
		name := m.TargetName()
		if name == "" || declared[name] {
			continue
		}
		declared[name] = true
		fmt.Fprintf(&sb, "    participant %s as %s\n", sanitizeMermaidID(name), escape(name))
	}

	for i, m := range msgs {
		if opts.MaxMessages > 0 && i >= opts.MaxMessages {
			fmt.Fprintf(&sb, "    Note over plan: ... %d more messages\n", len(msgs)-i)
			break
		}
		target := sanitizeMermaidID(m.TargetName())
		switch m.Command {
		case domain.CmdSet, domain.CmdTrigger:
			arrow := "->>"
			label := string(m.Command)
			if m.Command == domain.CmdSet {
				label = fmt.Sprintf("set %v", m.Arg(0))
			}
			if group, ok := m.Group(); ok {
				arrow = "-)"
				label += " [" + group + "]"
			}
			fmt.Fprintf(&sb, "    plan%s%s: %s\n", arrow, target, escape(label))
		case domain.CmdRead:
			fmt.Fprintf(&sb, "    plan-->>%s: read\n", target)
		case domain.CmdCreate:
			sb.WriteString("    Note over plan: create\n")
		case domain.CmdSave:
			sb.WriteString("    Note over plan: save event\n")
		case domain.CmdWait:
			fmt.Fprintf(&sb, "    Note over plan: wait %v\n", m.Arg(0))
		case domain.CmdSleep:
			fmt.Fprintf(&sb, "    Note over plan: sleep %v\n", m.Arg(0))
		case domain.CmdWaitFor:
			sb.WriteString("    Note over plan: wait_for\n")
		}
	}

	return sb.String()
}

func escape(s string) string {
	s = strings.ReplaceAll(s, ";", ",")
	return strings.ReplaceAll(s, "#", "")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
