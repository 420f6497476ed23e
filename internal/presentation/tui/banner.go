package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the beamline banner to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text, color string
	}{
		{` _                      _ _`, "#38bdf8"},
		{`| |__   ___  __ _ _ __ | (_)_ __   ___`, "#22d3ee"},
		{`| '_ \ / _ \/ _' | '_ \| | | '_ \ / _ \`, "#2dd4bf"},
		{`| |_) |  __/ (_| | | | | | | | | |  __/`, "#34d399"},
		{`|_.__/ \___|\__,_|_| |_|_|_|_| |_|\___|`, "#4ade80"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
