package dispatch

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/spf13/cast"
)

const cellWidth = 12

// Table returns a callback printing one row per event with the given fields,
// preceded by a header at run start and followed by a summary at run stop.
// Subscribe it to domain.DocAll.
func Table(w io.Writer, fields ...string) Callback {
	return func(_ context.Context, doc domain.Document) error {
		var line string
		switch d := doc.(type) {
		case domain.RunStart:
			cells := []string{pad("seq")}
			for _, f := range fields {
				cells = append(cells, pad(f))
			}
			line = strings.Join(cells, " ")
		case domain.Event:
			cells := []string{pad(fmt.Sprint(d.Seq))}
			for _, f := range fields {
				cells = append(cells, pad(FormatValue(d.Data[f])))
			}
			line = strings.Join(cells, " ")
		case domain.RunStop:
			line = fmt.Sprintf("run %s %s after %d events", shortUID(d.RunUID), d.ExitStatus, d.NumEvents)
		default:
			return nil
		}
		_, err := fmt.Fprintln(w, line)
		return err
	}
}

func pad(s string) string {
	return fmt.Sprintf("%*s", cellWidth, s)
}

// FormatValue renders a reading the way tables show it: numbers with four
// significant digits, "-" for missing values.
func FormatValue(v any) string {
	if v == nil {
		return "-"
	}
	if _, isString := v.(string); !isString {
		if f, err := cast.ToFloat64E(v); err == nil {
			return fmt.Sprintf("%.4g", f)
		}
	}
	return cast.ToString(v)
}

func shortUID(uid string) string {
	if len(uid) > 8 {
		return uid[:8]
	}
	return uid
}
