package plan_test

import (
	"context"

	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/plan"
	"github.com/aretw0/beamline/pkg/ports"
)

func simulate(ctx context.Context) plan.Responder {
	return plan.Simulate(ctx)
}

func commands(msgs []domain.Msg) []domain.Command {
	out := make([]domain.Command, len(msgs))
	for i, m := range msgs {
		out[i] = m.Command
	}
	return out
}

// setpoints returns the values sent to target, in order.
func setpoints(msgs []domain.Msg, target string) []float64 {
	var out []float64
	for _, m := range msgs {
		if m.Command == domain.CmdSet && m.TargetName() == target {
			v, _ := plan.AsFloat(m.Arg(0))
			out = append(out, v)
		}
	}
	return out
}

func countOf(msgs []domain.Msg, cmd domain.Command) int {
	n := 0
	for _, m := range msgs {
		if m.Command == cmd {
			n++
		}
	}
	return n
}

func readers(r ...ports.Readable) []ports.Readable { return r }
