package plan

import (
	"context"
	"errors"

	"github.com/aretw0/beamline/pkg/domain"
)

// ErrClosed is returned by Yield once the generator has been closed by its consumer.
var ErrClosed = errors.New("plan generator closed")

// Plan is a restartable producer of messages.
// Every call to Generate starts an independent pass from the beginning.
type Plan interface {
	// Generate validates the plan parameters and returns a fresh generator.
	// Validation failures are reported here, before any message is produced.
	Generate() (Generator, error)
}

// Generator is one pass over a plan. It is a two-way stream: every call to Next
// hands the plan the engine's result for the previously returned message.
type Generator interface {
	// Next resumes the plan with the result of the previous message (nil on the
	// first call) and returns the following one. ok is false once the plan is exhausted.
	Next(ctx context.Context, result any) (msg domain.Msg, ok bool, err error)

	// Close releases the generator. Calling Next afterwards reports exhaustion.
	Close()
}

// Hooked is implemented by plans carrying pre-run and post-run hooks.
type Hooked interface {
	Hooks() (pre, post Plan)
}

// Named is implemented by plans that report a human readable name.
type Named interface {
	Name() string
}

// HookSet holds optional plans spliced before and after a plan's main body.
// Embed it to make a plan Hooked.
type HookSet struct {
	PreRun  Plan
	PostRun Plan
}

// Hooks returns the pre-run and post-run plans (either may be nil).
func (h *HookSet) Hooks() (Plan, Plan) {
	return h.PreRun, h.PostRun
}

// NameOf returns p's name, or "plan" when it does not have one.
func NameOf(p Plan) string {
	if n, ok := p.(Named); ok && n.Name() != "" {
		return n.Name()
	}
	return "plan"
}

// Func adapts a body function into a Plan.
func Func(name string, body Body) Plan {
	return &funcPlan{name: name, body: body}
}

type funcPlan struct {
	HookSet
	name string
	body Body
}

func (p *funcPlan) Name() string { return p.name }

func (p *funcPlan) Generate() (Generator, error) {
	return newCoroutine(p.body), nil
}

// Messages returns a plan replaying a fixed list of messages, ignoring results.
func Messages(msgs ...domain.Msg) Plan {
	return &listPlan{msgs: append([]domain.Msg(nil), msgs...)}
}

type listPlan struct {
	HookSet
	msgs []domain.Msg
}

func (p *listPlan) Name() string { return "messages" }

func (p *listPlan) Generate() (Generator, error) {
	return &sliceGenerator{msgs: p.msgs}, nil
}

type sliceGenerator struct {
	msgs []domain.Msg
	pos  int
}

func (g *sliceGenerator) Next(ctx context.Context, _ any) (domain.Msg, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Msg{}, false, err
	}
	if g.pos >= len(g.msgs) {
		return domain.Msg{}, false, nil
	}
	msg := g.msgs[g.pos]
	g.pos++
	return msg, true, nil
}

func (g *sliceGenerator) Close() {
	g.pos = len(g.msgs)
}

// invocation is a one-shot binding of a plan to overridden parameters.
// It shares the parent's hooks and name but never its stored parameters.
type invocation struct {
	parent   Plan
	generate func() (Generator, error)
}

func (i *invocation) Generate() (Generator, error) { return i.generate() }

func (i *invocation) Name() string { return NameOf(i.parent) }

func (i *invocation) Hooks() (Plan, Plan) {
	if h, ok := i.parent.(Hooked); ok {
		return h.Hooks()
	}
	return nil, nil
}
