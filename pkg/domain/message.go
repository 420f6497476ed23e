package domain

import "fmt"

// Command identifies one operation of the interpreter's closed vocabulary.
type Command string

const (
	// CmdSet moves or assigns a device. Payload: Args[0] is the target value.
	// A "group" kwarg makes the set fire-and-forget until a matching CmdWait.
	CmdSet Command = "set"
	// CmdRead asks a device for its current readings.
	CmdRead Command = "read"
	// CmdTrigger starts an acquisition on a detector. Groupable like CmdSet.
	CmdTrigger Command = "trigger"
	// CmdCreate opens a new event bundle.
	CmdCreate Command = "create"
	// CmdSave closes the open bundle and publishes it as an event document.
	CmdSave Command = "save"
	// CmdSleep suspends the run. Args[0] is a time.Duration or seconds as a number.
	CmdSleep Command = "sleep"
	// CmdWaitFor suspends until Args[0] resolves (channel, Status or func(ctx) error).
	CmdWaitFor Command = "wait_for"
	// CmdWait suspends until every grouped operation tagged with Args[0] completes.
	CmdWait Command = "wait"
	// CmdNull does nothing.
	CmdNull Command = "null"
)

// KeyGroup is the kwarg naming the completion group of a set or trigger.
const KeyGroup = "group"

var commands = map[Command]struct{}{
	CmdSet:     {},
	CmdRead:    {},
	CmdTrigger: {},
	CmdCreate:  {},
	CmdSave:    {},
	CmdSleep:   {},
	CmdWaitFor: {},
	CmdWait:    {},
	CmdNull:    {},
}

// Valid reports whether c belongs to the vocabulary.
func (c Command) Valid() bool {
	_, ok := commands[c]
	return ok
}

// Target is anything a message can be addressed to.
// Concrete capabilities (read, set, trigger) are described in package ports.
type Target interface {
	Name() string
}

// Msg is one instruction for the interpreter.
// It is treated as immutable: helpers return modified copies.
type Msg struct {
	Command Command
	Target  Target
	Args    []any
	Kwargs  map[string]any
}

// NewMsg builds a message with positional arguments.
func NewMsg(cmd Command, target Target, args ...any) Msg {
	return Msg{Command: cmd, Target: target, Args: args}
}

// With returns a copy of m carrying the extra kwarg.
func (m Msg) With(key string, value any) Msg {
	kw := make(map[string]any, len(m.Kwargs)+1)
	for k, v := range m.Kwargs {
		kw[k] = v
	}
	kw[key] = value
	m.Kwargs = kw
	if m.Args != nil {
		m.Args = append([]any(nil), m.Args...)
	}
	return m
}

// Arg returns the i-th positional argument, or nil.
func (m Msg) Arg(i int) any {
	if i < 0 || i >= len(m.Args) {
		return nil
	}
	return m.Args[i]
}

// Group returns the completion group label, if any.
func (m Msg) Group() (string, bool) {
	g, ok := m.Kwargs[KeyGroup].(string)
	return g, ok && g != ""
}

// TargetName returns the target's name or an empty string for engine commands.
func (m Msg) TargetName() string {
	if m.Target == nil {
		return ""
	}
	return m.Target.Name()
}

func (m Msg) String() string {
	return fmt.Sprintf("Msg(%s, %s, %v, %v)", m.Command, m.TargetName(), m.Args, m.Kwargs)
}

// Set is shorthand for a set message.
func Set(target Target, value any) Msg { return NewMsg(CmdSet, target, value) }

// Read is shorthand for a read message.
func Read(target Target) Msg { return NewMsg(CmdRead, target) }

// Trigger is shorthand for a trigger message.
func Trigger(target Target) Msg { return NewMsg(CmdTrigger, target) }

// Create is shorthand for a create message.
func Create() Msg { return NewMsg(CmdCreate, nil) }

// Save is shorthand for a save message.
func Save() Msg { return NewMsg(CmdSave, nil) }

// Sleep is shorthand for a sleep message.
func Sleep(d any) Msg { return NewMsg(CmdSleep, nil, d) }

// WaitFor is shorthand for a wait_for message.
func WaitFor(awaitable any) Msg { return NewMsg(CmdWaitFor, nil, awaitable) }

// Wait is shorthand for a wait message on a group.
func Wait(group string) Msg { return NewMsg(CmdWait, nil, group) }
