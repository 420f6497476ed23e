package plan

import (
	"context"
	"sync"

	"github.com/aretw0/beamline/pkg/domain"
)

// Yield hands a message to the consumer and blocks until its result comes back.
type Yield func(msg domain.Msg) (any, error)

// Body is the code of a plan written in direct style. It returns nil when the
// plan is exhausted, domain.ErrStop to end the run early, or any other error to fail it.
// Errors returned by yield must be propagated.
type Body func(ctx context.Context, yield Yield) error

type step struct {
	msg  domain.Msg
	err  error
	done bool
}

// coroutine runs a Body on its own goroutine and exchanges one message at a
// time with the consumer, so the body never runs ahead of the engine.
type coroutine struct {
	body Body

	ctx    context.Context
	cancel context.CancelFunc
	resume chan any
	out    chan step
	exited chan struct{}

	started  bool
	finished bool
	once     sync.Once
}

func newCoroutine(body Body) *coroutine {
	ctx, cancel := context.WithCancel(context.Background())
	return &coroutine{
		body:   body,
		ctx:    ctx,
		cancel: cancel,
		resume: make(chan any),
		out:    make(chan step),
		exited: make(chan struct{}),
	}
}

func (c *coroutine) yield(msg domain.Msg) (any, error) {
	select {
	case c.out <- step{msg: msg}:
	case <-c.ctx.Done():
		return nil, ErrClosed
	}
	select {
	case result := <-c.resume:
		return result, nil
	case <-c.ctx.Done():
		return nil, ErrClosed
	}
}

func (c *coroutine) run() {
	defer close(c.exited)
	err := c.body(c.ctx, c.yield)
	select {
	case c.out <- step{done: true, err: err}:
	case <-c.ctx.Done():
	}
}

// Next implements Generator.
func (c *coroutine) Next(ctx context.Context, result any) (domain.Msg, bool, error) {
	if c.finished {
		return domain.Msg{}, false, nil
	}
	if !c.started {
		c.started = true
		go c.run()
	} else {
		select {
		case c.resume <- result:
		case <-ctx.Done():
			return domain.Msg{}, false, ctx.Err()
		case <-c.ctx.Done():
			c.finished = true
			return domain.Msg{}, false, nil
		}
	}
	select {
	case s := <-c.out:
		if s.done {
			c.finished = true
			return domain.Msg{}, false, s.err
		}
		return s.msg, true, nil
	case <-ctx.Done():
		return domain.Msg{}, false, ctx.Err()
	}
}

// Close stops the body and waits for its goroutine to exit.
func (c *coroutine) Close() {
	c.once.Do(func() {
		c.finished = true
		c.cancel()
		if c.started {
			<-c.exited
		}
	})
}
