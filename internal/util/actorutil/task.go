package actorutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/primetalk/goio/io"
)

var errNilResult = errors.New("background task returned nil")

// SafeBackgroundTask runs blocking work, typically a device round trip, away
// from the actor and delivers the outcome as a message. Panics and timeouts
// are turned into errors and handed to the Recover function.
type SafeBackgroundTask[T any] struct {
	ctx     actor.Context
	fn      func() *T
	timeout time.Duration
	recover func(error) T
	deliver func(T)
}

func NewBackgroundTaskNoError[T any](ctx actor.Context, fn func() *T) *SafeBackgroundTask[T] {
	return &SafeBackgroundTask[T]{ctx: ctx, fn: fn}
}

// WithTimeout bounds the whole task. Zero means no bound.
func (t *SafeBackgroundTask[T]) WithTimeout(timeout time.Duration) *SafeBackgroundTask[T] {
	t.timeout = timeout
	return t
}

func (t *SafeBackgroundTask[T]) Recover(fn func(error) T) *SafeBackgroundTask[T] {
	t.recover = fn
	return t
}

// PipeToAsync starts the task on its own goroutine and sends the result to
// pid through the root context.
func (t *SafeBackgroundTask[T]) PipeToAsync(pid *actor.PID) {
	root := t.ctx.ActorSystem().Root
	t.deliver = func(value T) {
		root.Send(pid, value)
	}
	go t.Run()
}

func (t *SafeBackgroundTask[T]) eval() (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("background task panic: %v", r)
		}
	}()
	result := t.fn()
	if result == nil {
		return value, errNilResult
	}
	return *result, nil
}

// Run executes the task on the calling goroutine. Without a Recover function
// failed tasks deliver nothing.
func (t *SafeBackgroundTask[T]) Run() {
	task := io.Eval(t.eval)
	if t.timeout > 0 {
		task = io.WithTimeout[T](t.timeout)(task)
	}

	result := io.RunSync(task)
	value := result.Value
	if result.Error != nil {
		if t.recover == nil {
			return
		}
		value = t.recover(result.Error)
	}
	if t.deliver != nil {
		t.deliver(value)
	}
}
