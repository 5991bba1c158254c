package simulator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/unixpickle/essentials"
)

// ErrDeadlock is returned by Run when every Goroutine on
// the loop is waiting and nothing is scheduled to wake
// any of them up.
var ErrDeadlock = errors.New("deadlock: all Handles are polling")

// An EventStream is a uni-directional queue of events that
// are passed through an EventLoop.
//
// It is only safe to use an EventStream on one EventLoop
// at once.
type EventStream struct {
	loop    *EventLoop
	pending []interface{}
}

// An Event is a message received on some EventStream.
//
// If the loop was aborted while a Goroutine was polling,
// the Goroutine receives an Event with a nil Stream and a
// non-nil Err.
type Event struct {
	Message interface{}
	Stream  *EventStream
	Err     error
}

// A Timer controls the delayed delivery of an event.
type Timer struct {
	time  float64
	event *Event
}

// Time gets the virtual time when the timer fires.
func (t *Timer) Time() float64 {
	return t.time
}

// A Handle is a Goroutine's mechanism for accessing an
// EventLoop. Goroutines should not share Handles.
type Handle struct {
	*EventLoop

	// Both fields are nil unless the Goroutine is blocked
	// in Poll.
	pollStreams []*EventStream
	pollChan    chan<- *Event
}

// Poll waits for the next event from a set of streams.
//
// Streams are checked for buffered messages in the order
// they are passed.
func (h *Handle) Poll(streams ...*EventStream) *Event {
	ch := make(chan *Event, 1)
	h.modifyHandles(func() {
		if h.pollStreams != nil {
			panic("Handle is shared between Goroutines")
		}
		if h.abortErr != nil {
			ch <- &Event{Err: h.abortErr}
			return
		}
		for _, stream := range streams {
			if len(stream.pending) > 0 {
				msg := stream.pending[0]
				essentials.OrderedDelete(&stream.pending, 0)
				ch <- &Event{Message: msg, Stream: stream}
				return
			}
		}
		h.pollStreams = streams
		h.pollChan = ch
	})
	return <-ch
}

// Schedule creates a Timer that delivers msg to stream
// after delay units of virtual time.
//
// Once the loop has been aborted, nothing is scheduled and
// the returned Timer never fires.
func (h *Handle) Schedule(stream *EventStream, msg interface{}, delay float64) *Timer {
	if stream.loop != h.EventLoop {
		panic("EventStream is not associated with the correct EventLoop")
	}
	var timer *Timer
	h.modify(func() {
		timer = &Timer{
			time:  h.time + delay,
			event: &Event{Message: msg, Stream: stream},
		}
		if math.IsInf(timer.time, 0) || math.IsNaN(timer.time) {
			panic(fmt.Sprintf("invalid deadline: %f", timer.time))
		}
		if h.abortErr == nil {
			h.timers = append(h.timers, timer)
		}
	})
	return timer
}

// Cancel stops a timer if it is still scheduled.
func (h *Handle) Cancel(t *Timer) {
	h.modify(func() {
		for i, timer := range h.timers {
			if timer == t {
				essentials.UnorderedDelete(&h.timers, i)
				return
			}
		}
	})
}

// Sleep waits for delay units of virtual time.
//
// It returns early with the abort error if the loop is
// aborted while sleeping.
func (h *Handle) Sleep(delay float64) error {
	stream := h.Stream()
	h.Schedule(stream, nil, delay)
	return h.Poll(stream).Err
}

// An EventLoop schedules events for a set of Goroutines
// that communicate only through EventStreams.
//
// All Goroutines which access an EventLoop should be
// started using the EventLoop.Go() method.
//
// Virtual time only advances while every Goroutine is
// polling, so real computation between polls takes no
// virtual time unless a Goroutine explicitly sleeps.
type EventLoop struct {
	lock    sync.Mutex
	timers  []*Timer
	handles []*Handle

	time float64

	running  bool
	abortErr error
	notifyCh chan struct{}
}

// NewEventLoop creates an event loop whose clock starts
// at 0.
func NewEventLoop() *EventLoop {
	return &EventLoop{notifyCh: make(chan struct{}, 1)}
}

// Stream creates a new EventStream.
func (e *EventLoop) Stream() *EventStream {
	return &EventStream{loop: e}
}

// Go runs a function in a Goroutine and passes it a new
// Handle to the EventLoop.
func (e *EventLoop) Go(f func(h *Handle)) {
	h := &Handle{EventLoop: e}
	e.lock.Lock()
	e.handles = append(e.handles, h)
	e.lock.Unlock()
	go func() {
		defer e.modifyHandles(func() {
			for i, handle := range e.handles {
				if handle == h {
					essentials.UnorderedDelete(&e.handles, i)
					return
				}
			}
			panic("cannot free handle that does not exist")
		})
		f(h)
	}()
}

// Run runs the loop until every Goroutine started with Go
// has returned.
//
// Returns ErrDeadlock if the Goroutines can never make
// progress. In that case every polling Goroutine is woken
// with an ErrDeadlock Event so that it can exit.
func (e *EventLoop) Run() error {
	return e.RunContext(context.Background())
}

// RunContext is like Run, but aborts the loop when ctx is
// done.
//
// Aborting wakes every polling Goroutine with an Event
// carrying ctx.Err(), and every later Poll returns such an
// Event immediately. The loop still waits for all of its
// Goroutines to return before RunContext does.
func (e *EventLoop) RunContext(ctx context.Context) error {
	e.lock.Lock()
	if e.running {
		e.lock.Unlock()
		panic("EventLoop is already running.")
	}
	e.running = true
	e.lock.Unlock()

	defer func() {
		e.lock.Lock()
		e.running = false
		e.lock.Unlock()
	}()

	// Kick the loop in case every Goroutine is already
	// polling (or none was ever started).
	select {
	case e.notifyCh <- struct{}{}:
	default:
	}

	done := ctx.Done()
	for {
		select {
		case <-e.notifyCh:
		case <-done:
			done = nil
			e.abort(ctx.Err())
		}
		if shouldContinue, err := e.step(); !shouldContinue {
			return err
		}
	}
}

// MustRun is like Run, but it panics if there is a
// deadlock.
func (e *EventLoop) MustRun() {
	if err := e.Run(); err != nil {
		panic(err)
	}
}

// Time gets the current virtual time.
func (e *EventLoop) Time() float64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.time
}

// Aborted returns the error the loop was aborted with, or
// nil if it is still healthy.
func (e *EventLoop) Aborted() error {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.abortErr
}

func (e *EventLoop) abort(err error) {
	e.modifyHandles(func() {
		e.abortLocked(err)
	})
}

// abortLocked wakes every polling Goroutine with err.
// The caller must hold the loop lock.
func (e *EventLoop) abortLocked(err error) {
	if e.abortErr != nil {
		return
	}
	e.abortErr = err
	e.timers = nil
	for _, h := range e.handles {
		if h.pollChan != nil {
			h.pollChan <- &Event{Err: err}
			h.pollChan = nil
			h.pollStreams = nil
		}
	}
}

// modify calls f while holding the loop lock.
//
// f must not change which handles are polling; use
// modifyHandles for that.
func (e *EventLoop) modify(f func()) {
	e.lock.Lock()
	defer e.lock.Unlock()
	f()
}

// modifyHandles is like modify, but wakes up the loop
// afterwards since scheduling may have changed.
func (e *EventLoop) modifyHandles(f func()) {
	e.lock.Lock()
	defer func() {
		e.lock.Unlock()
		select {
		case e.notifyCh <- struct{}{}:
		default:
		}
	}()
	f()
}

// step delivers the next event, if possible.
//
// The first return value is false once the loop can no
// longer run; the second one says why.
func (e *EventLoop) step() (bool, error) {
	e.lock.Lock()
	defer e.lock.Unlock()

	if len(e.handles) == 0 {
		return false, e.abortErr
	}

	for _, h := range e.handles {
		if len(h.pollStreams) == 0 {
			// A Goroutine is doing work in real time.
			return true, nil
		}
	}

	for len(e.timers) > 0 {
		// Shuffle so that timers with equal deadlines do
		// not fire in a deterministic order.
		indices := rand.Perm(len(e.timers))

		minTimerIdx := indices[0]
		for _, i := range indices[1:] {
			if e.timers[i].time < e.timers[minTimerIdx].time {
				minTimerIdx = i
			}
		}
		timer := e.timers[minTimerIdx]

		essentials.UnorderedDelete(&e.timers, minTimerIdx)
		e.time = math.Max(e.time, timer.time)
		if e.deliver(timer.event) {
			return true, nil
		}
	}

	// Nothing can wake the pollers up, so release them and
	// wait for their Goroutines to return.
	e.abortLocked(ErrDeadlock)
	return true, nil
}

func (e *EventLoop) deliver(event *Event) bool {
	indices := rand.Perm(len(e.handles))
	for _, i := range indices {
		h := e.handles[i]
		for _, stream := range h.pollStreams {
			if stream == event.Stream {
				h.pollChan <- event
				h.pollChan = nil
				h.pollStreams = nil
				return true
			}
		}
	}
	event.Stream.pending = append(event.Stream.pending, event.Message)
	return false
}
