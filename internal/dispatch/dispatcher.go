// Package dispatch hands decoded events and status notices from the capture
// worker to the presentation side without ever blocking the worker.
package dispatch

import (
	"fmt"
	"sync"

	"netinspect/internal/log"
	"netinspect/internal/models"
)

// Sink renders what the dispatcher delivers. Calls are made from a single
// goroutine, in submission order.
type Sink interface {
	Render(ev models.Event)
	Notice(msg string)
}

type item struct {
	event  models.Event
	notice string
	isNote bool
}

// Dispatcher is an unbounded FIFO drained by one delivery goroutine.
type Dispatcher struct {
	sink Sink

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []item
	busy   bool
	closed bool
	done   chan struct{}
}

// New starts a dispatcher delivering to sink.
func New(sink Sink) *Dispatcher {
	d := &Dispatcher{sink: sink, done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// Submit queues ev for rendering. It returns false once the dispatcher is
// closed, in which case ev is dropped.
func (d *Dispatcher) Submit(ev models.Event) bool {
	return d.push(item{event: ev})
}

// Post queues a formatted status notice.
func (d *Dispatcher) Post(format string, args ...any) bool {
	return d.push(item{notice: fmt.Sprintf(format, args...), isNote: true})
}

func (d *Dispatcher) push(it item) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.queue = append(d.queue, it)
	d.cond.Broadcast()
	return true
}

// Pending returns the number of queued, undelivered items.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Drain blocks until everything queued so far has been delivered, or the
// dispatcher is closed.
func (d *Dispatcher) Drain() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for (len(d.queue) > 0 || d.busy) && !d.closed {
		d.cond.Wait()
	}
}

// Close drops pending items and stops delivery. An item being rendered
// when Close is called finishes first.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	dropped := len(d.queue)
	d.closed = true
	d.queue = nil
	d.cond.Broadcast()
	d.mu.Unlock()

	<-d.done
	if dropped > 0 {
		log.L().WithField("dropped", dropped).Debug("dispatcher closed with pending items")
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.closed {
			d.mu.Unlock()
			return
		}
		it := d.queue[0]
		d.queue[0] = item{}
		d.queue = d.queue[1:]
		d.busy = true
		d.mu.Unlock()

		d.deliver(it)

		d.mu.Lock()
		d.busy = false
		d.cond.Broadcast()
		d.mu.Unlock()
	}
}

func (d *Dispatcher) deliver(it item) {
	defer func() {
		if r := recover(); r != nil {
			log.L().WithField("panic", r).Error("sink panicked while rendering")
		}
	}()
	if it.isNote {
		d.sink.Notice(it.notice)
		return
	}
	d.sink.Render(it.event)
}
