package watcher

import (
	"sort"
	"sync"
	"time"
)

// Debouncer coalesces rapid file events to prevent index thrashing.
// Events for the same path within the debounce window are merged according
// to these rules:
//   - CREATE + MODIFY = CREATE (file is still new)
//   - CREATE + DELETE = nothing (file never really existed)
//   - MODIFY + DELETE = DELETE (file is gone)
//   - DELETE + CREATE = MODIFY (file was replaced)
//
// Flushed batches are delivered in order. A slow consumer delays delivery
// but never causes a batch to be dropped.
type Debouncer struct {
	window  time.Duration
	pending map[string]*pendingEvent
	seq     uint64
	mu      sync.Mutex
	timer   *time.Timer

	ready  [][]FileEvent
	wake   chan struct{}
	output chan []FileEvent
	stopCh chan struct{}
	done   chan struct{}

	stopped bool
}

type pendingEvent struct {
	event   FileEvent
	firstOp Operation // Track the first operation for coalescing
	seq     uint64
}

// NewDebouncer creates a new debouncer with the given window duration.
func NewDebouncer(window time.Duration) *Debouncer {
	d := &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		wake:    make(chan struct{}, 1),
		output:  make(chan []FileEvent),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	go d.pump()
	return d
}

// Add adds an event to be debounced.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	d.seq++
	path := event.Path
	if existing, ok := d.pending[path]; ok {
		coalesced := coalesce(existing, event)
		if coalesced == nil {
			// Events cancelled each other out (CREATE + DELETE)
			delete(d.pending, path)
		} else {
			existing.event = *coalesced
			existing.seq = d.seq
		}
	} else {
		d.pending[path] = &pendingEvent{
			event:   event,
			firstOp: event.Operation,
			seq:     d.seq,
		}
	}

	d.scheduleFlush()
}

// coalesce merges two events according to the coalescing rules.
// Returns nil if the events cancel each other out.
func coalesce(existing *pendingEvent, next FileEvent) *FileEvent {
	switch existing.firstOp {
	case OpCreate:
		switch next.Operation {
		case OpModify:
			kept := existing.event
			kept.Timestamp = next.Timestamp
			return &kept
		case OpDelete, OpRename:
			return nil
		}

	case OpDelete:
		if next.Operation == OpCreate {
			replaced := next
			replaced.Operation = OpModify
			return &replaced
		}
	}

	merged := next
	if (next.Operation == OpDelete || next.Operation == OpRename) && existing.event.IsDir {
		// A directory's own removal may be reported again without the flag.
		merged.IsDir = true
	}
	return &merged
}

func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush moves pending events, oldest change first, onto the delivery queue.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]*pendingEvent, 0, len(d.pending))
	for _, pe := range d.pending {
		batch = append(batch, pe)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].seq < batch[j].seq })

	events := make([]FileEvent, len(batch))
	for i, pe := range batch {
		events[i] = pe.event
	}
	d.pending = make(map[string]*pendingEvent)
	d.ready = append(d.ready, events)

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// pump delivers flushed batches to output in order.
func (d *Debouncer) pump() {
	defer close(d.done)
	defer close(d.output)
	for {
		select {
		case <-d.stopCh:
			return
		case <-d.wake:
		}
		for {
			d.mu.Lock()
			if len(d.ready) == 0 {
				d.mu.Unlock()
				break
			}
			batch := d.ready[0]
			d.ready[0] = nil
			d.ready = d.ready[1:]
			d.mu.Unlock()

			select {
			case d.output <- batch:
			case <-d.stopCh:
				return
			}
		}
	}
}

// Output returns the channel of debounced events.
// Events are emitted as batches after the debounce window.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Pending returns the number of events not yet delivered.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.pending)
	for _, b := range d.ready {
		n += len(b)
	}
	return n
}

// Stop stops the debouncer and closes the output channel. Undelivered
// events are discarded. Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.stopCh)
	d.mu.Unlock()

	<-d.done
}
