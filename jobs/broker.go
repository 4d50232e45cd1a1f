package jobs

import "sync"

// Broker fans job events out to subscribers. Each subscriber gets the latest
// event on subscription, and its channel is closed once the job reaches a
// terminal state.
type Broker struct {
	mu     sync.Mutex
	buffer int
	nextID int
	subs   map[string]map[int]chan Event
	last   map[string]Event
	done   map[string]bool
}

// NewBroker creates a broker whose subscriber channels hold buffer events.
func NewBroker(buffer int) *Broker {
	if buffer < 1 {
		buffer = 16
	}
	return &Broker{
		buffer: buffer,
		subs:   make(map[string]map[int]chan Event),
		last:   make(map[string]Event),
		done:   make(map[string]bool),
	}
}

// Subscribe returns a channel of events for jobID and a function that releases it.
func (b *Broker) Subscribe(jobID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	if ev, ok := b.last[jobID]; ok {
		ch <- ev
	}
	if b.done[jobID] {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[int]chan Event)
	}
	b.subs[jobID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[jobID][id]; ok {
				delete(b.subs[jobID], id)
				close(c)
			}
		})
	}
}

// Publish delivers ev to every subscriber without blocking. A slow subscriber
// loses its oldest buffered event. Terminal events close all subscriptions.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.done[ev.JobID] {
		return
	}
	b.last[ev.JobID] = ev
	for _, ch := range b.subs[ev.JobID] {
		send(ch, ev)
	}
	if ev.Status.IsTerminal() {
		for id, ch := range b.subs[ev.JobID] {
			close(ch)
			delete(b.subs[ev.JobID], id)
		}
		delete(b.subs, ev.JobID)
		b.done[ev.JobID] = true
	}
}

// Forget drops the retained state of a job.
func (b *Broker) Forget(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.last, jobID)
	delete(b.done, jobID)
}

func send(ch chan Event, ev Event) {
	for {
		select {
		case ch <- ev:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
