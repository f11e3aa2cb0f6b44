package status

import (
	"sync"
	"time"
)

type State string

const (
	StateStarting  State = "starting"
	StateProbing   State = "probing"
	StatePreflight State = "preflight"
	StateRunning   State = "running"
	StateWaiting   State = "waiting"
	StateStopped   State = "stopped"
)

// Snapshot is the externally visible run state. It never carries the ingest
// URL or stream key; anything in here may end up on a status endpoint.
type Snapshot struct {
	State          State     `json:"state"`
	RunID          string    `json:"run_id"`
	Encoder        string    `json:"encoder,omitempty"`
	ItemID         string    `json:"item_id,omitempty"`
	ItemTitle      string    `json:"item_title,omitempty"`
	ItemIndex      int       `json:"item_index,omitempty"`
	ItemCount      int       `json:"item_count,omitempty"`
	ItemsCompleted int       `json:"items_completed"`
	ItemsFailed    int       `json:"items_failed"`
	StartedAt      time.Time `json:"started_at"`
}

const subscriberBuffer = 16

// Publisher holds the current snapshot and fans out every change to
// subscribers. Slow subscribers lose their oldest updates, never block the
// relay.
type Publisher struct {
	mu      sync.Mutex
	current Snapshot
	subs    map[int]chan Snapshot
	nextID  int
}

func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[int]chan Snapshot)}
}

func (p *Publisher) Current() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Update applies mutate to the current snapshot and publishes the result.
func (p *Publisher) Update(mutate func(*Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	mutate(&p.current)
	for _, ch := range p.subs {
		select {
		case ch <- p.current:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- p.current:
			default:
			}
		}
	}
}

// Subscribe returns a channel of snapshots and a cancel function that
// releases the subscription and closes the channel.
func (p *Publisher) Subscribe() (<-chan Snapshot, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	ch := make(chan Snapshot, subscriberBuffer)
	p.subs[id] = ch

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
