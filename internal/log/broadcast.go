package log

import (
	"bytes"
	"sync"
)

const subscriberBuffer = 256

// Broadcaster is an io.Writer that splits everything written to it into
// lines and fans each line out to all subscribers. A slow subscriber never
// blocks a write; once its buffer is full the oldest line is dropped.
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[int]chan string
	nextID  int
	partial bytes.Buffer
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan string)}
}

func (b *Broadcaster) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.partial.Write(p)
	for {
		data := b.partial.Bytes()
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := string(bytes.TrimRight(data[:idx], "\r"))
		b.partial.Next(idx + 1)
		if line != "" {
			b.publish(line)
		}
	}
	return len(p), nil
}

// Subscribe returns a channel of log lines and a cancel function. The cancel
// function must be called to release the subscription; the channel is closed
// by it.
func (b *Broadcaster) Subscribe() (<-chan string, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan string, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (b *Broadcaster) publish(line string) {
	for _, ch := range b.subs {
		select {
		case ch <- line:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- line:
			default:
			}
		}
	}
}
