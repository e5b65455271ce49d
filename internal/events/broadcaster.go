// Package events implements per-task publish/subscribe fan-out of task
// updates.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/fairyhunter13/price-hunter/internal/model"
	"github.com/fairyhunter13/price-hunter/internal/obs"
)

// Subscription is one observer's binding to a task's update stream. It is
// valid until Unsubscribe or until the task's topic is closed.
type Subscription struct {
	taskID string
	ch     chan model.Update
	once   sync.Once
	b      *Broadcaster
}

// Updates returns the channel of updates. It is closed when the
// subscription ends, either via Unsubscribe or after the terminal update.
func (s *Subscription) Updates() <-chan model.Update { return s.ch }

// Unsubscribe releases the subscription. Safe to call multiple times and
// after the topic has already been closed.
func (s *Subscription) Unsubscribe() {
	s.b.remove(s)
}

type topic struct {
	seq  uint64
	subs map[*Subscription]struct{}
}

// Broadcaster delivers updates for a task, in publish order, to every
// active subscription. Publishing never blocks: a subscriber whose buffer
// is full misses that update (dropped and logged). Updates published with
// no subscribers are discarded, not queued.
type Broadcaster struct {
	mu     sync.Mutex
	topics map[string]*topic
	buffer int

	published atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a Broadcaster whose subscriber channels buffer the given
// number of updates.
func New(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 32
	}
	return &Broadcaster{topics: make(map[string]*topic), buffer: buffer}
}

// Subscribe registers an observer for the task's future updates. There is
// no replay: updates published before the subscription are not delivered.
func (b *Broadcaster) Subscribe(taskID string) *Subscription {
	sub := &Subscription{
		taskID: taskID,
		ch:     make(chan model.Update, b.buffer),
		b:      b,
	}
	b.mu.Lock()
	tp, ok := b.topics[taskID]
	if !ok {
		tp = &topic{subs: make(map[*Subscription]struct{})}
		b.topics[taskID] = tp
	}
	tp.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

func (b *Broadcaster) remove(sub *Subscription) {
	b.mu.Lock()
	tp, ok := b.topics[sub.taskID]
	if ok {
		if _, live := tp.subs[sub]; live {
			delete(tp.subs, sub)
			sub.once.Do(func() { close(sub.ch) })
		}
		if len(tp.subs) == 0 && tp.seq == 0 {
			delete(b.topics, sub.taskID)
		}
	}
	b.mu.Unlock()
}

// Publish stamps the update with the task's next sequence number and
// delivers it to every active subscriber in publish order. Sends are
// non-blocking; a full subscriber buffer drops the update for that
// subscriber only.
func (b *Broadcaster) Publish(taskID string, u model.Update) {
	b.mu.Lock()
	tp, ok := b.topics[taskID]
	if !ok {
		tp = &topic{subs: make(map[*Subscription]struct{})}
		b.topics[taskID] = tp
	}
	tp.seq++
	u.Seq = tp.seq
	b.published.Add(1)
	for sub := range tp.subs {
		select {
		case sub.ch <- u:
		default:
			b.dropped.Add(1)
			obs.Logger.Warn("update_dropped_slow_subscriber",
				"task_id", taskID, "seq", u.Seq)
		}
	}
	b.mu.Unlock()
}

// Close ends the task's topic after its terminal update: every subscriber
// channel is closed and the topic is forgotten. Later subscriptions to the
// same id start a fresh, empty topic.
func (b *Broadcaster) Close(taskID string) {
	b.mu.Lock()
	tp, ok := b.topics[taskID]
	if ok {
		for sub := range tp.subs {
			sub.once.Do(func() { close(sub.ch) })
		}
		delete(b.topics, taskID)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of active subscriptions across all tasks.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, tp := range b.topics {
		n += len(tp.subs)
	}
	return n
}

// Metrics returns lifetime published and dropped update counts.
func (b *Broadcaster) Metrics() (published, dropped uint64) {
	return b.published.Load(), b.dropped.Load()
}
