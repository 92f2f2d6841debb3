package dispatch

import (
	"sync"

	"github.com/Hburdack/happy-button-sub001/simulation"
)

// priorityQueue is a thread-safe queue draining critical > high > normal >
// low, FIFO within one tier.
//
// The queue is unbounded so that the orchestrator's burst of descriptors at
// a simulated-hour boundary never blocks the drive loop. Memory is bounded
// in practice by the rate ceilings: the consumer drains continuously and
// generation pauses between cycles.
//
// The signal channel (buffered, size 1) wakes the consumer on enqueue
// without busy-polling.
type priorityQueue struct {
	mu      sync.Mutex
	buckets [4][]simulation.EventDescriptor
	signal  chan struct{}
}

func newPriorityQueue() *priorityQueue {
	return &priorityQueue{
		signal: make(chan struct{}, 1),
	}
}

// bucketFor maps a priority to its bucket index in drain order.
func bucketFor(p simulation.Priority) int {
	return int(simulation.PriorityCritical - p)
}

// Enqueue adds a descriptor to the back of its priority tier.
// It never blocks the caller.
func (q *priorityQueue) Enqueue(descriptor simulation.EventDescriptor) {
	q.mu.Lock()
	q.buckets[bucketFor(descriptor.Priority)] = append(q.buckets[bucketFor(descriptor.Priority)], descriptor)
	q.mu.Unlock()

	q.wake()
}

// RequeueFront puts a rate-limit-denied descriptor back at the front of its
// tier, so it is re-examined first once a slot frees.
func (q *priorityQueue) RequeueFront(descriptor simulation.EventDescriptor) {
	q.mu.Lock()
	bucket := bucketFor(descriptor.Priority)
	q.buckets[bucket] = append([]simulation.EventDescriptor{descriptor}, q.buckets[bucket]...)
	q.mu.Unlock()

	q.wake()
}

// Dequeue removes the highest-priority descriptor, FIFO within a tier.
// Returns false when the queue is empty.
func (q *priorityQueue) Dequeue() (simulation.EventDescriptor, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.buckets {
		if len(q.buckets[i]) > 0 {
			descriptor := q.buckets[i][0]
			q.buckets[i] = q.buckets[i][1:]

			return descriptor, true
		}
	}

	return simulation.EventDescriptor{}, false
}

// Depth returns the total number of queued descriptors.
func (q *priorityQueue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	depth := 0
	for i := range q.buckets {
		depth += len(q.buckets[i])
	}

	return depth
}

// Signal returns the wake-up channel the consumer selects on.
func (q *priorityQueue) Signal() <-chan struct{} {
	return q.signal
}

func (q *priorityQueue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
