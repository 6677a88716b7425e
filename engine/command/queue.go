package command

import "sync"

// queue is the unexported implementation of Queue.
type queue struct {
	mu      *sync.Mutex
	pending []Command
}

// Queue is a thread-safe FIFO of commands with a single consumer.
type Queue interface {
	// Push appends commands to the queue. Safe to call from any goroutine.
	//
	// Parameters:
	//   - cmds: the commands to enqueue, in order
	Push(cmds ...Command)

	// Drain removes and returns every pending command in FIFO order.
	//
	// Returns:
	//   - []Command: the pending commands, nil if none
	Drain() []Command

	// Len returns the number of pending commands.
	//
	// Returns:
	//   - int: the pending count
	Len() int
}

var _ Queue = &queue{}

// NewQueue creates an empty command queue.
//
// Returns:
//   - Queue: the new queue
func NewQueue() Queue {
	return &queue{mu: &sync.Mutex{}}
}

func (q *queue) Push(cmds ...Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, c := range cmds {
		if c != nil {
			q.pending = append(q.pending, c)
		}
	}
}

func (q *queue) Drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil
	}
	out := q.pending
	q.pending = nil
	return out
}

func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
