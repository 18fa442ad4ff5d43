package bot

import "sync"

// TaskKind discriminates the work queue's task union.
type TaskKind int

const (
	TaskChatCommand TaskKind = iota
	TaskReferenceUpdate
	TaskGuildExpCheck
	TaskSendPokes
	TaskMoveToChannel
)

func (k TaskKind) String() string {
	switch k {
	case TaskChatCommand:
		return "chat_command"
	case TaskReferenceUpdate:
		return "reference_update"
	case TaskGuildExpCheck:
		return "guild_exp_check"
	case TaskSendPokes:
		return "send_pokes"
	case TaskMoveToChannel:
		return "move_to_channel"
	default:
		return "unknown"
	}
}

// Task is one queue entry. The chat fields are only set for
// TaskChatCommand.
type Task struct {
	Kind     TaskKind
	Msg      string
	Clid     int
	Nickname string
}

// taskQueue is the single FIFO feeding the worker. Insertion order is
// processing order; a requeued task goes to the tail, so strict FIFO is
// broken on requeue (newer items can overtake it).
type taskQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Task
	closed bool
}

func newTaskQueue() *taskQueue {
	q := &taskQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends to the tail. Pushes after Close are dropped.
func (q *taskQueue) Push(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, t)
	q.cond.Signal()
}

// Pop blocks until an item is available or the queue is closed. The second
// return is false once the queue is closed and drained.
func (q *taskQueue) Pop() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Task{}, false
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t, true
}

// Len reports the number of queued tasks.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close wakes all waiters; queued items may still be drained by Pop.
func (q *taskQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}
