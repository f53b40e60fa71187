package event

// Queue is a fixed-capacity list of the events for one block, kept sorted by
// offset. Events with equal offsets stay in arrival order. Push never
// allocates.
type Queue struct {
	events    []Event
	n         int
	blockSize int
	dropped   int
}

func NewQueue(capacity, blockSize int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	if blockSize < 1 {
		blockSize = 1
	}
	return &Queue{events: make([]Event, capacity), blockSize: blockSize}
}

// Push inserts ev, clamping its offset into [0, blockSize). It reports false
// and counts a drop when the queue is full.
func (q *Queue) Push(ev Event) bool {
	if ev.Offset < 0 {
		ev.Offset = 0
	}
	if ev.Offset >= q.blockSize {
		ev.Offset = q.blockSize - 1
	}
	if q.n == len(q.events) {
		q.dropped++
		return false
	}
	i := q.n
	for i > 0 && q.events[i-1].Offset > ev.Offset {
		q.events[i] = q.events[i-1]
		i--
	}
	q.events[i] = ev
	q.n++
	return true
}

// Drain calls fn for every queued event in offset order and empties the queue.
func (q *Queue) Drain(fn func(Event)) {
	for i := 0; i < q.n; i++ {
		fn(q.events[i])
	}
	q.n = 0
}

func (q *Queue) Len() int       { return q.n }
func (q *Queue) BlockSize() int { return q.blockSize }

// Dropped returns how many events were rejected because the queue was full.
func (q *Queue) Dropped() int { return q.dropped }
