package scheduler

// WaitingQueue holds overflow requests of one tier in arrival order.
type WaitingQueue struct {
	items []Request
}

func (q *WaitingQueue) Enqueue(r Request) {
	q.items = append(q.items, r)
}

// DequeueNext pops the oldest request.
func (q *WaitingQueue) DequeueNext() (Request, bool) {
	if len(q.items) == 0 {
		return Request{}, false
	}
	r := q.items[0]
	q.items[0] = Request{}
	q.items = q.items[1:]
	return r, true
}

func (q *WaitingQueue) Len() int {
	return len(q.items)
}

func (q *WaitingQueue) Contains(occupantID string) bool {
	for _, r := range q.items {
		if r.OccupantID == occupantID {
			return true
		}
	}
	return false
}

// Snapshot copies the queued requests, oldest first.
func (q *WaitingQueue) Snapshot() []Request {
	out := make([]Request, len(q.items))
	copy(out, q.items)
	return out
}

func (q *WaitingQueue) clear() {
	q.items = nil
}
