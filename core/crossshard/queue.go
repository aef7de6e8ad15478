package crossshard

// idQueue is a FIFO of transaction IDs awaiting an outbound send. The drain
// sweeps pop from the front; a failed send is pushed back to the front so
// retry order is preserved.
type idQueue struct {
	ids []string
}

func (q *idQueue) push(id string) {
	q.ids = append(q.ids, id)
}

func (q *idQueue) pushFront(id string) {
	q.ids = append([]string{id}, q.ids...)
}

func (q *idQueue) pop() (string, bool) {
	if len(q.ids) == 0 {
		return "", false
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, true
}

func (q *idQueue) len() int {
	return len(q.ids)
}
