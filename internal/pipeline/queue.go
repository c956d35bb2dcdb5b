package pipeline

// queue is an unbounded multi-producer/single-consumer queue. Producers
// send on in and never block on the consumer; the consumer receives on out
// in per-producer emission order, interleaved across producers. Closing in
// drains the buffer and then closes out, so the consumer observes every
// item before observing completion.
type queue[T any] struct {
	in  chan T
	out chan T
}

func newQueue[T any]() *queue[T] {
	q := &queue[T]{in: make(chan T), out: make(chan T)}
	go q.run()
	return q
}

func (q *queue[T]) run() {
	defer close(q.out)

	var buf []T
	in := q.in
	for in != nil || len(buf) > 0 {
		var out chan T
		var head T
		if len(buf) > 0 {
			out = q.out
			head = buf[0]
		}
		select {
		case v, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			buf = append(buf, v)
		case out <- head:
			buf = buf[1:]
		}
	}
}
