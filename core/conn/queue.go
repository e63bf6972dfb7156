package conn

import "github.com/eapache/queue"

type frame struct {
	op   string
	data []byte
}

// outQueue is the FIFO of frames waiting for an open socket. It is not
// thread-safe; Connection guards it with its mutex.
type outQueue struct {
	q *queue.Queue
}

func newOutQueue() *outQueue {
	return &outQueue{q: queue.New()}
}

func (o *outQueue) push(f frame) { o.q.Add(f) }

func (o *outQueue) len() int { return o.q.Length() }

// drain removes and returns all queued frames in order.
func (o *outQueue) drain() []frame {
	n := o.q.Length()
	if n == 0 {
		return nil
	}
	out := make([]frame, 0, n)
	for o.q.Length() > 0 {
		out = append(out, o.q.Remove().(frame))
	}
	return out
}

// prepend puts frames back in front of whatever is queued, keeping their order.
func (o *outQueue) prepend(frames []frame) {
	if len(frames) == 0 {
		return
	}
	rest := o.drain()
	for _, f := range frames {
		o.q.Add(f)
	}
	for _, f := range rest {
		o.q.Add(f)
	}
}
