package promport

import "sync"

// changeNotifier fans out edge-triggered change signals to any number of
// subscribers. Each subscriber gets a buffered channel holding at most one
// pending token, so bursts of changes coalesce instead of queueing behind a
// slow reader.
type changeNotifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan struct{}
}

func newChangeNotifier() *changeNotifier {
	return &changeNotifier{
		subs: make(map[int]chan struct{}),
	}
}

// subscribe registers a listener and returns its id together with the channel
// change tokens arrive on.
func (n *changeNotifier) subscribe() (int, <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++

	ch := make(chan struct{}, 1)
	n.subs[id] = ch

	return id, ch
}

// unsubscribe removes a listener. Tokens already delivered stay readable.
func (n *changeNotifier) unsubscribe(id int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, id)
}

// notify hands every subscriber a change token without blocking on slow
// readers. A subscriber that already holds an undelivered token keeps the one
// it has.
func (n *changeNotifier) notify() {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
			// pending token already queued; skip
		}
	}
}
