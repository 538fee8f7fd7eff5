package graph

// notifier fans write notifications out through a buffered channel.
type notifier struct {
	ch chan Change
}

func newNotifier() notifier {
	return notifier{ch: make(chan Change, 64)}
}

// emit sends without blocking; the event is dropped when the buffer is full.
func (n notifier) emit(c Change) {
	select {
	case n.ch <- c:
	default:
	}
}

func (n notifier) Changes() <-chan Change {
	return n.ch
}
