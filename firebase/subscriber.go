package firebase

import (
	"sync"

	"github.com/pinged/authkit"
)

type event struct {
	user *authkit.User
	err  error
}

// subscriber delivers events to one listener, in order, on its own goroutine so
// that the provider never calls back into the listener while holding its lock.
type subscriber struct {
	onUser  func(*authkit.User)
	onError func(error)

	mu     sync.Mutex
	queue  []event
	wake   chan struct{}
	done   chan struct{}
	closed sync.Once
}

func newSubscriber(onUser func(*authkit.User), onError func(error)) *subscriber {
	return &subscriber{
		onUser:  onUser,
		onError: onError,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (s *subscriber) push(e event) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) close() {
	s.closed.Do(func() { close(s.done) })
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			e := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			default:
			}
			if e.err != nil {
				if s.onError != nil {
					s.onError(e.err)
				}
				// the stream ends after an error
				s.close()
				return
			}
			s.onUser(e.user)
		}
	}
}
