package authkit

import (
	"log/slog"
	"sync"
)

// Session is the client's view of who is signed in.
//
// IsResolving is true only until the identity provider reports for the first time.
// An empty UserID means nobody is signed in.
type Session struct {
	UserID      string `json:"user_id,omitempty"`
	IsResolving bool   `json:"is_resolving"`
}

// Authenticated reports whether a user is signed in and resolution has finished.
func (s Session) Authenticated() bool {
	return !s.IsResolving && s.UserID != ""
}

// StoreOption configures a SessionStore
type StoreOption func(*SessionStore)

// WithStoreLogger sets the logger used for lifecycle events.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type observer struct {
	id int
	fn func(Session)
}

// SessionStore is the single source of truth for the current Session. It holds at
// most one subscription against the AuthStateSource and is the only writer of the
// Session value.
//
// Sources are expected to deliver emissions one at a time. Observers are called
// synchronously, in registration order, without the store's lock held.
type SessionStore struct {
	source AuthStateSource
	logger *slog.Logger

	mu          sync.Mutex
	session     Session
	user        *User
	started     bool
	generation  uint64
	unsubscribe func()
	err         error
	observers   []observer
	nextID      int
}

// NewSessionStore creates a store in the resolving state. Call Start to begin
// tracking the provider.
func NewSessionStore(source AuthStateSource, opts ...StoreOption) *SessionStore {
	s := &SessionStore{
		source:  source,
		logger:  slog.Default(),
		session: Session{IsResolving: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start registers the auth state subscription. Calling it again before Stop is a
// no-op. After a listener failure Start returns that failure and does not resubscribe.
func (s *SessionStore) Start() error {
	s.mu.Lock()
	if s.err != nil {
		err := s.err
		s.mu.Unlock()
		return err
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	unsubscribe := s.source.SubscribeAuthState(
		func(u *User) { s.emit(gen, u) },
		func(err error) { s.fail(gen, err) },
	)

	s.mu.Lock()
	if s.generation != gen || !s.started {
		// stopped or failed while subscribing
		err := s.err
		s.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
		return err
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	s.logger.Debug("session store started")
	return nil
}

// Stop releases the subscription. It is safe to call repeatedly and from a defer.
// The last Session value is kept; emissions arriving after Stop are ignored.
func (s *SessionStore) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.generation++
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	s.logger.Debug("session store stopped")
}

// Active reports whether a provider subscription is currently held.
func (s *SessionStore) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Current returns the latest Session.
func (s *SessionStore) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// User returns the last user reported by the provider, or nil.
func (s *SessionStore) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Err returns the listener failure that ended session tracking, if any.
func (s *SessionStore) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Subscribe registers fn to be called after every Session change and once after a
// listener failure. The returned function removes the observer.
func (s *SessionStore) Subscribe(fn func(Session)) (cancel func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, o := range s.observers {
				if o.id == id {
					s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *SessionStore) emit(gen uint64, u *User) {
	s.mu.Lock()
	if gen != s.generation || !s.started {
		s.mu.Unlock()
		return
	}
	next := Session{}
	s.user = nil
	if u != nil {
		next.UserID = u.ID
		uc := *u
		s.user = &uc
	}
	prev := s.session
	s.session = next
	observers := s.snapshotLocked()
	s.mu.Unlock()

	if prev.UserID != next.UserID || prev.IsResolving {
		s.logger.Info("session changed", "user_id", next.UserID, "was_resolving", prev.IsResolving)
	}
	for _, o := range observers {
		o.fn(next)
	}
}

func (s *SessionStore) fail(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.generation || !s.started {
		s.mu.Unlock()
		return
	}
	s.err = err
	s.started = false
	s.generation++
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	current := s.session
	observers := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Error("auth state listener failed, session tracking halted", "error", err)
	if unsubscribe != nil {
		unsubscribe()
	}
	for _, o := range observers {
		o.fn(current)
	}
}

func (s *SessionStore) snapshotLocked() []observer {
	out := make([]observer, len(s.observers))
	copy(out, s.observers)
	return out
}
