package store

import (
	"fmt"
	"slices"
	"sync"
)

// Reducer computes the next state from the previous one. A reducer must not
// mutate prev. A non-nil error aborts the dispatch and leaves the stored
// state unchanged.
type Reducer[S, A any] func(prev S, action A) (S, error)

// DispatchFunc submits one action.
type DispatchFunc[S, A any] func(action A) (S, error)

// API is the view of a store handed to middleware.
type API[S, A any] interface {
	GetState() S
	Dispatch(action A) (S, error)
}

// Middleware wraps the dispatch chain. next continues toward the reducer.
type Middleware[S, A any] func(api API[S, A]) func(next DispatchFunc[S, A]) DispatchFunc[S, A]

// Option configures a Store.
type Option[S, A any] func(*Store[S, A])

// WithInitAction sets the action dispatched on creation and on every
// ReplaceReducer.
func WithInitAction[S, A any](action A) Option[S, A] {
	return func(s *Store[S, A]) {
		s.init = &action
	}
}

// WithMiddleware appends middleware. The first one given is the outermost.
func WithMiddleware[S, A any](mw ...Middleware[S, A]) Option[S, A] {
	return func(s *Store[S, A]) {
		s.middleware = append(s.middleware, mw...)
	}
}

// Store holds application state.
type Store[S, A any] struct {
	mu         sync.Mutex
	reducer    Reducer[S, A]
	state      S
	init       *A
	middleware []Middleware[S, A]
	dispatch   DispatchFunc[S, A]

	nextSub     int
	subscribers []subscriber[S]
	dispatching bool
}

type subscriber[S any] struct {
	id int
	fn func(S)
}

// New creates a store with initial state and, if configured, dispatches
// the init action through the full middleware chain.
func New[S, A any](reducer Reducer[S, A], initial S, opts ...Option[S, A]) (*Store[S, A], error) {
	if reducer == nil {
		return nil, fmt.Errorf("store: reducer is nil")
	}
	s := &Store[S, A]{
		reducer: reducer,
		state:   initial,
	}
	for _, opt := range opts {
		opt(s)
	}

	chain := s.reduce
	api := storeAPI[S, A]{s}
	for i := len(s.middleware) - 1; i >= 0; i-- {
		chain = s.middleware[i](api)(chain)
	}
	s.dispatch = chain

	if s.init != nil {
		if _, err := s.dispatch(*s.init); err != nil {
			return nil, fmt.Errorf("store: init: %w", err)
		}
	}
	return s, nil
}

// GetState returns the current state.
func (s *Store[S, A]) GetState() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dispatch runs action through middleware and the reducer and returns the
// resulting state. On error the returned state is the unchanged current one.
func (s *Store[S, A]) Dispatch(action A) (S, error) {
	return s.dispatch(action)
}

// ReplaceReducer swaps the reducer and dispatches the init action so the
// new reducer can fill in state for keys it has not seen.
func (s *Store[S, A]) ReplaceReducer(r Reducer[S, A]) error {
	if r == nil {
		return fmt.Errorf("store: reducer is nil")
	}
	s.mu.Lock()
	s.reducer = r
	s.mu.Unlock()

	if s.init != nil {
		if _, err := s.dispatch(*s.init); err != nil {
			return fmt.Errorf("store: replace reducer: %w", err)
		}
	}
	return nil
}

// Subscribe registers fn to run after every successful dispatch.
// Subscribers run in registration order. The returned function removes the
// subscription and is safe to call more than once.
func (s *Store[S, A]) Subscribe(fn func(S)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subscribers = append(s.subscribers, subscriber[S]{id: id, fn: fn})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.subscribers = slices.DeleteFunc(s.subscribers, func(sub subscriber[S]) bool {
			return sub.id == id
		})
	}
}

// reduce is the innermost link of the dispatch chain.
func (s *Store[S, A]) reduce(action A) (S, error) {
	s.mu.Lock()
	if s.dispatching {
		s.mu.Unlock()
		var zero S
		return zero, fmt.Errorf("store: reducers may not dispatch actions")
	}
	s.dispatching = true
	prev := s.state
	reducer := s.reducer
	s.mu.Unlock()

	next, err := reducer(prev, action)

	s.mu.Lock()
	s.dispatching = false
	if err != nil {
		s.mu.Unlock()
		return prev, err
	}
	s.state = next
	subs := slices.Clone(s.subscribers)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(next)
	}
	return next, nil
}

type storeAPI[S, A any] struct {
	s *Store[S, A]
}

func (a storeAPI[S, A]) GetState() S { return a.s.GetState() }

func (a storeAPI[S, A]) Dispatch(action A) (S, error) { return a.s.Dispatch(action) }
