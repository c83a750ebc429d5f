package journal

import (
	"context"
	"log/slog"

	"github.com/roach88/requerio/internal/ir"
	"github.com/roach88/requerio/internal/store"
)

// Recorder appends every dispatch of one session to a journal.
type Recorder struct {
	journal *Journal
	session string
	clock   Sequencer
	logger  *slog.Logger
}

// NewRecorder creates a recorder for session. A nil clock resumes after the
// session's last recorded seq.
func NewRecorder(ctx context.Context, j *Journal, session string, clock Sequencer, logger *slog.Logger) (*Recorder, error) {
	if clock == nil {
		last, err := j.LastSeq(ctx, session)
		if err != nil {
			return nil, err
		}
		clock = NewClockAt(last)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		journal: j,
		session: session,
		clock:   clock,
		logger:  logger.With("session", session),
	}, nil
}

// Session returns the recorded session id.
func (r *Recorder) Session() string {
	return r.session
}

// Record appends a single dispatch outcome.
func (r *Recorder) Record(ctx context.Context, a ir.Action, state *ir.State, dispatchErr error) error {
	e, err := NewEntry(r.session, r.clock.Next(), a, state, dispatchErr)
	if err != nil {
		return err
	}
	return r.journal.Append(ctx, e)
}

// Middleware records each action after it reaches the reducer, together with
// the addressed organism's resulting state. Init actions are not recorded.
// A journal write failure is logged and never fails the dispatch.
func (r *Recorder) Middleware() store.Middleware[map[string]*ir.State, ir.Action] {
	return func(api store.API[map[string]*ir.State, ir.Action]) func(store.DispatchFunc[map[string]*ir.State, ir.Action]) store.DispatchFunc[map[string]*ir.State, ir.Action] {
		return func(next store.DispatchFunc[map[string]*ir.State, ir.Action]) store.DispatchFunc[map[string]*ir.State, ir.Action] {
			return func(a ir.Action) (map[string]*ir.State, error) {
				tree, dispatchErr := next(a)
				if a.Type == ir.InitType {
					return tree, dispatchErr
				}
				if err := r.Record(context.Background(), a, tree[a.Selector], dispatchErr); err != nil {
					r.logger.Warn("journal append failed", "type", a.Type, "selector", a.Selector, "error", err)
				}
				return tree, dispatchErr
			}
		}
	}
}
