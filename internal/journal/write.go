package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/requerio/internal/ir"
)

// Entry is one journaled dispatch.
type Entry struct {
	ID            string          `json:"id"`
	Session       string          `json:"session"`
	Seq           int64           `json:"seq"`
	Type          string          `json:"type"`
	Selector      string          `json:"selector"`
	Method        string          `json:"method"`
	Args          json.RawMessage `json:"args"`
	Target        json.RawMessage `json:"target"`
	StateHash     string          `json:"state_hash"`
	State         json.RawMessage `json:"state"`
	Error         string          `json:"error,omitempty"`
	EngineVersion string          `json:"engine_version"`
}

// NewEntry builds the entry for action a, dispatched as seq within session,
// with the organism's resulting state. A nil state is recorded as null.
// dispatchErr, if any, is recorded as text.
func NewEntry(session string, seq int64, a ir.Action, state *ir.State, dispatchErr error) (Entry, error) {
	id, err := ir.ActionID(session, seq, a)
	if err != nil {
		return Entry{}, fmt.Errorf("new entry: %w", err)
	}

	args := ir.Array(a.Args)
	if args == nil {
		args = ir.Array{}
	}
	argsJSON, err := ir.MarshalCanonical(args)
	if err != nil {
		return Entry{}, fmt.Errorf("new entry: args: %w", err)
	}

	targetJSON, err := json.Marshal(a.Target)
	if err != nil {
		return Entry{}, fmt.Errorf("new entry: target: %w", err)
	}

	stateHash, err := ir.StateHash(state)
	if err != nil {
		return Entry{}, fmt.Errorf("new entry: %w", err)
	}
	var stateJSON []byte
	if state == nil {
		stateJSON = []byte("null")
	} else if stateJSON, err = ir.MarshalCanonical(*state); err != nil {
		return Entry{}, fmt.Errorf("new entry: state: %w", err)
	}

	e := Entry{
		ID:            id,
		Session:       session,
		Seq:           seq,
		Type:          a.Type,
		Selector:      a.Selector,
		Method:        a.Name,
		Args:          argsJSON,
		Target:        targetJSON,
		StateHash:     stateHash,
		State:         stateJSON,
		EngineVersion: ir.EngineVersion,
	}
	if dispatchErr != nil {
		e.Error = dispatchErr.Error()
	}
	return e, nil
}

// Append inserts an entry.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - re-appending the same
// entry is silently ignored. A different entry reusing (session, seq) is
// still an error.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO actions
		(id, session, seq, type, selector, method, args, target, state_hash, state, error, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		e.Session,
		e.Seq,
		e.Type,
		e.Selector,
		e.Method,
		string(e.Args),
		string(e.Target),
		e.StateHash,
		string(e.State),
		e.Error,
		e.EngineVersion,
	)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}
