package journal

import (
	"context"
	"database/sql"
	"fmt"
)

// Session summarizes one journaled session.
type Session struct {
	ID       string `json:"id"`
	Actions  int    `json:"actions"`
	Failures int    `json:"failures"`
	FirstSeq int64  `json:"first_seq"`
	LastSeq  int64  `json:"last_seq"`
}

// ReadSession returns every entry of a session in seq order.
// Returns an empty slice (not nil) for an unknown session.
func (j *Journal) ReadSession(ctx context.Context, session string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session, seq, type, selector, method, args, target, state_hash, state, error, engine_version
		FROM actions
		WHERE session = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session: %w", err)
	}
	return entries, nil
}

// ReadSelector returns a session's entries for one organism.
func (j *Journal) ReadSelector(ctx context.Context, session, selector string) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session, seq, type, selector, method, args, target, state_hash, state, error, engine_version
		FROM actions
		WHERE session = ? AND selector = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, session, selector)
	if err != nil {
		return nil, fmt.Errorf("query selector: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate selector: %w", err)
	}
	return entries, nil
}

// Sessions lists every session, oldest first.
func (j *Journal) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT session, COUNT(*), SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), MIN(seq), MAX(seq)
		FROM actions
		GROUP BY session
		ORDER BY MIN(rowid) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Actions, &s.Failures, &s.FirstSeq, &s.LastSeq); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// LastSeq returns the highest seq recorded for a session, or 0.
func (j *Journal) LastSeq(ctx context.Context, session string) (int64, error) {
	var seq sql.NullInt64
	err := j.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM actions WHERE session = ?`, session).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var args, target, state string
	err := row.Scan(
		&e.ID,
		&e.Session,
		&e.Seq,
		&e.Type,
		&e.Selector,
		&e.Method,
		&args,
		&target,
		&e.StateHash,
		&state,
		&e.Error,
		&e.EngineVersion,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("scan entry: %w", err)
	}
	e.Args = []byte(args)
	e.Target = []byte(target)
	e.State = []byte(state)
	return e, nil
}
