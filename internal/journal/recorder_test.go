package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/requerio/internal/ir"
	"github.com/roach88/requerio/internal/store"
)

type tree = map[string]*ir.State

// classReducer records addClass arguments and fails on "bad".
func classReducer(prev tree, a ir.Action) (tree, error) {
	if a.Type == ir.InitType {
		if prev == nil {
			return tree{"#main": ir.NewState(ir.ElementOrganism)}, nil
		}
		return prev, nil
	}
	if s, _ := ir.AsString(a.Arg(0)); s == "bad" {
		return prev, errors.New("bad class")
	}
	next := tree{}
	for k, v := range prev {
		next[k] = v
	}
	s := prev[a.Selector].Clone()
	if s == nil {
		s = ir.NewState(ir.ElementOrganism)
	}
	for _, v := range a.Args {
		c, _ := ir.AsString(v)
		s.ClassList = append(s.ClassList, c)
	}
	next[a.Selector] = s
	return next, nil
}

func newRecordedStore(t *testing.T, r *Recorder) *store.Store[tree, ir.Action] {
	t.Helper()
	s, err := store.New[tree, ir.Action](classReducer, nil,
		store.WithInitAction[tree](ir.InitAction()),
		store.WithMiddleware(r.Middleware()),
	)
	require.NoError(t, err)
	return s
}

func TestRecorder_RecordsDispatches(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()
	r, err := NewRecorder(ctx, j, "s-1", nil, nil)
	require.NoError(t, err)
	s := newRecordedStore(t, r)

	_, err = s.Dispatch(ir.NewAction("#main", ir.MethodAddClass, []ir.Value{ir.String("open")}, ir.Target{}))
	require.NoError(t, err)
	_, err = s.Dispatch(ir.NewAction("#main", ir.MethodAddClass, []ir.Value{ir.String("wide")}, ir.Target{}))
	require.NoError(t, err)

	entries, err := j.ReadSession(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, entries, 2, "init action must not be journaled")
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, int64(2), entries[1].Seq)

	st, err := ir.DecodeState(ir.ElementOrganism, entries[1].State)
	require.NoError(t, err)
	assert.Equal(t, []string{"open", "wide"}, st.ClassList)
}

func TestRecorder_RecordsFailure(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()
	r, err := NewRecorder(ctx, j, "s-1", nil, nil)
	require.NoError(t, err)
	s := newRecordedStore(t, r)

	_, err = s.Dispatch(ir.NewAction("#main", ir.MethodAddClass, []ir.Value{ir.String("bad")}, ir.Target{}))
	require.Error(t, err)

	entries, err := j.ReadSession(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "bad class", entries[0].Error)
}

func TestRecorder_ResumesSession(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()
	require.NoError(t, j.Append(ctx, createTestEntry(t, "s-1", 9, "#main", "old")))

	r, err := NewRecorder(ctx, j, "s-1", nil, nil)
	require.NoError(t, err)
	s := newRecordedStore(t, r)

	_, err = s.Dispatch(ir.NewAction("#main", ir.MethodAddClass, []ir.Value{ir.String("new")}, ir.Target{}))
	require.NoError(t, err)

	seq, err := j.LastSeq(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10), seq)
}

func TestRecorder_ExplicitClock(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()
	r, err := NewRecorder(ctx, j, "s-1", NewClockAt(100), nil)
	require.NoError(t, err)
	assert.Equal(t, "s-1", r.Session())

	a := ir.NewAction("#main", ir.MethodAddClass, []ir.Value{ir.String("x")}, ir.Target{})
	require.NoError(t, r.Record(ctx, a, nil, nil))

	entries, err := j.ReadSession(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(101), entries[0].Seq)
}
