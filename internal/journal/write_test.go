package journal

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/requerio/internal/ir"
)

func TestNewEntry_Fields(t *testing.T) {
	a := ir.NewAction("li", ir.MethodAttr, []ir.Value{ir.String("title"), ir.String("x")}, ir.Member(2))
	s := ir.NewState(ir.ElementOrganism)

	e, err := NewEntry("s-1", 7, a, s, nil)
	require.NoError(t, err)

	assert.Equal(t, ir.MustActionID("s-1", 7, a), e.ID)
	assert.Equal(t, "ATTR", e.Type)
	assert.Equal(t, "attr", e.Method)
	assert.Equal(t, "li", e.Selector)
	assert.JSONEq(t, `["title","x"]`, string(e.Args))
	assert.JSONEq(t, `2`, string(e.Target))
	assert.Equal(t, ir.EngineVersion, e.EngineVersion)
	assert.Empty(t, e.Error)

	hash, err := ir.StateHash(s)
	require.NoError(t, err)
	assert.Equal(t, hash, e.StateHash)
}

func TestNewEntry_NilStateAndError(t *testing.T) {
	a := ir.NewAction("#gone", ir.MethodAddClass, nil, ir.Target{})

	e, err := NewEntry("s-1", 1, a, nil, errors.New("boom"))
	require.NoError(t, err)

	assert.Equal(t, "null", string(e.State))
	assert.Equal(t, "null", string(e.Target))
	assert.Equal(t, "[]", string(e.Args))
	assert.Equal(t, "boom", e.Error)
}

func TestNewEntry_FuncArgRejected(t *testing.T) {
	fn := ir.Func(func(int, string) string { return "x" })
	a := ir.NewAction("p", ir.MethodHTML, []ir.Value{fn}, ir.Target{})

	_, err := NewEntry("s-1", 1, a, nil, nil)
	assert.Error(t, err)
}

func TestAppend_Idempotent(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()
	e := createTestEntry(t, "s-1", 1, "#main", "open")

	require.NoError(t, j.Append(ctx, e))
	require.NoError(t, j.Append(ctx, e))

	entries, err := j.ReadSession(ctx, "s-1")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAppend_SeqConflict(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Append(ctx, createTestEntry(t, "s-1", 1, "#main", "open")))
	err := j.Append(ctx, createTestEntry(t, "s-1", 1, "#main", "closed"))
	assert.Error(t, err, "a different entry reusing (session, seq) must fail")
}
