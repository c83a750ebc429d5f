package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSession_OrderedBySeq(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	// Insert out of order.
	require.NoError(t, j.Append(ctx, createTestEntry(t, "s-1", 3, "#a", "c")))
	require.NoError(t, j.Append(ctx, createTestEntry(t, "s-1", 1, "#a", "a")))
	require.NoError(t, j.Append(ctx, createTestEntry(t, "s-1", 2, "#b", "b")))
	require.NoError(t, j.Append(ctx, createTestEntry(t, "s-2", 1, "#a", "z")))

	entries, err := j.ReadSession(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Seq)
		assert.Equal(t, "s-1", e.Session)
	}
	assert.JSONEq(t, `["a"]`, string(entries[0].Args))
}

func TestReadSession_UnknownIsEmpty(t *testing.T) {
	j := createTestJournal(t)

	entries, err := j.ReadSession(context.Background(), "missing")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestReadSelector(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Append(ctx, createTestEntry(t, "s-1", 1, "#a", "a")))
	require.NoError(t, j.Append(ctx, createTestEntry(t, "s-1", 2, "#b", "b")))
	require.NoError(t, j.Append(ctx, createTestEntry(t, "s-1", 3, "#a", "c")))

	entries, err := j.ReadSelector(ctx, "s-1", "#a")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, int64(3), entries[1].Seq)
}

func TestSessions_Summary(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Append(ctx, createTestEntry(t, "s-1", 1, "#a", "a")))
	require.NoError(t, j.Append(ctx, createTestEntry(t, "s-1", 2, "#a", "b")))
	failed := createTestEntry(t, "s-2", 5, "#a", "c")
	failed.Error = "boom"
	require.NoError(t, j.Append(ctx, failed))

	sessions, err := j.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	assert.Equal(t, Session{ID: "s-1", Actions: 2, Failures: 0, FirstSeq: 1, LastSeq: 2}, sessions[0])
	assert.Equal(t, Session{ID: "s-2", Actions: 1, Failures: 1, FirstSeq: 5, LastSeq: 5}, sessions[1])
}

func TestLastSeq(t *testing.T) {
	j := createTestJournal(t)
	ctx := context.Background()

	seq, err := j.LastSeq(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, j.Append(ctx, createTestEntry(t, "s-1", 4, "#a", "a")))
	seq, err = j.LastSeq(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), seq)
}
