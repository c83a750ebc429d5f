package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/requerio/internal/ir"
	"github.com/roach88/requerio/internal/journal"
)

func TestDeterministicClock_Window(t *testing.T) {
	tests := []struct {
		name      string
		start     int64
		calls     int
		wantFirst int64
		wantLast  int64
	}{
		{name: "fresh", start: 0, calls: 3, wantFirst: 1, wantLast: 3},
		{name: "resumed", start: 7, calls: 2, wantFirst: 8, wantLast: 9},
		{name: "negative start clamps", start: -4, calls: 1, wantFirst: 1, wantLast: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewDeterministicClockAt(tt.start)
			assert.Equal(t, clock.Start(), clock.Current(), "nothing issued yet")
			assert.False(t, clock.Issued(clock.Start()+1))

			first := clock.Next()
			for i := 1; i < tt.calls; i++ {
				clock.Next()
			}
			assert.Equal(t, tt.wantFirst, first)
			assert.Equal(t, tt.wantLast, clock.Current())
			assert.True(t, clock.Issued(tt.wantFirst))
			assert.True(t, clock.Issued(tt.wantLast))
			assert.False(t, clock.Issued(clock.Start()), "start belongs to the previous run")
			assert.False(t, clock.Issued(tt.wantLast+1))
		})
	}
}

// Two recorders on one session only stay collision free when the second
// clock resumes after the first run's last seq.
func TestDeterministicClock_ContinuesJournalSession(t *testing.T) {
	ctx := context.Background()
	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	defer j.Close()

	record := func(clock *DeterministicClock, n int) {
		rec, err := journal.NewRecorder(ctx, j, "shared", clock, nil)
		require.NoError(t, err)
		for i := 0; i < n; i++ {
			require.NoError(t, rec.Record(ctx, ir.NewNamedAction(".a", "addClass", nil, ir.Target{}), nil, nil))
		}
	}

	first := NewDeterministicClock()
	record(first, 2)

	last, err := j.LastSeq(ctx, "shared")
	require.NoError(t, err)
	second := NewDeterministicClockAt(last)
	record(second, 3)

	entries, err := j.ReadSession(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, entries, 5)

	var mine []int64
	for _, e := range entries {
		if second.Issued(e.Seq) {
			mine = append(mine, e.Seq)
		}
	}
	assert.Equal(t, []int64{3, 4, 5}, mine)
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClockAt(100)
	const workers = 50
	const calls = 40

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < calls; k++ {
				v := clock.Next()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*calls, "no seq issued twice")
	assert.Equal(t, int64(100+workers*calls), clock.Current())
	for v := range seen {
		assert.True(t, clock.Issued(v))
	}
}
