package journal

import (
	"path/filepath"
	"testing"

	"github.com/roach88/requerio/internal/ir"
)

// createTestJournal opens a fresh journal in a temp dir.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// createTestEntry builds an addClass entry with an element state.
func createTestEntry(t *testing.T, session string, seq int64, selector, class string) Entry {
	t.Helper()
	a := ir.NewAction(selector, ir.MethodAddClass, []ir.Value{ir.String(class)}, ir.Target{})
	s := ir.NewState(ir.ElementOrganism)
	s.ClassList = []string{class}
	e, err := NewEntry(session, seq, a, s, nil)
	if err != nil {
		t.Fatalf("NewEntry() failed: %v", err)
	}
	return e
}
