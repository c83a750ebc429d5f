package testutil

// FixedSessionGenerator returns the same session id every time, so golden
// journals are byte-identical across runs. It implements
// journal.SessionGenerator.
//
// Thread-safety: FixedSessionGenerator is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	id string
}

// DefaultSession is used when a scenario names no session.
const DefaultSession = "test-session-default"

// NewFixedSessionGenerator creates a generator for id. An empty id yields
// DefaultSession.
func NewFixedSessionGenerator(id string) *FixedSessionGenerator {
	if id == "" {
		id = DefaultSession
	}
	return &FixedSessionGenerator{id: id}
}

// Generate returns the fixed session id.
func (g *FixedSessionGenerator) Generate() string {
	return g.id
}
