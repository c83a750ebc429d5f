package ir

// Version constants recorded with every journal session.
const (
	// StateVersion is the state snapshot schema version.
	StateVersion = "1"

	// EngineVersion is the requerio engine version.
	EngineVersion = "0.1.0"
)
