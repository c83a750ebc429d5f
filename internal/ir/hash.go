package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows the hashing scheme to change later.
const (
	DomainAction = "requerio/action/v1"
	DomainState  = "requerio/state/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StateHash computes the content hash of a state snapshot.
// Two states hash equal exactly when their canonical JSON is equal.
func StateHash(s *State) (string, error) {
	if s == nil {
		return hashWithDomain(DomainState, []byte("null")), nil
	}
	canonical, err := MarshalCanonical(*s)
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// StateHashJSON hashes a state given as JSON, such as a journaled state
// column. It agrees with StateHash for the state the JSON encodes.
func StateHashJSON(data []byte) (string, error) {
	canonical, err := MarshalCanonical(json.RawMessage(data))
	if err != nil {
		return "", fmt.Errorf("StateHashJSON: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// ActionID computes the content-addressed ID of a journaled action.
// The ID is stable given the same session, sequence number and action body.
func ActionID(session string, seq int64, a Action) (string, error) {
	args := Array(a.Args)
	if args == nil {
		args = Array{}
	}
	obj := Object{
		"session":  String(session),
		"seq":      Int(seq),
		"type":     String(a.Type),
		"selector": String(a.Selector),
		"args":     args,
	}
	if !a.Target.IsZero() {
		idx := make(Array, 0, len(a.Target.indices))
		for _, i := range a.Target.indices {
			idx = append(idx, Int(i))
		}
		obj["target"] = idx
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ActionID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainAction, canonical), nil
}

// MustActionID is ActionID for tests; it panics on error.
func MustActionID(session string, seq int64, a Action) string {
	id, err := ActionID(session, seq, a)
	if err != nil {
		panic(err)
	}
	return id
}
