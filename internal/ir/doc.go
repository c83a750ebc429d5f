// Package ir provides the canonical data types shared by every requerio
// package: argument values, the method vocabulary and its action codec,
// actions, member targets and the organism state snapshot.
//
// This package contains pure types and functions only. All other internal
// packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - State never holds live nodes; it is plain, JSON-serializable data
//   - nil pointer fields mean "never read", distinct from 0 and ""
//   - Method is a closed enum; unknown names map to MethodUnknown
//   - Func argument values are resolved by the executor and never persisted
package ir
