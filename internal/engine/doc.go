// Package engine binds organisms (named selections over a live HTML tree)
// to a single state store.
//
// ARCHITECTURE:
//
// Every dispatch runs the same steps, synchronously, on the caller's
// goroutine:
//  1. Resynchronize the organism's members with the current tree
//  2. Resolve the member target (silent no-op when a single index is out
//     of range)
//  3. Execute the side effect, producing the resolved arguments
//  4. For structural methods, resynchronize the organism and every
//     organism related to the mutated nodes
//  5. Submit the action to the store and keep the result on the organism
//
// State is never derived by trusting cached counts. The live tree is the
// authority; reducers re-read attributes and member counts on every
// reduction, and GetState reconciles drift caused outside the engine
// (typing, focus changes, foreign mutations) before returning.
//
// Filters (Exclude, HasChild, ...) do not mutate members. They return a
// Narrowing that captures the matching nodes and is consumed by exactly
// one dispatch.
//
// An Engine is not safe for concurrent use. The live tree is shared by all
// organisms, so callers serialize access.
package engine
