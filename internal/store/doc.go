// Package store is a small synchronous state container in the Redux mould.
//
// A Store holds one state value of type S and changes it only by running
// actions of type A through a Reducer. Middleware wraps Dispatch the way
// applyMiddleware does, so cross-cutting concerns (journaling, metrics)
// observe every action without the reducer knowing about them.
//
// The store is single-threaded by contract but guards its state with a
// mutex so a concurrent reader never sees a torn update.
package store
