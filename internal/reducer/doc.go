// Package reducer builds the pure state reducers, one per organism, and
// combines them into the whole-app reducer handed to the store.
//
// An organism reducer ignores actions addressed to other selectors. For its
// own actions it clones the previous state, resizes members to the live
// member count, re-derives attributes and classList from the live
// attributes, and then applies the method's transform to the organism and
// to each targeted member.
package reducer
