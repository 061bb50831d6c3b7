// Package registry holds the compiled artifact currently serving for each
// strategy id.
//
// The trading engine reads the registry on every evaluation cycle while
// compiles publish into it from worker goroutines. Reads are a single atomic
// pointer load and never wait on a writer. Writers for one id are serialized
// by that id's own mutex, so a slow reload of one strategy never delays
// another.
//
// Every publish carries the version of the submission it was compiled from.
// A publish only takes effect when its version is strictly greater than any
// version the id has seen, which makes the final state independent of the
// order in which concurrent compiles finish.
package registry
