// Package integrationtests exercises the application end to end: strategy
// files on disk, the store, both compiler backends, the worker pool and the
// registry, as a trading engine would observe them.
package integrationtests
