// Package app contains the core application logic. It wires the source store,
// the compile orchestrator, the worker pool and the registry together, and
// exposes the administrative operations a host uses to manage strategies,
// decoupled from any specific entrypoint like a CLI or server.
package app
