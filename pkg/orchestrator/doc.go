// Package orchestrator ties the catalog, policy gate, lifecycle dispatcher,
// execution backends and report writer into a single Run call.
//
// A run is refused, without spawning anything, when the plugin is unknown,
// has no entrypoint, or does not declare a local-only network policy. An
// accepted run invokes the backend exactly once with all requested phase
// flags and always ends with a report on disk.
package orchestrator
