// Package runner executes plugin entrypoints.
//
// Two backends share the Backend contract and the ExecutionResult shape:
//
//   - DirectBackend spawns the entrypoint as a child process in its own
//     process group, working directory pinned to the project root.
//   - ContainerBackend launches it in a container with networking disabled,
//     a read-only root filesystem, a capped /tmp and the project tree mounted
//     read-only. Engines other than the runtime CLI register themselves with
//     RegisterEngine (see pkg/runner/docker).
//
// Backends are selected with New by Kind. Neither backend returns an error for
// a missing executable or a timeout: those become results with return codes
// ExitCodeNotFound (127) and ExitCodeTimeout (124). An error from Execute
// means the request was rejected before anything ran, for example an
// entrypoint resolving outside the project root (ErrOutsideProjectRoot).
//
// The child always receives HATCH_SAFE=1. Plugins must refuse to act without
// it; see pkg/pluginkit.
package runner
