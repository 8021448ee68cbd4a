package runner

import "errors"

var (
	// ErrOutsideProjectRoot is returned when an entrypoint resolves outside the project root
	ErrOutsideProjectRoot = errors.New("entrypoint must stay inside project root")

	// ErrEntrypointNotFound marks a missing entrypoint file
	ErrEntrypointNotFound = errors.New("entrypoint not found")

	// ErrUnknownKind is returned for a backend kind that is not registered
	ErrUnknownKind = errors.New("unknown backend kind")

	// ErrProjectRootRequired is returned when a backend is built without a project root
	ErrProjectRootRequired = errors.New("project root is required")
)
