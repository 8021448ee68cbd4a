package plugins

import "errors"

var (
	// ErrManifestNotFound is returned when a plugin directory has no manifest
	ErrManifestNotFound = errors.New("manifest not found")

	// ErrManifestInvalid is returned when a manifest cannot be parsed
	ErrManifestInvalid = errors.New("invalid manifest")

	// ErrPluginNotFound is returned when no discovered plugin has the requested name
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrPolicyRejected is returned when a manifest does not declare local-only networking
	ErrPolicyRejected = errors.New("policy rejected")
)
