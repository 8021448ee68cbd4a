package plugins

import (
	"fmt"
	"strings"
)

// PolicyLocalOnly is the only network policy under which a plugin may execute
const PolicyLocalOnly = "local-only"

// NormalizePolicy trims and case-folds a declared network policy
func NormalizePolicy(policy string) string {
	return strings.ToLower(strings.TrimSpace(policy))
}

// ValidateLocalOnly reports whether the manifest explicitly declares
// network_policy "local-only". Absent, empty and non-string values fail.
func ValidateLocalOnly(manifest Manifest) bool {
	raw, ok := manifest.Value(FieldNetworkPolicy)
	if !ok {
		return false
	}
	policy, ok := raw.(string)
	if !ok {
		return false
	}
	return NormalizePolicy(policy) == PolicyLocalOnly
}

// CheckPolicy is the hard gate in front of every execution. A nil error is the
// only outcome that allows a process to be spawned.
func CheckPolicy(manifest Manifest) error {
	if ValidateLocalOnly(manifest) {
		return nil
	}
	declared := manifest.NetworkPolicy()
	if declared == "" {
		declared = "<unset>"
	}
	return fmt.Errorf("%w: network_policy must be %q, manifest declares %q",
		ErrPolicyRejected, PolicyLocalOnly, declared)
}
