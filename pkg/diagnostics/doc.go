// Package diagnostics checks that the host can run plugins: interpreter and
// container tooling, report directory permissions and manifest completeness.
// Its report is what `hatch doctor` prints and saves.
package diagnostics
