// Package cli implements the hatch command line.
//
// Commands:
//
//	hatch run <plugin> [phases...] [--container] [--timeout 25s] [--report-dir dir]
//	hatch plugins list [--all] | info <plugin> | validate | watch
//	hatch reports list [--limit 30] | latest
//	hatch doctor
//	hatch version
//
// A run exits with the plugin's return code. Refusals before anything runs
// (policy, unknown plugin, bad usage or configuration) exit 2 and other
// hatch failures exit 1.
package cli
