// Package plugins discovers plugin directories and gates them by policy.
//
// # Overview
//
// A plugin is a directory holding a manifest (manifest.json) and an
// entrypoint file. The package never loads or imports plugin code: it only
// resolves paths and manifest data that the runner package later executes.
//
// # Catalog
//
// Catalog scans a plugin root on every call. There is no cache, so results
// reflect the filesystem at call time:
//
//	catalog := plugins.NewCatalog(plugins.CatalogConfig{Root: "plugins"}, log)
//	records, err := catalog.Discover(ctx, false)
//
// Manifests that fail to parse are logged and skipped. Manifests missing
// required keys are kept with ValidManifest=false and MissingFields set.
//
// # Policy gate
//
// ValidateLocalOnly and CheckPolicy implement the network-policy gate:
//
//	if err := plugins.CheckPolicy(record.Manifest); err != nil {
//		return err // errors.Is(err, plugins.ErrPolicyRejected)
//	}
//
// Only a manifest declaring network_policy "local-only" (any case, surrounding
// whitespace ignored) passes.
//
// # Related Packages
//
//   - pkg/runner: executes an entrypoint
//   - pkg/orchestrator: composes discovery, policy, execution and reporting
package plugins
