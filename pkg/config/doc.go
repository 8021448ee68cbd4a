// Package config loads hatch configuration.
//
// Settings are layered, later layers winning: built-in defaults, a YAML file
// (--config, or hatch.yaml in the working directory when present), HATCH_*
// environment variables, then command line flags applied by the caller.
//
// Example hatch.yaml:
//
//	project_root: .
//	plugin_root: plugins
//	report_dir: reports
//	backend:
//	  kind: container
//	  timeout: 30s
//	container:
//	  engine: api
//	  image: hatch-sandbox:latest
//	observability:
//	  log_level: debug
//	  metrics_file: /var/lib/node_exporter/hatch.prom
//
// Environment variables:
//
//	HATCH_PROJECT_ROOT, HATCH_PLUGIN_ROOT, HATCH_REPORT_DIR
//	HATCH_MANIFEST_FILE, HATCH_ENTRYPOINT_FILE
//	HATCH_AUDIT_LOG  # unset disables the audit log
//	HATCH_BACKEND="direct"  # direct, container
//	HATCH_TIMEOUT="25s"     # bare integers are seconds
//	HATCH_INTERPRETER="python3"
//	HATCH_CONTAINER_ENGINE="cli"  # cli, api
//	HATCH_CONTAINER_RUNTIME, HATCH_CONTAINER_IMAGE, HATCH_CONTAINER_INTERPRETER
//	HATCH_CONTAINER_TMPFS_SIZE
//	HATCH_LOG_LEVEL, HATCH_LOG_FORMAT, HATCH_METRICS_FILE
//	HATCH_OTEL_ENABLED, HATCH_OTEL_ENDPOINT, HATCH_OTEL_INSECURE, HATCH_OTEL_SERVICE_NAME
//
// Relative plugin and report directories are anchored at the project root by
// Resolve.
package config
