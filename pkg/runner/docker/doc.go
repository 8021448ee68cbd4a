// Package docker is the Docker Engine API container engine.
//
// Importing the package registers the "api" engine with pkg/runner:
//
//	import _ "github.com/platinummonkey/hatch/pkg/runner/docker"
//
//	backend, err := runner.New(runner.KindContainer, docker.EngineAPI, cfg, log)
//
// The container is created with networking disabled, a read-only root
// filesystem, the scratch tmpfs and the read-only project bind mount described
// by runner.PlanContainer. It is always force-removed after its logs are read.
package docker
