package main

import (
	"github.com/platinummonkey/hatch/pkg/cli"

	// Registers the Docker Engine API container engine
	_ "github.com/platinummonkey/hatch/pkg/runner/docker"
)

func main() {
	cli.Execute()
}
