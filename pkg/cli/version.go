package cli

import (
	"runtime"

	"github.com/platinummonkey/hatch/pkg/runner"
	"github.com/spf13/cobra"
)

func newVersionCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        noArgs,
		Annotations: map[string]string{skipSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetOut(app.Stdout)
			cmd.Printf("hatch version %s\n", Version)
			cmd.Printf("Build time: %s\n", BuildTime)
			cmd.Printf("Go version: %s\n", goVersion())
			cmd.Printf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
			cmd.Printf("Container engines: %v\n", runner.Engines())
			return nil
		},
	}
}
