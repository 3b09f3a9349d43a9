package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/relaybot/cmd/relaybot/internal"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("relaybot %s (%s/%s, %s)\n",
				internal.FormatVersion(), runtime.GOOS, runtime.GOARCH, runtime.Version())
		},
	}
}
