// RelayBot - cross-channel customer/agent conversation router

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/relaybot/cmd/relaybot/internal"
	"github.com/tinyland-inc/relaybot/cmd/relaybot/internal/console"
	"github.com/tinyland-inc/relaybot/cmd/relaybot/internal/gateway"
	"github.com/tinyland-inc/relaybot/cmd/relaybot/internal/onboard"
	"github.com/tinyland-inc/relaybot/cmd/relaybot/internal/version"
)

func NewRelaybotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "relaybot",
		Short:   fmt.Sprintf("relaybot - customer/agent conversation router v%s", internal.GetVersion()),
		Example: "relaybot gateway",
	}

	cmd.AddCommand(
		onboard.NewOnboardCommand(),
		gateway.NewGatewayCommand(),
		console.NewConsoleCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewRelaybotCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
