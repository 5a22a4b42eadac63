// Command fcnetctl provisions and tears down the host-side networking a
// microVM needs: a TAP device, optionally a veth pair crossing into a
// dedicated network namespace, and the nftables rules that NAT and forward
// traffic for it. Grounded on the retrieved lxd project's cmdGlobal/cobra
// command-tree idiom.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fcnet/fcnet/internal/config"
	"github.com/fcnet/fcnet/pkg/logger"
)

type cmdGlobal struct {
	cfg *config.Config
	log *logger.Logger

	flagLogLevel  string
	flagLogFormat string
	flagNftProg   string
}

func main() {
	cfg := config.Load()
	global := &cmdGlobal{cfg: cfg}

	app := &cobra.Command{
		Use:           "fcnetctl",
		Short:         "Provision or tear down microVM host networking",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if global.flagLogLevel == "" {
				global.flagLogLevel = cfg.LogLevel
			}
			if global.flagLogFormat == "" {
				global.flagLogFormat = cfg.LogFormat
			}
			if global.flagNftProg == "" {
				global.flagNftProg = cfg.NftProgram
			}
			log, err := logger.New(global.flagLogLevel, global.flagLogFormat)
			if err != nil {
				return err
			}
			global.log = log
			return nil
		},
	}
	app.PersistentFlags().StringVar(&global.flagLogLevel, "log-level", "", "debug|info|warn|error (default from FCNET_LOG_LEVEL)")
	app.PersistentFlags().StringVar(&global.flagLogFormat, "log-format", "", "text|json (default from FCNET_LOG_FORMAT)")
	app.PersistentFlags().StringVar(&global.flagNftProg, "nft-program", "", "path to the nft-compatible binary (default \"nft\" from PATH)")

	app.AddCommand((&cmdAdd{global: global}).Command())
	app.AddCommand((&cmdCheck{global: global}).Command())
	app.AddCommand((&cmdDelete{global: global}).Command())

	if err := app.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
