// Command devmon wires the device package's Device Controller against a
// live system bus and prints property-change events, the way bluetoothctl
// inspects live devices — the ambient "does it actually run" surface
// SPEC_FULL.md §2 names for this repository.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/makesoftwaresafe/bluez/config"
)

var cfgPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "devmon",
		Short: "Inspect and drive BlueZ device objects",
		Long: `devmon embeds the device package's per-remote-device state machine
against a live org.bluez system bus connection.

  devmon watch <addr>    stream property-change events for one device
  devmon pair <addr>     start a bonding attempt and wait for the outcome
  devmon forget <addr>   remove a device's persisted pairing material`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(
		newWatchCmd(),
		newPairCmd(),
		newForgetCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Println("devmon dev build")
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgPath)
}
