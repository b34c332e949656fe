// Command shdrv-host runs the SH7706 LED and timer drivers against a
// simulated or memory-mapped register block, exposes them over a serial
// link, and drives a remote board from the host side.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"shdrv/host/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "shdrv-host",
	Short:         "SH7706 LED and periodic timer drivers",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "shdrv.toml", "path to configuration file")
	config.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(simCmd, serveCmd, ledCmd, timerCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
