package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "uptime-sentinel",
	Short: "Probe an endpoint and keep a durable history of its reachability",
	Long: `uptime-sentinel probes a single endpoint on a fixed interval, records every
change between reachable and unreachable, persists the history to a JSON file,
and serves it together with a dashboard over HTTP.

Configuration comes from an optional YAML file, a local .env file and
UPTIME_* environment variables, in increasing precedence.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to YAML config file")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
