package main

import (
	"fmt"
	"io"

	"github.com/nholik/uptime-sentinel/internal/clock"
	"github.com/nholik/uptime-sentinel/internal/config"
	"github.com/nholik/uptime-sentinel/internal/state"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check configuration and the persisted history file",
	Long: `Load configuration and the history file without starting the monitor.

Exits non-zero if the configuration is invalid or the history file exists
but cannot be read or decoded.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	return validate(cmd, configFile, cmd.OutOrStdout())
}

func validate(cmd *cobra.Command, configFile string, out io.Writer) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	store := state.NewFileStore(cfg.DataFile, clock.System{}, zerolog.Nop())
	h, err := store.Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("invalid history: %w", err)
	}

	fmt.Fprintf(out, "config ok: target %s every %s (timeout %s, retain %s)\n",
		cfg.TargetURL, cfg.PollInterval, cfg.ProbeTimeout, cfg.RetainWindow)
	fmt.Fprintf(out, "history ok: %s holds %d events, current state %s, last update %d\n",
		store.Path(), len(h.States), h.Current(), h.LastUpdate)
	return nil
}
