// Package main provides the ttasched command. It list-schedules a small
// sample program on the sample TTA machine and prints the schedule.
package main

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"

	"github.com/sarchlab/ttasched/resource"
)

var (
	initiationInterval int
	conservative       bool
	configPath         string
	verbosity          int
	maxCycles          int
	alus               int
)

var rootCmd = &cobra.Command{
	Use:   "ttasched",
	Short: "Schedule a sample program on a sample TTA machine",
	Long: `ttasched builds the sample machine (ALUs, a multiplier, a divider,
a load-store unit and a control unit), list-schedules a small guarded
program on it and prints the cycle of every move.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		res, err := scheduleSample(cfg, alus, newLogger(verbosity))
		if err != nil {
			return err
		}

		res.report(cmd.OutOrStdout())

		return nil
	},
}

func init() {
	rootCmd.Flags().IntVar(&initiationInterval, "ii", 0,
		"Initiation interval, 0 disables modulo scheduling")
	rootCmd.Flags().BoolVar(&conservative, "conservative", false,
		"Do not share resources between moves with exclusive guards")
	rootCmd.Flags().IntVar(&maxCycles, "max-cycles", 0,
		"Cycles tried for each move before giving up")
	rootCmd.Flags().StringVar(&configPath, "config", "",
		"Path to scheduler configuration JSON file")
	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v",
		"Log verbosity, repeat for more detail")
	rootCmd.Flags().IntVar(&alus, "alus", 2, "Number of ALUs in the machine")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file, if any, and applies the flags
// that were set explicitly on top of it.
func loadConfig(cmd *cobra.Command) (*resource.SchedulerConfig, error) {
	cfg := resource.DefaultSchedulerConfig()
	if configPath != "" {
		var err error
		cfg, err = resource.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
	}

	if cmd.Flags().Changed("ii") {
		cfg.InitiationInterval = initiationInterval
	}
	if cmd.Flags().Changed("conservative") {
		cfg.Conservative = conservative
	}
	if cmd.Flags().Changed("max-cycles") {
		cfg.MaxCycles = maxCycles
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}

	return cfg, nil
}

func newLogger(verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: verbosity})
}
