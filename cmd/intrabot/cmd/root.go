package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "intrabot",
	Short: "A deterministic intraday trading engine with a backtest replay mode",
	Long: `Intrabot is an intraday trading decision and execution engine.

It provides:
  - EMA pullback signal generation over closed candles
  - Risk-based position sizing behind a pre-trade gate
  - A full order lifecycle with a simulated fill model
  - Position, P&L and equity-curve accounting
  - An account-level circuit breaker with daily reset
  - Deterministic backtest replay over CSV candle data`,
}

var verbose bool

// Execute runs the root command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
