package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/intrabot/backtest"
	"github.com/rustyeddy/intrabot/config"
	"github.com/rustyeddy/intrabot/feed"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay historical candles through the trading engine",
	Long: `Backtest replays a CSV candle dataset through the full decision loop:
signals, risk gating, simulated fills, accounting and the circuit
breaker all run exactly as they would live.

The candle CSV format is:
  time,instrument,open,high,low,close,volume
with RFC3339 timestamps in ascending order.

Example:
  intrabot backtest --candles data/btcusd_5m.csv --config intrabot.yaml`,
	RunE: runBacktest,
}

var (
	btCandlesPath string
	btConfigPath  string
	btTimeframe   time.Duration
	btFrom        string
	btTo          string
	btCloseEnd    bool
	btSeed        int64
	btBalance     float64
)

func init() {
	rootCmd.AddCommand(backtestCmd)

	backtestCmd.Flags().StringVarP(&btCandlesPath, "candles", "c", "", "path to candle CSV (required)")
	backtestCmd.Flags().StringVar(&btConfigPath, "config", "", "path to YAML/JSON config (defaults apply when omitted)")
	backtestCmd.Flags().DurationVar(&btTimeframe, "timeframe", 5*time.Minute, "candle timeframe, e.g. 1m, 5m, 1h")
	backtestCmd.Flags().StringVar(&btFrom, "from", "", "replay start, RFC3339 (inclusive)")
	backtestCmd.Flags().StringVar(&btTo, "to", "", "replay end, RFC3339 (exclusive)")
	backtestCmd.Flags().BoolVar(&btCloseEnd, "close-end", true, "flatten open positions at end of replay")
	backtestCmd.Flags().Int64Var(&btSeed, "seed", 0, "override the config's id-generator seed (0 keeps config)")
	backtestCmd.Flags().Float64VarP(&btBalance, "balance", "b", 0, "override the config's starting balance (0 keeps config)")

	backtestCmd.MarkFlagRequired("candles")
}

func loadConfig() (*config.Config, error) {
	if btConfigPath == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(btConfigPath)
}

func parseWindow(from, to string) (time.Time, time.Time, error) {
	var f, t time.Time
	var err error
	if from != "" {
		if f, err = time.Parse(time.RFC3339, from); err != nil {
			return f, t, fmt.Errorf("parse --from: %w", err)
		}
	}
	if to != "" {
		if t, err = time.Parse(time.RFC3339, to); err != nil {
			return f, t, fmt.Errorf("parse --to: %w", err)
		}
	}
	return f, t, nil
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Mode = "backtest"
	if btSeed != 0 {
		cfg.Seed = btSeed
	}
	if btBalance > 0 {
		cfg.Account.Balance = btBalance
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	from, to, err := parseWindow(btFrom, btTo)
	if err != nil {
		return err
	}
	f, err := feed.NewCSVFeed(btCandlesPath, btTimeframe, from, to)
	if err != nil {
		return fmt.Errorf("open candles: %w", err)
	}

	sess, err := buildSession(cfg)
	if err != nil {
		f.Close()
		return err
	}
	defer sess.close()

	runner := &backtest.Runner{
		Engine: sess.engine,
		Feed:   f,
		Options: backtest.Options{
			CloseEnd:    btCloseEnd,
			CloseReason: "EndOfReplay",
		},
	}

	report, err := runner.Run()
	if err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	return report.Render(os.Stdout)
}
