package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/intrabot/config"
	"github.com/rustyeddy/intrabot/engine"
	"github.com/rustyeddy/intrabot/feed"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a paper trading session over a streamed candle feed",
	Long: `Run starts a paper session: candles are streamed through the event
queue and drained by the decision loop, exercising the same
concurrency shape a live session uses. Ctrl-C flattens open positions
and prints the session summary.

Example:
  intrabot run --candles data/btcusd_5m.csv --config intrabot.yaml`,
	RunE: runPaper,
}

var (
	runCandlesPath string
	runConfigPath  string
	runTimeframe   time.Duration
	runPace        time.Duration
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runCandlesPath, "candles", "c", "", "path to candle CSV (required)")
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "path to YAML/JSON config (defaults apply when omitted)")
	runCmd.Flags().DurationVar(&runTimeframe, "timeframe", 5*time.Minute, "candle timeframe, e.g. 1m, 5m, 1h")
	runCmd.Flags().DurationVar(&runPace, "pace", 0, "delay between candles (0 streams as fast as possible)")

	runCmd.MarkFlagRequired("candles")
}

func runPaper(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if runConfigPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(runConfigPath); err != nil {
			return err
		}
	}
	cfg.Mode = "paper"
	if err := cfg.Validate(); err != nil {
		return err
	}

	f, err := feed.NewCSVFeed(runCandlesPath, runTimeframe, time.Time{}, time.Time{})
	if err != nil {
		return fmt.Errorf("open candles: %w", err)
	}
	defer f.Close()

	sess, err := buildSession(cfg)
	if err != nil {
		return err
	}
	defer sess.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := sess.engine
	queue := eng.Queue()

	// Producer: stream candles into the queue. The decision loop drains
	// them on the main goroutine below.
	go func() {
		defer queue.Close()
		for {
			c, ok, ferr := f.Next()
			if ferr != nil || !ok {
				return
			}
			for {
				perr := queue.TryPublish(engine.CandleEvent(c))
				if perr == nil {
					break
				}
				if perr == engine.ErrQueueClosed || ctx.Err() != nil {
					return
				}
				time.Sleep(10 * time.Millisecond)
			}
			if runPace > 0 {
				select {
				case <-time.After(runPace):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	if err := eng.Run(ctx); err != nil && err != context.Canceled {
		return err
	}

	status := eng.Status()
	if err := eng.CloseAll(status.Time, "SessionEnd"); err != nil {
		return err
	}

	status = eng.Status()
	fmt.Printf("Session complete\n")
	fmt.Printf("  Equity:  %.2f\n", status.Equity)
	fmt.Printf("  Trades:  %d (%d wins / %d losses)\n", status.Trades, status.Wins, status.Losses)
	fmt.Printf("  Circuit: %s\n", status.Circuit)
	return nil
}
