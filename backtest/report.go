package backtest

import (
	"fmt"
	"io"
	"time"

	"github.com/rustyeddy/intrabot/engine"
	"github.com/rustyeddy/intrabot/ledger"
)

// Report summarizes one replay. Rerunning the same dataset with the
// same configuration and seed reproduces it byte for byte.
type Report struct {
	Start   time.Time
	End     time.Time
	Candles int

	StartBalance   float64
	FinalEquity    float64
	TotalReturnPct float64
	MaxDrawdownPct float64

	Trades     int
	Wins       int
	Losses     int
	WinRatePct float64

	DataGaps int

	Curve []ledger.EquityPoint
}

func buildReport(e *engine.Engine, start, end time.Time, candles int) Report {
	led := e.Ledger()
	trades, wins, losses := led.Stats()

	rep := Report{
		Start:        start,
		End:          end,
		Candles:      candles,
		StartBalance: led.StartBalance(),
		FinalEquity:  led.Equity(),
		Trades:       trades,
		Wins:         wins,
		Losses:       losses,
		DataGaps:     e.DataGaps(),
		Curve:        led.Curve(),
	}
	if rep.StartBalance > 0 {
		rep.TotalReturnPct = (rep.FinalEquity - rep.StartBalance) / rep.StartBalance * 100
	}
	if trades > 0 {
		rep.WinRatePct = float64(wins) / float64(trades) * 100
	}
	rep.MaxDrawdownPct = maxDrawdownPct(rep.Curve)
	return rep
}

// maxDrawdownPct is the largest peak-to-trough equity decline over the
// curve, as a percentage of the peak.
func maxDrawdownPct(curve []ledger.EquityPoint) float64 {
	var peak, maxDD float64
	for _, pt := range curve {
		if pt.Equity > peak {
			peak = pt.Equity
		}
		if peak > 0 {
			dd := (peak - pt.Equity) / peak * 100
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// Render writes the human-readable summary. Field order and formatting
// are fixed so reruns diff clean.
func (r Report) Render(w io.Writer) error {
	const layout = "2006-01-02 15:04:05"

	lines := []string{
		"Backtest Report",
		"===============",
		fmt.Sprintf("Period:        %s .. %s", r.Start.UTC().Format(layout), r.End.UTC().Format(layout)),
		fmt.Sprintf("Candles:       %d", r.Candles),
		fmt.Sprintf("Start balance: %.2f", r.StartBalance),
		fmt.Sprintf("Final equity:  %.2f", r.FinalEquity),
		fmt.Sprintf("Total return:  %.2f%%", r.TotalReturnPct),
		fmt.Sprintf("Max drawdown:  %.2f%%", r.MaxDrawdownPct),
		fmt.Sprintf("Trades:        %d (%d wins / %d losses, %.1f%% win rate)",
			r.Trades, r.Wins, r.Losses, r.WinRatePct),
	}
	if r.DataGaps > 0 {
		lines = append(lines, fmt.Sprintf("Data gaps:     %d", r.DataGaps))
	}

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
