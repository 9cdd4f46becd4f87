package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rustyeddy/intrabot/circuit"
	"github.com/rustyeddy/intrabot/config"
	"github.com/rustyeddy/intrabot/engine"
	"github.com/rustyeddy/intrabot/journal"
	"github.com/rustyeddy/intrabot/ledger"
	"github.com/rustyeddy/intrabot/order"
	"github.com/rustyeddy/intrabot/pkg/id"
	"github.com/rustyeddy/intrabot/risk"
	"github.com/rustyeddy/intrabot/sim"
	"github.com/rustyeddy/intrabot/strategy"
)

// session bundles everything a command needs to run and tear down one
// trading session built from a config.
type session struct {
	engine  *engine.Engine
	journal journal.Journal
	log     *zap.Logger
}

func (s *session) close() {
	if s.journal != nil {
		_ = s.journal.Close()
	}
	_ = s.log.Sync()
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "sqlite":
		return journal.NewSQLite(jc.DBPath)
	case "csv":
		return journal.NewCSV(jc.TradesFile, jc.EquityFile)
	case "", "none":
		return journal.Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown journal type %q", jc.Type)
	}
}

func resumePolicy(name string) circuit.ResumePolicy {
	if name == "manual" {
		return circuit.ResumeManual
	}
	return circuit.ResumeDaily
}

// buildSession wires the full component graph from a validated config.
func buildSession(cfg *config.Config) (*session, error) {
	log, err := newLogger()
	if err != nil {
		return nil, err
	}

	j, err := newJournal(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	ackTimeout, err := cfg.Exec.ParseAckTimeout()
	if err != nil {
		return nil, err
	}
	backoff, err := cfg.Exec.ParseCancelBackoff()
	if err != nil {
		return nil, err
	}

	led := ledger.New(cfg.Account.Balance, j, log)
	breaker := circuit.NewBreaker(circuit.Config{
		SoftDrawdownPct: cfg.Circuit.SoftDrawdownPct,
		MaxDrawdownPct:  cfg.Circuit.MaxDrawdownPct,
		MaxExecErrors:   cfg.Circuit.MaxExecErrors,
		ResumePolicy:    resumePolicy(cfg.Circuit.ResumePolicy),
	}, log)
	gate := risk.NewGate(risk.Limits{
		MaxRiskPct:             cfg.Risk.MaxRiskPct,
		MaxConcurrentPositions: cfg.Risk.MaxConcurrentPositions,
		PositionSizeCap:        cfg.Risk.PositionSizeCap,
	}, log)
	book := order.NewBook(ackTimeout, backoff, cfg.Exec.MaxCancelRetries, log)
	adapter := sim.New(sim.Config{
		HalfSpread:   cfg.Sim.HalfSpread,
		SlippageBps:  cfg.Sim.SlippageBps,
		LatencyBars:  cfg.Sim.LatencyBars,
		TakerFeeBps:  cfg.Sim.TakerFeeBps,
		MaxFillUnits: cfg.Sim.MaxFillUnits,
	}, log)

	eng := engine.New(engine.Params{
		Mode: cfg.Mode,
		Strategy: strategy.Params{
			FastPeriod:    cfg.Strategy.FastPeriod,
			SlowPeriod:    cfg.Strategy.SlowPeriod,
			PullbackPct:   cfg.Strategy.PullbackPct,
			VolatilityMax: cfg.Strategy.VolatilityMax,
			ATRPeriod:     cfg.Strategy.ATRPeriod,
			StopLookback:  cfg.Strategy.StopLookback,
			TargetR:       cfg.Strategy.TargetR,
		},
		Gate:             gate,
		Book:             book,
		Adapter:          adapter,
		Ledger:           led,
		Breaker:          breaker,
		IDs:              id.NewGenerator(cfg.Seed),
		Log:              log,
		MaxSubmitRetries: cfg.Exec.MaxSubmitRetries,
	})

	return &session{engine: eng, journal: j, log: log}, nil
}
