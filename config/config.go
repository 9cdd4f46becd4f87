// Package config loads and validates session configuration from YAML
// or JSON files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete session configuration.
type Config struct {
	// Mode selects the session type: "backtest", "paper" or "live".
	Mode string `json:"mode" yaml:"mode"`
	// Seed drives the deterministic order-id generator. Two runs with
	// the same seed and dataset produce identical ids.
	Seed int64 `json:"seed" yaml:"seed"`

	Account  AccountConfig  `json:"account" yaml:"account"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Risk     RiskConfig     `json:"risk" yaml:"risk"`
	Circuit  CircuitConfig  `json:"circuit" yaml:"circuit"`
	Sim      SimConfig      `json:"sim" yaml:"sim"`
	Exec     ExecConfig     `json:"exec" yaml:"exec"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
}

// AccountConfig seeds the ledger.
type AccountConfig struct {
	Currency string  `json:"currency" yaml:"currency"`
	Balance  float64 `json:"balance" yaml:"balance"`
}

// StrategyConfig holds the EMA pullback parameters.
type StrategyConfig struct {
	FastPeriod    int     `json:"fast_period" yaml:"fast_period"`
	SlowPeriod    int     `json:"slow_period" yaml:"slow_period"`
	PullbackPct   float64 `json:"pullback_pct" yaml:"pullback_pct"`
	VolatilityMax float64 `json:"volatility_max" yaml:"volatility_max"`
	ATRPeriod     int     `json:"atr_period" yaml:"atr_period"`
	StopLookback  int     `json:"stop_lookback" yaml:"stop_lookback"`
	TargetR       float64 `json:"target_r" yaml:"target_r"`
}

// RiskConfig holds the pre-trade gate limits.
type RiskConfig struct {
	MaxRiskPct             float64 `json:"max_risk_pct" yaml:"max_risk_pct"`
	MaxConcurrentPositions int     `json:"max_concurrent_positions" yaml:"max_concurrent_positions"`
	PositionSizeCap        float64 `json:"position_size_cap" yaml:"position_size_cap"`
}

// CircuitConfig holds the account-level breaker thresholds.
type CircuitConfig struct {
	SoftDrawdownPct float64 `json:"soft_drawdown_pct" yaml:"soft_drawdown_pct"`
	MaxDrawdownPct  float64 `json:"max_drawdown_pct" yaml:"max_drawdown_pct"`
	MaxExecErrors   int     `json:"max_exec_errors" yaml:"max_exec_errors"`
	// ResumePolicy is "daily" or "manual".
	ResumePolicy string `json:"resume_policy" yaml:"resume_policy"`
}

// SimConfig holds the fill-model parameters.
type SimConfig struct {
	HalfSpread   float64 `json:"half_spread" yaml:"half_spread"`
	SlippageBps  float64 `json:"slippage_bps" yaml:"slippage_bps"`
	LatencyBars  int     `json:"latency_bars" yaml:"latency_bars"`
	TakerFeeBps  float64 `json:"taker_fee_bps" yaml:"taker_fee_bps"`
	MaxFillUnits float64 `json:"max_fill_units,omitempty" yaml:"max_fill_units,omitempty"`
}

// ExecConfig holds order lifecycle timing.
type ExecConfig struct {
	// AckTimeout is how long a submitted order may wait for venue
	// acknowledgement before a cancel is issued, e.g. "30s".
	AckTimeout string `json:"ack_timeout" yaml:"ack_timeout"`
	// CancelBackoff is the base of the exponential retry backoff.
	CancelBackoff    string `json:"cancel_backoff" yaml:"cancel_backoff"`
	MaxCancelRetries int    `json:"max_cancel_retries" yaml:"max_cancel_retries"`
	MaxSubmitRetries int    `json:"max_submit_retries" yaml:"max_submit_retries"`
}

// ParseAckTimeout returns the acknowledgement timeout as a duration.
func (e ExecConfig) ParseAckTimeout() (time.Duration, error) {
	if e.AckTimeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(e.AckTimeout)
}

// ParseCancelBackoff returns the cancel backoff base as a duration.
func (e ExecConfig) ParseCancelBackoff() (time.Duration, error) {
	if e.CancelBackoff == "" {
		return time.Second, nil
	}
	return time.ParseDuration(e.CancelBackoff)
}

// JournalConfig selects the trade journal backend.
type JournalConfig struct {
	// Type is "sqlite", "csv" or "none".
	Type       string `json:"type" yaml:"type"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	EquityFile string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
}

// Default returns a configuration suitable for a paper or backtest
// session out of the box.
func Default() *Config {
	return &Config{
		Mode: "backtest",
		Seed: 1,
		Account: AccountConfig{
			Currency: "USD",
			Balance:  10000,
		},
		Strategy: StrategyConfig{
			FastPeriod:    9,
			SlowPeriod:    21,
			PullbackPct:   0.002,
			VolatilityMax: 0.05,
			ATRPeriod:     14,
			StopLookback:  10,
			TargetR:       1.5,
		},
		Risk: RiskConfig{
			MaxRiskPct:             0.01,
			MaxConcurrentPositions: 1,
		},
		Circuit: CircuitConfig{
			SoftDrawdownPct: 0.05,
			MaxDrawdownPct:  0.06,
			MaxExecErrors:   5,
			ResumePolicy:    "daily",
		},
		Sim: SimConfig{
			HalfSpread:  0.0001,
			SlippageBps: 0.5,
			LatencyBars: 1,
			TakerFeeBps: 0,
		},
		Exec: ExecConfig{
			AckTimeout:       "30s",
			CancelBackoff:    "1s",
			MaxCancelRetries: 3,
			MaxSubmitRetries: 3,
		},
		Journal: JournalConfig{Type: "none"},
	}
}

// LoadFromFile reads a configuration file, trying YAML first and
// falling back to JSON, then validates it. Missing sections keep their
// defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if yerr := yaml.Unmarshal(data, cfg); yerr != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", yerr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the session could not run safely.
func (c *Config) Validate() error {
	switch c.Mode {
	case "backtest", "paper", "live":
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}

	if c.Account.Balance <= 0 {
		return fmt.Errorf("config: account balance must be positive, got %v", c.Account.Balance)
	}
	if c.Strategy.FastPeriod <= 0 || c.Strategy.SlowPeriod <= 0 {
		return fmt.Errorf("config: strategy periods must be positive")
	}
	if c.Strategy.FastPeriod >= c.Strategy.SlowPeriod {
		return fmt.Errorf("config: fast period %d must be below slow period %d",
			c.Strategy.FastPeriod, c.Strategy.SlowPeriod)
	}
	if c.Risk.MaxRiskPct <= 0 || c.Risk.MaxRiskPct > 1 {
		return fmt.Errorf("config: max_risk_pct must be in (0, 1], got %v", c.Risk.MaxRiskPct)
	}
	if c.Circuit.SoftDrawdownPct > c.Circuit.MaxDrawdownPct {
		return fmt.Errorf("config: soft_drawdown_pct %v above max_drawdown_pct %v",
			c.Circuit.SoftDrawdownPct, c.Circuit.MaxDrawdownPct)
	}
	switch c.Circuit.ResumePolicy {
	case "", "daily", "manual":
	default:
		return fmt.Errorf("config: unknown resume policy %q", c.Circuit.ResumePolicy)
	}
	if c.Sim.SlippageBps < 0 || c.Sim.TakerFeeBps < 0 {
		return fmt.Errorf("config: slippage and fees must not be negative")
	}
	if _, err := c.Exec.ParseAckTimeout(); err != nil {
		return fmt.Errorf("config: ack_timeout: %w", err)
	}
	if _, err := c.Exec.ParseCancelBackoff(); err != nil {
		return fmt.Errorf("config: cancel_backoff: %w", err)
	}
	switch c.Journal.Type {
	case "", "none", "sqlite", "csv":
	default:
		return fmt.Errorf("config: unknown journal type %q", c.Journal.Type)
	}
	return nil
}
