// monitor.go watches treasury reserves on a cron
// schedule so bootstrap funding never silently runs dry.
package wallet

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// MonitorConfig configures the treasury monitor.
type MonitorConfig struct {
	// Enabled toggles the monitor.
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression ("*/15 * * * *" by default).
	Schedule string `yaml:"schedule"`

	// MinGasWei warns when the treasury's native balance drops below it.
	MinGasWei string `yaml:"min_gas_wei"`

	// MinTokenUnits warns when the treasury's token balance drops below it.
	MinTokenUnits string `yaml:"min_token_units"`

	// CheckTimeout bounds each balance check.
	CheckTimeout time.Duration `yaml:"check_timeout"`
}

// DefaultMonitorConfig returns monitor defaults.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:       true,
		Schedule:      "*/15 * * * *",
		MinGasWei:     "100000000000000000", // 0.1 native
		MinTokenUnits: "100000000",          // 100 tokens at 6 decimals
		CheckTimeout:  30 * time.Second,
	}
}

// Monitor runs periodic treasury balance checks.
type Monitor struct {
	cfg    MonitorConfig
	svc    *Service
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewMonitor creates a treasury monitor.
func NewMonitor(cfg MonitorConfig, svc *Service, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Monitor{
		cfg:    cfg,
		svc:    svc,
		cron:   cron.New(cron.WithParser(parser)),
		logger: logger.With("component", "treasury_monitor"),
	}
}

// Start schedules the checks and runs one immediately.
func (m *Monitor) Start() error {
	if !m.cfg.Enabled {
		return nil
	}
	if _, err := m.cron.AddFunc(m.cfg.Schedule, m.check); err != nil {
		return err
	}
	m.cron.Start()
	m.logger.Info("treasury monitor started", "schedule", m.cfg.Schedule)
	go m.check()
	return nil
}

// Stop halts the cron scheduler and waits for in-flight checks.
func (m *Monitor) Stop() {
	ctx := m.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(10 * time.Second):
		m.logger.Warn("treasury monitor stop timed out")
	}
}

func (m *Monitor) check() {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		if r := recover(); r != nil {
			m.logger.Error("treasury check panic", "error", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CheckTimeout)
	defer cancel()

	gas, err := m.svc.TreasuryGasBalance(ctx)
	if err != nil {
		m.logger.Warn("treasury gas check failed", "error", err)
	} else if minGas, ok := new(big.Int).SetString(m.cfg.MinGasWei, 10); ok && gas.Cmp(minGas) < 0 {
		m.logger.Warn("treasury gas reserve low",
			"balance_wei", gas.String(), "min_wei", m.cfg.MinGasWei)
	} else {
		m.logger.Debug("treasury gas ok", "balance_wei", gas.String())
	}

	tokens, err := m.svc.TreasuryTokenBalance(ctx)
	if err != nil {
		m.logger.Warn("treasury token check failed", "error", err)
	} else if minTok, ok := new(big.Int).SetString(m.cfg.MinTokenUnits, 10); ok && tokens.Cmp(minTok) < 0 {
		m.logger.Warn("treasury token reserve low",
			"balance_units", tokens.String(), "min_units", m.cfg.MinTokenUnits)
	} else {
		m.logger.Debug("treasury tokens ok", "balance_units", tokens.String())
	}
}
