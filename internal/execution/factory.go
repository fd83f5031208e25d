package execution

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Jetpackjules/Kalshi-Trader/internal/infra"
	"github.com/Jetpackjules/Kalshi-Trader/internal/infra/kalshi"
)

// Mode selects the execution backend.
type Mode string

const (
	ModeSim  Mode = "sim"
	ModeLive Mode = "live"
)

// New builds the execution adapter for the configured trading mode.
func New(cfg *infra.Config) (Adapter, error) {
	mode := Mode(strings.ToLower(cfg.Trading.Mode))

	switch mode {
	case ModeSim:
		slog.Info("Execution backend: simulator")
		return NewSimAdapter(), nil

	case ModeLive:
		// Real trading: SAFETY LATCH CHECK
		if os.Getenv("CONFIRM_REAL_MONEY") != "true" {
			err := fmt.Errorf("SAFETY_GUARD: live trading requires 'CONFIRM_REAL_MONEY=true' environment variable")
			slog.Error(err.Error())
			return nil, err
		}

		slog.Info("🚨🚨🚨 Connecting to Kalshi LIVE 🚨🚨🚨")
		signer, err := kalshi.NewSigner(cfg.API.Kalshi.AccessKey, cfg.API.Kalshi.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("live signer: %w", err)
		}
		client := kalshi.NewClient(cfg.API.Kalshi.RestURL, signer)
		return NewLiveAdapter(client, cfg.API.Kalshi.Tickers, cfg.PollInterval()), nil

	default:
		return nil, fmt.Errorf("unknown execution mode: %s", cfg.Trading.Mode)
	}
}
