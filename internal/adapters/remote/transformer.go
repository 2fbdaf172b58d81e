package remote

import (
	"time"

	"imgadapt/internal/core/port"

	"github.com/rs/zerolog/log"
)

type Mode string

const (
	ModeSimulate Mode = "simulate"
	ModeReal     Mode = "real"
)

// NewTransformer picks the implementation for mode. Real mode without credentials falls back to the
// simulator, which fails images whose name contains one of failMarkers.
func NewTransformer(mode Mode, cfg Config, simLatency time.Duration, failMarkers ...string) port.Transformer {
	if mode == ModeReal {
		if cfg.APIKey != "" {
			return NewAPIMart(cfg)
		}
		log.Warn().Msg("no api key configured, falling back to simulator")
	}

	return NewSimulator(simLatency, failMarkers...)
}
