package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper runs the engine's staleness sweep on a fixed interval.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
}

func NewSweeper(engine *Engine, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{engine: engine, interval: interval}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Info().Str("module", "app.sweeper").Dur("interval", s.interval).Msg("sweeper started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "app.sweeper").Msg("sweeper stopped")
			return
		case <-ticker.C:
			if n := s.engine.Sweep(time.Now()); n > 0 {
				log.Info().Str("module", "app.sweeper").Int("removed", n).Msg("sweep evicted stale participants")
			}
		}
	}
}
