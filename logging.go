package flow

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// progress logs the start, the advance and the end of a node.
type progress struct {
	log       zerolog.Logger
	threshold int64
	count     atomic.Int64
	started   sync.Once
	finished  sync.Once
}

func newProgress(n *node) *progress {
	cfg := n.config()
	p := &progress{log: zerolog.Nop()}
	if cfg.DisableAllLogging || n.settings.disableLogging {
		return p
	}
	p.log = cfg.Logger.With().
		Str("node", n.name).
		Str("kind", n.kind).
		Str("id", n.id.String()).
		Logger()
	p.threshold = int64(cfg.LoggingThresholdRows)
	if n.settings.loggingThreshold > 0 {
		p.threshold = int64(n.settings.loggingThreshold)
	}
	return p
}

func (p *progress) start() {
	p.started.Do(func() {
		p.log.Info().Str("action", "START").Msg("node started")
	})
}

func (p *progress) add(rows int) {
	after := p.count.Add(int64(rows))
	before := after - int64(rows)
	if p.threshold > 0 && after/p.threshold > before/p.threshold {
		p.log.Info().Str("action", "LOG").Int64("rows", after).Msg("records processed")
	}
}

func (p *progress) finish(err error) {
	p.finished.Do(func() {
		if err != nil {
			p.log.Error().Err(err).Str("action", "END").Int64("rows", p.count.Load()).Msg("node faulted")
			return
		}
		p.log.Info().Str("action", "END").Int64("rows", p.count.Load()).Msg("node finished")
	})
}

// rows returns the number of records processed so far.
func (p *progress) rows() int64 {
	return p.count.Load()
}
