package presence

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	domain "moveon-server/services/messaging-api/internal/domain/presence"
	"moveon-server/services/messaging-api/internal/infrastructure/metrics"
)

// Sweeper closes connections that stopped answering. Closing a handle makes
// its read loop exit, which runs the normal detach path.
type Sweeper struct {
	registry  *domain.Registry
	staleTTL  time.Duration
	interval  time.Duration
	log       zerolog.Logger
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewSweeper(registry *domain.Registry, staleTTL, interval time.Duration, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		registry: registry,
		staleTTL: staleTTL,
		interval: interval,
		log:      log.With().Str("component", "presence-sweeper").Logger(),
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop. Only the first call has an effect.
func (s *Sweeper) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run(ctx)
		s.log.Info().Dur("interval", s.interval).Dur("stale_ttl", s.staleTTL).Msg("presence sweeper started")
	})
}

// Stop ends the sweep loop and waits for it. Only the first call has an effect.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.log.Info().Msg("presence sweeper stopped")
	})
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.Sweep(time.Now())
		}
	}
}

// Sweep closes every handle idle since before now-staleTTL and returns how many it closed.
func (s *Sweeper) Sweep(now time.Time) int {
	closed := 0
	for _, h := range s.registry.Stale(now.Add(-s.staleTTL)) {
		if err := h.Close(); err != nil {
			s.log.Debug().Err(err).Str("connection_id", h.ID()).Msg("close stale connection")
		}
		metrics.RecordStaleConnectionClosed()
		closed++
		s.log.Info().
			Str("connection_id", h.ID()).
			Str("user_id", h.UserID()).
			Time("last_seen", h.LastSeen()).
			Msg("stale connection closed")
	}
	return closed
}
