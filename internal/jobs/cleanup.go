package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/opsdeck/pairing-server-go/internal/repository"
)

// CleanupJob reaps pairing records nobody will read again: cancelled
// ones, and expired ones past the retention window. Expiry itself never
// depends on this job running; reads derive it from the clock.
type CleanupJob struct {
	pairingRepo repository.PairingRepository
	interval    time.Duration
	done        chan struct{}
}

func NewCleanupJob(pairingRepo repository.PairingRepository, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		pairingRepo: pairingRepo,
		interval:    interval,
		done:        make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.runCleanup(ctx, "pairing records", j.pairingRepo.DeleteExpired)
}

func (j *CleanupJob) runCleanup(ctx context.Context, name string, fn func(context.Context) (int64, error)) {
	count, err := fn(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", name)
	}
}
