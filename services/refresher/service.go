package refresher

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"anirec/models"
)

// MetadataService re-fetches the enriched record for a series.
type MetadataService interface {
	Details(ctx context.Context, malID int) (*models.Anime, error)
}

// TrackingService exposes the tracked records the refresher maintains.
type TrackingService interface {
	ListAiring() ([]models.TrackedAnime, error)
	UpdateProjection(id string, totalEpisodes int, airing bool, nextEpisodeDate *string) error
}

// Service periodically recomputes the airing projection for every tracked
// series still flagged as airing, so stored episode counts and next-air
// dates do not go stale between client visits.
type Service struct {
	metadata MetadataService
	tracking TrackingService
	interval time.Duration
	logger   *logrus.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService creates a projection refresher running every interval.
func NewService(metadata MetadataService, tracking TrackingService, interval time.Duration, logger *logrus.Logger) *Service {
	return &Service{
		metadata: metadata,
		tracking: tracking,
		interval: interval,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the background refresh loop. The first pass runs after one
// full interval; records are already fresh at startup only if a client just
// wrote them, so an immediate pass would mostly re-fetch identical data.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.refreshAll(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	s.logger.WithField("interval", s.interval).Info("Projection refresher started")
}

// Stop terminates the refresh loop and waits for an in-flight pass to finish.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
	s.logger.Info("Projection refresher stopped")
}

// refreshAll re-enriches each distinct airing series once and writes the new
// projection back to every record tracking it. Per-series failures are
// logged and skipped; the pass continues.
func (s *Service) refreshAll(ctx context.Context) {
	records, err := s.tracking.ListAiring()
	if err != nil {
		s.logger.WithError(err).Error("Projection refresh: listing airing records failed")
		return
	}
	if len(records) == 0 {
		return
	}

	byMALID := make(map[int][]models.TrackedAnime)
	for _, record := range records {
		byMALID[record.MALID] = append(byMALID[record.MALID], record)
	}

	s.logger.WithFields(logrus.Fields{
		"records": len(records),
		"series":  len(byMALID),
	}).Info("Projection refresh starting")

	for malID, tracked := range byMALID {
		if ctx.Err() != nil {
			return
		}

		anime, err := s.metadata.Details(ctx, malID)
		if err != nil {
			s.logger.WithError(err).WithField("mal_id", malID).
				Warn("Projection refresh: enrichment failed, keeping stored values")
			continue
		}

		for _, record := range tracked {
			if err := s.tracking.UpdateProjection(record.ID, anime.TotalEpisodes, anime.Airing, anime.NextEpisodeDate); err != nil {
				s.logger.WithError(err).WithField("id", record.ID).
					Warn("Projection refresh: update failed")
			}
		}
	}
}
