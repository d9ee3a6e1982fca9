package metadata

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"anirec/models"
	"anirec/utils"
)

const (
	searchLimit = 10
	// Bounded fan-out for per-item search enrichment; keeps a 10-result
	// search from bursting 20 simultaneous upstream calls.
	enrichWorkers = 4
)

// Service composes Jikan lookups with the airing projector to produce
// normalized series records.
type Service struct {
	jikan  *jikanClient
	logger *logrus.Logger

	// now is injectable so projection tests can pin the clock.
	now func() time.Time
}

// NewService creates a metadata service backed by the Jikan API at baseURL.
// retryAttempts/retryDelay bound the retry applied to rate-limited responses.
func NewService(baseURL string, retryAttempts int, retryDelay time.Duration, logger *logrus.Logger) *Service {
	return &Service{
		jikan:  newJikanClient(baseURL, &http.Client{Timeout: 15 * time.Second}, retryAttempts, retryDelay, logger),
		logger: logger,
		now:    time.Now,
	}
}

// Details returns the normalized record for one series. The detail and
// pictures lookups run concurrently; if either fails the whole operation
// fails, never a partial record.
func (s *Service) Details(ctx context.Context, malID int) (*models.Anime, error) {
	var (
		detail   *jikanAnime
		pictures []jikanImageSet
	)

	p := pool.New().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		var err error
		detail, err = s.jikan.animeFull(ctx, malID)
		return err
	})
	p.Go(func(ctx context.Context) error {
		var err error
		pictures, err = s.jikan.animePictures(ctx, malID)
		return err
	})
	if err := p.Wait(); err != nil {
		return nil, fmt.Errorf("enrich anime %d: %w", malID, err)
	}

	return s.normalize(detail, pictures), nil
}

// Search runs a free-text search and enriches each hit with its full record.
// A hit whose enrichment fails is degraded to the raw search data instead of
// failing the whole search; degraded items assume the series is not airing.
func (s *Service) Search(ctx context.Context, query string) ([]models.Anime, error) {
	raw, err := s.jikan.search(ctx, query, searchLimit)
	if err != nil {
		return nil, err
	}

	results := make([]models.Anime, len(raw))
	p := pool.New().WithMaxGoroutines(enrichWorkers)
	for i, hit := range raw {
		i, hit := i, hit
		p.Go(func() {
			enriched, err := s.Details(ctx, hit.MALID)
			if err != nil {
				s.logger.WithError(err).WithField("mal_id", hit.MALID).
					Warn("Search enrichment failed, returning degraded record")
				results[i] = degradedAnime(hit)
				return
			}
			results[i] = *enriched
		})
	}
	p.Wait()

	return results, nil
}

// normalize maps raw Jikan data to the tracking record shape. Image
// precedence: first pictures entry, else the detail record's own thumbnail.
// Airing series get projected episode counts; finished ones keep the
// source's authoritative count and any source-provided next-air timestamp.
func (s *Service) normalize(detail *jikanAnime, pictures []jikanImageSet) *models.Anime {
	picture := detail.Images.JPG.LargeImageURL
	if len(pictures) > 0 && pictures[0].JPG.LargeImageURL != "" {
		picture = pictures[0].JPG.LargeImageURL
	}
	picture = sanitizeImageURL(picture)

	anime := &models.Anime{
		MALID:   detail.MALID,
		Title:   detail.Title,
		Airing:  detail.Airing,
		Picture: picture,
	}

	if detail.Airing {
		anime.TotalEpisodes, anime.NextEpisodeDate = s.project(detail)
	} else {
		anime.TotalEpisodes = detail.Episodes
		anime.NextEpisodeDate = detail.Broadcast.NextAired
	}
	return anime
}

// project runs the airing projector against the series' recorded start date
// and broadcast day. A missing start date or unresolvable weekday skips the
// projection (zero episodes, no next date) rather than failing.
func (s *Service) project(detail *jikanAnime) (int, *string) {
	if detail.Aired.From == nil {
		return 0, nil
	}
	start, err := time.Parse(time.RFC3339, *detail.Aired.From)
	if err != nil {
		s.logger.WithField("mal_id", detail.MALID).
			WithError(err).Debug("Unparseable start date, skipping projection")
		return 0, nil
	}
	weekday, ok := ResolveWeekday(detail.Broadcast.Day)
	if !ok {
		return 0, nil
	}

	episodes, next := ProjectAiring(start, weekday, s.now())
	if next == nil {
		return episodes, nil
	}
	formatted := next.UTC().Format(time.RFC3339)
	return episodes, &formatted
}

// degradedAnime builds the minimal fallback record from raw search data.
func degradedAnime(hit jikanAnime) models.Anime {
	return models.Anime{
		MALID:         hit.MALID,
		Title:         hit.Title,
		Airing:        false,
		TotalEpisodes: hit.Episodes,
		Picture:       sanitizeImageURL(hit.Images.JPG.LargeImageURL),
	}
}

// sanitizeImageURL percent-encodes stray spaces some upstream image URLs carry.
func sanitizeImageURL(raw string) string {
	if raw == "" {
		return ""
	}
	encoded, err := utils.EncodeURLWithSpaces(raw)
	if err != nil {
		return raw
	}
	return encoded
}
