package tracking

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"anirec/internal/database"
	"anirec/models"
)

var (
	ErrUserIDRequired   = errors.New("user id is required")
	ErrTitleRequired    = errors.New("title is required")
	ErrNegativeEpisodes = errors.New("watched episodes must not be negative")
	ErrInvalidStatus    = errors.New("invalid watch status")
	ErrNotFound         = errors.New("tracked anime not found")
)

// Service manages per-user tracking records. Every operation is an
// independent write keyed by record id; there are no multi-record
// transactions.
type Service struct {
	repo   *database.TrackedAnimeRepository
	logger *logrus.Logger
}

// NewService creates a tracking service over the given repository.
func NewService(repo *database.TrackedAnimeRepository, logger *logrus.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// TrackInput carries the fields a client submits when tracking a series.
type TrackInput struct {
	UserID          string  `json:"userId"`
	MALID           int     `json:"mal_id"`
	Title           string  `json:"title"`
	Image           *string `json:"image"`
	TotalEpisodes   int     `json:"totalEpisodes"`
	WatchedEpisodes int     `json:"watchedEpisodes"`
	Airing          bool    `json:"airing"`
	NextEpisodeDate *string `json:"nextEpisodeDate"`
	Status          string  `json:"status,omitempty"`
}

// Track creates a new tracking record for the user. Status defaults to
// "watching" when omitted.
func (s *Service) Track(input TrackInput) (*models.TrackedAnime, error) {
	if strings.TrimSpace(input.UserID) == "" {
		return nil, ErrUserIDRequired
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, ErrTitleRequired
	}
	if input.WatchedEpisodes < 0 || input.TotalEpisodes < 0 {
		return nil, ErrNegativeEpisodes
	}

	status := models.StatusWatching
	if input.Status != "" {
		parsed, err := models.ParseWatchStatus(input.Status)
		if err != nil {
			return nil, ErrInvalidStatus
		}
		status = parsed
	}

	now := time.Now().UTC()
	anime := &models.TrackedAnime{
		ID:              uuid.NewString(),
		UserID:          strings.TrimSpace(input.UserID),
		MALID:           input.MALID,
		Title:           input.Title,
		Image:           input.Image,
		TotalEpisodes:   input.TotalEpisodes,
		WatchedEpisodes: input.WatchedEpisodes,
		Airing:          input.Airing,
		NextEpisodeDate: input.NextEpisodeDate,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Insert(anime); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id": anime.UserID,
		"mal_id":  anime.MALID,
	}).Info("Tracked anime")
	return anime, nil
}

// ListByUser returns the user's tracking records.
func (s *Service) ListByUser(userID string) ([]models.TrackedAnime, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUserIDRequired
	}
	return s.repo.ListByUser(strings.TrimSpace(userID))
}

// UpdateProgress sets the watched-episode count and returns the updated record.
func (s *Service) UpdateProgress(id string, watchedEpisodes int) (*models.TrackedAnime, error) {
	if watchedEpisodes < 0 {
		return nil, ErrNegativeEpisodes
	}
	if err := s.repo.UpdateWatchedEpisodes(id, watchedEpisodes, time.Now().UTC()); err != nil {
		return nil, s.mapUpdateError(err)
	}
	return s.getExisting(id)
}

// UpdateStatus sets the watch status and returns the updated record.
func (s *Service) UpdateStatus(id string, rawStatus string) (*models.TrackedAnime, error) {
	status, err := models.ParseWatchStatus(rawStatus)
	if err != nil {
		return nil, ErrInvalidStatus
	}
	if err := s.repo.UpdateStatus(id, status, time.Now().UTC()); err != nil {
		return nil, s.mapUpdateError(err)
	}
	return s.getExisting(id)
}

// UpdateProjection rewrites the locally computed airing fields on a record.
// Used by the background refresher; unknown ids are reported as ErrNotFound.
func (s *Service) UpdateProjection(id string, totalEpisodes int, airing bool, nextEpisodeDate *string) error {
	if err := s.repo.UpdateProjection(id, totalEpisodes, airing, nextEpisodeDate, time.Now().UTC()); err != nil {
		return s.mapUpdateError(err)
	}
	return nil
}

// ListAiring returns every record still flagged as airing, across all users.
func (s *Service) ListAiring() ([]models.TrackedAnime, error) {
	return s.repo.ListAiring()
}

// Delete removes a record. Deleting an already-removed id succeeds.
func (s *Service) Delete(id string) error {
	return s.repo.Delete(id)
}

func (s *Service) getExisting(id string) (*models.TrackedAnime, error) {
	anime, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if anime == nil {
		return nil, ErrNotFound
	}
	return anime, nil
}

func (s *Service) mapUpdateError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("update tracking record: %w", err)
}
