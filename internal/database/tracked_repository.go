package database

import (
	"database/sql"
	"fmt"
	"time"

	"anirec/models"
)

// TrackedAnimeRepository persists per-user tracking records.
type TrackedAnimeRepository struct {
	db *sql.DB
}

// NewTrackedAnimeRepository creates a repository over the given connection.
func NewTrackedAnimeRepository(db *sql.DB) *TrackedAnimeRepository {
	return &TrackedAnimeRepository{db: db}
}

const trackedAnimeColumns = `id, user_id, mal_id, title, image, total_episodes,
	watched_episodes, airing, next_episode_date, status, created_at, updated_at`

// Insert stores a new tracking record. ID and timestamps must be set by the caller.
func (r *TrackedAnimeRepository) Insert(anime *models.TrackedAnime) error {
	_, err := r.db.Exec(`INSERT INTO tracked_anime (`+trackedAnimeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		anime.ID, anime.UserID, anime.MALID, anime.Title, anime.Image,
		anime.TotalEpisodes, anime.WatchedEpisodes, anime.Airing,
		anime.NextEpisodeDate, string(anime.Status), anime.CreatedAt, anime.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert tracked anime: %w", err)
	}
	return nil
}

// GetByID returns the record with the given id, or nil if it does not exist.
func (r *TrackedAnimeRepository) GetByID(id string) (*models.TrackedAnime, error) {
	row := r.db.QueryRow(`SELECT `+trackedAnimeColumns+` FROM tracked_anime WHERE id = ?`, id)
	anime, err := scanTrackedAnime(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tracked anime: %w", err)
	}
	return anime, nil
}

// ListByUser returns all records owned by the given user, newest first.
func (r *TrackedAnimeRepository) ListByUser(userID string) ([]models.TrackedAnime, error) {
	rows, err := r.db.Query(`SELECT `+trackedAnimeColumns+` FROM tracked_anime
		WHERE user_id = ? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tracked anime: %w", err)
	}
	defer rows.Close()
	return collectTrackedAnime(rows)
}

// ListAiring returns all records currently flagged as airing, across users.
func (r *TrackedAnimeRepository) ListAiring() ([]models.TrackedAnime, error) {
	rows, err := r.db.Query(`SELECT ` + trackedAnimeColumns + ` FROM tracked_anime
		WHERE airing = 1 ORDER BY mal_id, id`)
	if err != nil {
		return nil, fmt.Errorf("list airing anime: %w", err)
	}
	defer rows.Close()
	return collectTrackedAnime(rows)
}

// UpdateWatchedEpisodes sets the watched-episode count on one record.
func (r *TrackedAnimeRepository) UpdateWatchedEpisodes(id string, watched int, updatedAt time.Time) error {
	return r.updateOne(`UPDATE tracked_anime SET watched_episodes = ?, updated_at = ? WHERE id = ?`,
		watched, updatedAt, id)
}

// UpdateStatus sets the watch status on one record.
func (r *TrackedAnimeRepository) UpdateStatus(id string, status models.WatchStatus, updatedAt time.Time) error {
	return r.updateOne(`UPDATE tracked_anime SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), updatedAt, id)
}

// UpdateProjection rewrites the locally computed airing fields on one record.
func (r *TrackedAnimeRepository) UpdateProjection(id string, totalEpisodes int, airing bool, nextEpisodeDate *string, updatedAt time.Time) error {
	return r.updateOne(`UPDATE tracked_anime
		SET total_episodes = ?, airing = ?, next_episode_date = ?, updated_at = ?
		WHERE id = ?`,
		totalEpisodes, airing, nextEpisodeDate, updatedAt, id)
}

// Delete removes one record. Deleting an unknown id is not an error.
func (r *TrackedAnimeRepository) Delete(id string) error {
	if _, err := r.db.Exec(`DELETE FROM tracked_anime WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete tracked anime: %w", err)
	}
	return nil
}

func (r *TrackedAnimeRepository) updateOne(query string, args ...any) error {
	res, err := r.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("update tracked anime: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tracked anime: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrackedAnime(row rowScanner) (*models.TrackedAnime, error) {
	var anime models.TrackedAnime
	var status string
	err := row.Scan(&anime.ID, &anime.UserID, &anime.MALID, &anime.Title, &anime.Image,
		&anime.TotalEpisodes, &anime.WatchedEpisodes, &anime.Airing,
		&anime.NextEpisodeDate, &status, &anime.CreatedAt, &anime.UpdatedAt)
	if err != nil {
		return nil, err
	}
	anime.Status = models.WatchStatus(status)
	return &anime, nil
}

func collectTrackedAnime(rows *sql.Rows) ([]models.TrackedAnime, error) {
	var result []models.TrackedAnime
	for rows.Next() {
		anime, err := scanTrackedAnime(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tracked anime: %w", err)
		}
		result = append(result, *anime)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracked anime: %w", err)
	}
	return result, nil
}
