package episodes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound reports an unknown episode identifier.
var ErrNotFound = errors.New("episode not found")

// ErrClaimLost reports that the lease expired and another run claimed the episode.
var ErrClaimLost = errors.New("episode claim lost to another run")

// Save inserts a discovered episode unless one with the same podcast and
// title already exists. It reports whether a row was inserted.
func (s *Store) Save(ctx context.Context, ep NewEpisode) (bool, error) {
	podcastID := strings.TrimSpace(ep.PodcastID)
	title := strings.TrimSpace(ep.Title)
	if podcastID == "" || title == "" {
		return false, errors.New("save episode: podcast id and title are required")
	}

	now := s.timestamp()
	res, err := s.execWithRetry(ctx,
		`INSERT INTO episodes (
            podcast_id, podcast_name, title, category, audio_url, duration, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(podcast_id, title) DO NOTHING`,
		podcastID,
		strings.TrimSpace(ep.PodcastName),
		title,
		strings.TrimSpace(ep.Category),
		strings.TrimSpace(ep.AudioURL),
		strings.TrimSpace(ep.Duration),
		now,
		now,
	)
	if err != nil {
		return false, fmt.Errorf("insert episode: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetByID fetches an episode by identifier. It returns nil when none exists.
func (s *Store) GetByID(ctx context.Context, id int64) (*Episode, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
	ep, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return ep, nil
}

// List returns episodes in insertion order.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes`
	var args []any
	if opts.PendingOnly {
		query += ` WHERE published = 0`
	}
	query += ` ORDER BY id`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	return scanEpisodes(rows)
}

// Eligible returns unpublished episodes that Claim could currently pick,
// oldest first. A non-positive limit returns all of them.
func (s *Store) Eligible(ctx context.Context, limit int) ([]*Episode, error) {
	clause, args := s.eligibleClause()
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE ` + clause + ` ORDER BY id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("eligible episodes: %w", err)
	}
	return scanEpisodes(rows)
}

// Stats counts episodes by state.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	cutoff := formatTime(s.now().Add(-s.lease))
	var (
		stats     Stats
		published sql.NullInt64
		pending   sql.NullInt64
		failing   sql.NullInt64
		claimed   sql.NullInt64
		exhausted sql.NullInt64
	)
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1),
            SUM(CASE WHEN published = 1 THEN 1 ELSE 0 END),
            SUM(CASE WHEN published = 0 THEN 1 ELSE 0 END),
            SUM(CASE WHEN published = 0 AND attempts > 0 THEN 1 ELSE 0 END),
            SUM(CASE WHEN published = 0 AND claimed_at IS NOT NULL AND claimed_at >= ? THEN 1 ELSE 0 END),
            SUM(CASE WHEN published = 0 AND ? > 0 AND attempts >= ? THEN 1 ELSE 0 END)
        FROM episodes`,
		cutoff, s.maxAttempts, s.maxAttempts,
	).Scan(&stats.Total, &published, &pending, &failing, &claimed, &exhausted)
	if err != nil {
		return Stats{}, fmt.Errorf("episode stats: %w", err)
	}
	stats.Published = int(published.Int64)
	stats.Pending = int(pending.Int64)
	stats.Failing = int(failing.Int64)
	stats.Claimed = int(claimed.Int64)
	stats.Exhausted = int(exhausted.Int64)
	return stats, nil
}

func (s *Store) eligibleClause() (string, []any) {
	clause := `published = 0 AND (claimed_at IS NULL OR claimed_at < ?)`
	args := []any{formatTime(s.now().Add(-s.lease))}
	if s.maxAttempts > 0 {
		clause += ` AND attempts < ?`
		args = append(args, s.maxAttempts)
	}
	return clause, args
}
