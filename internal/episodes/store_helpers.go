package episodes

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const episodeColumns = "id, podcast_id, podcast_name, title, category, audio_url, duration, published, attempts, last_failure_reason, claimed_at, claim_token, created_at, updated_at, published_at"

// Fixed-width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func scanEpisode(scanner interface{ Scan(dest ...any) error }) (*Episode, error) {
	var (
		ep             Episode
		published      int64
		failureReason  sql.NullString
		claimedRaw     sql.NullString
		claimToken     sql.NullString
		createdRaw     string
		updatedRaw     string
		publishedAtRaw sql.NullString
	)
	if err := scanner.Scan(
		&ep.ID,
		&ep.PodcastID,
		&ep.PodcastName,
		&ep.Title,
		&ep.Category,
		&ep.AudioURL,
		&ep.Duration,
		&published,
		&ep.Attempts,
		&failureReason,
		&claimedRaw,
		&claimToken,
		&createdRaw,
		&updatedRaw,
		&publishedAtRaw,
	); err != nil {
		return nil, err
	}

	ep.Published = published != 0
	ep.LastFailureReason = failureReason.String
	ep.ClaimToken = claimToken.String
	if created, err := parseTimeString(createdRaw); err == nil {
		ep.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		ep.UpdatedAt = updated
	}
	ep.ClaimedAt = parseOptionalTime(claimedRaw)
	ep.PublishedAt = parseOptionalTime(publishedAtRaw)
	return &ep, nil
}

func scanEpisodes(rows *sql.Rows) ([]*Episode, error) {
	defer rows.Close()
	var out []*Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatLabel(id int64, title string) string {
	return fmt.Sprintf("%d-%s", id, title)
}

func parseOptionalTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	t, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
