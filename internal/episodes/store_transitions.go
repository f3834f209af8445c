package episodes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Claim atomically picks one eligible episode at random and leases it to the
// caller. It returns nil when nothing is eligible.
func (s *Store) Claim(ctx context.Context) (*Episode, error) {
	ctx = ensureContext(ctx)
	clause, args := s.eligibleClause()
	now := s.timestamp()
	query := `UPDATE episodes
        SET claimed_at = ?, claim_token = ?, updated_at = ?
        WHERE id = (SELECT id FROM episodes WHERE ` + clause + ` ORDER BY RANDOM() LIMIT 1)
        RETURNING ` + episodeColumns

	params := append([]any{now, uuid.NewString(), now}, args...)
	var ep *Episode
	err := retryOnBusy(ctx, func() error {
		var scanErr error
		ep, scanErr = scanEpisode(s.db.QueryRowContext(ctx, query, params...))
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim episode: %w", err)
	}
	return ep, nil
}

// MarkPublished flags the episode as published and drops its claim. Marking
// an already published episode is a no-op. It does not check the claim token:
// once a digest went out the row must stop being eligible, whoever holds it.
func (s *Store) MarkPublished(ctx context.Context, id int64) error {
	now := s.timestamp()
	res, err := s.execWithRetry(ctx,
		`UPDATE episodes
        SET published = 1, published_at = ?, claimed_at = NULL, claim_token = NULL, updated_at = ?
        WHERE id = ? AND published = 0`,
		now, now, id,
	)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return s.requireAffected(ctx, res, id, "")
}

// RecordFailure increments the attempt counter, stores reason and drops the
// claim. The episode stays unpublished. A non-empty token must match the
// current claim, otherwise ErrClaimLost is returned and nothing changes.
func (s *Store) RecordFailure(ctx context.Context, id int64, token, reason string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE episodes
        SET attempts = attempts + 1, last_failure_reason = ?, claimed_at = NULL, claim_token = NULL, updated_at = ?
        WHERE id = ? AND published = 0 AND (? = '' OR claim_token = ?)`,
		nullableString(reason), s.timestamp(), id, token, token,
	)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return s.requireAffected(ctx, res, id, token)
}

// Release drops the claim without touching attempts. A non-empty token must
// match the current claim.
func (s *Store) Release(ctx context.Context, id int64, token string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE episodes SET claimed_at = NULL, claim_token = NULL, updated_at = ?
        WHERE id = ? AND (? = '' OR claim_token = ?)`,
		s.timestamp(), id, token, token,
	)
	if err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return s.requireAffected(ctx, res, id, token)
}

// ResetAttempts clears the failure bookkeeping of unpublished episodes. With
// no ids every failing episode is reset.
func (s *Store) ResetAttempts(ctx context.Context, ids ...int64) (int64, error) {
	query := `UPDATE episodes SET attempts = 0, last_failure_reason = NULL, updated_at = ?
        WHERE published = 0 AND attempts > 0`
	args := []any{s.timestamp()}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset attempts: %w", err)
	}
	return res.RowsAffected()
}

// requireAffected explains an update that matched no row: unknown id, a
// claim now held by someone else, or a no-op on a published episode.
func (s *Store) requireAffected(ctx context.Context, res sql.Result, id int64, token string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	ep, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if ep == nil {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if token != "" && !ep.Published && ep.ClaimToken != token {
		return fmt.Errorf("%w: episode %d", ErrClaimLost, id)
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
