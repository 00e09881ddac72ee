// Package store is the persistence contract for parties, signups and match
// results. All mutation is scoped per party and goes through this package;
// recording matches and marking a party resolved happen in one transaction
// so a partial match set is never observable.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bananalabs-oss/sleigh/internal/models"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateSignup = errors.New("user already signed up for this party")
	ErrAlreadyResolved = errors.New("party already resolved")
)

type Store struct {
	db *bun.DB
}

func New(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) CreateParty(ctx context.Context, party *models.Party) error {
	if _, err := s.db.NewInsert().Model(party).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create party: %w", err)
	}
	return nil
}

func (s *Store) GetParty(ctx context.Context, id uuid.UUID) (*models.Party, error) {
	party := new(models.Party)
	err := s.db.NewSelect().
		Model(party).
		Where("p.id = ?", id).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch party: %w", err)
	}
	return party, nil
}

// ListOpenParties returns every party whose matches have not been made yet,
// including parties whose deadline already passed. The scheduler uses this
// at startup to rebuild timers and catch up on missed resolutions.
func (s *Store) ListOpenParties(ctx context.Context) ([]models.Party, error) {
	var parties []models.Party
	err := s.db.NewSelect().
		Model(&parties).
		Where("matches_made = ?", false).
		Order("ends_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open parties: %w", err)
	}
	return parties, nil
}

func (s *Store) AddSignup(ctx context.Context, signup *models.Signup) error {
	_, err := s.db.NewInsert().Model(signup).Exec(ctx)
	if isUniqueViolation(err) {
		return ErrDuplicateSignup
	}
	if err != nil {
		return fmt.Errorf("failed to add signup: %w", err)
	}
	return nil
}

func (s *Store) ListSignups(ctx context.Context, partyID uuid.UUID) ([]models.Signup, error) {
	var signups []models.Signup
	err := s.db.NewSelect().
		Model(&signups).
		Where("party_id = ?", partyID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list signups: %w", err)
	}
	return signups, nil
}

// ListUserSignups returns a user's signups across all parties, paired
// index-for-index with the owning parties.
func (s *Store) ListUserSignups(ctx context.Context, userID string) ([]models.Signup, []models.Party, error) {
	var signups []models.Signup
	err := s.db.NewSelect().
		Model(&signups).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list user signups: %w", err)
	}

	parties := make([]models.Party, 0, len(signups))
	for _, su := range signups {
		party, err := s.GetParty(ctx, su.PartyID)
		if err != nil {
			return nil, nil, err
		}
		parties = append(parties, *party)
	}
	return signups, parties, nil
}

// RecordMatches commits a party's full match set and flips matches_made in
// a single transaction. The flip is guarded on matches_made still being
// false and happens first, so the loser of a duplicate dispatch gets
// ErrAlreadyResolved before writing any match rows and the committed set
// stays untouched. An empty match set is valid: it resolves a party with
// fewer than two signups.
func (s *Store) RecordMatches(ctx context.Context, partyID uuid.UUID, matches []models.Match) error {
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		// Claim the flip before inserting: the loser of a duplicate
		// dispatch replays the same giver ids, and must observe
		// ErrAlreadyResolved rather than trip the unique match indexes.
		res, err := tx.NewUpdate().
			Model((*models.Party)(nil)).
			Set("matches_made = ?", true).
			Where("id = ? AND matches_made = ?", partyID, false).
			Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrAlreadyResolved
		}

		if len(matches) > 0 {
			if _, err := tx.NewInsert().Model(&matches).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrAlreadyResolved) {
		return ErrAlreadyResolved
	}
	if err != nil {
		return fmt.Errorf("failed to record matches: %w", err)
	}
	return nil
}

func (s *Store) ListMatches(ctx context.Context, partyID uuid.UUID) ([]models.Match, error) {
	var matches []models.Match
	err := s.db.NewSelect().
		Model(&matches).
		Where("party_id = ?", partyID).
		Order("giver_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return matches, nil
}

func (s *Store) GetMatchFor(ctx context.Context, partyID uuid.UUID, giverID string) (*models.Match, error) {
	match := new(models.Match)
	err := s.db.NewSelect().
		Model(match).
		Where("party_id = ? AND giver_id = ?", partyID, giverID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch match: %w", err)
	}
	return match, nil
}

// modernc.org/sqlite reports constraint failures by message, not a shared
// sentinel type, so match on the canonical SQLite error text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
