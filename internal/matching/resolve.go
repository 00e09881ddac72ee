package matching

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"

	"github.com/bananalabs-oss/sleigh/internal/models"
	"github.com/bananalabs-oss/sleigh/internal/store"
	"github.com/google/uuid"
)

// Resolve runs the matching workflow for one party: load signups, shuffle,
// derange the giver order, pair givers with receivers and commit the match
// set atomically. Parties with fewer than two signups resolve with an empty
// match set. Safe to dispatch more than once: the loser of a duplicate
// dispatch observes the already-committed flip and returns cleanly without
// touching the stored matches. Any storage failure leaves the party open so
// a later dispatch can retry.
func Resolve(ctx context.Context, st *store.Store, partyID uuid.UUID) error {
	signups, err := st.ListSignups(ctx, partyID)
	if err != nil {
		return fmt.Errorf("load signups for party %s: %w", partyID, err)
	}

	if len(signups) <= 1 {
		if err := st.RecordMatches(ctx, partyID, nil); err != nil {
			if errors.Is(err, store.ErrAlreadyResolved) {
				return nil
			}
			return err
		}
		log.Printf("Party %s resolved with no matches (%d signups)", partyID, len(signups))
		return nil
	}

	// Break any ordering bias from storage before deranging.
	rand.Shuffle(len(signups), func(i, j int) {
		signups[i], signups[j] = signups[j], signups[i]
	})

	ids := make([]string, len(signups))
	for i, su := range signups {
		ids[i] = su.UserID
	}

	givers, err := Derange(ids)
	if err != nil {
		return fmt.Errorf("derange party %s: %w", partyID, err)
	}

	// Derange returns the giver order reversed, so popping receivers from
	// the end of the shuffled signups consumes each exactly once and keeps
	// every giver distinct from its receiver.
	matches := make([]models.Match, 0, len(givers))
	rest := signups
	for _, giverID := range givers {
		receiver := rest[len(rest)-1]
		rest = rest[:len(rest)-1]
		matches = append(matches, models.Match{
			PartyID:      partyID,
			GiverID:      giverID,
			ReceiverID:   receiver.UserID,
			ReceiverName: receiver.Name,
			ReceiverHint: receiver.Hint,
		})
	}

	if err := st.RecordMatches(ctx, partyID, matches); err != nil {
		if errors.Is(err, store.ErrAlreadyResolved) {
			log.Printf("Party %s was already resolved, discarding duplicate dispatch", partyID)
			return nil
		}
		return err
	}

	log.Printf("Party %s resolved with %d matches", partyID, len(matches))
	return nil
}
