// Package sequencer assigns session numbers to episodes. Numbers are
// dense per user: the first session is 1 and each subsequent session is
// exactly one more than the last, with no gaps even under concurrent
// ingestion. The caller is responsible for holding the tenant lock
// across NextSessionNumber and the commit that persists the episode.
package sequencer

import (
	"context"
	"fmt"

	"github.com/soundprediction/anamnesis/pkg/driver"
	"github.com/soundprediction/anamnesis/pkg/types"
)

// Sequencer computes session numbers from the episode count.
type Sequencer struct {
	drv driver.Driver
}

// New builds a Sequencer over the given driver.
func New(drv driver.Driver) *Sequencer {
	return &Sequencer{drv: drv}
}

// NextSessionNumber returns the number the next episode for this user
// must carry: the current episode count plus one. Callers must hold the
// tenant lock so the count cannot move between this read and the commit.
func (s *Sequencer) NextSessionNumber(ctx context.Context, tenantID, userID string) (int, error) {
	if tenantID == "" {
		return 0, types.ErrEmptyTenantID
	}
	if userID == "" {
		return 0, fmt.Errorf("user id: %w", types.ErrInvalidArgument)
	}
	count, err := s.drv.CountEpisodes(ctx, tenantID, userID)
	if err != nil {
		return 0, fmt.Errorf("count episodes: %w", err)
	}
	return count + 1, nil
}

// Episodes returns the user's episodes in session order, newest last.
// A limit of 0 or less returns all of them.
func (s *Sequencer) Episodes(ctx context.Context, tenantID, userID string, limit int) ([]*types.Episode, error) {
	if tenantID == "" {
		return nil, types.ErrEmptyTenantID
	}
	if userID == "" {
		return nil, fmt.Errorf("user id: %w", types.ErrInvalidArgument)
	}
	episodes, err := s.drv.GetEpisodes(ctx, tenantID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("get episodes: %w", err)
	}
	return episodes, nil
}

// VerifyDense checks the gapless numbering invariant over the user's
// stored episodes: numbers must be exactly 1..count in order. A
// violation is reported as ErrConflict.
func (s *Sequencer) VerifyDense(ctx context.Context, tenantID, userID string) error {
	episodes, err := s.Episodes(ctx, tenantID, userID, 0)
	if err != nil {
		return err
	}
	for i, ep := range episodes {
		if ep.SessionNumber != i+1 {
			return fmt.Errorf("episode %s has session number %d, want %d: %w",
				ep.ID, ep.SessionNumber, i+1, types.ErrConflict)
		}
	}
	return nil
}
