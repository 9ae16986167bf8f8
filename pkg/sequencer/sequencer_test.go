package sequencer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/anamnesis/pkg/driver"
	"github.com/soundprediction/anamnesis/pkg/tenant"
	"github.com/soundprediction/anamnesis/pkg/types"
)

func commitEpisode(t *testing.T, drv driver.Driver, tenantID, userID string, number int) {
	t.Helper()
	err := drv.Apply(context.Background(), &driver.Batch{
		TenantID: tenantID,
		Episodes: []*types.Episode{{
			ID:            fmt.Sprintf("ep-%d", number),
			TenantID:      tenantID,
			UserID:        userID,
			SessionNumber: number,
			Name:          fmt.Sprintf("Session %d", number),
			Content:       "transcript",
			CreatedAt:     time.Now(),
		}},
	})
	require.NoError(t, err)
}

func TestNextSessionNumberStartsAtOne(t *testing.T) {
	t.Parallel()

	s := New(driver.NewMemoryDriver())
	n, err := s.NextSessionNumber(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNextSessionNumberIncrements(t *testing.T) {
	t.Parallel()

	drv := driver.NewMemoryDriver()
	s := New(drv)

	for want := 1; want <= 4; want++ {
		n, err := s.NextSessionNumber(context.Background(), "t1", "u1")
		require.NoError(t, err)
		assert.Equal(t, want, n)
		commitEpisode(t, drv, "t1", "u1", n)
	}
}

func TestNextSessionNumberIsPerUser(t *testing.T) {
	t.Parallel()

	drv := driver.NewMemoryDriver()
	s := New(drv)

	commitEpisode(t, drv, "t1", "u1", 1)
	commitEpisode(t, drv, "t1", "u1", 2)

	n, err := s.NextSessionNumber(context.Background(), "t1", "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNextSessionNumberValidatesArguments(t *testing.T) {
	t.Parallel()

	s := New(driver.NewMemoryDriver())

	_, err := s.NextSessionNumber(context.Background(), "", "u1")
	assert.ErrorIs(t, err, types.ErrEmptyTenantID)

	_, err = s.NextSessionNumber(context.Background(), "t1", "")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestConcurrentNumberingUnderTenantLockIsGapless(t *testing.T) {
	t.Parallel()

	drv := driver.NewMemoryDriver()
	s := New(drv)
	locks := tenant.NewManager()

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.Acquire(context.Background(), "t1")
			if err != nil {
				t.Error(err)
				return
			}
			defer release()

			n, err := s.NextSessionNumber(context.Background(), "t1", "u1")
			if err != nil {
				t.Error(err)
				return
			}
			commitEpisode(t, drv, "t1", "u1", n)
		}()
	}
	wg.Wait()

	episodes, err := s.Episodes(context.Background(), "t1", "u1", 0)
	require.NoError(t, err)
	require.Len(t, episodes, workers)
	for i, ep := range episodes {
		assert.Equal(t, i+1, ep.SessionNumber)
	}
	assert.NoError(t, s.VerifyDense(context.Background(), "t1", "u1"))
}

func TestVerifyDenseDetectsGaps(t *testing.T) {
	t.Parallel()

	drv := driver.NewMemoryDriver()
	s := New(drv)

	commitEpisode(t, drv, "t1", "u1", 1)
	commitEpisode(t, drv, "t1", "u1", 3)

	err := s.VerifyDense(context.Background(), "t1", "u1")
	assert.ErrorIs(t, err, types.ErrConflict)
}

func TestEpisodesHonorsLimit(t *testing.T) {
	t.Parallel()

	drv := driver.NewMemoryDriver()
	s := New(drv)
	for n := 1; n <= 5; n++ {
		commitEpisode(t, drv, "t1", "u1", n)
	}

	episodes, err := s.Episodes(context.Background(), "t1", "u1", 2)
	require.NoError(t, err)
	assert.Len(t, episodes, 2)
}
