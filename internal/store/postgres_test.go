package store

import (
	"context"
	"os"
	"testing"

	"energy-net/internal/episode"
	"energy-net/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadEpisode(t *testing.T) {
	// Skip if no database connection available
	connString := os.Getenv("TEST_POSTGRES_CONN")
	if connString == "" {
		t.Skip("Skipping test: TEST_POSTGRES_CONN not set")
	}

	ctx := context.Background()
	s, err := Open(ctx, connString, nil)
	require.NoError(t, err)
	defer s.Close()

	res := &episode.Result{
		Name:           "roundtrip",
		Steps:          2,
		TotalISOReward: -3,
		TotalPCSReward: 4,
		FinalLevel:     12,
		Ledger: []episode.LedgerRow{
			{Step: 1, Time: 0.5, PCSDemand: 2, BuyPrice: 10, LevelStart: 10, LevelEnd: 12, ISOReward: -1, PCSReward: -20},
			{Step: 2, Time: 0.75, PCSDemand: -1, SellPrice: 24, LevelStart: 12, LevelEnd: 11, ISOReward: -2, PCSReward: 24},
		},
	}
	require.NoError(t, s.SaveEpisode(ctx, res))
	require.NotEmpty(t, res.ID)
	defer s.DeleteEpisode(ctx, res.ID)

	loaded, err := s.LoadEpisode(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", loaded.Name)
	require.Len(t, loaded.Ledger, 2)
	assert.Equal(t, "12:00", loaded.Ledger[0].Clock)
	assert.Equal(t, model.ActionCharging, loaded.Ledger[0].Action)
	assert.Equal(t, model.ExchangeSelling, loaded.Ledger[1].Exchange)
	assert.InDelta(t, 4, loaded.Ledger[1].CumPCSReward, 1e-9)

	list, err := s.ListEpisodes(ctx, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	require.NoError(t, s.DeleteEpisode(ctx, res.ID))
	_, err = s.LoadEpisode(ctx, res.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteEpisode(ctx, res.ID), ErrNotFound)
}
