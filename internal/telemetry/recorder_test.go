package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"

	"energy-net/internal/episode"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookRecordsSteps(t *testing.T) {
	r := NewRecorder()
	var forwarded int
	hook := r.Hook("test", func(episode.LedgerRow) error {
		forwarded++
		return nil
	})

	require.NoError(t, hook(episode.LedgerRow{BuyPrice: 40, SellPrice: 30, PCSDemand: 2, LevelEnd: 12, Shortfall: 3}))
	require.NoError(t, hook(episode.LedgerRow{BuyPrice: 45, SellPrice: 35}))

	assert.Equal(t, 2, forwarded)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.steps.WithLabelValues("test")))
	assert.Equal(t, 45.0, testutil.ToFloat64(r.buyPrice.WithLabelValues("test")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.pcsDemand.WithLabelValues("test")))
}

func TestObserveEpisodeAndHandler(t *testing.T) {
	r := NewRecorder()
	r.ObserveEpisode("api", &episode.Result{TotalISOReward: -100, TotalPCSReward: 50})
	r.ObserveEpisode("api", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.episodes.WithLabelValues("api")))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `energynet_episodes_total{source="api"} 1`))
	assert.True(t, strings.Contains(body, "energynet_episode_reward_bucket"))
}
