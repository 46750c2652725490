package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freshRegistry 重置 Prometheus registry，避免重複註冊
func freshRegistry(t *testing.T) {
	t.Helper()
	reg := prometheus.NewRegistry()
	oldReg, oldGather := prometheus.DefaultRegisterer, prometheus.DefaultGatherer
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = oldReg
		prometheus.DefaultGatherer = oldGather
	})
}

func scrape(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestNewCollector(t *testing.T) {
	freshRegistry(t)
	collector := NewCollector()

	assert.NotNil(t, collector, "NewCollector should return a non-nil collector")
	assert.NotNil(t, collector.ticks)
	assert.NotNil(t, collector.transitions)
	assert.NotNil(t, collector.tickDuration)
	assert.NotNil(t, collector.players)
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	freshRegistry(t)
	NewCollector()
	assert.Panics(t, func() { NewCollector() }, "MustRegister should reject duplicates")
}

func TestCountersAreExposed(t *testing.T) {
	freshRegistry(t)
	c := NewCollector()

	for i := 0; i < 3; i++ {
		c.RecordTick(0.002)
	}
	c.RecordTransition("PLAYING")
	c.RecordTransition("PLAYING")
	c.RecordTransition("FINISHED")
	c.RecordContentChange()
	c.RecordFinish()
	c.RecordTrigger()
	c.RecordTickError()
	c.RecordJournalEvent()
	c.SetRecoveryTime(0.25)

	out := scrape(t)
	assert.Contains(t, out, "workclip_ticks_total 3")
	assert.Contains(t, out, `workclip_state_transitions_total{to="PLAYING"} 2`)
	assert.Contains(t, out, `workclip_state_transitions_total{to="FINISHED"} 1`)
	assert.Contains(t, out, "workclip_content_changes_total 1")
	assert.Contains(t, out, "workclip_finishes_total 1")
	assert.Contains(t, out, "workclip_triggers_total 1")
	assert.Contains(t, out, "workclip_tick_errors_total 1")
	assert.Contains(t, out, "workclip_journal_events_total 1")
	assert.Contains(t, out, "workclip_recovery_time_seconds 0.25")
	assert.Contains(t, out, "workclip_tick_duration_seconds_count 3")
}

func TestUpdatePlayerStatsResetsMissingStates(t *testing.T) {
	freshRegistry(t)
	c := NewCollector()

	c.UpdatePlayerStats(map[string]int{"PLAYING": 2, "FREE": 1})
	out := scrape(t)
	assert.Contains(t, out, `workclip_players{state="PLAYING"} 2`)
	assert.Contains(t, out, `workclip_players{state="FREE"} 1`)

	c.UpdatePlayerStats(map[string]int{"FINISHED": 3})
	out = scrape(t)
	assert.Contains(t, out, `workclip_players{state="FINISHED"} 3`)
	assert.False(t, strings.Contains(out, `workclip_players{state="PLAYING"}`))
}
