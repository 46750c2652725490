package bookmark

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/quasilyte/gdata/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testManager 建立測試專用的 gdata manager，失敗時回傳 nil
func testManager(t *testing.T) *gdata.Manager {
	t.Helper()
	app := fmt.Sprintf("workclip_test_%d", time.Now().UnixNano())
	m, err := gdata.Open(gdata.Config{AppName: app})
	if err != nil {
		return nil
	}
	t.Cleanup(func() {
		if home, err := os.UserHomeDir(); err == nil {
			os.RemoveAll(filepath.Join(home, ".local", "share", app))
		}
	})
	return m
}

func TestDegradedStoreNeverFails(t *testing.T) {
	s := New(nil)
	assert.False(t, s.Persistent())

	_, ok, err := s.Load("intro")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save("intro", 0.4))
	b, ok, err := s.Load("intro")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.4, b.Percent)
	assert.Equal(t, "intro", b.Timeline)
}

func TestPersistentStoreSurvivesReopen(t *testing.T) {
	m := testManager(t)
	if m == nil {
		t.Skip("Cannot create gdata manager for testing")
	}

	s := New(m)
	require.True(t, s.Persistent())
	require.NoError(t, s.Save("configs/timeline.yaml#main", 0.75))

	fresh := New(m)
	b, ok, err := fresh.Load("configs/timeline.yaml#main")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.75, b.Percent)
	assert.False(t, b.SavedAt.IsZero())
}

func TestPropName(t *testing.T) {
	assert.Equal(t, "configs_timeline_yaml_main", propName("configs/timeline.yaml#main"))
	assert.Equal(t, "intro-2", propName("Intro-2"))
	assert.Equal(t, "_", propName(""))
}
