package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeatureFlags_DefaultsEnabled(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureLeaderboardCache))
	assert.True(t, ff.IsEnabled(FeatureSessionResume))
	assert.True(t, ff.IsEnabled(FeatureBadgeAutoAward))
	assert.False(t, ff.IsEnabled("unknown.feature"))
}

func TestFeatureFlags_EnvOverrides(t *testing.T) {
	t.Setenv("FEATURE_BADGE_AUTO_AWARD", "false")
	t.Setenv("FEATURE_SESSION_AUTOSAVE_ROLLOUT", "0")

	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled(FeatureBadgeAutoAward))
	// Раскатка в 0% выключает фичу даже при Enabled=true.
	assert.False(t, ff.IsEnabled(FeatureSessionAutosave))
	assert.False(t, ff.IsEnabledFor(FeatureSessionAutosave, 7))
}

func TestFeatureFlags_RolloutBucketing(t *testing.T) {
	t.Setenv("FEATURE_LEADERBOARD_WARM_ROLLOUT", "50")

	ff := LoadFeatureFlags()

	// Распределение детерминировано: один и тот же зритель всегда попадает
	// в один и тот же бакет.
	first := ff.IsEnabledFor(FeatureLeaderboardWarm, 12345)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ff.IsEnabledFor(FeatureLeaderboardWarm, 12345))
	}

	// На большой выборке включённая доля близка к проценту раскатки.
	enabled := 0
	for id := int64(1); id <= 1000; id++ {
		if ff.IsEnabledFor(FeatureLeaderboardWarm, id) {
			enabled++
		}
	}
	assert.Greater(t, enabled, 350)
	assert.Less(t, enabled, 650)
}

func TestFeatureFlags_UserOverrides(t *testing.T) {
	ff := LoadFeatureFlags()

	ff.SetOverride(7, FeatureLeaderboardCache, false)
	assert.False(t, ff.IsEnabledFor(FeatureLeaderboardCache, 7))
	assert.True(t, ff.IsEnabledFor(FeatureLeaderboardCache, 8))

	// Оверрайд может и включать фичу, выключенную глобально.
	t.Setenv("FEATURE_SNAPSHOT_BACKUP", "false")
	ff = LoadFeatureFlags()
	ff.SetOverride(7, FeatureSnapshotBackup, true)
	assert.True(t, ff.IsEnabledFor(FeatureSnapshotBackup, 7))
	assert.False(t, ff.IsEnabledFor(FeatureSnapshotBackup, 8))

	ff.ClearOverrides()
	assert.False(t, ff.IsEnabledFor(FeatureSnapshotBackup, 7))
}

func TestFeatureFlags_List(t *testing.T) {
	ff := LoadFeatureFlags()

	features := ff.List()
	require.Len(t, features, 6)
	for _, f := range features {
		assert.NotEmpty(t, f.Name)
		assert.NotEmpty(t, f.Description)
	}
}
