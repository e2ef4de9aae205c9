package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
)

// FeatureFlags manages feature toggles with optional gradual rollout.
// Flags gate the non-essential surfaces of the hub so a broken cache or a
// noisy badge announcement can be turned off without a redeploy.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[int64]map[string]bool // viewerID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Viewers are assigned based on hash of their ID
	RolloutPercent int
}

// Predefined feature flag names.
const (
	// === Leaderboard Features ===
	FeatureLeaderboardCache = "leaderboard.cache" // Redis-backed leaderboard reads
	FeatureLeaderboardWarm  = "leaderboard.warm"  // background cache warming job

	// === Session Features ===
	FeatureSessionAutosave = "session.autosave" // periodic progress persistence
	FeatureSessionResume   = "session.resume"   // rejoin-as-resume matching

	// === Achievement Features ===
	FeatureBadgeAutoAward = "badge.auto_award" // evaluate catalog after each watch
	FeatureSnapshotBackup = "snapshot.backup"  // daily backup tables
)

// defaultFeatures returns the built-in feature set.
func defaultFeatures() map[string]*Feature {
	return map[string]*Feature{
		FeatureLeaderboardCache: {
			Name:           FeatureLeaderboardCache,
			Description:    "Serve leaderboards from the Redis cache",
			Enabled:        true,
			RolloutPercent: 100,
		},
		FeatureLeaderboardWarm: {
			Name:           FeatureLeaderboardWarm,
			Description:    "Periodically rebuild the leaderboard cache",
			Enabled:        true,
			RolloutPercent: 100,
		},
		FeatureSessionAutosave: {
			Name:           FeatureSessionAutosave,
			Description:    "Persist live session progress in the background",
			Enabled:        true,
			RolloutPercent: 100,
		},
		FeatureSessionResume: {
			Name:           FeatureSessionResume,
			Description:    "Treat a quick rejoin as resuming the original session",
			Enabled:        true,
			RolloutPercent: 100,
		},
		FeatureBadgeAutoAward: {
			Name:           FeatureBadgeAutoAward,
			Description:    "Evaluate the badge catalog after every finished watch",
			Enabled:        true,
			RolloutPercent: 100,
		},
		FeatureSnapshotBackup: {
			Name:           FeatureSnapshotBackup,
			Description:    "Create timestamped backup tables on a schedule",
			Enabled:        true,
			RolloutPercent: 100,
		},
	}
}

// LoadFeatureFlags builds the flag set from defaults plus environment
// overrides. FEATURE_BADGE_AUTO_AWARD=false disables badge.auto_award;
// FEATURE_SESSION_AUTOSAVE_ROLLOUT=50 rolls autosave out to half the viewers.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      defaultFeatures(),
		userOverrides: make(map[int64]map[string]bool),
	}

	for name, f := range ff.features {
		envKey := "FEATURE_" + strings.ToUpper(strings.ReplaceAll(name, ".", "_"))

		if val := os.Getenv(envKey); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				f.Enabled = b
			}
		}
		if val := os.Getenv(envKey + "_ROLLOUT"); val != "" {
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				f.RolloutPercent = p
			}
		}
	}

	return ff
}

// IsEnabled reports whether a feature is globally enabled.
func (ff *FeatureFlags) IsEnabled(name string) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	f, ok := ff.features[name]
	if !ok {
		return false
	}
	return f.Enabled && f.RolloutPercent > 0
}

// IsEnabledFor reports whether a feature is enabled for a specific viewer,
// honoring per-user overrides and rollout percentage.
func (ff *FeatureFlags) IsEnabledFor(name string, viewerID int64) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if overrides, ok := ff.userOverrides[viewerID]; ok {
		if enabled, ok := overrides[name]; ok {
			return enabled
		}
	}

	f, ok := ff.features[name]
	if !ok || !f.Enabled {
		return false
	}

	if f.RolloutPercent >= 100 {
		return true
	}
	if f.RolloutPercent <= 0 {
		return false
	}
	return bucketFor(name, viewerID) < f.RolloutPercent
}

// SetOverride forces a feature on or off for one viewer.
func (ff *FeatureFlags) SetOverride(viewerID int64, name string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if ff.userOverrides[viewerID] == nil {
		ff.userOverrides[viewerID] = make(map[string]bool)
	}
	ff.userOverrides[viewerID][name] = enabled
}

// ClearOverrides removes all per-viewer overrides.
func (ff *FeatureFlags) ClearOverrides() {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	ff.userOverrides = make(map[int64]map[string]bool)
}

// List returns a copy of all registered features.
func (ff *FeatureFlags) List() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	out := make([]Feature, 0, len(ff.features))
	for _, f := range ff.features {
		out = append(out, *f)
	}
	return out
}

// bucketFor deterministically assigns a viewer to a 0-99 bucket per feature.
// The feature name is part of the hash so rollouts of different features do
// not select the same viewers.
func bucketFor(name string, viewerID int64) int {
	h := fnv.New32a()
	h.Write([]byte(name))
	h.Write([]byte(strconv.FormatInt(viewerID, 10)))
	return int(h.Sum32() % 100)
}
