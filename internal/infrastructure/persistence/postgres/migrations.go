package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: WATCH HISTORY
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create watch history ledger
-- Version: 001

CREATE TABLE IF NOT EXISTS watch_history (
    id UUID PRIMARY KEY,
    user_id BIGINT NOT NULL,
    username VARCHAR(100) NOT NULL DEFAULT '',
    movie_title TEXT NOT NULL,
    start_time TIMESTAMP WITH TIME ZONE NOT NULL,
    end_time TIMESTAMP WITH TIME ZONE,
    watch_duration_minutes INTEGER NOT NULL DEFAULT 0,
    completion_percentage DECIMAL(5,2) NOT NULL DEFAULT 0.00,
    movie_duration_ms BIGINT,
    join_position_ms BIGINT,
    leave_position_ms BIGINT,
    seq BIGSERIAL,

    -- Metadata enrichment from the media server (best effort)
    metadata JSONB NOT NULL DEFAULT '{}'::jsonb,

    CONSTRAINT valid_duration CHECK (watch_duration_minutes >= 0),
    CONSTRAINT valid_completion CHECK (completion_percentage >= 0 AND completion_percentage <= 100)
);

CREATE INDEX IF NOT EXISTS idx_watch_history_user_id ON watch_history(user_id);
CREATE INDEX IF NOT EXISTS idx_watch_history_start_time ON watch_history(start_time DESC);

-- The resume lookup works on the latest record per (user, movie) pair
CREATE INDEX IF NOT EXISTS idx_watch_history_user_movie ON watch_history(user_id, lower(movie_title), seq DESC);

-- Open records: sessions that were never closed
CREATE INDEX IF NOT EXISTS idx_watch_history_open ON watch_history(user_id) WHERE end_time IS NULL;
`

const migration001Down = `
DROP TABLE IF EXISTS watch_history;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: USER STATS & BADGES
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create user statistics and earned badges
-- Version: 002

CREATE TABLE IF NOT EXISTS user_stats (
    user_id BIGINT PRIMARY KEY,
    username VARCHAR(100) NOT NULL DEFAULT '',
    total_movies INTEGER NOT NULL DEFAULT 0,
    total_watch_time_minutes INTEGER NOT NULL DEFAULT 0,
    completed_movies INTEGER NOT NULL DEFAULT 0,
    current_streak_days INTEGER NOT NULL DEFAULT 0,
    longest_streak_days INTEGER NOT NULL DEFAULT 0,
    last_watch_date TIMESTAMP WITH TIME ZONE,
    favorite_genres JSONB NOT NULL DEFAULT '{}'::jsonb,
    favorite_decades JSONB NOT NULL DEFAULT '{}'::jsonb,
    directors_watched JSONB NOT NULL DEFAULT '[]'::jsonb,
    ai_interactions INTEGER NOT NULL DEFAULT 0,
    votes_cast INTEGER NOT NULL DEFAULT 0,
    movies_requested INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_totals CHECK (
        total_movies >= 0 AND
        total_watch_time_minutes >= 0 AND
        completed_movies >= 0
    ),
    CONSTRAINT valid_streaks CHECK (
        current_streak_days >= 0 AND
        longest_streak_days >= current_streak_days
    )
);

CREATE INDEX IF NOT EXISTS idx_user_stats_total_movies ON user_stats(total_movies DESC);
CREATE INDEX IF NOT EXISTS idx_user_stats_watch_time ON user_stats(total_watch_time_minutes DESC);

CREATE TABLE IF NOT EXISTS user_badges (
    user_id BIGINT NOT NULL,
    badge_id VARCHAR(50) NOT NULL,
    earned_date TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    seq BIGSERIAL,

    PRIMARY KEY (user_id, badge_id)
);

CREATE INDEX IF NOT EXISTS idx_user_badges_user_id ON user_badges(user_id, seq);
`

const migration002Down = `
DROP TABLE IF EXISTS user_badges;
DROP TABLE IF EXISTS user_stats;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: MOVIE RATINGS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create movie ratings
-- Version: 003

CREATE TABLE IF NOT EXISTS movie_ratings (
    user_id BIGINT NOT NULL,
    username VARCHAR(100) NOT NULL DEFAULT '',
    movie_title TEXT NOT NULL,
    rating SMALLINT NOT NULL,
    rated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_rating CHECK (rating >= 1 AND rating <= 10)
);

-- One rating per viewer per movie, matched case-insensitively
CREATE UNIQUE INDEX IF NOT EXISTS idx_movie_ratings_user_movie ON movie_ratings(user_id, lower(movie_title));
CREATE INDEX IF NOT EXISTS idx_movie_ratings_movie ON movie_ratings(lower(movie_title));
`

const migration003Down = `
DROP TABLE IF EXISTS movie_ratings;
`
