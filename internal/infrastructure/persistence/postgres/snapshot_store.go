package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/frightclub/movie-night-hub/internal/application"
	"github.com/frightclub/movie-night-hub/internal/domain/badge"
	"github.com/frightclub/movie-night-hub/internal/domain/rating"
	"github.com/frightclub/movie-night-hub/internal/domain/stats"
	"github.com/frightclub/movie-night-hub/internal/domain/watch"
)

// ══════════════════════════════════════════════════════════════════════════════
// SNAPSHOT STORE
// Persists the full engine state as one atomic snapshot. Save runs in a
// single transaction that replaces the previous snapshot wholesale, so a
// failure at any point leaves the old snapshot intact.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultHistoryRetention caps the number of history records kept durable.
const DefaultHistoryRetention = 1000

// SnapshotStore implements the application persistence boundary on PostgreSQL.
type SnapshotStore struct {
	conn *Connection

	// historyRetention - сколько последних записей истории сохраняется.
	historyRetention int
}

// SnapshotStoreOption настраивает SnapshotStore.
type SnapshotStoreOption func(*SnapshotStore)

// WithHistoryRetention задаёт лимит хранимых записей истории.
func WithHistoryRetention(n int) SnapshotStoreOption {
	return func(s *SnapshotStore) {
		if n > 0 {
			s.historyRetention = n
		}
	}
}

// NewSnapshotStore creates a snapshot store over an established connection.
func NewSnapshotStore(conn *Connection, opts ...SnapshotStoreOption) *SnapshotStore {
	s := &SnapshotStore{
		conn:             conn,
		historyRetention: DefaultHistoryRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// movieMetadataRow is the JSONB layout of watch.MovieMetadata.
type movieMetadataRow struct {
	Genres   []string `json:"genres,omitempty"`
	Year     int      `json:"year,omitempty"`
	Director string   `json:"director,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Save
// ─────────────────────────────────────────────────────────────────────────────

// Save atomically replaces the stored snapshot with snap. History beyond the
// retention limit is dropped, oldest records first.
func (s *SnapshotStore) Save(ctx context.Context, snap *application.Snapshot) error {
	history := snap.History
	if len(history) > s.historyRetention {
		history = history[len(history)-s.historyRetention:]
	}

	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, table := range []string{"watch_history", "user_stats", "user_badges", "movie_ratings"} {
			if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		batch := &pgx.Batch{}

		for _, rec := range history {
			meta, err := json.Marshal(movieMetadataRow{
				Genres:   rec.Metadata.Genres,
				Year:     rec.Metadata.Year,
				Director: rec.Metadata.Director,
			})
			if err != nil {
				return fmt.Errorf("marshal metadata: %w", err)
			}
			batch.Queue(`
				INSERT INTO watch_history (
					id, user_id, username, movie_title, start_time, end_time,
					watch_duration_minutes, completion_percentage,
					movie_duration_ms, join_position_ms, leave_position_ms, metadata
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
				rec.ID, int64(rec.UserID), rec.Username, string(rec.MovieTitle),
				rec.StartTime, rec.EndTime, rec.WatchDurationMinutes,
				rec.CompletionPercentage, rec.MovieDurationMS,
				rec.JoinPositionMS, rec.LeavePositionMS, meta,
			)
		}

		for _, u := range snap.Stats {
			genres, err := json.Marshal(u.FavoriteGenres)
			if err != nil {
				return fmt.Errorf("marshal genres: %w", err)
			}
			decades, err := json.Marshal(u.FavoriteDecades)
			if err != nil {
				return fmt.Errorf("marshal decades: %w", err)
			}
			directors := make([]string, 0, len(u.DirectorsWatched))
			for d := range u.DirectorsWatched {
				directors = append(directors, d)
			}
			directorsJSON, err := json.Marshal(directors)
			if err != nil {
				return fmt.Errorf("marshal directors: %w", err)
			}
			batch.Queue(`
				INSERT INTO user_stats (
					user_id, username, total_movies, total_watch_time_minutes,
					completed_movies, current_streak_days, longest_streak_days,
					last_watch_date, favorite_genres, favorite_decades,
					directors_watched, ai_interactions, votes_cast,
					movies_requested, updated_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
				int64(u.UserID), u.Username, u.TotalMovies, u.TotalWatchTimeMinutes,
				u.CompletedMovies, u.CurrentStreakDays, u.LongestStreakDays,
				u.LastWatchDate, genres, decades, directorsJSON,
				u.AIInteractions, u.VotesCast, u.MoviesRequested, snap.SavedAt,
			)
		}

		for userID, earned := range snap.Badges {
			for _, ub := range earned {
				batch.Queue(`
					INSERT INTO user_badges (user_id, badge_id, earned_date)
					VALUES ($1, $2, $3)`,
					int64(userID), string(ub.BadgeID), ub.EarnedDate,
				)
			}
		}

		for _, r := range snap.Ratings {
			batch.Queue(`
				INSERT INTO movie_ratings (user_id, username, movie_title, rating, rated_at)
				VALUES ($1, $2, $3, $4, $5)`,
				int64(r.UserID), r.Username, string(r.MovieTitle), int(r.Score), r.RatedDate,
			)
		}

		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("snapshot insert: %w", err)
			}
		}
		return results.Close()
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Load
// ─────────────────────────────────────────────────────────────────────────────

// Load reads the stored snapshot. Empty tables yield an empty snapshot.
func (s *SnapshotStore) Load(ctx context.Context) (*application.Snapshot, error) {
	snap := &application.Snapshot{
		Badges: make(map[watch.UserID][]badge.UserBadge),
	}

	if err := s.loadHistory(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.loadStats(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.loadBadges(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.loadRatings(ctx, snap); err != nil {
		return nil, err
	}

	return snap, nil
}

func (s *SnapshotStore) loadHistory(ctx context.Context, snap *application.Snapshot) error {
	rows, err := s.conn.Query(ctx, `
		SELECT id, user_id, username, movie_title, start_time, end_time,
		       watch_duration_minutes, completion_percentage,
		       movie_duration_ms, join_position_ms, leave_position_ms, metadata
		FROM watch_history
		ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("load watch_history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec     watch.Record
			userID  int64
			title   string
			rawMeta []byte
		)
		if err := rows.Scan(
			&rec.ID, &userID, &rec.Username, &title, &rec.StartTime, &rec.EndTime,
			&rec.WatchDurationMinutes, &rec.CompletionPercentage,
			&rec.MovieDurationMS, &rec.JoinPositionMS, &rec.LeavePositionMS, &rawMeta,
		); err != nil {
			return fmt.Errorf("scan watch_history: %w", err)
		}
		rec.UserID = watch.UserID(userID)
		rec.MovieTitle = watch.MovieTitle(title)

		var meta movieMetadataRow
		if err := json.Unmarshal(rawMeta, &meta); err != nil {
			return fmt.Errorf("unmarshal metadata: %w", err)
		}
		rec.Metadata = watch.MovieMetadata{
			Genres:   meta.Genres,
			Year:     meta.Year,
			Director: meta.Director,
		}

		r := rec
		snap.History = append(snap.History, &r)
	}
	return rows.Err()
}

func (s *SnapshotStore) loadStats(ctx context.Context, snap *application.Snapshot) error {
	rows, err := s.conn.Query(ctx, `
		SELECT user_id, username, total_movies, total_watch_time_minutes,
		       completed_movies, current_streak_days, longest_streak_days,
		       last_watch_date, favorite_genres, favorite_decades,
		       directors_watched, ai_interactions, votes_cast, movies_requested
		FROM user_stats`)
	if err != nil {
		return fmt.Errorf("load user_stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID                          int64
			u                               stats.UserStats
			rawGenres, rawDecades, rawDirec []byte
		)
		if err := rows.Scan(
			&userID, &u.Username, &u.TotalMovies, &u.TotalWatchTimeMinutes,
			&u.CompletedMovies, &u.CurrentStreakDays, &u.LongestStreakDays,
			&u.LastWatchDate, &rawGenres, &rawDecades, &rawDirec,
			&u.AIInteractions, &u.VotesCast, &u.MoviesRequested,
		); err != nil {
			return fmt.Errorf("scan user_stats: %w", err)
		}
		u.UserID = watch.UserID(userID)

		if err := json.Unmarshal(rawGenres, &u.FavoriteGenres); err != nil {
			return fmt.Errorf("unmarshal genres: %w", err)
		}
		if err := json.Unmarshal(rawDecades, &u.FavoriteDecades); err != nil {
			return fmt.Errorf("unmarshal decades: %w", err)
		}
		var directors []string
		if err := json.Unmarshal(rawDirec, &directors); err != nil {
			return fmt.Errorf("unmarshal directors: %w", err)
		}
		u.DirectorsWatched = make(map[string]struct{}, len(directors))
		for _, d := range directors {
			u.DirectorsWatched[d] = struct{}{}
		}
		if u.FavoriteGenres == nil {
			u.FavoriteGenres = make(map[string]int)
		}
		if u.FavoriteDecades == nil {
			u.FavoriteDecades = make(map[string]int)
		}

		user := u
		snap.Stats = append(snap.Stats, &user)
	}
	return rows.Err()
}

func (s *SnapshotStore) loadBadges(ctx context.Context, snap *application.Snapshot) error {
	rows, err := s.conn.Query(ctx, `
		SELECT user_id, badge_id, earned_date
		FROM user_badges
		ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("load user_badges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID     int64
			badgeID    string
			earnedDate time.Time
		)
		if err := rows.Scan(&userID, &badgeID, &earnedDate); err != nil {
			return fmt.Errorf("scan user_badges: %w", err)
		}
		uid := watch.UserID(userID)
		snap.Badges[uid] = append(snap.Badges[uid], badge.UserBadge{
			BadgeID:    badge.ID(badgeID),
			EarnedDate: earnedDate,
		})
	}
	return rows.Err()
}

func (s *SnapshotStore) loadRatings(ctx context.Context, snap *application.Snapshot) error {
	rows, err := s.conn.Query(ctx, `
		SELECT user_id, username, movie_title, rating, rated_at
		FROM movie_ratings
		ORDER BY rated_at`)
	if err != nil {
		return fmt.Errorf("load movie_ratings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			userID int64
			r      rating.MovieRating
			title  string
			score  int
		)
		if err := rows.Scan(&userID, &r.Username, &title, &score, &r.RatedDate); err != nil {
			return fmt.Errorf("scan movie_ratings: %w", err)
		}
		r.UserID = watch.UserID(userID)
		r.MovieTitle = watch.MovieTitle(title)
		r.Score = rating.Score(score)

		mr := r
		snap.Ratings = append(snap.Ratings, &mr)
	}
	return rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Backup
// ─────────────────────────────────────────────────────────────────────────────

// Backup copies the current snapshot tables into timestamped backup tables
// and returns the backup label.
func (s *SnapshotStore) Backup(ctx context.Context) (string, error) {
	label := time.Now().UTC().Format("20060102_150405")

	err := s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, table := range []string{"watch_history", "user_stats", "user_badges", "movie_ratings"} {
			stmt := fmt.Sprintf("CREATE TABLE %s_backup_%s AS SELECT * FROM %s", table, label, table)
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("backup %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return label, nil
}
