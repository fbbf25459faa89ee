// Package feedback persists user ratings of generated answers in Postgres.
// The store is optional: a nil *Store disables the feedback endpoints.
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Feedback is one rated question/answer pair.
type Feedback struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
}

// Stats aggregates all stored feedback. Positive is ratings >= 4, negative
// ratings <= 2.
type Stats struct {
	Total     int64   `json:"total"`
	AvgRating float64 `json:"avg_rating"`
	Positive  int64   `json:"positive"`
	Negative  int64   `json:"negative"`
}

// Store persists feedback through a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL and ensures the schema exists. An empty URL
// returns a nil store, which disables feedback persistence.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		log.Info().Msg("feedback persistence disabled, no database URL")
		return nil, nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect feedback database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.init(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS feedbacks (
			id BIGSERIAL PRIMARY KEY,
			timestamp TIMESTAMPTZ DEFAULT NOW(),
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			rating INTEGER NOT NULL CHECK (rating >= 1 AND rating <= 5),
			comment TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_feedbacks_timestamp ON feedbacks(timestamp);
		CREATE INDEX IF NOT EXISTS idx_feedbacks_rating ON feedbacks(rating)`)
	if err != nil {
		return fmt.Errorf("init feedback schema: %w", err)
	}
	return nil
}

// Save inserts the feedback and fills in its assigned id and timestamp.
func (s *Store) Save(ctx context.Context, fb *Feedback) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO feedbacks (question, answer, rating, comment)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, timestamp`,
		fb.Question, fb.Answer, fb.Rating, fb.Comment,
	).Scan(&fb.ID, &fb.Timestamp)
	if err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}

// List returns feedback newest first, paginated.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Feedback, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, timestamp, question, answer, rating, COALESCE(comment, '')
		FROM feedbacks
		ORDER BY timestamp DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list feedbacks: %w", err)
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var fb Feedback
		if err := rows.Scan(&fb.ID, &fb.Timestamp, &fb.Question, &fb.Answer, &fb.Rating, &fb.Comment); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		out = append(out, fb)
	}
	return out, rows.Err()
}

// Stats aggregates the stored ratings.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(AVG(rating), 0),
			COUNT(*) FILTER (WHERE rating >= 4),
			COUNT(*) FILTER (WHERE rating <= 2)
		FROM feedbacks`,
	).Scan(&stats.Total, &stats.AvgRating, &stats.Positive, &stats.Negative)
	if err != nil {
		return nil, fmt.Errorf("feedback stats: %w", err)
	}
	return &stats, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}
