package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/rs/xid"

	"github.com/chrisokchen/bbdsl-platform/internal/model"
)

// UpsertRating stores r.Score as the user's rating of the convention.
//
// The insert and the overwrite are one statement: ON CONFLICT on the
// (convention_id, user_id) constraint turns a second rating into an update of
// the existing row. Two concurrent upserts by the same user therefore leave
// exactly one row holding whichever score was written last. r.ID and
// r.CreatedAt are set to the stored row's values.
func (db *DB) UpsertRating(ctx context.Context, r *model.Rating) error {
	ts := now()
	r.UpdatedAt = ts

	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO ratings (id, convention_id, user_id, score, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (convention_id, user_id)
		 DO UPDATE SET score = excluded.score, updated_at = excluded.updated_at
		 RETURNING id`,
		xid.New().String(), r.ConventionID, r.UserID, r.Score, ts, ts,
	).Scan(&r.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return notFound("convention", r.ConventionID)
		}
		return fmt.Errorf("sqlite: upserting rating on %s: %w", r.ConventionID, err)
	}

	if err := db.conn.QueryRowContext(ctx,
		`SELECT created_at FROM ratings WHERE id = ?`, r.ID,
	).Scan(&r.CreatedAt); err != nil {
		return fmt.Errorf("sqlite: reading rating %s: %w", r.ID, err)
	}
	return nil
}

// RatingStats aggregates the ratings of a convention. With no ratings the
// average is 0, not NULL. viewerID may be empty.
func (db *DB) RatingStats(ctx context.Context, conventionID, viewerID string) (*model.RatingStats, error) {
	stats := &model.RatingStats{ConventionID: conventionID}

	var avg float64
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COALESCE(AVG(score), 0), COUNT(*) FROM ratings WHERE convention_id = ?`,
		conventionID,
	).Scan(&avg, &stats.Count); err != nil {
		return nil, fmt.Errorf("sqlite: aggregating ratings of %s: %w", conventionID, err)
	}
	stats.Average = round2(avg)

	if viewerID == "" {
		return stats, nil
	}

	var own int
	err := db.conn.QueryRowContext(ctx,
		`SELECT score FROM ratings WHERE convention_id = ? AND user_id = ?`,
		conventionID, viewerID,
	).Scan(&own)
	switch {
	case err == nil:
		stats.UserRating = &own
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("sqlite: reading viewer rating of %s: %w", conventionID, err)
	}
	return stats, nil
}

// CreateComment stores c. c.AuthorName must already hold the name snapshot.
func (db *DB) CreateComment(ctx context.Context, c *model.Comment) error {
	c.ID = xid.New().String()
	c.CreatedAt = now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, convention_id, user_id, author_name, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.ConventionID, c.UserID, c.AuthorName, c.Content, c.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return notFound("convention", c.ConventionID)
		}
		return fmt.Errorf("sqlite: creating comment on %s: %w", c.ConventionID, err)
	}
	return nil
}

// ListComments returns one page of comments, newest first.
func (db *DB) ListComments(ctx context.Context, conventionID string, page model.PageRequest) ([]model.Comment, int, error) {
	var total int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM comments WHERE convention_id = ?`, conventionID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting comments of %s: %w", conventionID, err)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, convention_id, user_id, author_name, content, created_at
		 FROM comments
		 WHERE convention_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		conventionID, page.PageSize, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing comments of %s: %w", conventionID, err)
	}
	defer rows.Close()

	items := make([]model.Comment, 0, page.PageSize)
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.ConventionID, &c.UserID, &c.AuthorName, &c.Content, &c.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return items, total, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
