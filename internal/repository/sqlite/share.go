package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
)

// CreateShare stores s under s.Hash. A hash that is already taken fails with
// apperror.ErrConflict so the caller can draw a new one.
func (db *DB) CreateShare(ctx context.Context, s *model.Share) error {
	s.ID = xid.New().String()
	s.CreatedAt = now()
	s.Views = 0

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO shares (id, hash, title, yaml_content, user_id, views, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		s.ID, s.Hash, s.Title, s.Body, nullString(s.OwnerID), s.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("share", s.Hash)
		}
		if isForeignKeyViolation(err) {
			return notFound("user", s.OwnerID)
		}
		return fmt.Errorf("sqlite: creating share: %w", err)
	}
	return nil
}

// ViewShare increments the view counter in one statement, then loads the
// share with its owner's current name.
func (db *DB) ViewShare(ctx context.Context, hash string) (*model.Share, error) {
	var (
		id    string
		views int64
	)
	err := db.conn.QueryRowContext(ctx,
		`UPDATE shares SET views = views + 1 WHERE hash = ? RETURNING id, views`, hash,
	).Scan(&id, &views)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound("share", hash)
		}
		return nil, fmt.Errorf("sqlite: counting view of share %s: %w", hash, err)
	}

	var (
		s         model.Share
		owner     sql.NullString
		ownerName sql.NullString
	)
	err = db.conn.QueryRowContext(ctx,
		`SELECT s.id, s.hash, s.title, s.yaml_content, s.user_id, u.name, s.created_at
		 FROM shares s
		 LEFT JOIN users u ON u.id = s.user_id
		 WHERE s.id = ?`, id,
	).Scan(&s.ID, &s.Hash, &s.Title, &s.Body, &owner, &ownerName, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading share %s: %w", hash, err)
	}

	s.Views = views
	s.OwnerID = owner.String
	if ownerName.Valid {
		name := ownerName.String
		s.OwnerName = &name
	}
	return &s, nil
}
