package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chrisokchen/bbdsl-platform/internal/model"
	"github.com/chrisokchen/bbdsl-platform/internal/tags"
)

const recommendationSelect = `
	SELECT c.id, c.name, c.namespace, c.version, c.description, c.tags, c.downloads,
	       COUNT(r.id), AVG(r.score), COALESCE(u.name, 'unknown')
	FROM conventions c
	LEFT JOIN users u ON u.id = c.author_id
	LEFT JOIN ratings r ON r.convention_id = c.id`

// ViewerAffinity collects the tags and namespaces of the viewer's own
// conventions plus the tags of the conventions the viewer rated.
func (db *DB) ViewerAffinity(ctx context.Context, userID string) (*model.Affinity, error) {
	tagSet := tags.Set{}
	nsSet := tags.Set{}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT tags, namespace FROM conventions WHERE author_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading authored conventions of %s: %w", userID, err)
	}
	for rows.Next() {
		var t, ns string
		if err := rows.Scan(&t, &ns); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning authored convention: %w", err)
		}
		tagSet.Add(tags.Parse(t)...)
		nsSet.Add(ns)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating authored conventions: %w", err)
	}

	rows, err = db.conn.QueryContext(ctx,
		`SELECT c.tags FROM ratings r JOIN conventions c ON c.id = r.convention_id
		 WHERE r.user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading rated conventions of %s: %w", userID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("sqlite: scanning rated convention: %w", err)
		}
		tagSet.Add(tags.Parse(t)...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating rated conventions: %w", err)
	}

	return &model.Affinity{Tags: tagSet.Sorted(), Namespaces: nsSet.Sorted()}, nil
}

// PopularConventions orders every convention by downloads, ties by id.
func (db *DB) PopularConventions(ctx context.Context, limit int) ([]model.Recommendation, error) {
	return db.queryRecommendations(ctx,
		recommendationSelect+`
		GROUP BY c.id
		ORDER BY c.downloads DESC, c.id ASC
		LIMIT ?`, limit)
}

// UnratedByViewer returns conventions the viewer neither wrote nor rated,
// most-rated first, then by downloads, ties by id.
func (db *DB) UnratedByViewer(ctx context.Context, userID string, limit int) ([]model.Recommendation, error) {
	return db.queryRecommendations(ctx,
		recommendationSelect+`
		WHERE c.author_id <> ?
		  AND c.id NOT IN (SELECT convention_id FROM ratings WHERE user_id = ?)
		GROUP BY c.id
		ORDER BY COUNT(r.id) DESC, c.downloads DESC, c.id ASC
		LIMIT ?`, userID, userID, limit)
}

func (db *DB) queryRecommendations(ctx context.Context, query string, args ...any) ([]model.Recommendation, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying recommendations: %w", err)
	}
	defer rows.Close()

	var out []model.Recommendation
	for rows.Next() {
		var (
			rec     model.Recommendation
			tagList string
			avg     sql.NullFloat64
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Namespace, &rec.Version, &rec.Description,
			&tagList, &rec.Downloads, &rec.RatingCount, &avg, &rec.AuthorName); err != nil {
			return nil, fmt.Errorf("sqlite: scanning recommendation row: %w", err)
		}
		rec.Tags = tags.Parse(tagList)
		if avg.Valid {
			v := round2(avg.Float64)
			rec.AvgRating = &v
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating recommendations: %w", err)
	}
	return out, nil
}
