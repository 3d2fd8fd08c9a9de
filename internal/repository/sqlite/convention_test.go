package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
)

func TestCreateConvention_DuplicateVersionConflicts(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "1", "alice")
	createTestConvention(t, db, author, "precision", "1.0.0")

	dup := &model.Convention{Name: "again", Namespace: "precision", Version: "1.0.0", Body: "x", AuthorID: author.ID}
	err := db.CreateConvention(context.Background(), dup)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("duplicate CreateConvention() error = %v, want ErrConflict", err)
	}

	// A different version in the same namespace is fine.
	createTestConvention(t, db, author, "precision", "1.1.0")
}

func TestCreateConvention_UnknownAuthor(t *testing.T) {
	db := newTestDB(t)

	c := &model.Convention{Name: "n", Namespace: "ns", Version: "1.0.0", Body: "x", AuthorID: "ghost"}
	if err := db.CreateConvention(context.Background(), c); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("CreateConvention() error = %v, want ErrNotFound", err)
	}
}

func TestGetConvention_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "1", "alice")
	created := createTestConvention(t, db, author, "sayc", "1.0.0")

	got, err := db.GetConvention(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetConvention() error = %v", err)
	}
	if got.Namespace != "sayc" || got.Version != "1.0.0" {
		t.Errorf("got %s@%s", got.Namespace, got.Version)
	}
	if got.Body != created.Body {
		t.Errorf("Body = %q, want %q", got.Body, created.Body)
	}
	if got.AuthorName != "alice" {
		t.Errorf("AuthorName = %q, want alice", got.AuthorName)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "sayc" || got.Tags[1] != "natural" {
		t.Errorf("Tags = %v", got.Tags)
	}

	byVersion, err := db.GetConventionByVersion(context.Background(), "sayc", "1.0.0")
	if err != nil {
		t.Fatalf("GetConventionByVersion() error = %v", err)
	}
	if byVersion.ID != created.ID {
		t.Errorf("GetConventionByVersion() id = %s, want %s", byVersion.ID, created.ID)
	}

	if _, err := db.GetConvention(context.Background(), "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetConvention(missing) error = %v, want ErrNotFound", err)
	}
}

func TestLatestConventionAndVersions(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "1", "alice")
	createTestConvention(t, db, author, "two-over-one", "1.0.0")
	createTestConvention(t, db, author, "two-over-one", "1.1.0")
	last := createTestConvention(t, db, author, "two-over-one", "2.0.0")

	latest, err := db.LatestConvention(context.Background(), "two-over-one")
	if err != nil {
		t.Fatalf("LatestConvention() error = %v", err)
	}
	if latest.ID != last.ID {
		t.Errorf("LatestConvention() = %s, want %s", latest.Version, last.Version)
	}

	versions, err := db.ListVersions(context.Background(), "two-over-one")
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 3 || versions[0].Version != "2.0.0" || versions[2].Version != "1.0.0" {
		t.Errorf("ListVersions() = %+v", versions)
	}

	if _, err := db.ListVersions(context.Background(), "nobody"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("ListVersions(empty) error = %v, want ErrNotFound", err)
	}
	if _, err := db.LatestConvention(context.Background(), "nobody"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("LatestConvention(empty) error = %v, want ErrNotFound", err)
	}
}

func strPtr(s string) *string { return &s }

func TestUpdateConvention_KeepsIdentity(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "1", "alice")
	c := createTestConvention(t, db, author, "acol", "1.0.0")

	tagList := []string{"british", "british", " natural "}
	err := db.UpdateConvention(ctx, c.ID, model.ConventionPatch{
		Name: strPtr("Acol Revised"),
		Tags: &tagList,
	})
	if err != nil {
		t.Fatalf("UpdateConvention() error = %v", err)
	}

	got, err := db.GetConvention(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetConvention() error = %v", err)
	}
	if got.Name != "Acol Revised" {
		t.Errorf("Name = %q", got.Name)
	}
	if got.Namespace != "acol" || got.Version != "1.0.0" {
		t.Errorf("identity changed to %s@%s", got.Namespace, got.Version)
	}
	if len(got.Tags) != 2 {
		t.Errorf("Tags = %v, want deduplicated", got.Tags)
	}
	if got.Body != c.Body || got.Description != c.Description {
		t.Errorf("untouched fields changed: body %q, description %q", got.Body, got.Description)
	}

	err = db.UpdateConvention(ctx, "missing", model.ConventionPatch{Name: strPtr("x")})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateConvention(missing) error = %v, want ErrNotFound", err)
	}
}

// Two patches built from the same stale read must not undo each other.
func TestUpdateConvention_ConcurrentPatchesOfDifferentFields(t *testing.T) {
	db := newFileDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "1", "alice")
	c := createTestConvention(t, db, author, "precision", "1.0.0")

	patches := []model.ConventionPatch{
		{Name: strPtr("Precision 2.0")},
		{Description: strPtr("Strong club")},
		{Body: strPtr("bbdsl: \"0.3\"\n")},
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(patches))
	for _, p := range patches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := db.UpdateConvention(ctx, c.ID, p); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("UpdateConvention() error = %v", err)
	}

	got, err := db.GetConvention(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetConvention() error = %v", err)
	}
	if got.Name != "Precision 2.0" {
		t.Errorf("Name = %q, want Precision 2.0", got.Name)
	}
	if got.Description != "Strong club" {
		t.Errorf("Description = %q, want Strong club", got.Description)
	}
	if got.Body != "bbdsl: \"0.3\"\n" {
		t.Errorf("Body = %q", got.Body)
	}
}

func TestDeleteConvention_CascadesCommunityData(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "1", "alice")
	rater := createTestUser(t, db, "2", "bob")
	c := createTestConvention(t, db, author, "polish", "1.0.0")

	if err := db.UpsertRating(ctx, &model.Rating{ConventionID: c.ID, UserID: rater.ID, Score: 4}); err != nil {
		t.Fatalf("UpsertRating() error = %v", err)
	}
	if err := db.CreateComment(ctx, &model.Comment{ConventionID: c.ID, UserID: rater.ID, AuthorName: "bob", Content: "nice"}); err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}

	if err := db.DeleteConvention(ctx, c.ID); err != nil {
		t.Fatalf("DeleteConvention() error = %v", err)
	}

	var ratings, comments int
	db.conn.QueryRow(`SELECT COUNT(*) FROM ratings`).Scan(&ratings)
	db.conn.QueryRow(`SELECT COUNT(*) FROM comments`).Scan(&comments)
	if ratings != 0 || comments != 0 {
		t.Errorf("after delete: %d ratings, %d comments remain", ratings, comments)
	}

	if err := db.DeleteConvention(ctx, c.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteConvention() error = %v, want ErrNotFound", err)
	}
}

func TestIncrementDownloads_Concurrent(t *testing.T) {
	db := newFileDB(t)
	author := createTestUser(t, db, "1", "alice")
	c := createTestConvention(t, db, author, "precision", "1.0.0")

	const n = 100
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.IncrementDownloads(context.Background(), c.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("IncrementDownloads() error = %v", err)
	}

	got, err := db.GetConvention(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("GetConvention() error = %v", err)
	}
	if got.Downloads != n {
		t.Errorf("Downloads = %d, want %d", got.Downloads, n)
	}
}

func TestIncrementDownloads_Missing(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.IncrementDownloads(context.Background(), "missing"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("IncrementDownloads(missing) error = %v, want ErrNotFound", err)
	}
}

func TestSearchConventions_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "1", "alice")
	bob := createTestUser(t, db, "2", "bob")
	createTestConvention(t, db, alice, "precision", "1.0.0")
	createTestConvention(t, db, alice, "sayc", "1.0.0")
	createTestConvention(t, db, bob, "sayc", "2.0.0")

	tests := []struct {
		name   string
		filter model.SearchFilter
		want   int
	}{
		{"no filter", model.SearchFilter{}, 3},
		{"query matches namespace", model.SearchFilter{Query: "SAYC"}, 2},
		{"exact namespace", model.SearchFilter{Namespace: "precision"}, 1},
		{"tag substring", model.SearchFilter{Tag: "natural"}, 3},
		{"author", model.SearchFilter{Author: "bob"}, 1},
		{"combined", model.SearchFilter{Namespace: "sayc", Author: "alice"}, 1},
		{"wildcards are literal", model.SearchFilter{Query: "%"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := db.SearchConventions(ctx, tt.filter, model.PageRequest{Page: 1, PageSize: 20})
			if err != nil {
				t.Fatalf("SearchConventions() error = %v", err)
			}
			if total != tt.want || len(items) != tt.want {
				t.Errorf("got total=%d items=%d, want %d", total, len(items), tt.want)
			}
			for _, it := range items {
				if it.Body != "" {
					t.Errorf("search result %s carries a body", it.ID)
				}
			}
		})
	}
}

func TestSearchConventions_PaginationIsExhaustive(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	author := createTestUser(t, db, "1", "alice")
	for i := range 23 {
		createTestConvention(t, db, author, fmt.Sprintf("ns%02d", i), "1.0.0")
	}

	for _, sort := range []model.SortOrder{model.SortNewest, model.SortOldest, model.SortDownloads, model.SortName} {
		t.Run(string(sort), func(t *testing.T) {
			seen := map[string]bool{}
			for page := 1; page <= 5; page++ {
				items, total, err := db.SearchConventions(ctx, model.SearchFilter{Sort: sort}, model.PageRequest{Page: page, PageSize: 5})
				if err != nil {
					t.Fatalf("SearchConventions() error = %v", err)
				}
				if total != 23 {
					t.Fatalf("total = %d, want 23", total)
				}
				for _, it := range items {
					if seen[it.ID] {
						t.Fatalf("convention %s appeared on two pages", it.ID)
					}
					seen[it.ID] = true
				}
			}
			if len(seen) != 23 {
				t.Errorf("pages covered %d conventions, want 23", len(seen))
			}
		})
	}
}

func TestSearchConventions_SortByName(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "1", "alice")
	for _, ns := range []string{"zeta", "Alpha", "mid"} {
		createTestConvention(t, db, author, ns, "1.0.0")
	}

	items, _, err := db.SearchConventions(context.Background(), model.SearchFilter{Sort: model.SortName}, model.PageRequest{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("SearchConventions() error = %v", err)
	}
	got := []string{items[0].Namespace, items[1].Namespace, items[2].Namespace}
	want := []string{"Alpha", "mid", "zeta"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("name order = %v, want %v", got, want)
		}
	}
}

func TestSearchConventions_LastAllowedPageIsEmpty(t *testing.T) {
	db := newTestDB(t)
	author := createTestUser(t, db, "1", "alice")
	createTestConvention(t, db, author, "precision", "1.0.0")
	createTestConvention(t, db, author, "sayc", "1.0.0")

	items, total, err := db.SearchConventions(context.Background(), model.SearchFilter{},
		model.PageRequest{Page: model.MaxPage, PageSize: model.MaxPageSize})
	if err != nil {
		t.Fatalf("SearchConventions() error = %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if len(items) != 0 {
		t.Errorf("got %d items past the end, want none", len(items))
	}
}
