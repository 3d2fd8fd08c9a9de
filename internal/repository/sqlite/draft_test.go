package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
)

func TestDrafts_ScopedByOwner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "1", "alice")
	stranger := createTestUser(t, db, "2", "mallory")

	d := &model.Draft{Title: "WIP", Body: "system: {}", OwnerID: owner.ID}
	if err := db.CreateDraft(ctx, d); err != nil {
		t.Fatalf("CreateDraft() error = %v", err)
	}

	if _, err := db.GetDraft(ctx, d.ID, owner.ID); err != nil {
		t.Fatalf("GetDraft(owner) error = %v", err)
	}
	if _, err := db.GetDraft(ctx, d.ID, stranger.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetDraft(stranger) error = %v, want ErrNotFound", err)
	}

	hijack := &model.Draft{ID: d.ID, Title: "pwned", OwnerID: stranger.ID}
	if err := db.UpdateDraft(ctx, hijack); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateDraft(stranger) error = %v, want ErrNotFound", err)
	}
	if err := db.DeleteDraft(ctx, d.ID, stranger.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("DeleteDraft(stranger) error = %v, want ErrNotFound", err)
	}

	items, total, err := db.ListDrafts(ctx, stranger.ID, model.PageRequest{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("ListDrafts() error = %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Errorf("stranger sees %d drafts", total)
	}

	if err := db.DeleteDraft(ctx, d.ID, owner.ID); err != nil {
		t.Errorf("DeleteDraft(owner) error = %v", err)
	}
}

func TestDrafts_UpdateAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createTestUser(t, db, "1", "alice")

	older := &model.Draft{Title: "one", Body: "a", OwnerID: owner.ID}
	newer := &model.Draft{Title: "two", Body: "b", OwnerID: owner.ID}
	for _, d := range []*model.Draft{older, newer} {
		if err := db.CreateDraft(ctx, d); err != nil {
			t.Fatalf("CreateDraft() error = %v", err)
		}
	}

	older.Body = "a2"
	if err := db.UpdateDraft(ctx, older); err != nil {
		t.Fatalf("UpdateDraft() error = %v", err)
	}

	got, err := db.GetDraft(ctx, older.ID, owner.ID)
	if err != nil {
		t.Fatalf("GetDraft() error = %v", err)
	}
	if got.Body != "a2" {
		t.Errorf("Body = %q, want a2", got.Body)
	}

	items, total, err := db.ListDrafts(ctx, owner.ID, model.PageRequest{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("ListDrafts() error = %v", err)
	}
	if total != 2 || items[0].ID != older.ID {
		t.Errorf("ListDrafts() first = %s, want most recently edited", items[0].Title)
	}
}
