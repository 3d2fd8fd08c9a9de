package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/engine"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
)

func newTestRegistry(t *testing.T) (*RegistryService, *mockStore, *mockEngine) {
	t.Helper()
	store := newMockStore()
	eng := &mockEngine{}
	return NewRegistryService(store, store, eng, testLogger()), store, eng
}

func validInput() model.ConventionInput {
	return model.ConventionInput{
		Name:      " Precision Club ",
		Namespace: "precision",
		Tags:      []string{"Strong Club", "precision", "precision"},
		Body:      "bbdsl: \"0.3\"\n",
	}
}

func TestCreateConvention(t *testing.T) {
	svc, store, eng := newTestRegistry(t)
	author := store.addUser("Alice")

	c, err := svc.CreateConvention(context.Background(), validInput(), author.ID)
	if err != nil {
		t.Fatalf("CreateConvention() error = %v", err)
	}
	if c.Name != "Precision Club" {
		t.Errorf("Name = %q, want trimmed", c.Name)
	}
	if c.Version != model.DefaultVersion {
		t.Errorf("Version = %q, want %q", c.Version, model.DefaultVersion)
	}
	if len(c.Tags) != 2 {
		t.Errorf("Tags = %v, want 2 normalized tags", c.Tags)
	}
	if c.AuthorID != author.ID {
		t.Errorf("AuthorID = %q, want %q", c.AuthorID, author.ID)
	}
	if eng.calls != 1 {
		t.Errorf("engine calls = %d, want 1", eng.calls)
	}
}

func TestCreateConvention_DocumentWithErrors(t *testing.T) {
	svc, store, eng := newTestRegistry(t)
	eng.report = engine.Report{"error_count": float64(2), "errors": []any{"a", "b"}}

	_, err := svc.CreateConvention(context.Background(), validInput(), "user-1")
	if !errors.Is(err, apperror.ErrValidationFailed) {
		t.Fatalf("error = %v, want ErrValidationFailed", err)
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error is not an AppError: %T", err)
	}
	if report, ok := appErr.Details.(engine.Report); !ok || report.ErrorCount() != 2 {
		t.Errorf("Details = %v, want the engine report", appErr.Details)
	}
	if len(store.conventions) != 0 {
		t.Errorf("stored %d conventions, want 0", len(store.conventions))
	}
}

func TestCreateConvention_EngineFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind error
	}{
		{"engine down", engine.ErrUnavailable, apperror.ErrUpstreamUnavailable},
		{"engine timeout", context.DeadlineExceeded, apperror.ErrUpstreamUnavailable},
		{"engine refuses input", &engine.InputError{Message: "not yaml"}, apperror.ErrValidationFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, eng := newTestRegistry(t)
			eng.err = tt.err

			_, err := svc.CreateConvention(context.Background(), validInput(), "user-1")
			if !errors.Is(err, tt.wantKind) {
				t.Errorf("error = %v, want kind %v", err, tt.wantKind)
			}
			if len(store.conventions) != 0 {
				t.Errorf("stored %d conventions, want 0", len(store.conventions))
			}
		})
	}
}

func TestCreateConvention_InvalidInput(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*model.ConventionInput)
		wantField string
	}{
		{"missing name", func(in *model.ConventionInput) { in.Name = "   " }, "name"},
		{"missing body", func(in *model.ConventionInput) { in.Body = "" }, "yaml_content"},
		{"long name", func(in *model.ConventionInput) { in.Name = strings.Repeat("x", 201) }, "name"},
		{"too many tags", func(in *model.ConventionInput) { in.Tags = make([]string, 33) }, "tags"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, eng := newTestRegistry(t)
			in := validInput()
			tt.mutate(&in)

			_, err := svc.CreateConvention(context.Background(), in, "user-1")
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrInvalidArgument) {
				t.Fatalf("error = %v, want InvalidArgument", err)
			}
			if appErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", appErr.Field, tt.wantField)
			}
			if eng.calls != 0 {
				t.Errorf("engine called %d times for invalid metadata", eng.calls)
			}
		})
	}
}

func TestCreateConvention_DuplicateVersion(t *testing.T) {
	svc, _, _ := newTestRegistry(t)
	ctx := context.Background()

	if _, err := svc.CreateConvention(ctx, validInput(), "user-1"); err != nil {
		t.Fatalf("first CreateConvention() error = %v", err)
	}
	_, err := svc.CreateConvention(ctx, validInput(), "user-2")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("second CreateConvention() error = %v, want ErrConflict", err)
	}
}

func TestUpdateConvention(t *testing.T) {
	svc, _, eng := newTestRegistry(t)
	ctx := context.Background()

	c, err := svc.CreateConvention(ctx, validInput(), "author")
	if err != nil {
		t.Fatalf("CreateConvention() error = %v", err)
	}

	t.Run("non-author is forbidden", func(t *testing.T) {
		_, err := svc.UpdateConvention(ctx, c.ID, model.ConventionPatch{Name: ptr("x")}, "intruder")
		if !errors.Is(err, apperror.ErrForbidden) {
			t.Errorf("error = %v, want ErrForbidden", err)
		}
	})

	t.Run("partial patch keeps other fields", func(t *testing.T) {
		got, err := svc.UpdateConvention(ctx, c.ID, model.ConventionPatch{Description: ptr("  Big club  ")}, "author")
		if err != nil {
			t.Fatalf("UpdateConvention() error = %v", err)
		}
		if got.Description != "Big club" {
			t.Errorf("Description = %q", got.Description)
		}
		if got.Name != c.Name || got.Body != c.Body || got.Namespace != c.Namespace {
			t.Errorf("untouched fields changed: %+v", got)
		}
	})

	t.Run("blank name is rejected", func(t *testing.T) {
		_, err := svc.UpdateConvention(ctx, c.ID, model.ConventionPatch{Name: ptr("   ")}, "author")
		if !errors.Is(err, apperror.ErrInvalidArgument) {
			t.Errorf("error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("new body is validated", func(t *testing.T) {
		eng.report = engine.Report{"error_count": float64(1)}
		defer func() { eng.report = nil }()

		_, err := svc.UpdateConvention(ctx, c.ID, model.ConventionPatch{Body: ptr("broken")}, "author")
		if !errors.Is(err, apperror.ErrValidationFailed) {
			t.Errorf("error = %v, want ErrValidationFailed", err)
		}
	})

	t.Run("missing convention", func(t *testing.T) {
		_, err := svc.UpdateConvention(ctx, "nope", model.ConventionPatch{Name: ptr("x")}, "author")
		if !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})
}

func TestDeleteConvention(t *testing.T) {
	svc, store, _ := newTestRegistry(t)
	ctx := context.Background()

	c, err := svc.CreateConvention(ctx, validInput(), "author")
	if err != nil {
		t.Fatalf("CreateConvention() error = %v", err)
	}

	if err := svc.DeleteConvention(ctx, c.ID, "intruder"); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("DeleteConvention(intruder) error = %v, want ErrForbidden", err)
	}
	if err := svc.DeleteConvention(ctx, c.ID, "author"); err != nil {
		t.Fatalf("DeleteConvention(author) error = %v", err)
	}
	if len(store.conventions) != 0 {
		t.Errorf("conventions left = %d, want 0", len(store.conventions))
	}
}

func TestRecordDownload(t *testing.T) {
	svc, _, _ := newTestRegistry(t)
	ctx := context.Background()

	c, err := svc.CreateConvention(ctx, validInput(), "author")
	if err != nil {
		t.Fatalf("CreateConvention() error = %v", err)
	}

	for want := int64(1); want <= 3; want++ {
		got, err := svc.RecordDownload(ctx, c.ID)
		if err != nil {
			t.Fatalf("RecordDownload() error = %v", err)
		}
		if got.Downloads != want {
			t.Errorf("Downloads = %d, want %d", got.Downloads, want)
		}
	}

	if _, err := svc.RecordDownload(ctx, "nope"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("RecordDownload(nope) error = %v, want ErrNotFound", err)
	}
}

func TestSearch(t *testing.T) {
	svc, store, _ := newTestRegistry(t)

	t.Run("normalizes filter", func(t *testing.T) {
		_, err := svc.Search(context.Background(), model.SearchFilter{
			Query: "  club ",
			Sort:  "bogus",
		}, firstPage())
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if store.lastFilter.Query != "club" {
			t.Errorf("Query = %q, want trimmed", store.lastFilter.Query)
		}
		if store.lastFilter.Sort != model.SortNewest {
			t.Errorf("Sort = %q, want %q", store.lastFilter.Sort, model.SortNewest)
		}
	})

	t.Run("empty result is an empty page", func(t *testing.T) {
		page, err := svc.Search(context.Background(), model.SearchFilter{Namespace: "none"}, firstPage())
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if page.Items == nil || len(page.Items) != 0 || page.Total != 0 {
			t.Errorf("page = %+v, want empty non-nil items", page)
		}
	})

	t.Run("pagination bounds", func(t *testing.T) {
		for _, p := range []model.PageRequest{{Page: 0, PageSize: 20}, {Page: 1, PageSize: 0}, {Page: 1, PageSize: 101},
			{Page: math.MaxInt, PageSize: 20}, {Page: model.MaxPage + 1, PageSize: 1}} {
			if _, err := svc.Search(context.Background(), model.SearchFilter{}, p); !errors.Is(err, apperror.ErrInvalidArgument) {
				t.Errorf("Search(%+v) error = %v, want ErrInvalidArgument", p, err)
			}
		}
	})

	t.Run("store failure is wrapped", func(t *testing.T) {
		store.searchErr = errors.New("disk I/O error")
		defer func() { store.searchErr = nil }()

		_, err := svc.Search(context.Background(), model.SearchFilter{}, firstPage())
		if err == nil || apperror.Kind(err) != nil {
			t.Errorf("error = %v, want a plain internal error", err)
		}
	})
}

func TestClaimNamespace(t *testing.T) {
	svc, _, _ := newTestRegistry(t)
	ctx := context.Background()

	ns, err := svc.ClaimNamespace(ctx, model.NamespaceInput{Prefix: "sayc"}, "alice")
	if err != nil {
		t.Fatalf("ClaimNamespace() error = %v", err)
	}
	if ns.DisplayName != "sayc" {
		t.Errorf("DisplayName = %q, want prefix as default", ns.DisplayName)
	}
	if ns.OwnerID != "alice" {
		t.Errorf("OwnerID = %q, want alice", ns.OwnerID)
	}

	if _, err := svc.ClaimNamespace(ctx, model.NamespaceInput{Prefix: "sayc"}, "bob"); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("second claim error = %v, want ErrConflict", err)
	}
}

func TestClaimNamespace_InvalidPrefix(t *testing.T) {
	svc, _, _ := newTestRegistry(t)

	for _, prefix := range []string{"2bad", "a", "Upper", "has space", "dots.not.allowed", strings.Repeat("a", 129)} {
		t.Run(prefix, func(t *testing.T) {
			_, err := svc.ClaimNamespace(context.Background(), model.NamespaceInput{Prefix: prefix}, "alice")
			var appErr *apperror.AppError
			if !errors.As(err, &appErr) || !errors.Is(err, apperror.ErrInvalidArgument) {
				t.Fatalf("error = %v, want InvalidArgument", err)
			}
			if appErr.Field != "prefix" {
				t.Errorf("Field = %q, want prefix", appErr.Field)
			}
		})
	}

	for _, prefix := range []string{"ok", "two-over-one", "my_club2"} {
		if err := checkPrefix(prefix); err != nil {
			t.Errorf("checkPrefix(%q) = %v, want nil", prefix, err)
		}
	}
}
