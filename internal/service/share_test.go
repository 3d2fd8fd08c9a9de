package service

import (
	"context"
	"errors"
	"testing"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/sharehash"
)

// sequenceHashes replays a fixed list of hashes, repeating the last one.
type sequenceHashes struct {
	hashes []string
	calls  int
}

func (g *sequenceHashes) Generate() (string, error) {
	i := min(g.calls, len(g.hashes)-1)
	g.calls++
	return g.hashes[i], nil
}

type failingHashes struct{}

func (failingHashes) Generate() (string, error) { return "", errors.New("entropy exhausted") }

var _ sharehash.Generator = (*sequenceHashes)(nil)

func TestCreateShare(t *testing.T) {
	store := newMockStore()
	owner := store.addUser("Alice")
	svc := NewShareService(store, store, sharehash.New(), 0, testLogger())

	s, err := svc.Create(context.Background(), "", "bbdsl: \"0.3\"", owner.ID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !sharehash.Valid(s.Hash) {
		t.Errorf("Hash = %q, not a valid share hash", s.Hash)
	}
	if s.Title != "Shared Convention" {
		t.Errorf("Title = %q, want default", s.Title)
	}
	if s.OwnerName == nil || *s.OwnerName != "Alice" {
		t.Errorf("OwnerName = %v, want Alice", s.OwnerName)
	}
}

func TestCreateShare_Anonymous(t *testing.T) {
	store := newMockStore()
	svc := NewShareService(store, store, sharehash.New(), 0, testLogger())

	s, err := svc.Create(context.Background(), "My system", "body", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.OwnerName != nil {
		t.Errorf("OwnerName = %q, want nil", *s.OwnerName)
	}
}

func TestCreateShare_RetriesOnCollision(t *testing.T) {
	store := newMockStore()
	hashes := &sequenceHashes{hashes: []string{"aaaaaaaaaaaa", "aaaaaaaaaaaa", "bbbbbbbbbbbb"}}
	svc := NewShareService(store, store, hashes, 0, testLogger())
	ctx := context.Background()

	if _, err := svc.Create(ctx, "one", "body", ""); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	s, err := svc.Create(ctx, "two", "body", "")
	if err != nil {
		t.Fatalf("second Create() error = %v", err)
	}
	if s.Hash != "bbbbbbbbbbbb" {
		t.Errorf("Hash = %q, want the redrawn hash", s.Hash)
	}
	if hashes.calls != 3 {
		t.Errorf("Generate calls = %d, want 3", hashes.calls)
	}
}

func TestCreateShare_GivesUpAfterMaxAttempts(t *testing.T) {
	store := newMockStore()
	hashes := &sequenceHashes{hashes: []string{"cccccccccccc"}}
	svc := NewShareService(store, store, hashes, 3, testLogger())
	ctx := context.Background()

	if _, err := svc.Create(ctx, "one", "body", ""); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	hashes.calls = 0

	_, err := svc.Create(ctx, "two", "body", "")
	if !errors.Is(err, apperror.ErrUpstreamUnavailable) {
		t.Fatalf("Create() error = %v, want ErrUpstreamUnavailable", err)
	}
	if hashes.calls != 3 {
		t.Errorf("Generate calls = %d, want 3", hashes.calls)
	}
}

func TestCreateShare_Errors(t *testing.T) {
	t.Run("empty body", func(t *testing.T) {
		store := newMockStore()
		svc := NewShareService(store, store, sharehash.New(), 0, testLogger())
		if _, err := svc.Create(context.Background(), "t", "   ", ""); !errors.Is(err, apperror.ErrInvalidArgument) {
			t.Errorf("error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("generator failure", func(t *testing.T) {
		store := newMockStore()
		svc := NewShareService(store, store, failingHashes{}, 0, testLogger())
		if _, err := svc.Create(context.Background(), "t", "body", ""); !errors.Is(err, apperror.ErrUpstreamUnavailable) {
			t.Errorf("error = %v, want ErrUpstreamUnavailable", err)
		}
	})

	t.Run("store failure is not retried", func(t *testing.T) {
		store := newMockStore()
		store.createShareErrs = []error{errors.New("disk full")}
		hashes := &sequenceHashes{hashes: []string{"dddddddddddd"}}
		svc := NewShareService(store, store, hashes, 0, testLogger())

		_, err := svc.Create(context.Background(), "t", "body", "")
		if err == nil || apperror.Kind(err) != nil {
			t.Errorf("error = %v, want a plain internal error", err)
		}
		if hashes.calls != 1 {
			t.Errorf("Generate calls = %d, want 1", hashes.calls)
		}
	})
}

func TestViewShare(t *testing.T) {
	store := newMockStore()
	svc := NewShareService(store, store, sharehash.New(), 0, testLogger())
	ctx := context.Background()

	s, err := svc.Create(ctx, "t", "body", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	for want := int64(1); want <= 2; want++ {
		got, err := svc.View(ctx, s.Hash)
		if err != nil {
			t.Fatalf("View() error = %v", err)
		}
		if got.Views != want {
			t.Errorf("Views = %d, want %d", got.Views, want)
		}
	}

	for _, hash := range []string{"", "not-a-hash", "ABCDEF012345", "eeeeeeeeeeee"} {
		if _, err := svc.View(ctx, hash); !errors.Is(err, apperror.ErrNotFound) {
			t.Errorf("View(%q) error = %v, want ErrNotFound", hash, err)
		}
	}
}
