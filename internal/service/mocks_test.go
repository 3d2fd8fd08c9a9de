package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/engine"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
	"github.com/chrisokchen/bbdsl-platform/internal/repository"
)

// =========================================================================
// MOCK STORE
// =========================================================================
//
// mockStore keeps every entity in maps. It implements the uniqueness rules
// the real store enforces with constraints, which is all the services rely
// on. Failures can be injected through the err fields.

type mockStore struct {
	mu          sync.Mutex
	nextID      int
	users       map[string]*model.User
	namespaces  map[string]*model.Namespace
	conventions map[string]*model.Convention
	ratings     map[string]*model.Rating // key: convention|user
	comments    []model.Comment
	drafts      map[string]*model.Draft
	shares      map[string]*model.Share

	// createShareErrs is consumed one error per CreateShare call.
	createShareErrs []error
	searchErr       error

	affinityCalls int
	lastFilter    model.SearchFilter
	popular       []model.Recommendation
	unrated       []model.Recommendation
}

var _ repository.Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{
		users:       map[string]*model.User{},
		namespaces:  map[string]*model.Namespace{},
		conventions: map[string]*model.Convention{},
		ratings:     map[string]*model.Rating{},
		drafts:      map[string]*model.Draft{},
		shares:      map[string]*model.Share{},
	}
}

func (m *mockStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *mockStore) addUser(name string) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &model.User{ID: m.id("user"), Name: name}
	m.users[u.ID] = u
	return u
}

func (m *mockStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	cp := *u
	return &cp, nil
}

func (m *mockStore) GetUserByProviderKey(_ context.Context, provider, key string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ProviderKey(provider) == key {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("user", key)
}

func (m *mockStore) LinkOrCreateUser(_ context.Context, id model.Identity) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ProviderKey(id.Provider) == id.ExternalID {
			u.Name = id.Name
			cp := *u
			return &cp, nil
		}
	}
	for _, u := range m.users {
		if id.Email != "" && strings.EqualFold(u.Email, id.Email) && u.ProviderKey(id.Provider) == "" {
			u.SetProviderKey(id.Provider, id.ExternalID)
			cp := *u
			return &cp, nil
		}
	}
	u := &model.User{ID: m.id("user"), Name: id.Name, Email: id.Email}
	u.SetProviderKey(id.Provider, id.ExternalID)
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *mockStore) CreateNamespace(_ context.Context, ns *model.Namespace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.namespaces[ns.Prefix]; ok {
		return apperror.Conflict("namespace", ns.Prefix)
	}
	ns.ID = m.id("ns")
	cp := *ns
	m.namespaces[ns.Prefix] = &cp
	return nil
}

func (m *mockStore) GetNamespace(_ context.Context, prefix string) (*model.Namespace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns, ok := m.namespaces[prefix]
	if !ok {
		return nil, apperror.NotFound("namespace", prefix)
	}
	cp := *ns
	return &cp, nil
}

func (m *mockStore) SearchNamespaces(_ context.Context, query string, _ model.PageRequest) ([]model.Namespace, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Namespace
	for _, ns := range m.namespaces {
		if strings.Contains(ns.Prefix, query) {
			out = append(out, *ns)
		}
	}
	return out, len(out), nil
}

func (m *mockStore) CreateConvention(_ context.Context, c *model.Convention) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.conventions {
		if existing.Namespace == c.Namespace && existing.Version == c.Version {
			return apperror.Conflict("convention", c.Namespace+"@"+c.Version)
		}
	}
	c.ID = m.id("conv")
	cp := *c
	m.conventions[c.ID] = &cp
	return nil
}

func (m *mockStore) GetConvention(_ context.Context, id string) (*model.Convention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conventions[id]
	if !ok {
		return nil, apperror.NotFound("convention", id)
	}
	cp := *c
	return &cp, nil
}

func (m *mockStore) GetConventionByVersion(_ context.Context, namespace, version string) (*model.Convention, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conventions {
		if c.Namespace == namespace && c.Version == version {
			cp := *c
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("convention", namespace+"@"+version)
}

func (m *mockStore) LatestConvention(ctx context.Context, namespace string) (*model.Convention, error) {
	return nil, apperror.NotFound("convention", namespace)
}

func (m *mockStore) ConventionExists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conventions[id]
	return ok, nil
}

func (m *mockStore) UpdateConvention(_ context.Context, id string, patch model.ConventionPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conventions[id]
	if !ok {
		return apperror.NotFound("convention", id)
	}
	cp := *c
	if patch.Name != nil {
		cp.Name = *patch.Name
	}
	if patch.Description != nil {
		cp.Description = *patch.Description
	}
	if patch.Tags != nil {
		cp.Tags = append([]string{}, *patch.Tags...)
	}
	if patch.Body != nil {
		cp.Body = *patch.Body
	}
	m.conventions[id] = &cp
	return nil
}

func (m *mockStore) DeleteConvention(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conventions[id]; !ok {
		return apperror.NotFound("convention", id)
	}
	delete(m.conventions, id)
	return nil
}

func (m *mockStore) IncrementDownloads(_ context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conventions[id]
	if !ok {
		return 0, apperror.NotFound("convention", id)
	}
	c.Downloads++
	return c.Downloads, nil
}

func (m *mockStore) SearchConventions(_ context.Context, f model.SearchFilter, _ model.PageRequest) ([]model.Convention, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastFilter = f
	if m.searchErr != nil {
		return nil, 0, m.searchErr
	}
	var out []model.Convention
	for _, c := range m.conventions {
		if f.Namespace == "" || c.Namespace == f.Namespace {
			out = append(out, *c)
		}
	}
	return out, len(out), nil
}

func (m *mockStore) ListVersions(_ context.Context, namespace string) ([]model.VersionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.VersionInfo
	for _, c := range m.conventions {
		if c.Namespace == namespace {
			out = append(out, model.VersionInfo{Version: c.Version})
		}
	}
	if len(out) == 0 {
		return nil, apperror.NotFound("namespace", namespace)
	}
	return out, nil
}

func (m *mockStore) UpsertRating(_ context.Context, r *model.Rating) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := r.ConventionID + "|" + r.UserID
	if existing, ok := m.ratings[key]; ok {
		existing.Score = r.Score
		r.ID = existing.ID
		return nil
	}
	r.ID = m.id("rating")
	cp := *r
	m.ratings[key] = &cp
	return nil
}

func (m *mockStore) RatingStats(_ context.Context, conventionID, viewerID string) (*model.RatingStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &model.RatingStats{ConventionID: conventionID}
	sum := 0
	for _, r := range m.ratings {
		if r.ConventionID != conventionID {
			continue
		}
		stats.Count++
		sum += r.Score
		if r.UserID == viewerID {
			score := r.Score
			stats.UserRating = &score
		}
	}
	if stats.Count > 0 {
		stats.Average = float64(sum) / float64(stats.Count)
	}
	return stats, nil
}

func (m *mockStore) CreateComment(_ context.Context, c *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id("comment")
	m.comments = append(m.comments, *c)
	return nil
}

func (m *mockStore) ListComments(_ context.Context, conventionID string, _ model.PageRequest) ([]model.Comment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Comment
	for _, c := range slices.Backward(m.comments) {
		if c.ConventionID == conventionID {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (m *mockStore) ViewerAffinity(_ context.Context, _ string) (*model.Affinity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.affinityCalls++
	return &model.Affinity{Tags: []string{"natural"}}, nil
}

func (m *mockStore) PopularConventions(_ context.Context, limit int) ([]model.Recommendation, error) {
	return truncate(m.popular, limit), nil
}

func (m *mockStore) UnratedByViewer(_ context.Context, _ string, limit int) ([]model.Recommendation, error) {
	return truncate(m.unrated, limit), nil
}

func truncate(recs []model.Recommendation, limit int) []model.Recommendation {
	if len(recs) > limit {
		return recs[:limit]
	}
	return recs
}

func (m *mockStore) CreateDraft(_ context.Context, d *model.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.ID = m.id("draft")
	cp := *d
	m.drafts[d.ID] = &cp
	return nil
}

func (m *mockStore) GetDraft(_ context.Context, id, ownerID string) (*model.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[id]
	if !ok || d.OwnerID != ownerID {
		return nil, apperror.NotFound("draft", id)
	}
	cp := *d
	return &cp, nil
}

func (m *mockStore) ListDrafts(_ context.Context, ownerID string, _ model.PageRequest) ([]model.Draft, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Draft
	for _, d := range m.drafts {
		if d.OwnerID == ownerID {
			out = append(out, *d)
		}
	}
	return out, len(out), nil
}

func (m *mockStore) UpdateDraft(_ context.Context, d *model.Draft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.drafts[d.ID]
	if !ok || existing.OwnerID != d.OwnerID {
		return apperror.NotFound("draft", d.ID)
	}
	cp := *d
	m.drafts[d.ID] = &cp
	return nil
}

func (m *mockStore) DeleteDraft(_ context.Context, id, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drafts[id]
	if !ok || d.OwnerID != ownerID {
		return apperror.NotFound("draft", id)
	}
	delete(m.drafts, id)
	return nil
}

func (m *mockStore) CreateShare(_ context.Context, s *model.Share) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.createShareErrs) > 0 {
		err := m.createShareErrs[0]
		m.createShareErrs = m.createShareErrs[1:]
		if err != nil {
			return err
		}
	}
	if _, ok := m.shares[s.Hash]; ok {
		return apperror.Conflict("share", s.Hash)
	}
	s.ID = m.id("share")
	cp := *s
	m.shares[s.Hash] = &cp
	return nil
}

func (m *mockStore) ViewShare(_ context.Context, hash string) (*model.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shares[hash]
	if !ok {
		return nil, apperror.NotFound("share", hash)
	}
	s.Views++
	cp := *s
	return &cp, nil
}

// =========================================================================
// MOCK ENGINE
// =========================================================================

type mockEngine struct {
	report    engine.Report
	err       error
	output    string
	calls     int
	lastFmt   string
	lastDiff  engine.DiffOptions
	lastLocal string
}

func (e *mockEngine) Validate(context.Context, string) (engine.Report, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if e.report == nil {
		return engine.Report{"error_count": float64(0)}, nil
	}
	return e.report, nil
}

func (e *mockEngine) Export(_ context.Context, _ string, format string, opts engine.ExportOptions) (string, error) {
	e.calls++
	e.lastFmt = format
	e.lastLocal = opts.Locale
	if e.err != nil {
		return "", e.err
	}
	return e.output, nil
}

func (e *mockEngine) Diff(_ context.Context, _, _ string, opts engine.DiffOptions) (engine.Report, error) {
	e.calls++
	e.lastDiff = opts
	if e.err != nil {
		return nil, e.err
	}
	return engine.Report{"differences": []any{}}, nil
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func firstPage() model.PageRequest {
	return model.PageRequest{Page: 1, PageSize: 20}
}

func ptr[T any](v T) *T { return &v }
