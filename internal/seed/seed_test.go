package seed

import (
	"context"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisokchen/bbdsl-platform/internal/model"
	"github.com/chrisokchen/bbdsl-platform/internal/repository/sqlite"
)

const precisionDoc = `bbdsl: "0.3"
system:
  name:
    zh-TW: 精確制
    en: Precision Club
  description:
    zh-TW: 強梅花制
  version: 2.10
`

func newFixtures() fstest.MapFS {
	return fstest.MapFS{
		"precision.bbdsl.yaml":    {Data: []byte(precisionDoc)},
		"two_over_one.bbdsl.yaml": {Data: []byte("system:\n  name: Two Over One\n")},
		"acol.bbdsl.yaml":         {Data: []byte("system: [not, a, mapping\n")},
		"README.md":               {Data: []byte("# not a convention")},
	}
}

func newTestLoader(t *testing.T) (*Loader, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.New(sqlite.MemoryPath, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewLoader(db, db, slog.New(slog.DiscardHandler)), db
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	loader, db := newTestLoader(t)

	res, err := loader.Load(ctx, newFixtures())
	require.NoError(t, err)
	assert.Equal(t, []string{"acol@1.0.0", "precision@2.10", "two-over-one@1.0.0"}, res.Loaded)
	assert.Empty(t, res.Skipped)

	precision, err := db.GetConventionByVersion(ctx, "precision", "2.10")
	require.NoError(t, err)
	assert.Equal(t, "Precision Club", precision.Name)
	assert.Equal(t, "強梅花制", precision.Description)
	assert.Equal(t, []string{"precision", "strong-club", "artificial"}, precision.Tags)
	assert.Equal(t, precisionDoc, precision.Body)
	assert.Equal(t, "BBDSL Bot", precision.AuthorName)

	acol, err := db.GetConventionByVersion(ctx, "acol", model.DefaultVersion)
	require.NoError(t, err)
	assert.Equal(t, "acol", acol.Name, "unparseable documents fall back to the file name")
	assert.Empty(t, acol.Tags)

	twoOverOne, err := db.LatestConvention(ctx, "two-over-one")
	require.NoError(t, err)
	assert.Equal(t, "Two Over One", twoOverOne.Name)
}

func TestLoad_Idempotent(t *testing.T) {
	ctx := context.Background()
	loader, db := newTestLoader(t)

	_, err := loader.Load(ctx, newFixtures())
	require.NoError(t, err)

	res, err := loader.Load(ctx, newFixtures())
	require.NoError(t, err)
	assert.Empty(t, res.Loaded)
	assert.Len(t, res.Skipped, 3)

	bot, err := db.GetUserByProviderKey(ctx, model.ProviderGitHub, "seed-bot")
	require.NoError(t, err)
	assert.Equal(t, "bot@bbdsl.dev", bot.Email)
}

func TestLoad_EmptyDirectory(t *testing.T) {
	loader, _ := newTestLoader(t)

	res, err := loader.Load(context.Background(), fstest.MapFS{})
	require.NoError(t, err)
	assert.Empty(t, res.Loaded)
}

func TestLocalized(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "fallback"},
		{"empty string", "", "fallback"},
		{"plain", "SAYC", "SAYC"},
		{"english first", map[string]any{"zh-TW": "標準美式", "en": "Standard American"}, "Standard American"},
		{"then zh-TW", map[string]any{"fr": "Américain", "zh-TW": "標準美式"}, "標準美式"},
		{"then smallest key", map[string]any{"fr": "Américain", "de": "Amerikanisch"}, "Amerikanisch"},
		{"number", 2, "2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, localized(tt.in, "fallback"))
		})
	}
}
