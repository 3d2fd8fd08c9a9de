// Package seed loads bundled convention documents into an empty registry.
//
// Every document is published by one bot account. A document whose
// (namespace, version) is already in the registry is skipped, so loading the
// same directory twice is harmless.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chrisokchen/bbdsl-platform/internal/apperror"
	"github.com/chrisokchen/bbdsl-platform/internal/model"
	"github.com/chrisokchen/bbdsl-platform/internal/repository"
)

// FileSuffix selects the documents to load.
const FileSuffix = ".bbdsl.yaml"

// BotIdentity is the account that owns seeded conventions.
var BotIdentity = model.Identity{
	Provider:   model.ProviderGitHub,
	ExternalID: "seed-bot",
	Name:       "BBDSL Bot",
	Email:      "bot@bbdsl.dev",
}

// fileDefaults maps a file stem to the namespace and tags it is published with.
// Stems not listed use the stem as namespace and no tags.
var fileDefaults = map[string]struct {
	namespace string
	tags      []string
}{
	"precision":    {"precision", []string{"precision", "strong-club", "artificial"}},
	"sayc":         {"sayc", []string{"sayc", "natural", "american"}},
	"two_over_one": {"two-over-one", []string{"2/1", "game-forcing", "natural"}},
}

// preferredLocales is the lookup order for localised names and descriptions.
var preferredLocales = []string{"en", "zh-TW"}

// Result lists what a Load call did, as "namespace@version" keys.
type Result struct {
	Loaded  []string
	Skipped []string
}

// Loader publishes seed documents.
type Loader struct {
	users       repository.UserRepository
	conventions repository.ConventionRepository
	logger      *slog.Logger
}

func NewLoader(users repository.UserRepository, conventions repository.ConventionRepository, logger *slog.Logger) *Loader {
	return &Loader{users: users, conventions: conventions, logger: logger}
}

// Load publishes every *.bbdsl.yaml file at the top level of fsys, in name order.
func (l *Loader) Load(ctx context.Context, fsys fs.FS) (*Result, error) {
	bot, err := l.users.LinkOrCreateUser(ctx, BotIdentity)
	if err != nil {
		return nil, fmt.Errorf("seed: ensuring bot user: %w", err)
	}

	names, err := fs.Glob(fsys, "*"+FileSuffix)
	if err != nil {
		return nil, fmt.Errorf("seed: listing documents: %w", err)
	}
	sort.Strings(names)

	res := &Result{Loaded: []string{}, Skipped: []string{}}
	for _, name := range names {
		raw, err := fs.ReadFile(fsys, name)
		if err != nil {
			return res, fmt.Errorf("seed: reading %s: %w", name, err)
		}

		c := l.convention(strings.TrimSuffix(path.Base(name), FileSuffix), string(raw))
		c.AuthorID = bot.ID
		key := c.Namespace + "@" + c.Version

		_, err = l.conventions.GetConventionByVersion(ctx, c.Namespace, c.Version)
		switch {
		case err == nil:
			l.logger.Info("seed document already published", slog.String("convention", key))
			res.Skipped = append(res.Skipped, key)
			continue
		case !errors.Is(err, apperror.ErrNotFound):
			return res, fmt.Errorf("seed: checking %s: %w", key, err)
		}

		if err := l.conventions.CreateConvention(ctx, c); err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				res.Skipped = append(res.Skipped, key)
				continue
			}
			return res, fmt.Errorf("seed: publishing %s: %w", key, err)
		}

		l.logger.Info("seed document published",
			slog.String("convention", key),
			slog.String("id", c.ID),
		)
		res.Loaded = append(res.Loaded, key)
	}
	return res, nil
}

// document is the part of a convention document the loader reads.
type document struct {
	System struct {
		Name        any    `yaml:"name"`
		Description any    `yaml:"description"`
		Version     scalar `yaml:"version"`
	} `yaml:"system"`
}

// scalar keeps a YAML scalar's source text, so version 1.10 stays "1.10".
type scalar string

func (s *scalar) UnmarshalYAML(value *yaml.Node) error {
	*s = scalar(value.Value)
	return nil
}

// convention derives the record for one document. Documents that do not
// parse are still published, with metadata taken from the file name.
func (l *Loader) convention(stem, body string) *model.Convention {
	var doc document
	if err := yaml.Unmarshal([]byte(body), &doc); err != nil {
		l.logger.Warn("seed document is not valid YAML, using file name",
			slog.String("file", stem+FileSuffix),
			slog.String("error", err.Error()),
		)
		doc = document{}
	}

	namespace, tags := stem, []string{}
	if d, ok := fileDefaults[stem]; ok {
		namespace, tags = d.namespace, d.tags
	}

	version := strings.TrimSpace(string(doc.System.Version))
	if version == "" {
		version = model.DefaultVersion
	}

	return &model.Convention{
		Name:        localized(doc.System.Name, stem),
		Namespace:   namespace,
		Version:     version,
		Description: localized(doc.System.Description, ""),
		Tags:        tags,
		Body:        body,
	}
}

// localized reads a plain or per-locale string. Maps are read in
// preferredLocales order, then by smallest key.
func localized(v any, fallback string) string {
	switch t := v.(type) {
	case nil:
		return fallback
	case string:
		if t == "" {
			return fallback
		}
		return t
	case map[string]any:
		for _, loc := range preferredLocales {
			if s, ok := t[loc].(string); ok && s != "" {
				return s
			}
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s := fmt.Sprint(t[k]); s != "" {
				return s
			}
		}
		return fallback
	default:
		return fmt.Sprint(t)
	}
}
