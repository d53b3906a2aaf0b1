// Package casedir manages the on-disk layout of cases. Each case is one
// directory under the workspace root holding its database file and its
// attachment store:
//
//	<root>/<slug>/case.db
//	<root>/<slug>/attachments/
//	<root>/<slug>/attachments/thumbs/
package casedir

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/casetrace/casetrace/internal/storage"
	"github.com/casetrace/casetrace/migrations"
)

// ErrCaseExists is returned when creating a case whose slug is taken.
var ErrCaseExists = errors.New("casedir: case already exists")

// ErrCaseNotFound is returned when opening a case that does not exist.
var ErrCaseNotFound = errors.New("casedir: case not found")

const (
	dbFilename     = "case.db"
	attachmentsDir = "attachments"
	thumbsDir      = "thumbs"
)

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a case name into a filesystem-safe directory name:
// lowercase, runs of non-alphanumerics collapsed to single hyphens.
func Slugify(name string) string {
	slug := slugStrip.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// Manager creates, opens, and lists cases under one workspace root.
type Manager struct {
	root   string
	logger *slog.Logger
}

// NewManager returns a Manager rooted at dir, creating it if needed.
func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("casedir: create root %s: %w", dir, err)
	}
	return &Manager{root: dir, logger: logger}, nil
}

// Root returns the workspace root directory.
func (m *Manager) Root() string {
	return m.root
}

// Case is an open case: its storage handle plus its directory paths.
type Case struct {
	Slug string
	Dir  string
	DB   *storage.CaseDB
}

// AttachmentsDir returns the directory attachment files live in.
func (c *Case) AttachmentsDir() string {
	return filepath.Join(c.Dir, attachmentsDir)
}

// ThumbsDir returns the directory thumbnails live in.
func (c *Case) ThumbsDir() string {
	return filepath.Join(c.Dir, attachmentsDir, thumbsDir)
}

// Close releases the case's database handle.
func (c *Case) Close() error {
	return c.DB.Close()
}

// Create makes a new case directory, initializes its database, and returns
// the open case. If any step fails the partial directory is removed so a
// retry starts clean.
func (m *Manager) Create(ctx context.Context, name string) (*Case, error) {
	slug := Slugify(name)
	if slug == "" {
		return nil, fmt.Errorf("casedir: create: name %q yields empty slug", name)
	}
	dir := filepath.Join(m.root, slug)

	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("casedir: create %s: %w", slug, ErrCaseExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("casedir: stat %s: %w", dir, err)
	}

	if err := os.MkdirAll(filepath.Join(dir, attachmentsDir, thumbsDir), 0o755); err != nil {
		return nil, fmt.Errorf("casedir: create %s: %w", slug, err)
	}

	c, err := m.open(ctx, slug, dir)
	if err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			m.logger.Warn("casedir: cleanup after failed create", "dir", dir, "error", rmErr)
		}
		return nil, err
	}
	m.logger.Info("case created", "slug", slug, "dir", dir)
	return c, nil
}

// Open opens an existing case by slug.
func (m *Manager) Open(ctx context.Context, slug string) (*Case, error) {
	dir := filepath.Join(m.root, slug)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("casedir: open %s: %w", slug, ErrCaseNotFound)
	}
	// Directories created by hand may predate the layout.
	if err := os.MkdirAll(filepath.Join(dir, attachmentsDir, thumbsDir), 0o755); err != nil {
		return nil, fmt.Errorf("casedir: open %s: %w", slug, err)
	}
	return m.open(ctx, slug, dir)
}

func (m *Manager) open(ctx context.Context, slug, dir string) (*Case, error) {
	db, err := storage.Open(ctx, filepath.Join(dir, dbFilename), m.logger)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		db.Close()
		return nil, err
	}
	return &Case{Slug: slug, Dir: dir, DB: db}, nil
}

// List returns the slugs of all cases in the workspace, sorted.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("casedir: list: %w", err)
	}
	var slugs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(m.root, e.Name(), dbFilename)); err == nil {
			slugs = append(slugs, e.Name())
		}
	}
	sort.Strings(slugs)
	return slugs, nil
}

// Delete removes a case directory and everything in it.
func (m *Manager) Delete(slug string) error {
	dir := filepath.Join(m.root, slug)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("casedir: delete %s: %w", slug, ErrCaseNotFound)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("casedir: delete %s: %w", slug, err)
	}
	m.logger.Info("case deleted", "slug", slug)
	return nil
}
