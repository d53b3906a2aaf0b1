package casedir_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casetrace/casetrace/internal/casedir"
)

func newManager(t *testing.T) *casedir.Manager {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := casedir.NewManager(t.TempDir(), logger)
	require.NoError(t, err)
	return mgr
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jane Doe 1987", "jane-doe-1987"},
		{"  The  RIVER   case ", "the-river-case"},
		{"case#42 (reopened)", "case-42-reopened"},
		{"---", ""},
		{"Ünicode Näme", "nicode-n-me"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, casedir.Slugify(tt.in))
		})
	}
}

func TestCreateAndOpen(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	cs, err := mgr.Create(ctx, "Jane Doe 1987")
	require.NoError(t, err)
	assert.Equal(t, "jane-doe-1987", cs.Slug)
	require.NoError(t, cs.Close())

	// Layout exists.
	assert.DirExists(t, cs.AttachmentsDir())
	assert.DirExists(t, cs.ThumbsDir())
	assert.FileExists(t, filepath.Join(cs.Dir, "case.db"))

	reopened, err := mgr.Open(ctx, "jane-doe-1987")
	require.NoError(t, err)
	require.NoError(t, reopened.DB.Ping(ctx))
	require.NoError(t, reopened.Close())
}

func TestCreateDuplicate(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	cs, err := mgr.Create(ctx, "River Case")
	require.NoError(t, err)
	defer cs.Close()

	// Different name, same slug.
	_, err = mgr.Create(ctx, "river CASE")
	assert.ErrorIs(t, err, casedir.ErrCaseExists)
}

func TestCreateEmptySlug(t *testing.T) {
	mgr := newManager(t)
	_, err := mgr.Create(context.Background(), "!!!")
	require.Error(t, err)
}

func TestOpenMissing(t *testing.T) {
	mgr := newManager(t)
	_, err := mgr.Open(context.Background(), "no-such-case")
	assert.ErrorIs(t, err, casedir.ErrCaseNotFound)
}

func TestListSkipsStrayDirectories(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	cs, err := mgr.Create(ctx, "Alpha")
	require.NoError(t, err)
	defer cs.Close()

	// A directory without a database file is not a case.
	require.NoError(t, os.MkdirAll(filepath.Join(mgr.Root(), "not-a-case"), 0o755))

	slugs, err := mgr.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, slugs)
}

func TestDelete(t *testing.T) {
	mgr := newManager(t)
	ctx := context.Background()

	cs, err := mgr.Create(ctx, "Short Lived")
	require.NoError(t, err)
	require.NoError(t, cs.Close())

	require.NoError(t, mgr.Delete("short-lived"))
	assert.NoDirExists(t, cs.Dir)

	err = mgr.Delete("short-lived")
	assert.ErrorIs(t, err, casedir.ErrCaseNotFound)
}
