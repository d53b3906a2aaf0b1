package importer_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casetrace/casetrace/internal/importer"
	"github.com/casetrace/casetrace/internal/model"
	"github.com/casetrace/casetrace/internal/staging"
	"github.com/casetrace/casetrace/internal/storage"
	"github.com/casetrace/casetrace/migrations"
)

func newService(t *testing.T) (*importer.Service, *storage.CaseDB) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := storage.Open(ctx, filepath.Join(t.TempDir(), "case.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(ctx, migrations.FS))
	st := staging.NewService(db, nil, logger)
	return importer.NewService(db, st, logger), db
}

const articleHTML = `<!doctype html>
<html>
<head><title>Local Paper | Archive</title></head>
<body>
<nav>Home News Sports</nav>
<h1>Search continues for missing hiker</h1>
<article>
<p>Volunteers searched the ridge trail again on Saturday.</p>
<p>The county sheriff said no new leads have emerged.</p>
</article>
<footer>Copyright 1998</footer>
<script>trackPageView()</script>
</body>
</html>`

func TestImportURLGenericParser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	svc, db := newService(t)
	ctx := context.Background()

	res, err := svc.ImportURL(ctx, srv.URL+"/article")
	require.NoError(t, err)
	assert.Equal(t, "generic", res.Parser)
	assert.Equal(t, model.SourceTypeNews, res.Source.SourceType)
	require.NotNil(t, res.Source.URL)

	// Boilerplate is stripped, the article text survives.
	assert.Contains(t, res.Source.RawText, "ridge trail")
	assert.NotContains(t, res.Source.RawText, "trackPageView")
	assert.NotContains(t, res.Source.RawText, "Copyright 1998")

	// The h1 beats the page title in the source note.
	require.NotNil(t, res.Source.Notes)
	assert.Contains(t, *res.Source.Notes, "Search continues for missing hiker")

	// The source record is queryable and the grade columns stay empty.
	src, err := db.GetSource(ctx, res.Source.ID)
	require.NoError(t, err)
	assert.Nil(t, src.SourceReliability)
	assert.Nil(t, src.InformationAccuracy)
}

func TestImportURLBlocked(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	svc, db := newService(t)
	_, err := svc.ImportURL(context.Background(), srv.URL)
	assert.ErrorIs(t, err, importer.ErrBlocked)

	// Nothing was recorded for the failed fetch.
	sources, listErr := db.ListSources(context.Background())
	require.NoError(t, listErr)
	assert.Empty(t, sources)
}

func TestImportURLServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc, _ := newService(t)
	_, err := svc.ImportURL(context.Background(), srv.URL)
	require.Error(t, err)
	assert.NotErrorIs(t, err, importer.ErrBlocked)
}

func TestImportHTMLStagesNamusFields(t *testing.T) {
	page := `<html><body>
<h1>Dana Holt</h1>
<main>
<div class="data-field"><span class="data-label">Legal First Name</span>
<span class="data-value">Dana</span></div>
<div class="data-field"><span class="data-label">Legal Last Name</span>
<span class="data-value">Holt</span></div>
<div class="data-field"><span class="data-label">Location</span>
<span class="data-value">Cedar Falls, IA</span></div>
<div class="data-field"><span class="data-label">Date of Last Contact</span>
<span class="data-value">June 12, 1987</span></div>
</main>
</body></html>`

	svc, db := newService(t)
	ctx := context.Background()

	res, err := svc.ImportHTML(ctx, "https://www.namus.gov/MissingPersons/Case#/12345", page)
	require.NoError(t, err)
	assert.Equal(t, "namus", res.Parser)
	assert.Equal(t, model.SourceTypeOfficial, res.Source.SourceType)
	require.Len(t, res.Staged, 3)

	// Everything lands in the review queue, not the case tables.
	pending, err := db.ListStagedItems(ctx, model.StagedPending)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
	_, err = db.GetEntityByName(ctx, "Dana Holt")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	var types []model.StagedItemType
	for _, item := range res.Staged {
		types = append(types, item.ItemType)
	}
	assert.ElementsMatch(t, []model.StagedItemType{
		model.StagedEntity, model.StagedEntity, model.StagedEvent,
	}, types)
}

func TestImportHTMLEmptyPage(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.ImportHTML(context.Background(), "https://example.com/x",
		`<html><body><script>only()</script></body></html>`)
	require.Error(t, err)
}

func TestRegistryFor(t *testing.T) {
	r := importer.NewRegistry()
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.namus.gov/MissingPersons/Case#/1", "namus"},
		{"https://namus.nij.ojp.gov/case/2", "namus"},
		{"https://www.fbi.gov/wanted/vicap/someone", "fbi"},
		{"https://www.doenetwork.org/cases/100uf.html", "doenetwork"},
		{"https://evil-namus.gov.example.com/", "generic"},
		{"https://blog.example.com/post", "generic"},
		{"not a url", "generic"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, r.For(tt.url).Name())
		})
	}
}
