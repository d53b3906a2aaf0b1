package content

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casetrace/casetrace/internal/casedir"
	"github.com/casetrace/casetrace/internal/model"
	"github.com/casetrace/casetrace/internal/storage"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mgr, err := casedir.NewManager(t.TempDir(), logger)
	require.NoError(t, err)
	cs, err := mgr.Create(context.Background(), "store test")
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return NewStore(cs, logger)
}

func TestPutAndOpenRoundtrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	data := []byte("scanned report page one")

	att, err := s.Put(ctx, "report.txt", "text/plain", data, nil, nil)
	require.NoError(t, err)
	assert.NotZero(t, att.ID)
	assert.Equal(t, int64(len(data)), att.FileSize)
	assert.Len(t, att.SHA256, 64)
	assert.Nil(t, att.ThumbnailPath)

	rc, got, err := s.Open(ctx, att.ID)
	require.NoError(t, err)
	defer rc.Close()
	read, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, read)
	assert.Equal(t, att.SHA256, got.SHA256)
}

func TestPutRejectsOversize(t *testing.T) {
	s := newStore(t)
	data := make([]byte, MaxFileSize+1)
	_, err := s.Put(context.Background(), "huge.bin", "application/octet-stream", data, nil, nil)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestPutImageGetsThumbnail(t *testing.T) {
	s := newStore(t)

	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for x := 0; x < 640; x += 8 {
		for y := 0; y < 480; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	att, err := s.Put(context.Background(), "scene.png", "image/png", buf.Bytes(), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, att.ThumbnailPath)
	assert.FileExists(t, filepath.Join(s.cs.AttachmentsDir(), *att.ThumbnailPath))
}

func TestPutUndecodableImageStillStored(t *testing.T) {
	s := newStore(t)
	att, err := s.Put(context.Background(), "broken.png", "image/png", []byte("not an image"), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, att.ThumbnailPath)
}

func TestVerifyDetectsTampering(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	att, err := s.Put(ctx, "statement.txt", "text/plain", []byte("original words"), nil, nil)
	require.NoError(t, err)

	v, err := s.Verify(ctx, att.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VerifyOK, v.Result)
	// Hashes are omitted when the file checks out.
	assert.Empty(t, v.ExpectedHash)
	assert.Empty(t, v.ActualHash)

	path := filepath.Join(s.cs.AttachmentsDir(), att.FilePath)
	require.NoError(t, os.WriteFile(path, []byte("edited words"), 0o644))

	v, err = s.Verify(ctx, att.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VerifyTampered, v.Result)
	assert.Equal(t, att.SHA256, v.ExpectedHash)
	assert.NotEqual(t, v.ExpectedHash, v.ActualHash)
}

func TestVerifyDetectsMissing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	att, err := s.Put(ctx, "statement.txt", "text/plain", []byte("words"), nil, nil)
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(s.cs.AttachmentsDir(), att.FilePath)))

	v, err := s.Verify(ctx, att.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VerifyMissing, v.Result)
}

func TestVerifyAll(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	ok, err := s.Put(ctx, "a.txt", "text/plain", []byte("aaa"), nil, nil)
	require.NoError(t, err)
	bad, err := s.Put(ctx, "b.txt", "text/plain", []byte("bbb"), nil, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(s.cs.AttachmentsDir(), bad.FilePath), []byte("BBB"), 0o644))

	results, err := s.VerifyAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := map[int64]model.Verification{}
	for _, v := range results {
		byID[v.AttachmentID] = v
	}
	assert.Equal(t, model.VerifyOK, byID[ok.ID].Result)
	assert.Equal(t, model.VerifyTampered, byID[bad.ID].Result)
}

func TestDeleteRemovesFileAndMetadata(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	att, err := s.Put(ctx, "gone.txt", "text/plain", []byte("bytes"), nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, att.ID))

	assert.NoFileExists(t, filepath.Join(s.cs.AttachmentsDir(), att.FilePath))
	_, _, err = s.Open(ctx, att.ID)
	require.Error(t, err)
}

func TestDeleteCascadesLinks(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	att, err := s.Put(ctx, "ticket.txt", "text/plain", []byte("bus ticket scan"), nil, nil)
	require.NoError(t, err)

	_, err = s.cs.DB.LinkAttachment(ctx, att.ID, model.LinkEvidence, 1)
	require.NoError(t, err)
	_, err = s.cs.DB.LinkAttachment(ctx, att.ID, model.LinkEvent, 2)
	require.NoError(t, err)

	links, err := s.cs.DB.AttachmentLinks(ctx, att.ID)
	require.NoError(t, err)
	require.Len(t, links, 2)

	require.NoError(t, s.Delete(ctx, att.ID))

	// The links went with the attachment row.
	links, err = s.cs.DB.AttachmentLinks(ctx, att.ID)
	require.NoError(t, err)
	assert.Empty(t, links)
	_, err = s.cs.DB.GetAttachment(ctx, att.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"crime scene (2).jpg", "crime_scene__2_.jpg"},
		{"..", "unnamed"},
		{"", "unnamed"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilename(tt.in))
		})
	}
}
