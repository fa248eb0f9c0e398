package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-print-api/internal/models"
	appErrors "github.com/noah-isme/campus-print-api/pkg/errors"
	"github.com/noah-isme/campus-print-api/pkg/storage"
)

type fakeOrderLookup map[string]*models.Order

func (f fakeOrderLookup) FindByToken(_ context.Context, token string) (*models.Order, error) {
	if o, ok := f[token]; ok {
		return o, nil
	}
	return nil, appErrors.ErrNotFound
}

type fakeFetcher struct {
	objects map[string][]byte
	err     error
}

func (f *fakeFetcher) Fetch(_ context.Context, key string) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func fileRouter(signer *storage.SignedURLSigner, fetcher *fakeFetcher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	orders := fakeOrderLookup{
		"TRK-1": {TrackingToken: "TRK-1", StoredFilename: "2024/03/a.pdf", OriginalFilename: "thesis.pdf", MimeType: "application/pdf", FileSize: 4},
	}
	r := gin.New()
	r.GET("/files/download", NewFileHandler(signer, orders, fetcher, nil).Download)
	return r
}

func download(r http.Handler, token string) *httptest.ResponseRecorder {
	return get(r, "/files/download?token="+url.QueryEscape(token))
}

func TestFileHandlerStreamsSignedDownload(t *testing.T) {
	signer := storage.NewSignedURLSigner("secret", time.Minute)
	r := fileRouter(signer, &fakeFetcher{objects: map[string][]byte{"2024/03/a.pdf": []byte("%PDF")}})

	token, _, err := signer.Generate("TRK-1", "2024/03/a.pdf")
	require.NoError(t, err)

	rec := download(r, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF", rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="thesis.pdf"`, rec.Header().Get("Content-Disposition"))
}

func TestFileHandlerRejectsBadTokens(t *testing.T) {
	signer := storage.NewSignedURLSigner("secret", time.Minute)
	r := fileRouter(signer, &fakeFetcher{objects: map[string][]byte{}})

	assert.Equal(t, http.StatusForbidden, download(r, "garbage").Code)

	forged, _, err := storage.NewSignedURLSigner("other", time.Minute).Generate("TRK-1", "2024/03/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, download(r, forged).Code)

	past := time.Now().Add(-time.Hour)
	stale, _, err := storage.NewSignedURLSigner("secret", time.Minute).WithClock(func() time.Time { return past }).Generate("TRK-1", "2024/03/a.pdf")
	require.NoError(t, err)
	rec := download(r, stale)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "expired")

	otherKey, _, err := signer.Generate("TRK-1", "2024/03/other.pdf")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, download(r, otherKey).Code)

	unknown, _, err := signer.Generate("TRK-9", "2024/03/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, download(r, unknown).Code)
}

func TestFileHandlerStorageErrors(t *testing.T) {
	signer := storage.NewSignedURLSigner("secret", time.Minute)
	token, _, err := signer.Generate("TRK-1", "2024/03/a.pdf")
	require.NoError(t, err)

	missing := fileRouter(signer, &fakeFetcher{objects: map[string][]byte{}})
	assert.Equal(t, http.StatusNotFound, download(missing, token).Code)

	down := fileRouter(signer, &fakeFetcher{err: errors.New("bucket unreachable")})
	rec := download(down, token)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "bucket unreachable")
}
