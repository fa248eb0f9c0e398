package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/campus-print-api/pkg/errors"
)

const testUploadLimit int64 = 1024

func newTestIntake(store *fakeStore) *IntakeService {
	return NewIntakeService(store, nil, IntakeConfig{MaxFileSizeBytes: testUploadLimit})
}

func upload(name string, size int) Upload {
	return Upload{Name: name, Size: int64(size), Reader: bytes.NewReader(bytes.Repeat([]byte("x"), size))}
}

func TestIntakeRejectsExecutable(t *testing.T) {
	store := newFakeStore()
	svc := newTestIntake(store)

	_, err := svc.AcceptUpload(context.Background(), upload("malware.exe", 10))
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrUnsupportedFileType.Code))
	assert.Zero(t, store.count())
}

func TestIntakeSizeBoundaries(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		wantErr *appErrors.Error
	}{
		{name: "one byte", size: 1},
		{name: "exactly the limit", size: int(testUploadLimit)},
		{name: "one over the limit", size: int(testUploadLimit) + 1, wantErr: appErrors.ErrFileTooLarge},
		{name: "empty", size: 0, wantErr: appErrors.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore()
			svc := newTestIntake(store)

			stored, err := svc.AcceptUpload(context.Background(), upload("thesis.pdf", tc.size))
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.True(t, appErrors.IsCode(err, tc.wantErr.Code))
				assert.Zero(t, store.count())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(tc.size), stored.Size)
			assert.Equal(t, "application/pdf", stored.MimeType)
			assert.True(t, strings.HasSuffix(stored.Key, ".pdf"))
			assert.True(t, store.has(stored.Key))
		})
	}
}

func TestIntakeCountsBytesActuallyRead(t *testing.T) {
	store := newFakeStore()
	svc := newTestIntake(store)

	// Declared size under the limit, real body over it.
	u := Upload{Name: "notes.docx", Size: 10, Reader: bytes.NewReader(make([]byte, testUploadLimit+50))}
	_, err := svc.AcceptUpload(context.Background(), u)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrFileTooLarge.Code))
	assert.Zero(t, store.count())
}

func TestIntakeKeysAreUnique(t *testing.T) {
	store := newFakeStore()
	svc := newTestIntake(store)

	first, err := svc.AcceptUpload(context.Background(), upload("scan.PNG", 4))
	require.NoError(t, err)
	second, err := svc.AcceptUpload(context.Background(), upload("scan.PNG", 4))
	require.NoError(t, err)

	assert.NotEqual(t, first.Key, second.Key)
	assert.Equal(t, "image/png", first.MimeType)
	assert.Equal(t, "scan.PNG", first.OriginalName)
}

func TestIntakeStorageFailure(t *testing.T) {
	store := newFakeStore()
	store.storeErr = errBackendDown
	svc := newTestIntake(store)

	_, err := svc.AcceptUpload(context.Background(), upload("thesis.pdf", 3))
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrStorage.Code))
	assert.ErrorIs(t, err, errBackendDown)
}

func TestIntakeDiscardIgnoresMissingObject(t *testing.T) {
	svc := newTestIntake(newFakeStore())
	assert.NoError(t, svc.Discard(context.Background(), "missing.pdf"))
}

func TestIntakeRejectsExtensionOnlyName(t *testing.T) {
	svc := newTestIntake(newFakeStore())
	err := svc.Validate(".pdf", 10)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrUnsupportedFileType.Code))
}
