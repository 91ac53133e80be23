package file

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/notedeck/core/internal/database"
	"github.com/notedeck/core/internal/models"
	"github.com/notedeck/core/internal/pkg/apperr"
	"github.com/notedeck/core/internal/pkg/blob"
	"github.com/notedeck/core/internal/pkg/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type memStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	puts  int
}

func newMemStore() *memStore {
	return &memStore{blobs: map[string][]byte{}}
}

func (m *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	m.blobs[key] = data
	return nil
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, blob.ErrNotExist
	}
	return data, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func newTestService(t *testing.T) (*Service, *memStore, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	store := newMemStore()
	return NewService(db, store), store, db
}

func seedNote(t *testing.T, db *gorm.DB, authorID, status string, isPublic bool) *models.NoteModel {
	t.Helper()
	note := models.NoteModel{
		Title:    "Seed",
		Content:  "seed content",
		AuthorID: authorID,
		Category: "Science",
		Status:   status,
		IsPublic: isPublic,
		Slug:     "seed-" + authorID + "-" + status,
		Version:  1,
	}
	require.NoError(t, db.Create(&note).Error)
	return &note
}

func TestUploadRejectsDisallowedType(t *testing.T) {
	svc, store, _ := newTestService(t)

	_, err := svc.Upload(context.Background(), "u1", "", "archive.zip", "application/zip", []byte("PK"))
	assert.True(t, apperr.IsValidation(err))
	assert.Zero(t, store.puts, "rejected uploads must not touch the store")
}

func TestUploadRejectsOversized(t *testing.T) {
	svc, store, _ := newTestService(t)

	data := bytes.Repeat([]byte("a"), MaxFileSize+1)
	_, err := svc.Upload(context.Background(), "u1", "", "big.txt", "text/plain", data)
	assert.True(t, apperr.IsValidation(err))
	assert.Zero(t, store.puts)
}

func TestUploadNormalizesMimeParams(t *testing.T) {
	svc, _, _ := newTestService(t)

	f, err := svc.Upload(context.Background(), "u1", "", "notes.txt", "text/plain; charset=utf-8", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", f.MimeType)
	assert.Equal(t, int64(5), f.Size)
}

func TestUploadAttachOwnershipChecked(t *testing.T) {
	svc, _, db := newTestService(t)
	note := seedNote(t, db, "owner", models.StatusPublished, true)

	_, err := svc.Upload(context.Background(), "intruder", note.ID, "a.txt", "text/plain", []byte("x"))
	assert.True(t, apperr.IsForbidden(err))

	f, err := svc.Upload(context.Background(), "owner", note.ID, "a.txt", "text/plain", []byte("x"))
	require.NoError(t, err)
	require.NotNil(t, f.NoteID)
	assert.Equal(t, note.ID, *f.NoteID)
}

func TestDownloadRoundTrip(t *testing.T) {
	svc, _, db := newTestService(t)
	note := seedNote(t, db, "owner", models.StatusPublished, true)

	uploaded, err := svc.Upload(context.Background(), "owner", note.ID, "notes.txt", "text/plain", []byte("study hard"))
	require.NoError(t, err)

	// Attached to a public note, any caller may download.
	f, data, err := svc.Download(context.Background(), uploaded.ID, "reader")
	require.NoError(t, err)
	assert.Equal(t, []byte("study hard"), data)
	assert.Equal(t, "notes.txt", f.OriginalName)

	var count int
	require.NoError(t, db.Model(&models.FileModel{}).Where("id = ?", uploaded.ID).
		Select("download_count").Scan(&count).Error)
	assert.Equal(t, 1, count)
}

func TestDownloadUnattachedUploaderOnly(t *testing.T) {
	svc, _, _ := newTestService(t)

	uploaded, err := svc.Upload(context.Background(), "u1", "", "private.txt", "text/plain", []byte("secret"))
	require.NoError(t, err)

	_, _, err = svc.Download(context.Background(), uploaded.ID, "u2")
	assert.True(t, apperr.IsForbidden(err))

	_, data, err := svc.Download(context.Background(), uploaded.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, []byte("secret"), data)
}

func TestDownloadFollowsNoteVisibility(t *testing.T) {
	svc, _, db := newTestService(t)
	draft := seedNote(t, db, "owner", models.StatusDraft, true)

	uploaded, err := svc.Upload(context.Background(), "owner", draft.ID, "wip.txt", "text/plain", []byte("wip"))
	require.NoError(t, err)

	_, _, err = svc.Download(context.Background(), uploaded.ID, "reader")
	assert.True(t, apperr.IsForbidden(err))
}

func TestDeleteUploaderOnly(t *testing.T) {
	svc, store, db := newTestService(t)

	uploaded, err := svc.Upload(context.Background(), "u1", "", "gone.txt", "text/plain", []byte("bye"))
	require.NoError(t, err)

	err = svc.Delete(context.Background(), uploaded.ID, "u2")
	assert.True(t, apperr.IsForbidden(err))

	require.NoError(t, svc.Delete(context.Background(), uploaded.ID, "u1"))
	_, ok := store.blobs[uploaded.FileName]
	assert.False(t, ok)

	var count int64
	require.NoError(t, db.Model(&models.FileModel{}).Count(&count).Error)
	assert.Zero(t, count)

	err = svc.Delete(context.Background(), uploaded.ID, "u1")
	assert.True(t, apperr.IsNotFound(err))
}

func TestMyFilesNewestFirst(t *testing.T) {
	svc, _, _ := newTestService(t)

	for _, name := range []string{"one.txt", "two.txt"} {
		_, err := svc.Upload(context.Background(), "u1", "", name, "text/plain", []byte(name))
		require.NoError(t, err)
	}
	_, err := svc.Upload(context.Background(), "u2", "", "other.txt", "text/plain", []byte("x"))
	require.NoError(t, err)

	files, pag, err := svc.MyFiles("u1", pagination.Query{Page: 1, Size: 20})
	require.NoError(t, err)
	assert.Len(t, files, 2)
	assert.Equal(t, int64(2), pag.Total)
}
