package note

import (
	"context"
	"strings"
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
}

func newMemStore() *memStore {
	return &memStore{blobs: map[string][]byte{}}
}

func (m *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

func newTestService(t *testing.T) (*Service, *memStore, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	store := newMemStore()
	return NewService(db, store, nil), store, db
}

func mustCreate(t *testing.T, svc *Service, authorID, authorName string, dto CreateNoteDTO) *models.NoteModel {
	t.Helper()
	note, err := svc.Create(authorID, authorName, &dto)
	require.NoError(t, err)
	return note
}

func publishedNote(title string) CreateNoteDTO {
	return CreateNoteDTO{
		Title:    title,
		Content:  "content for " + title,
		Category: "Mathematics",
		Status:   models.StatusPublished,
	}
}

func TestCreateNoteDefaults(t *testing.T) {
	svc, _, _ := newTestService(t)

	note := mustCreate(t, svc, "u1", "alice", CreateNoteDTO{
		Title:    "Intro to Algorithms!",
		Content:  "A tour of sorting and searching.",
		Category: "Technology",
		Tags:     []string{" Sorting ", "SEARCH", "sorting"},
	})

	// No explicit status means the note goes live immediately.
	assert.Equal(t, models.StatusPublished, note.Status)
	assert.NotNil(t, note.PublishedAt)
	assert.Equal(t, models.DifficultyIntermediate, note.Difficulty)
	assert.Equal(t, 1, note.Version)
	assert.True(t, note.IsPublic)
	assert.Equal(t, "alice", note.AuthorName)
	assert.True(t, strings.HasPrefix(note.Slug, "intro-to-algorithms-"), "slug %q", note.Slug)
	assert.Equal(t, []string{"sorting", "search"}, note.Tags)
	assert.Equal(t, note.Content, note.Summary)
}

func TestCreateNoteDerivesSummary(t *testing.T) {
	svc, _, _ := newTestService(t)

	long := strings.Repeat("a", 500)
	note := mustCreate(t, svc, "u1", "alice", CreateNoteDTO{
		Title:    "Long Note",
		Content:  long,
		Category: "Science",
	})

	assert.Len(t, note.Summary, 203)
	assert.True(t, strings.HasSuffix(note.Summary, "..."))
}

func TestCreateNoteValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Create("u1", "alice", &CreateNoteDTO{
		Title:    "Bad Category",
		Content:  "body",
		Category: "Astrology",
	})
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.Create("u1", "alice", &CreateNoteDTO{
		Title:    strings.Repeat("t", 201),
		Content:  "body",
		Category: "Science",
	})
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.Create("u1", "alice", &CreateNoteDTO{
		Title:    "Bad Tag",
		Content:  "body",
		Category: "Science",
		Tags:     []string{strings.Repeat("x", 31)},
	})
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.Create("u1", "alice", &CreateNoteDTO{
		Title:    "Long Subject",
		Content:  "body",
		Category: "Science",
		Subject:  strings.Repeat("s", 101),
	})
	assert.True(t, apperr.IsValidation(err))
}

func TestCreateSameTitleDistinctSlugs(t *testing.T) {
	svc, _, _ := newTestService(t)

	first := mustCreate(t, svc, "u1", "alice", publishedNote("Linear Algebra"))
	second := mustCreate(t, svc, "u2", "bob", publishedNote("Linear Algebra"))

	assert.NotEqual(t, first.Slug, second.Slug)
	assert.True(t, strings.HasPrefix(first.Slug, "linear-algebra-"))
	assert.True(t, strings.HasPrefix(second.Slug, "linear-algebra-"))
}

func TestCreatePublishedSetsPublishedAt(t *testing.T) {
	svc, _, _ := newTestService(t)

	note := mustCreate(t, svc, "u1", "alice", publishedNote("Published"))
	require.NotNil(t, note.PublishedAt)
}

func TestGetByIDVisibility(t *testing.T) {
	svc, _, _ := newTestService(t)

	draft := mustCreate(t, svc, "u1", "alice", CreateNoteDTO{
		Title:    "My Draft",
		Content:  "wip",
		Category: "History",
		Status:   models.StatusDraft,
	})

	got, err := svc.GetByID(draft.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, draft.ID, got.ID)

	// An existing note the caller may not read answers 403, a missing id 404.
	_, err = svc.GetByID(draft.ID, "u2")
	assert.True(t, apperr.IsForbidden(err))

	_, err = svc.GetByID(draft.ID, "")
	assert.True(t, apperr.IsForbidden(err))

	_, err = svc.GetByID("no-such-id", "u2")
	assert.True(t, apperr.IsNotFound(err))
}

func TestGetByIDPrivateNoteForbidden(t *testing.T) {
	svc, _, _ := newTestService(t)

	private := publishedNote("Members Only")
	isPublic := false
	private.IsPublic = &isPublic
	note := mustCreate(t, svc, "u1", "alice", private)

	_, err := svc.GetByID(note.ID, "u2")
	assert.True(t, apperr.IsForbidden(err))

	got, err := svc.GetByID(note.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, note.ID, got.ID)
}

func TestGetBySlug(t *testing.T) {
	svc, _, _ := newTestService(t)

	note := mustCreate(t, svc, "u1", "alice", publishedNote("Slugged"))
	got, err := svc.GetBySlug(note.Slug, "")
	require.NoError(t, err)
	assert.Equal(t, note.ID, got.ID)

	_, err = svc.GetBySlug("no-such-slug", "")
	assert.True(t, apperr.IsNotFound(err))
}

func TestListShowsOnlyPublishedPublic(t *testing.T) {
	svc, _, _ := newTestService(t)

	visible := mustCreate(t, svc, "u1", "alice", publishedNote("Visible"))
	mustCreate(t, svc, "u1", "alice", CreateNoteDTO{
		Title: "Draft", Content: "wip", Category: "Mathematics",
		Status: models.StatusDraft,
	})
	private := publishedNote("Private")
	isPublic := false
	private.IsPublic = &isPublic
	mustCreate(t, svc, "u2", "bob", private)

	notes, pag, err := svc.List(ListOptions{}, pagination.Query{Page: 1, Size: 20})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, visible.ID, notes[0].ID)
	assert.Equal(t, int64(1), pag.Total)
}

func TestListMineIncludesDrafts(t *testing.T) {
	svc, _, _ := newTestService(t)

	mustCreate(t, svc, "u1", "alice", publishedNote("Mine Published"))
	mustCreate(t, svc, "u1", "alice", CreateNoteDTO{
		Title: "Mine Draft", Content: "wip", Category: "Medicine",
		Status: models.StatusDraft,
	})
	mustCreate(t, svc, "u2", "bob", publishedNote("Someone Else"))

	notes, _, err := svc.List(ListOptions{Mine: true, CallerID: "u1"}, pagination.Query{Page: 1, Size: 20})
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}

func TestListTagFilterMatchesAny(t *testing.T) {
	svc, _, _ := newTestService(t)

	a := publishedNote("Tagged A")
	a.Tags = []string{"calculus", "limits"}
	mustCreate(t, svc, "u1", "alice", a)

	b := publishedNote("Tagged B")
	b.Tags = []string{"algebra"}
	mustCreate(t, svc, "u1", "alice", b)

	c := publishedNote("Untagged")
	mustCreate(t, svc, "u1", "alice", c)

	notes, _, err := svc.List(ListOptions{Tags: []string{"calculus", "algebra"}}, pagination.Query{Page: 1, Size: 20})
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}

func TestSearchMatchesTitleContentTags(t *testing.T) {
	svc, _, _ := newTestService(t)

	mustCreate(t, svc, "u1", "alice", publishedNote("Thermodynamics Primer"))
	tagged := publishedNote("Unrelated Title")
	tagged.Tags = []string{"thermodynamics"}
	mustCreate(t, svc, "u1", "alice", tagged)
	mustCreate(t, svc, "u1", "alice", publishedNote("Organic Chemistry"))

	notes, _, err := svc.Search(ListOptions{Query: "thermodynamics"}, pagination.Query{Page: 1, Size: 20})
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}

func TestPopularOrdering(t *testing.T) {
	svc, _, db := newTestService(t)

	low := mustCreate(t, svc, "u1", "alice", publishedNote("Low"))
	high := mustCreate(t, svc, "u1", "alice", publishedNote("High"))
	require.NoError(t, db.Model(&models.NoteModel{}).Where("id = ?", high.ID).
		UpdateColumn("download_count", 10).Error)
	require.NoError(t, db.Model(&models.NoteModel{}).Where("id = ?", low.ID).
		UpdateColumn("download_count", 2).Error)

	notes, _, err := svc.Popular(context.Background(), WindowWeek, pagination.Query{Page: 1, Size: 20})
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, high.ID, notes[0].ID)
}

func TestUpdateSnapshotsPreEditState(t *testing.T) {
	svc, _, _ := newTestService(t)

	note := mustCreate(t, svc, "u1", "alice", publishedNote("Original Title"))

	newTitle := "Edited Title"
	updated, err := svc.Update(note.ID, "u1", &UpdateNoteDTO{
		Title:             &newTitle,
		ChangeDescription: "retitle",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, updated.Version)
	require.Len(t, updated.PreviousVersions, 1)
	snap := updated.PreviousVersions[0]
	assert.Equal(t, 1, snap.Version)
	assert.Equal(t, "Original Title", snap.Title)
	assert.Equal(t, note.Content, snap.Content)
	assert.Equal(t, "retitle", snap.ChangeDescription)
	assert.Equal(t, note.Slug, updated.Slug, "slug is immutable")
}

func TestUpdateMetadataOnlySkipsSnapshot(t *testing.T) {
	svc, _, _ := newTestService(t)

	note := mustCreate(t, svc, "u1", "alice", publishedNote("Stable"))

	diff := models.DifficultyAdvanced
	updated, err := svc.Update(note.ID, "u1", &UpdateNoteDTO{Difficulty: &diff})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Version)
	assert.Empty(t, updated.PreviousVersions)
}

func TestUpdatePublishedAtSetOnce(t *testing.T) {
	svc, _, _ := newTestService(t)

	note := mustCreate(t, svc, "u1", "alice", CreateNoteDTO{
		Title: "Lifecycle", Content: "body", Category: "Business",
		Status: models.StatusDraft,
	})
	require.Nil(t, note.PublishedAt)

	published := models.StatusPublished
	first, err := svc.Update(note.ID, "u1", &UpdateNoteDTO{Status: &published})
	require.NoError(t, err)
	require.NotNil(t, first.PublishedAt)
	firstPublished := *first.PublishedAt

	draft := models.StatusDraft
	_, err = svc.Update(note.ID, "u1", &UpdateNoteDTO{Status: &draft})
	require.NoError(t, err)
	again, err := svc.Update(note.ID, "u1", &UpdateNoteDTO{Status: &published})
	require.NoError(t, err)
	require.NotNil(t, again.PublishedAt)
	assert.Equal(t, firstPublished.Unix(), again.PublishedAt.Unix())
}

func TestUpdateAuthorOnly(t *testing.T) {
	svc, _, _ := newTestService(t)

	note := mustCreate(t, svc, "u1", "alice", publishedNote("Owned"))
	title := "Hijacked"
	_, err := svc.Update(note.ID, "u2", &UpdateNoteDTO{Title: &title})
	assert.True(t, apperr.IsForbidden(err))
}

func TestDeleteCascadesToFiles(t *testing.T) {
	svc, store, db := newTestService(t)

	note := mustCreate(t, svc, "u1", "alice", publishedNote("With Files"))

	key := blob.BuildKey("notes.pdf")
	require.NoError(t, store.Put(context.Background(), key, []byte("%PDF"), "application/pdf"))
	require.NoError(t, db.Create(&models.FileModel{
		OriginalName: "notes.pdf",
		FileName:     key,
		MimeType:     "application/pdf",
		Size:         4,
		UploaderID:   "u1",
		NoteID:       &note.ID,
	}).Error)

	require.NoError(t, svc.Delete(context.Background(), note.ID, "u1"))

	var fileCount int64
	require.NoError(t, db.Model(&models.FileModel{}).Where("note_id = ?", note.ID).Count(&fileCount).Error)
	assert.Zero(t, fileCount)
	assert.Zero(t, store.len())

	err := svc.Delete(context.Background(), note.ID, "u1")
	assert.True(t, apperr.IsNotFound(err), "second delete reports not found")
}

func TestDeleteAuthorOnly(t *testing.T) {
	svc, _, _ := newTestService(t)

	note := mustCreate(t, svc, "u1", "alice", publishedNote("Keep Out"))
	err := svc.Delete(context.Background(), note.ID, "u2")
	assert.True(t, apperr.IsForbidden(err))
}

func TestRatePersistsAggregate(t *testing.T) {
	svc, _, _ := newTestService(t)

	note := mustCreate(t, svc, "u1", "alice", publishedNote("Rated"))

	rated, err := svc.Rate(note.ID, "u2", "bob", &RateNoteDTO{Rating: 4, Comment: "solid"})
	require.NoError(t, err)
	assert.Equal(t, 4.0, rated.Rating)
	assert.Equal(t, 1, rated.RatingCount)

	rated, err = svc.Rate(note.ID, "u3", "carol", &RateNoteDTO{Rating: 2})
	require.NoError(t, err)
	assert.Equal(t, 3.0, rated.Rating)
	assert.Equal(t, 2, rated.RatingCount)

	// Re-rating replaces, count unchanged.
	rated, err = svc.Rate(note.ID, "u2", "bob", &RateNoteDTO{Rating: 5})
	require.NoError(t, err)
	assert.Equal(t, 3.5, rated.Rating)
	assert.Equal(t, 2, rated.RatingCount)

	_, err = svc.Rate(note.ID, "u2", "bob", &RateNoteDTO{Rating: 6})
	assert.True(t, apperr.IsValidation(err))
}

func TestToggleFavoriteRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)

	note := mustCreate(t, svc, "u1", "alice", publishedNote("Favorited"))

	favorited, count, err := svc.ToggleFavorite(note.ID, "u2")
	require.NoError(t, err)
	assert.True(t, favorited)
	assert.Equal(t, 1, count)

	favorited, count, err = svc.ToggleFavorite(note.ID, "u2")
	require.NoError(t, err)
	assert.False(t, favorited)
	assert.Zero(t, count)
}

func TestIncrementDownloadCount(t *testing.T) {
	svc, _, _ := newTestService(t)

	note := mustCreate(t, svc, "u1", "alice", publishedNote("Downloaded"))

	count, err := svc.IncrementDownloadCount(note.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = svc.IncrementDownloadCount(note.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestIncrementDownloadCountHiddenNote(t *testing.T) {
	svc, _, _ := newTestService(t)

	draft := mustCreate(t, svc, "u1", "alice", CreateNoteDTO{
		Title: "Hidden", Content: "wip", Category: "Language",
		Status: models.StatusDraft,
	})

	_, err := svc.IncrementDownloadCount(draft.ID, "u2")
	assert.True(t, apperr.IsForbidden(err))
}

func TestVersionsNewestFirstAuthorOnly(t *testing.T) {
	svc, _, _ := newTestService(t)

	note := mustCreate(t, svc, "u1", "alice", publishedNote("Versioned"))
	for _, title := range []string{"Second", "Third"} {
		titleCopy := title
		_, err := svc.Update(note.ID, "u1", &UpdateNoteDTO{Title: &titleCopy})
		require.NoError(t, err)
	}

	versions, err := svc.Versions(note.ID, "u1")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)
	assert.Equal(t, "Second", versions[0].Title)
	assert.Equal(t, 1, versions[1].Version)

	_, err = svc.Versions(note.ID, "u2")
	assert.True(t, apperr.IsForbidden(err))
}
