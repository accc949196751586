package biz

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type ingestEnv struct {
	files      *fakeFileRepo
	instances  *fakeInstanceRepo
	locations  *fakeLocationRepo
	buckets    *fakeBucketRepo
	stores     map[string]*memStore
	factory    *fakeFactory
	redundancy *Redundancy
	queue      *fakeQueue
	ingest     *IngestUseCase
	fileUC     *FileUseCase
}

func newIngestEnv(t *testing.T, bucketCount int) *ingestEnv {
	t.Helper()

	buckets := testBuckets(bucketCount)
	bucketRepo := newFakeBucketRepo(buckets...)
	factory := newFakeFactory()
	stores := make(map[string]*memStore)
	for _, b := range buckets {
		store := newMemStore()
		stores[b.ID] = store
		factory.stores[b.ID] = store
	}

	env := &ingestEnv{
		files:     newFakeFileRepo(),
		instances: newFakeInstanceRepo(),
		locations: newFakeLocationRepo(),
		buckets:   bucketRepo,
		stores:    stores,
		factory:   factory,
		queue:     &fakeQueue{},
	}
	env.redundancy = NewRedundancy(bucketRepo, factory, zap.NewNop())
	env.ingest = NewIngestUseCase(
		env.files, env.instances, env.locations,
		env.redundancy, fakeTransactor{}, env.queue,
		isFakeDuplicate, zap.NewNop(),
	)
	env.fileUC = NewFileUseCase(
		env.files, env.instances, env.locations, bucketRepo,
		env.redundancy, fakeTransactor{}, zap.NewNop(),
	)
	return env
}

func TestIngestStoresNewFile(t *testing.T) {
	env := newIngestEnv(t, 3)
	ctx := context.Background()

	result, err := env.ingest.Ingest(ctx, "user-1", "photo.jpg", []byte("image bytes"), 2)
	require.NoError(t, err)
	require.NotNil(t, result.File)

	assert.False(t, result.Duplicate)
	assert.Equal(t, 2, result.Copies)
	assert.Equal(t, FileStatusProcessing, result.File.Status)
	assert.Equal(t, FileTypeImage, result.File.FileType)
	assert.Equal(t, ContentChecksum([]byte("image bytes")), result.File.Checksum)

	inst, err := env.instances.GetByFileAndVariant(ctx, result.File.ID, VariantOriginal)
	require.NoError(t, err)
	assert.Equal(t, InstanceStatusCompleted, inst.ProcessingStatus)

	locs, err := env.locations.ListByInstance(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.True(t, env.stores[locs[0].BucketID].has(inst.Path))
	assert.True(t, env.stores[locs[1].BucketID].has(inst.Path))

	// Variant generation was scheduled immediately
	variants := env.queue.byType(TaskTypeVariants)
	require.Len(t, variants, 1)
	assert.Equal(t, result.File.ID, variants[0].task.Payload["file_id"])
	assert.Zero(t, variants[0].delay)
}

func TestIngestRejectsEmptyUpload(t *testing.T) {
	env := newIngestEnv(t, 1)

	_, err := env.ingest.Ingest(context.Background(), "user-1", "empty.txt", nil, 1)
	assert.ErrorIs(t, err, ErrEmptyFile)
}

func TestIngestDeduplicatesPerUser(t *testing.T) {
	env := newIngestEnv(t, 2)
	ctx := context.Background()
	content := []byte("same bytes")

	first, err := env.ingest.Ingest(ctx, "user-1", "one.txt", content, 1)
	require.NoError(t, err)

	second, err := env.ingest.Ingest(ctx, "user-1", "two.txt", content, 1)
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.File.ID, second.File.ID)

	// A different user uploading the same bytes gets their own file
	other, err := env.ingest.Ingest(ctx, "user-2", "three.txt", content, 1)
	require.NoError(t, err)
	assert.False(t, other.Duplicate)
	assert.NotEqual(t, first.File.ID, other.File.ID)
}

func TestIngestDuplicateRestoresMissingBytes(t *testing.T) {
	env := newIngestEnv(t, 2)
	ctx := context.Background()
	content := []byte("precious bytes")

	first, err := env.ingest.Ingest(ctx, "user-1", "file.txt", content, 2)
	require.NoError(t, err)

	// Simulate bit loss: every bucket drops the object
	inst, err := env.instances.GetByFileAndVariant(ctx, first.File.ID, VariantOriginal)
	require.NoError(t, err)
	for _, store := range env.stores {
		require.NoError(t, store.Delete(ctx, inst.Path))
	}

	second, err := env.ingest.Ingest(ctx, "user-1", "file.txt", content, 2)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.File.ID, second.File.ID)

	// Bytes are back and readable
	data, _, err := env.fileUC.RetrieveContent(ctx, first.File.ID, VariantOriginal)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestIngestDuplicateRebuildsMissingInstance(t *testing.T) {
	env := newIngestEnv(t, 2)
	ctx := context.Background()
	content := []byte("registry drift")

	first, err := env.ingest.Ingest(ctx, "user-1", "file.txt", content, 1)
	require.NoError(t, err)

	// Simulate registry drift: the instance rows vanish
	inst, err := env.instances.GetByFileAndVariant(ctx, first.File.ID, VariantOriginal)
	require.NoError(t, err)
	require.NoError(t, env.locations.DeleteByInstance(ctx, inst.ID))
	require.NoError(t, env.instances.DeleteByFile(ctx, first.File.ID))

	second, err := env.ingest.Ingest(ctx, "user-1", "file.txt", content, 1)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)

	rebuilt, err := env.instances.GetByFileAndVariant(ctx, first.File.ID, VariantOriginal)
	require.NoError(t, err)
	assert.Equal(t, InstanceStatusCompleted, rebuilt.ProcessingStatus)

	data, _, err := env.fileUC.RetrieveContent(ctx, first.File.ID, VariantOriginal)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestIngestDuplicateSurvivesUnreachableBuckets(t *testing.T) {
	env := newIngestEnv(t, 1)
	ctx := context.Background()
	content := []byte("outage bytes")

	first, err := env.ingest.Ingest(ctx, "user-1", "file.txt", content, 1)
	require.NoError(t, err)
	inst, err := env.instances.GetByFileAndVariant(ctx, first.File.ID, VariantOriginal)
	require.NoError(t, err)

	// Every bucket goes dark; the duplicate upload must fail without touching
	// the registry, because the bytes may well still be there.
	env.factory.errs["a"] = errors.New("connection refused")
	_, err = env.ingest.Ingest(ctx, "user-1", "file.txt", content, 1)
	assert.ErrorIs(t, err, ErrStorageBackend)

	instances, err := env.instances.ListByFile(ctx, first.File.ID)
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.True(t, env.stores["a"].has(inst.Path))

	// With the bucket back the same duplicate resolves cleanly
	delete(env.factory.errs, "a")
	second, err := env.ingest.Ingest(ctx, "user-1", "file.txt", content, 1)
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
}

func TestIngestHealthyDuplicateDoesNotRewrite(t *testing.T) {
	env := newIngestEnv(t, 1)
	ctx := context.Background()
	content := []byte("stable")

	_, err := env.ingest.Ingest(ctx, "user-1", "a.txt", content, 1)
	require.NoError(t, err)
	objects := env.stores["a"].count()

	result, err := env.ingest.Ingest(ctx, "user-1", "a.txt", content, 1)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, objects, env.stores["a"].count())

	// Variant generation is still re-queued in case earlier runs lost some
	variants := env.queue.byType(TaskTypeVariants)
	assert.Len(t, variants, 2)
}

func TestIngestUniqueViolationResolvesToWinner(t *testing.T) {
	env := newIngestEnv(t, 1)
	ctx := context.Background()
	content := []byte("raced bytes")
	checksum := ContentChecksum(content)

	// Pre-seed the winner's row, then make the next dedup lookup miss so the
	// insert runs into the unique constraint the way a real lost race would.
	winner := &File{
		ID:               "winner",
		UserID:           "user-1",
		FileName:         "w.txt",
		FileType:         FileTypeDocument,
		MimeType:         "text/plain",
		Checksum:         checksum,
		UserFileChecksum: UserChecksum("user-1", checksum),
		Size:             int64(len(content)),
		Status:           FileStatusActive,
		StoragePrefix:    StoragePrefix("user-1", checksum),
	}
	path := InstancePath(winner.StoragePrefix, checksum, VariantOriginal, "txt")
	require.NoError(t, env.stores["a"].Put(ctx, path, readerOf(string(content)), int64(len(content)), "text/plain"))

	// Bypass Create's duplicate simulation for the seed itself
	env.files.files[winner.ID] = winner
	require.NoError(t, env.instances.Create(ctx, &FileInstance{
		ID: "winner-inst", FileID: winner.ID, Variant: VariantOriginal,
		Path: path, MimeType: "text/plain", Checksum: checksum,
		Size: int64(len(content)), ProcessingStatus: InstanceStatusCompleted,
	}))
	require.NoError(t, env.locations.Create(ctx, &FileLocation{
		ID: "winner-loc", InstanceID: "winner-inst", BucketID: "a",
		Path: path, Status: LocationStatusActive,
	}))

	env.files.missOnce = true
	result, err := env.ingest.Ingest(ctx, "user-1", "loser.txt", content, 1)
	require.NoError(t, err)
	assert.True(t, result.Duplicate)
	assert.Equal(t, "winner", result.File.ID)

	// The shared content-addressed object must survive the lost race
	assert.True(t, env.stores["a"].has(path))
}

func TestDeleteCompletelyRemovesEverything(t *testing.T) {
	env := newIngestEnv(t, 2)
	ctx := context.Background()

	result, err := env.ingest.Ingest(ctx, "user-1", "gone.txt", []byte("to delete"), 2)
	require.NoError(t, err)

	require.NoError(t, env.fileUC.DeleteCompletely(ctx, result.File.ID))

	_, err = env.files.GetByID(ctx, result.File.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, env.stores["a"].count())
	assert.Equal(t, 0, env.stores["b"].count())
}
