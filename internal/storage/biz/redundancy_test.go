package biz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedundancy(buckets ...*Bucket) (*Redundancy, *fakeFactory, map[string]*memStore) {
	repo := newFakeBucketRepo(buckets...)
	factory := newFakeFactory()
	stores := make(map[string]*memStore)
	for _, b := range buckets {
		store := newMemStore()
		stores[b.ID] = store
		factory.stores[b.ID] = store
	}
	return NewRedundancy(repo, factory, zap.NewNop()), factory, stores
}

func testBuckets(n int) []*Bucket {
	buckets := make([]*Bucket, n)
	for i := 0; i < n; i++ {
		buckets[i] = &Bucket{
			ID:       string(rune('a' + i)),
			Name:     "bucket-" + string(rune('a'+i)),
			Provider: ProviderLocal,
			Enabled:  true,
			Priority: i,
		}
	}
	return buckets
}

func TestStoreFansOutInPriorityOrder(t *testing.T) {
	buckets := testBuckets(3)
	r, _, stores := newTestRedundancy(buckets...)

	result, err := r.Store(context.Background(), "p/x", []byte("data"), "text/plain", 2)
	require.NoError(t, err)

	require.Len(t, result.Succeeded, 2)
	assert.Equal(t, "a", result.Succeeded[0].ID)
	assert.Equal(t, "b", result.Succeeded[1].ID)
	assert.True(t, stores["a"].has("p/x"))
	assert.True(t, stores["b"].has("p/x"))
	assert.False(t, stores["c"].has("p/x"))
	assert.False(t, result.Partial())
}

func TestStoreSkipsFailingBucket(t *testing.T) {
	buckets := testBuckets(3)
	r, _, stores := newTestRedundancy(buckets...)
	stores["a"].failPut = true

	result, err := r.Store(context.Background(), "p/x", []byte("data"), "text/plain", 2)
	require.NoError(t, err)

	require.Len(t, result.Succeeded, 2)
	assert.Equal(t, "b", result.Succeeded[0].ID)
	assert.Equal(t, "c", result.Succeeded[1].ID)
	assert.Contains(t, result.Failed, "a")
}

func TestStoreSucceedsWithSingleSurvivor(t *testing.T) {
	buckets := testBuckets(3)
	r, _, stores := newTestRedundancy(buckets...)
	stores["a"].failPut = true
	stores["b"].failPut = true

	result, err := r.Store(context.Background(), "p/x", []byte("data"), "text/plain", 3)
	require.NoError(t, err)

	assert.Len(t, result.Succeeded, 1)
	assert.True(t, result.Partial())
}

func TestStoreFailsWhenEveryBucketRefuses(t *testing.T) {
	buckets := testBuckets(2)
	r, _, stores := newTestRedundancy(buckets...)
	stores["a"].failPut = true
	stores["b"].failPut = true

	_, err := r.Store(context.Background(), "p/x", []byte("data"), "text/plain", 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageBackend)
}

func TestStoreWithoutEnabledBuckets(t *testing.T) {
	disabled := testBuckets(1)
	disabled[0].Enabled = false
	r, _, _ := newTestRedundancy(disabled...)

	_, err := r.Store(context.Background(), "p/x", []byte("data"), "text/plain", 1)
	assert.ErrorIs(t, err, ErrNoBucketsConfigured)
}

func TestStoreClampsCopyCount(t *testing.T) {
	buckets := testBuckets(2)
	r, _, _ := newTestRedundancy(buckets...)

	result, err := r.Store(context.Background(), "p/x", []byte("data"), "text/plain", 99)
	require.NoError(t, err)
	assert.Equal(t, MaxRedundancy, result.Requested)

	result, err = r.Store(context.Background(), "p/y", []byte("data"), "text/plain", 0)
	require.NoError(t, err)
	assert.Equal(t, MinRedundancy, result.Requested)
	assert.Len(t, result.Succeeded, 1)
}

func TestReadFallsBackAcrossLocations(t *testing.T) {
	buckets := testBuckets(2)
	r, _, stores := newTestRedundancy(buckets...)

	// Only the second bucket actually has the bytes
	require.NoError(t, stores["b"].Put(context.Background(), "p/x", readerOf("payload"), 7, "text/plain"))
	stores["a"].failGet = true

	locs := []*FileLocation{
		{InstanceID: "i1", BucketID: "a", Path: "p/x", Priority: 0},
		{InstanceID: "i1", BucketID: "b", Path: "p/x", Priority: 1},
	}

	data, err := r.Read(context.Background(), locs)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestReadWithNoLocations(t *testing.T) {
	r, _, _ := newTestRedundancy(testBuckets(1)...)
	_, err := r.Read(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteToleratesPartialFailure(t *testing.T) {
	buckets := testBuckets(2)
	r, factory, stores := newTestRedundancy(buckets...)

	require.NoError(t, stores["a"].Put(context.Background(), "p/x", readerOf("d"), 1, ""))
	require.NoError(t, stores["b"].Put(context.Background(), "p/x", readerOf("d"), 1, ""))
	factory.errs["b"] = assert.AnError

	locs := []*FileLocation{
		{BucketID: "a", Path: "p/x"},
		{BucketID: "b", Path: "p/x"},
	}
	assert.NoError(t, r.Delete(context.Background(), locs))
	assert.False(t, stores["a"].has("p/x"))
}

func TestDeleteFailsOnlyWhenAllFail(t *testing.T) {
	buckets := testBuckets(2)
	r, factory, _ := newTestRedundancy(buckets...)
	factory.errs["a"] = assert.AnError
	factory.errs["b"] = assert.AnError

	locs := []*FileLocation{
		{BucketID: "a", Path: "p/x"},
		{BucketID: "b", Path: "p/x"},
	}
	err := r.Delete(context.Background(), locs)
	assert.ErrorIs(t, err, ErrStorageBackend)
}
