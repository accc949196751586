package biz

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

func readerOf(s string) io.Reader {
	return strings.NewReader(s)
}

// errDuplicateKey stands in for the database's unique violation
var errDuplicateKey = errors.New("duplicate key value violates unique constraint")

func isFakeDuplicate(err error) bool {
	return errors.Is(err, errDuplicateKey)
}

type fakeFileRepo struct {
	mu    sync.Mutex
	files map[string]*File
	// missOnce makes the next GetByUserChecksum report not-found, simulating
	// a concurrent writer committing between dedup lookup and insert.
	missOnce bool
}

func newFakeFileRepo() *fakeFileRepo {
	return &fakeFileRepo{files: make(map[string]*File)}
}

func (r *fakeFileRepo) Create(ctx context.Context, f *File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.files {
		if existing.UserFileChecksum == f.UserFileChecksum {
			return errDuplicateKey
		}
	}
	cp := *f
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.files[f.ID] = &cp
	return nil
}

func (r *fakeFileRepo) GetByID(ctx context.Context, id string) (*File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, id)
	}
	cp := *f
	return &cp, nil
}

func (r *fakeFileRepo) GetByUserChecksum(ctx context.Context, userFileChecksum string) (*File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.missOnce {
		r.missOnce = false
		return nil, fmt.Errorf("%w: no file with user checksum", ErrNotFound)
	}
	for _, f := range r.files {
		if f.UserFileChecksum == userFileChecksum {
			cp := *f
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: no file with user checksum", ErrNotFound)
}

func (r *fakeFileRepo) UpdateMetadata(ctx context.Context, id string, metadata map[string]interface{}, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return fmt.Errorf("%w: file %s", ErrNotFound, id)
	}
	f.Metadata = metadata
	f.Status = status
	return nil
}

func (r *fakeFileRepo) List(ctx context.Context, limit, offset int) ([]*File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*File, 0, len(r.files))
	for _, f := range r.files {
		cp := *f
		all = append(all, &cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *fakeFileRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.files)), nil
}

func (r *fakeFileRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.files, id)
	return nil
}

type fakeInstanceRepo struct {
	mu        sync.Mutex
	instances map[string]*FileInstance // keyed by ID
}

func newFakeInstanceRepo() *fakeInstanceRepo {
	return &fakeInstanceRepo{instances: make(map[string]*FileInstance)}
}

func (r *fakeInstanceRepo) Create(ctx context.Context, inst *FileInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.instances {
		if existing.FileID == inst.FileID && existing.Variant == inst.Variant {
			return errDuplicateKey
		}
	}
	cp := *inst
	r.instances[inst.ID] = &cp
	return nil
}

func (r *fakeInstanceRepo) GetByFileAndVariant(ctx context.Context, fileID, variant string) (*FileInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range r.instances {
		if inst.FileID == fileID && inst.Variant == variant {
			cp := *inst
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: instance %s of file %s", ErrNotFound, variant, fileID)
}

func (r *fakeInstanceRepo) ListByFile(ctx context.Context, fileID string) ([]*FileInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*FileInstance
	for _, inst := range r.instances {
		if inst.FileID == fileID {
			cp := *inst
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Variant < out[j].Variant })
	return out, nil
}

func (r *fakeInstanceRepo) UpdateStatus(ctx context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[id]
	if !ok {
		return fmt.Errorf("%w: instance %s", ErrNotFound, id)
	}
	inst.ProcessingStatus = status
	return nil
}

func (r *fakeInstanceRepo) Update(ctx context.Context, inst *FileInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[inst.ID]; !ok {
		return fmt.Errorf("%w: instance %s", ErrNotFound, inst.ID)
	}
	cp := *inst
	r.instances[inst.ID] = &cp
	return nil
}

func (r *fakeInstanceRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, id)
	return nil
}

func (r *fakeInstanceRepo) DeleteByFile(ctx context.Context, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, inst := range r.instances {
		if inst.FileID == fileID {
			delete(r.instances, id)
		}
	}
	return nil
}

type fakeLocationRepo struct {
	mu   sync.Mutex
	locs map[string]*FileLocation
}

func newFakeLocationRepo() *fakeLocationRepo {
	return &fakeLocationRepo{locs: make(map[string]*FileLocation)}
}

func (r *fakeLocationRepo) Create(ctx context.Context, loc *FileLocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *loc
	r.locs[loc.ID] = &cp
	return nil
}

func (r *fakeLocationRepo) ListByInstance(ctx context.Context, instanceID string) ([]*FileLocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*FileLocation
	for _, loc := range r.locs {
		if loc.InstanceID == instanceID {
			cp := *loc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

func (r *fakeLocationRepo) DeleteByInstance(ctx context.Context, instanceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, loc := range r.locs {
		if loc.InstanceID == instanceID {
			delete(r.locs, id)
		}
	}
	return nil
}

func (r *fakeLocationRepo) UsageByBucket(ctx context.Context, bucketID string) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, loc := range r.locs {
		if loc.BucketID == bucketID {
			count++
		}
	}
	return 0, count, nil
}

type fakeBucketRepo struct {
	mu      sync.Mutex
	buckets []*Bucket
}

func newFakeBucketRepo(buckets ...*Bucket) *fakeBucketRepo {
	return &fakeBucketRepo{buckets: buckets}
}

func (r *fakeBucketRepo) Create(ctx context.Context, b *Bucket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.buckets = append(r.buckets, &cp)
	return nil
}

func (r *fakeBucketRepo) Update(ctx context.Context, b *Bucket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.buckets {
		if existing.ID == b.ID {
			cp := *b
			r.buckets[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("%w: bucket %s", ErrNotFound, b.ID)
}

func (r *fakeBucketRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, b := range r.buckets {
		if b.ID == id {
			r.buckets = append(r.buckets[:i], r.buckets[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeBucketRepo) GetByID(ctx context.Context, id string) (*Bucket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.buckets {
		if b.ID == id {
			cp := *b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: bucket %s", ErrNotFound, id)
}

func (r *fakeBucketRepo) List(ctx context.Context) ([]*Bucket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Bucket, len(r.buckets))
	copy(out, r.buckets)
	return out, nil
}

func (r *fakeBucketRepo) ListEnabled(ctx context.Context) ([]*Bucket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Bucket
	for _, b := range r.buckets {
		if b.Enabled {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

type fakeDimensionRepo struct {
	mu   sync.Mutex
	dims []*Dimension
}

func newFakeDimensionRepo(dims ...*Dimension) *fakeDimensionRepo {
	return &fakeDimensionRepo{dims: dims}
}

func (r *fakeDimensionRepo) Create(ctx context.Context, d *Dimension) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *d
	r.dims = append(r.dims, &cp)
	return nil
}

func (r *fakeDimensionRepo) Update(ctx context.Context, d *Dimension) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.dims {
		if existing.ID == d.ID {
			cp := *d
			r.dims[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("%w: dimension %s", ErrNotFound, d.ID)
}

func (r *fakeDimensionRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.dims {
		if d.ID == id {
			r.dims = append(r.dims[:i], r.dims[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeDimensionRepo) GetByID(ctx context.Context, id string) (*Dimension, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.dims {
		if d.ID == id {
			cp := *d
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: dimension %s", ErrNotFound, id)
}

func (r *fakeDimensionRepo) List(ctx context.Context) ([]*Dimension, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Dimension, len(r.dims))
	copy(out, r.dims)
	return out, nil
}

func (r *fakeDimensionRepo) ListEnabled(ctx context.Context) ([]*Dimension, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Dimension
	for _, d := range r.dims {
		if d.Enabled {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (r *fakeDimensionRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.dims)), nil
}

// memStore is an in-memory BlobStore
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
	failGet bool
	public  string
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	if s.failPut {
		return errors.New("put refused")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.objects[path] = data
	s.mu.Unlock()
	return nil
}

func (s *memStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	if s.failGet {
		return nil, errors.New("get refused")
	}
	s.mu.Lock()
	data, ok := s.objects[path]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	delete(s.objects, path)
	s.mu.Unlock()
	return nil
}

func (s *memStore) Exists(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	_, ok := s.objects[path]
	s.mu.Unlock()
	return ok, nil
}

func (s *memStore) PublicURL(ctx context.Context, path string) (string, error) {
	if s.public == "" {
		return "", nil
	}
	return s.public + "/" + path, nil
}

func (s *memStore) has(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[path]
	return ok
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// fakeFactory maps bucket IDs to stores
type fakeFactory struct {
	stores map[string]BlobStore
	errs   map[string]error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		stores: make(map[string]BlobStore),
		errs:   make(map[string]error),
	}
}

func (f *fakeFactory) ForBucket(ctx context.Context, b *Bucket) (BlobStore, error) {
	if err, ok := f.errs[b.ID]; ok {
		return nil, err
	}
	store, ok := f.stores[b.ID]
	if !ok {
		return nil, fmt.Errorf("no store for bucket %s", b.ID)
	}
	return store, nil
}

type queuedTask struct {
	task  *Task
	delay time.Duration
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []queuedTask
}

func (q *fakeQueue) Enqueue(ctx context.Context, task *Task, scheduleIn time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, queuedTask{task: task, delay: scheduleIn})
	return nil
}

func (q *fakeQueue) byType(taskType string) []queuedTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []queuedTask
	for _, qt := range q.tasks {
		if qt.task.Type == taskType {
			out = append(out, qt)
		}
	}
	return out
}

// fakeTransactor runs the function without a real transaction
type fakeTransactor struct{}

func (fakeTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeReferenceProbe struct {
	mu   sync.Mutex
	refs map[string]bool
}

func newFakeReferenceProbe() *fakeReferenceProbe {
	return &fakeReferenceProbe{refs: make(map[string]bool)}
}

func (p *fakeReferenceProbe) IsReferenced(ctx context.Context, fileID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refs[fileID], nil
}

func (p *fakeReferenceProbe) setReferenced(fileID string, referenced bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refs[fileID] = referenced
}
