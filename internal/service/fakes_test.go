//go:build unit

package service

import (
	"context"
	"errors"
	"go-moodle-catalog/internal/data"
	"go-moodle-catalog/internal/moodle"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

func ptr[T any](v T) *T { return &v }

// fakeRemote is an in-memory RemoteCatalog.
type fakeRemote struct {
	mu          sync.Mutex
	categories  []moodle.CategoryRecord
	courses     []moodle.CourseRecord
	methods     map[int64][]moodle.EnrolMethodRecord
	courseErrs  map[int64]error
	err         error
	methodCalls map[int64]int
}

var _ RemoteCatalog = (*fakeRemote)(nil)

func (f *fakeRemote) GetCategories(ctx context.Context) ([]moodle.CategoryRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.categories, nil
}

func (f *fakeRemote) GetCourses(ctx context.Context) ([]moodle.CourseRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.courses, nil
}

func (f *fakeRemote) GetCourseEnrolmentMethods(ctx context.Context, courseID int64) ([]moodle.EnrolMethodRecord, error) {
	f.mu.Lock()
	if f.methodCalls == nil {
		f.methodCalls = map[int64]int{}
	}
	f.methodCalls[courseID]++
	f.mu.Unlock()
	if err := f.courseErrs[courseID]; err != nil {
		return nil, err
	}
	return f.methods[courseID], nil
}

// gatedRemote blocks enrolment fetches until release is closed or the
// fetch context ends.
type gatedRemote struct {
	fakeRemote
	started chan struct{}
	release chan struct{}
	calls   atomic.Int32
}

func newGatedRemote(methods map[int64][]moodle.EnrolMethodRecord) *gatedRemote {
	return &gatedRemote{
		fakeRemote: fakeRemote{methods: methods},
		started:    make(chan struct{}, 16),
		release:    make(chan struct{}),
	}
}

func (g *gatedRemote) GetCourseEnrolmentMethods(ctx context.Context, courseID int64) ([]moodle.EnrolMethodRecord, error) {
	g.calls.Add(1)
	g.started <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.fakeRemote.GetCourseEnrolmentMethods(ctx, courseID)
}

// fakeCategoryStore is an in-memory CategoryStore.
type fakeCategoryStore struct {
	rows      map[int64]*data.Category
	upsertErr error
	upserts   int
}

var _ CategoryStore = (*fakeCategoryStore)(nil)

func newFakeCategoryStore(cats ...*data.Category) *fakeCategoryStore {
	s := &fakeCategoryStore{rows: map[int64]*data.Category{}}
	for _, c := range cats {
		s.rows[c.MoodleID] = c
	}
	return s
}

func (s *fakeCategoryStore) Upsert(ctx context.Context, c *data.Category) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.upserts++
	cp := *c
	s.rows[c.MoodleID] = &cp
	return nil
}

func (s *fakeCategoryStore) GetByMoodleID(ctx context.Context, id int64) (*data.Category, error) {
	return s.rows[id], nil
}

func (s *fakeCategoryStore) GetByMoodleIDs(ctx context.Context, ids []int64) ([]*data.Category, error) {
	var out []*data.Category
	for _, id := range ids {
		if c, ok := s.rows[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeCategoryStore) sorted(keep func(*data.Category) bool) []*data.Category {
	var out []*data.Category
	for _, c := range s.rows {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *fakeCategoryStore) GetAll(ctx context.Context) ([]*data.Category, error) {
	return s.sorted(func(*data.Category) bool { return true }), nil
}

func (s *fakeCategoryStore) GetTopLevel(ctx context.Context) ([]*data.Category, error) {
	return s.sorted(func(c *data.Category) bool { return c.ParentID == 0 }), nil
}

func (s *fakeCategoryStore) GetChildren(ctx context.Context, parentID int64) ([]*data.Category, error) {
	return s.sorted(func(c *data.Category) bool { return c.ParentID == parentID }), nil
}

func (s *fakeCategoryStore) GetChildIDs(ctx context.Context, parentID int64) ([]int64, error) {
	var ids []int64
	for _, c := range s.rows {
		if c.ParentID == parentID {
			ids = append(ids, c.MoodleID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *fakeCategoryStore) GetIDsByPath(ctx context.Context, path string) ([]int64, error) {
	parts := data.ParsePath(path)
	if len(parts) == 0 {
		return nil, nil
	}
	trimmed := strings.TrimRight(path, "/")
	var ids []int64
	for _, c := range s.rows {
		if c.MoodleID == parts[len(parts)-1] || c.Path == trimmed || strings.HasPrefix(c.Path, trimmed+"/") {
			ids = append(ids, c.MoodleID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *fakeCategoryStore) CountChildren(ctx context.Context, parentID int64) (int, error) {
	ids, _ := s.GetChildIDs(ctx, parentID)
	return len(ids), nil
}

func (s *fakeCategoryStore) Count(ctx context.Context) (int, error) {
	return len(s.rows), nil
}

// fakeCourseStore is an in-memory CourseStore.
type fakeCourseStore struct {
	rows    map[int64]*data.Course
	listErr error
}

var _ CourseStore = (*fakeCourseStore)(nil)

func newFakeCourseStore(courses ...*data.Course) *fakeCourseStore {
	s := &fakeCourseStore{rows: map[int64]*data.Course{}}
	for _, c := range courses {
		s.rows[c.MoodleID] = c
	}
	return s
}

func (s *fakeCourseStore) Upsert(ctx context.Context, c *data.Course) error {
	cp := *c
	s.rows[c.MoodleID] = &cp
	return nil
}

func (s *fakeCourseStore) GetByMoodleID(ctx context.Context, id int64) (*data.Course, error) {
	return s.rows[id], nil
}

func (s *fakeCourseStore) GetAllMoodleIDs(ctx context.Context) ([]int64, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var ids []int64
	for id := range s.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *fakeCourseStore) match(f data.CourseFilter) []*data.Course {
	var out []*data.Course
	for _, c := range s.rows {
		if len(f.CategoryIDs) > 0 {
			found := false
			for _, id := range f.CategoryIDs {
				if c.CategoryID == id {
					found = true
				}
			}
			if !found {
				continue
			}
		}
		if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" &&
			!strings.Contains(strings.ToLower(c.Name), term) && !strings.Contains(strings.ToLower(c.Shortname), term) {
			continue
		}
		if f.VisibleOnly && c.Visibility != 1 {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *fakeCourseStore) Find(ctx context.Context, f data.CourseFilter) ([]*data.Course, error) {
	out := s.match(f)
	if f.Limit > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		end := f.Offset + f.Limit
		if end > len(out) {
			end = len(out)
		}
		out = out[f.Offset:end]
	}
	return out, nil
}

func (s *fakeCourseStore) Count(ctx context.Context, f data.CourseFilter) (int, error) {
	return len(s.match(f)), nil
}

// fakeEnrolStore is an in-memory EnrolMethodStore keyed like the real table.
type fakeEnrolStore struct {
	mu   sync.Mutex
	rows map[[2]int64]*data.EnrolMethod
}

var _ EnrolMethodStore = (*fakeEnrolStore)(nil)

func newFakeEnrolStore(methods ...*data.EnrolMethod) *fakeEnrolStore {
	s := &fakeEnrolStore{rows: map[[2]int64]*data.EnrolMethod{}}
	for _, m := range methods {
		s.rows[[2]int64{m.MoodleEnrolID, m.MoodleCourseID}] = m
	}
	return s
}

func (s *fakeEnrolStore) Upsert(ctx context.Context, m *data.EnrolMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.rows[[2]int64{m.MoodleEnrolID, m.MoodleCourseID}] = &cp
	return nil
}

func (s *fakeEnrolStore) GetByCourse(ctx context.Context, courseID int64) ([]*data.EnrolMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*data.EnrolMethod
	for _, m := range s.rows {
		if m.MoodleCourseID == courseID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Cost, out[j].Cost
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
	return out, nil
}

func (s *fakeEnrolStore) GetByCourses(ctx context.Context, ids []int64) (map[int64][]*data.EnrolMethod, error) {
	out := map[int64][]*data.EnrolMethod{}
	for _, id := range ids {
		methods, _ := s.GetByCourse(ctx, id)
		if len(methods) > 0 {
			out[id] = methods
		}
	}
	return out, nil
}

func (s *fakeEnrolStore) DeleteStale(ctx context.Context, courseID int64, keep []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := map[int64]bool{}
	for _, id := range keep {
		kept[id] = true
	}
	var n int64
	for k, m := range s.rows {
		if m.MoodleCourseID == courseID && !kept[m.MoodleEnrolID] {
			delete(s.rows, k)
			n++
		}
	}
	return n, nil
}

func (s *fakeEnrolStore) DeleteOrphans(ctx context.Context) (int64, error) {
	return 0, errors.New("fakeEnrolStore: use orphanStore")
}

func (s *fakeEnrolStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows), nil
}

// orphanStore wires DeleteOrphans to a course store.
type orphanStore struct {
	*fakeEnrolStore
	courses *fakeCourseStore
}

func (s orphanStore) DeleteOrphans(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, m := range s.rows {
		if _, ok := s.courses.rows[m.MoodleCourseID]; !ok {
			delete(s.rows, k)
			n++
		}
	}
	return n, nil
}

// fakeSettingsStore is an in-memory SettingsStore.
type fakeSettingsStore struct {
	values map[string]string
	err    error
}

var _ SettingsStore = (*fakeSettingsStore)(nil)

func newFakeSettingsStore() *fakeSettingsStore {
	return &fakeSettingsStore{values: map[string]string{}}
}

func (s *fakeSettingsStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *fakeSettingsStore) GetMany(ctx context.Context, keys ...string) (map[string]string, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := map[string]string{}
	for _, k := range keys {
		if v, ok := s.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *fakeSettingsStore) SetMany(ctx context.Context, values map[string]string) error {
	if s.err != nil {
		return s.err
	}
	for k, v := range values {
		s.values[k] = v
	}
	return nil
}

func (s *fakeSettingsStore) SetIfAbsent(ctx context.Context, key, value string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if v, ok := s.values[key]; ok {
		return v, nil
	}
	s.values[key] = value
	return value, nil
}

// fakeRunStore records sync runs in memory.
type fakeRunStore struct {
	mu   sync.Mutex
	runs []*data.SyncRun
}

var _ SyncRunStore = (*fakeRunStore)(nil)

func (s *fakeRunStore) Create(ctx context.Context, run *data.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *fakeRunStore) Finish(ctx context.Context, run *data.SyncRun) error {
	return nil
}

func (s *fakeRunStore) Latest(ctx context.Context, limit int) ([]*data.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, nil
}

// fakeInvalidator counts invalidations.
type fakeInvalidator struct {
	calls int
}

func (f *fakeInvalidator) Invalidate(ctx context.Context) { f.calls++ }

// fakePageCache is an in-memory PageCache.
type fakePageCache struct {
	items map[string][]byte
	gets  int
}

var _ PageCache = (*fakePageCache)(nil)

func (c *fakePageCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.gets++
	return c.items[key], nil
}

func (c *fakePageCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.items[key] = value
	return nil
}

func (c *fakePageCache) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	var n int64
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
			n++
		}
	}
	return n, nil
}

// staticPricing is a PricingSource with fixed settings.
type staticPricing PricingSettings

func (p staticPricing) PricingSettings(ctx context.Context) (PricingSettings, error) {
	return PricingSettings(p), nil
}

var defaultPricing = staticPricing{
	DecimalSeparator: DefaultDecimalSeparator,
	CurrencySymbol:   DefaultCurrencySymbol,
	PriceMessage:     DefaultPriceMessage,
}

func (p staticPricing) toSettings() PricingSettings { return PricingSettings(p) }
