package tasks

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/s1natex/lightly-tasks/internal/storage"
)

const (
	DefaultTasksKey      = "tasks_v2"
	DefaultCategoriesKey = "categories_v1"
)

// DefaultSeedCategories is the registry used when nothing is persisted yet.
var DefaultSeedCategories = []string{DefaultCategory, "Work", "Personal", "Shopping"}

// Store owns the task list and the category registry. Every mutation updates
// memory first and then queues a full rewrite of the affected blob; it never
// waits for the write to finish.
type Store struct {
	mu         sync.RWMutex
	tasks      []Task
	categories []string

	provider      storage.Provider
	writes        *writeQueue
	logger        *slog.Logger
	now           func() time.Time
	newID         func() string
	seed          []string
	tasksKey      string
	categoriesKey string
	onWriteError  func(key string, err error)
}

type Option func(*Store)

func WithSeedCategories(seed []string) Option {
	return func(s *Store) { s.seed = slices.Clone(seed) }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

func WithKeys(tasksKey, categoriesKey string) Option {
	return func(s *Store) {
		s.tasksKey = tasksKey
		s.categoriesKey = categoriesKey
	}
}

// WithOnWriteError registers a hook called from the writer goroutine when the
// provider rejects a write.
func WithOnWriteError(fn func(key string, err error)) Option {
	return func(s *Store) { s.onWriteError = fn }
}

func NewStore(p storage.Provider, opts ...Option) *Store {
	s := &Store{
		provider:      p,
		logger:        slog.Default(),
		now:           time.Now,
		newID:         newTaskID,
		seed:          slices.Clone(DefaultSeedCategories),
		tasksKey:      DefaultTasksKey,
		categoriesKey: DefaultCategoriesKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tasks = []Task{}
	s.categories = normalizeCategories(s.seed)
	s.writes = newWriteQueue(p, s.reportWrite)
	return s
}

// newTaskID returns a UUIDv7: a millisecond timestamp followed by random bits,
// monotonic within a millisecond.
func newTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// only fails when the random source does
		return uuid.NewString()
	}
	return id.String()
}

// Load replaces the in-memory state with what the provider holds. Absent or
// unreadable blobs fall back to an empty list and the seed categories. When
// normalising changes what was read, the repaired blobs are queued for writing.
func (s *Store) Load(ctx context.Context) ([]Task, []string) {
	var list []Task
	if !s.readJSON(ctx, s.tasksKey, &list) || list == nil {
		list = []Task{}
	}
	var stored []string
	storedOK := s.readJSON(ctx, s.categoriesKey, &stored) && len(stored) > 0
	cats := s.seed
	if storedOK {
		cats = stored
	}
	cats = normalizeCategories(cats)
	catsDirty := storedOK && !slices.Equal(stored, cats)

	tasksDirty := false
	for i := range list {
		t := &list[i]
		switch {
		case !t.Done && t.CompletedAt != nil:
			t.CompletedAt = nil
			tasksDirty = true
		case t.Done && t.CompletedAt == nil:
			// best known completion time
			ts := t.CreatedAt
			t.CompletedAt = &ts
			tasksDirty = true
		}
		if strings.TrimSpace(t.Category) == "" {
			t.Category = DefaultCategory
			tasksDirty = true
		}
		if !slices.Contains(cats, t.Category) {
			cats = append(cats, t.Category)
			catsDirty = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = list
	s.categories = cats
	if tasksDirty {
		s.persistTasksLocked()
	}
	if catsDirty {
		s.persistCategoriesLocked()
	}

	s.logger.Info("store_loaded",
		slog.Int("tasks", len(list)),
		slog.Int("categories", len(cats)),
		slog.Bool("repaired", tasksDirty || catsDirty),
	)
	return slices.Clone(s.tasks), slices.Clone(s.categories)
}

func (s *Store) readJSON(ctx context.Context, key string, dst any) bool {
	raw, ok, err := s.provider.Get(ctx, key)
	if err != nil {
		s.logger.Warn("store_load_failed", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.logger.Warn("store_load_corrupt", slog.String("key", key), slog.String("error", err.Error()))
		return false
	}
	return true
}

// Add prepends a new pending task. It reports false, without touching state,
// when text is blank.
func (s *Store) Add(text, category string) (AddResult, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		storeMutationsTotal.WithLabelValues("add", "rejected").Inc()
		return AddResult{}, false
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = DefaultCategory
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := Task{
		ID:        s.uniqueIDLocked(),
		Text:      text,
		Category:  category,
		CreatedAt: s.now().UnixMilli(),
	}
	s.tasks = slices.Insert(s.tasks, 0, t)
	s.persistTasksLocked()

	added := false
	if !slices.Contains(s.categories, category) {
		s.categories = append(s.categories, category)
		s.persistCategoriesLocked()
		added = true
	}

	storeMutationsTotal.WithLabelValues("add", "applied").Inc()
	s.logger.Debug("task_added", slog.String("id", t.ID), slog.String("category", category))
	return AddResult{
		Task:          t,
		CategoryAdded: added,
		Categories:    slices.Clone(s.categories),
	}, true
}

func (s *Store) uniqueIDLocked() string {
	for {
		id := s.newID()
		if s.indexLocked(id) < 0 {
			return id
		}
	}
}

// Toggle flips a task between pending and completed. An unknown id leaves the
// list as it is but is still persisted.
func (s *Store) Toggle(id string) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := "not_found"
	if i := s.indexLocked(id); i >= 0 {
		t := s.tasks[i]
		t.Done = !t.Done
		if t.Done {
			ts := s.now().UnixMilli()
			t.CompletedAt = &ts
		} else {
			t.CompletedAt = nil
		}
		s.tasks[i] = t
		outcome = "applied"
	}
	s.persistTasksLocked()

	storeMutationsTotal.WithLabelValues("toggle", outcome).Inc()
	return slices.Clone(s.tasks)
}

// Edit replaces the text of one task. Blank text or an unknown id changes
// nothing and writes nothing.
func (s *Store) Edit(id, text string) []Task {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if text == "" {
		storeMutationsTotal.WithLabelValues("edit", "rejected").Inc()
		return slices.Clone(s.tasks)
	}
	i := s.indexLocked(id)
	if i < 0 {
		storeMutationsTotal.WithLabelValues("edit", "not_found").Inc()
		return slices.Clone(s.tasks)
	}

	t := s.tasks[i]
	t.Text = text
	s.tasks[i] = t
	s.persistTasksLocked()

	storeMutationsTotal.WithLabelValues("edit", "applied").Inc()
	return slices.Clone(s.tasks)
}

// Remove deletes a task for good. The resulting list is persisted even when
// id was unknown.
func (s *Store) Remove(id string) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	outcome := "not_found"
	if i := s.indexLocked(id); i >= 0 {
		s.tasks = slices.Delete(s.tasks, i, i+1)
		outcome = "applied"
	}
	s.persistTasksLocked()

	storeMutationsTotal.WithLabelValues("remove", outcome).Inc()
	return slices.Clone(s.tasks)
}

func (s *Store) Tasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tasks)
}

func (s *Store) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.categories)
}

func (s *Store) Get(id string) (Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexLocked(id)
	if i < 0 {
		return Task{}, false
	}
	return s.tasks[i], true
}

// Filter applies FilterTasks to the current list.
func (s *Store) Filter(f Filter) []Task {
	return FilterTasks(s.Tasks(), f)
}

// Profile summarises the current list against the store clock.
func (s *Store) Profile() Profile {
	return Summarize(s.Tasks(), s.now())
}

// Flush waits until every mutation made so far has been handed to the provider.
func (s *Store) Flush(ctx context.Context) error {
	return s.writes.flush(ctx)
}

// Close writes out whatever is pending and stops the writer.
func (s *Store) Close(ctx context.Context) error {
	return s.writes.close(ctx)
}

func (s *Store) indexLocked(id string) int {
	return slices.IndexFunc(s.tasks, func(t Task) bool { return t.ID == id })
}

// persistTasksLocked queues a rewrite of the task list. The caller holds s.mu;
// the blob itself is rendered later by the writer under a read lock.
func (s *Store) persistTasksLocked() {
	s.writes.enqueue(s.tasksKey, func() (string, error) {
		return s.render(func() any { return s.tasks })
	})
}

func (s *Store) persistCategoriesLocked() {
	s.writes.enqueue(s.categoriesKey, func() (string, error) {
		return s.render(func() any { return s.categories })
	})
}

func (s *Store) render(pick func() any) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := json.Marshal(pick())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Store) reportWrite(key string, err error) {
	if err == nil {
		storeWritesTotal.WithLabelValues(key, "ok").Inc()
		return
	}
	storeWritesTotal.WithLabelValues(key, "error").Inc()
	s.logger.Warn("store_write_failed", slog.String("key", key), slog.String("error", err.Error()))
	if s.onWriteError != nil {
		s.onWriteError(key, err)
	}
}

// normalizeCategories drops blanks and duplicates, keeping first-seen order,
// and puts DefaultCategory first when it is missing.
func normalizeCategories(in []string) []string {
	out := make([]string, 0, len(in)+1)
	if !slices.Contains(in, DefaultCategory) {
		out = append(out, DefaultCategory)
	}
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	return out
}
