package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"regflow/internal/document/models"
	"regflow/pkg/platform/sentinel"
	"regflow/pkg/requestcontext"
)

// InMemoryStore keeps document records in a map and delivers change
// notifications synchronously to subscribers after each write.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[models.ID]*models.Record
	subs    map[models.ID]map[uint64]models.Listener
	nextSub uint64
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[models.ID]*models.Record),
		subs:    make(map[models.ID]map[uint64]models.Listener),
	}
}

func (s *InMemoryStore) Create(ctx context.Context, rec *models.Record) (models.ID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stored := rec.Clone()
	if stored.ID == "" {
		stored.ID = models.ID(uuid.NewString())
	}
	now := requestcontext.Now(ctx)
	stored.CreatedAt, stored.UpdatedAt = now, now

	s.mu.Lock()
	if _, exists := s.records[stored.ID]; exists {
		s.mu.Unlock()
		return "", sentinel.ErrConflict
	}
	s.records[stored.ID] = stored
	listeners := s.listenersLocked(stored.ID)
	s.mu.Unlock()

	notify(listeners, stored, nil)
	return stored.ID, nil
}

func (s *InMemoryStore) Get(ctx context.Context, id models.ID) (*models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *InMemoryStore) Update(ctx context.Context, id models.ID, patch models.Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	rec, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return sentinel.ErrNotFound
	}
	patch.Apply(rec)
	rec.UpdatedAt = requestcontext.Now(ctx)
	snapshot := rec.Clone()
	listeners := s.listenersLocked(id)
	s.mu.Unlock()

	notify(listeners, snapshot, nil)
	return nil
}

func (s *InMemoryStore) Query(ctx context.Context, filter models.Filter) ([]*models.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Record
	for _, rec := range s.records {
		if filter.Matches(rec) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a record; subscribers observe a not-found snapshot.
func (s *InMemoryStore) Delete(ctx context.Context, id models.ID) error {
	s.mu.Lock()
	if _, ok := s.records[id]; !ok {
		s.mu.Unlock()
		return sentinel.ErrNotFound
	}
	delete(s.records, id)
	listeners := s.listenersLocked(id)
	s.mu.Unlock()

	notify(listeners, nil, sentinel.ErrNotFound)
	return nil
}

// Subscribe delivers the current snapshot immediately, then every change.
func (s *InMemoryStore) Subscribe(ctx context.Context, id models.ID, fn models.Listener) (models.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.nextSub++
	key := s.nextSub
	if s.subs[id] == nil {
		s.subs[id] = make(map[uint64]models.Listener)
	}
	s.subs[id][key] = fn
	current := s.records[id].Clone()
	s.mu.Unlock()

	if current == nil {
		fn(nil, sentinel.ErrNotFound)
	} else {
		fn(current, nil)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs[id], key)
			if len(s.subs[id]) == 0 {
				delete(s.subs, id)
			}
		})
	}, nil
}

// SubscriberCount reports live subscriptions on id.
func (s *InMemoryStore) SubscriberCount(id models.ID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs[id])
}

func (s *InMemoryStore) listenersLocked(id models.ID) []models.Listener {
	subs := s.subs[id]
	out := make([]models.Listener, 0, len(subs))
	for _, fn := range subs {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []models.Listener, rec *models.Record, err error) {
	for _, fn := range listeners {
		if rec != nil {
			fn(rec.Clone(), nil)
			continue
		}
		fn(nil, err)
	}
}
